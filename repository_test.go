package datatables

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type testOrder struct {
	ID    string `bson:"_id"`
	Label string `bson:"label"`
}

// stubRunner scripts the store's answers and records what was asked.
type stubRunner struct {
	total    int64
	countErr error

	filtered    []bson.M
	filteredErr error

	rows    []testOrder
	rowsErr error

	countFilters []bson.D
	pipelines    []mongo.Pipeline
}

func (s *stubRunner) count(_ context.Context, filter bson.D) (int64, error) {
	s.countFilters = append(s.countFilters, filter)
	return s.total, s.countErr
}

func (s *stubRunner) aggregate(_ context.Context, p mongo.Pipeline, results any) error {
	s.pipelines = append(s.pipelines, p)

	// The count pipeline ends in $count; everything else is a data pipeline.
	if last := p[len(p)-1]; last[0].Key == "$count" {
		if s.filteredErr != nil {
			return s.filteredErr
		}
		*results.(*[]bson.M) = s.filtered
		return nil
	}
	if s.rowsErr != nil {
		return s.rowsErr
	}
	*results.(*[]testOrder) = s.rows
	return nil
}

func newTestRepo(run runner) *Repository[testOrder] {
	return &Repository[testOrder]{
		schema: NewSchema("_id", "label"),
		run:    run,
	}
}

func newTestRequest() *Request {
	req := NewRequest()
	req.Draw = 3
	req.Columns = []Column{{Data: "label", Searchable: true, Orderable: true}}
	return req
}

func TestFindAllZeroLength(t *testing.T) {
	run := &stubRunner{total: 5}
	repo := newTestRepo(run)

	req := newTestRequest()
	req.Length = 0

	resp := repo.FindAll(context.Background(), req)

	assert.Equal(t, 3, resp.Draw)
	assert.Zero(t, resp.RecordsTotal)
	assert.Empty(t, resp.Error)
	assert.NotNil(t, resp.Data)
	assert.Empty(t, resp.Data)
	assert.Empty(t, run.countFilters, "no store call for an empty page")
}

func TestFindAllEmptyCollection(t *testing.T) {
	run := &stubRunner{total: 0}
	repo := newTestRepo(run)

	resp := repo.FindAll(context.Background(), newTestRequest())

	assert.Zero(t, resp.RecordsTotal)
	assert.Zero(t, resp.RecordsFiltered)
	assert.Empty(t, resp.Error)
	assert.Len(t, run.countFilters, 1)
	assert.Empty(t, run.pipelines, "no pipeline runs when nothing exists")
}

func TestFindAllNothingMatches(t *testing.T) {
	run := &stubRunner{total: 9, filtered: nil}
	repo := newTestRepo(run)

	resp := repo.FindAll(context.Background(), newTestRequest())

	assert.Equal(t, int64(9), resp.RecordsTotal)
	assert.Zero(t, resp.RecordsFiltered)
	assert.Empty(t, resp.Error)
	assert.Len(t, run.pipelines, 1, "data pipeline skipped when the count is zero")
}

func TestFindAllSuccess(t *testing.T) {
	run := &stubRunner{
		total:    9,
		filtered: []bson.M{{CountField: int32(2)}},
		rows: []testOrder{
			{ID: "o1", Label: "blue widget"},
			{ID: "o2", Label: "red widget"},
		},
	}
	repo := newTestRepo(run)

	resp := repo.FindAll(context.Background(), newTestRequest())

	assert.Equal(t, 3, resp.Draw)
	assert.Equal(t, int64(9), resp.RecordsTotal)
	assert.Equal(t, int64(2), resp.RecordsFiltered)
	assert.Equal(t, []testOrder{
		{ID: "o1", Label: "blue widget"},
		{ID: "o2", Label: "red widget"},
	}, resp.Data)
	assert.Empty(t, resp.Error)
	require.Len(t, run.pipelines, 2)
}

func TestFindAllWithMapper(t *testing.T) {
	run := &stubRunner{
		total:    1,
		filtered: []bson.M{{CountField: int64(1)}},
		rows:     []testOrder{{ID: "o1", Label: "widget"}},
	}
	repo := newTestRepo(run)

	resp := repo.FindAllWith(context.Background(), newTestRequest(), FindOptions[testOrder]{
		Mapper: func(o testOrder) testOrder {
			o.Label = "mapped " + o.Label
			return o
		},
	})

	require.Len(t, resp.Data, 1)
	assert.Equal(t, "mapped widget", resp.Data[0].Label)
}

func TestFindAllPreFilterScopesTotal(t *testing.T) {
	run := &stubRunner{
		total:    4,
		filtered: []bson.M{{CountField: int32(1)}},
		rows:     []testOrder{{ID: "o1"}},
	}
	repo := newTestRepo(run)

	preFilter := bson.D{{Key: "label", Value: "widget"}}
	resp := repo.FindAllWith(context.Background(), newTestRequest(), FindOptions[testOrder]{
		PreFilter: preFilter,
	})

	assert.Empty(t, resp.Error)
	require.Len(t, run.countFilters, 1)
	assert.Equal(t, preFilter, run.countFilters[0])

	// The pre-filter leads both pipelines.
	require.Len(t, run.pipelines, 2)
	assert.Equal(t, bson.D{{Key: "$match", Value: preFilter}}, run.pipelines[0][0])
	assert.Equal(t, bson.D{{Key: "$match", Value: preFilter}}, run.pipelines[1][0])
}

func TestFindAllRejectsReferencePredicate(t *testing.T) {
	run := &stubRunner{total: 4}
	repo := &Repository[testOrder]{
		schema: NewSchema("_id", "label", "product").
			Ref("product", "products", []string{"label"}, ""),
		run: run,
	}

	resp := repo.FindAllWith(context.Background(), newTestRequest(), FindOptions[testOrder]{
		Additional: bson.D{{Key: "product", Value: "p1"}},
	})

	assert.Contains(t, resp.Error, `reference column "product"`)
	assert.Empty(t, run.countFilters, "rejected before any I/O")
	assert.Empty(t, run.pipelines)
}

func TestFindAllCapturesFailures(t *testing.T) {
	tests := []struct {
		name string
		run  *stubRunner

		wantTotal    int64
		wantFiltered int64
	}{
		{
			name: "count fails",
			run:  &stubRunner{countErr: errors.New("server selection timeout")},
		},
		{
			name:      "filtered count fails",
			run:       &stubRunner{total: 5, filteredErr: errors.New("bad stage")},
			wantTotal: 5,
		},
		{
			name: "data fetch fails",
			run: &stubRunner{
				total:    5,
				filtered: []bson.M{{CountField: int32(2)}},
				rowsErr:  errors.New("cursor died"),
			},
			wantTotal:    5,
			wantFiltered: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newTestRepo(tt.run)
			resp := repo.FindAll(context.Background(), newTestRequest())

			assert.NotEmpty(t, resp.Error)
			assert.Equal(t, 3, resp.Draw, "draw is always echoed")
			assert.Equal(t, tt.wantTotal, resp.RecordsTotal)
			assert.Equal(t, tt.wantFiltered, resp.RecordsFiltered)
			assert.NotNil(t, resp.Data)
			assert.Empty(t, resp.Data, "data is never partially populated")
		})
	}
}

func TestFilteredCount(t *testing.T) {
	tests := []struct {
		name string
		docs []bson.M
		want int64
	}{
		{name: "missing result means zero", docs: nil, want: 0},
		{name: "int32", docs: []bson.M{{CountField: int32(7)}}, want: 7},
		{name: "int64", docs: []bson.M{{CountField: int64(7)}}, want: 7},
		{name: "int", docs: []bson.M{{CountField: 7}}, want: 7},
		{name: "unexpected type", docs: []bson.M{{CountField: "7"}}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, filteredCount(tt.docs))
		})
	}
}
