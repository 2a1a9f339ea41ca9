package datatables

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// runner is the narrow seam between the compiler and the store. The
// production implementation wraps a driver collection; tests substitute
// an in-memory one.
type runner interface {
	count(ctx context.Context, filter bson.D) (int64, error)
	aggregate(ctx context.Context, p mongo.Pipeline, results any) error
}

type mongoRunner struct {
	coll *mongo.Collection
}

func (r mongoRunner) count(ctx context.Context, filter bson.D) (int64, error) {
	if filter == nil {
		filter = bson.D{}
	}
	return r.coll.CountDocuments(ctx, filter)
}

func (r mongoRunner) aggregate(ctx context.Context, p mongo.Pipeline, results any) error {
	cursor, err := r.coll.Aggregate(ctx, p)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)
	return cursor.All(ctx, results)
}

// Repository answers table requests for one collection, decoding rows
// into T. It holds no per-call state: every FindAll compiles, executes
// and discards its own pipelines.
type Repository[T any] struct {
	schema *Schema
	run    runner
}

// NewRepository builds a repository over a driver database. The schema is
// the collection's server-declared field metadata.
func NewRepository[T any](db *mongo.Database, collection string, schema *Schema) *Repository[T] {
	return &Repository[T]{
		schema: schema,
		run:    mongoRunner{coll: db.Collection(collection)},
	}
}

// FindOptions carries the out-of-band inputs of one call.
type FindOptions[T any] struct {
	// PreFilter restricts the table before counting: it affects
	// RecordsTotal, RecordsFiltered and Data alike.
	PreFilter bson.D

	// Additional composes with the request's own filters: it affects
	// RecordsFiltered and Data but not RecordsTotal.
	Additional bson.D

	// Mapper, when set, is applied to each decoded record.
	Mapper func(T) T
}

// FindAll answers a table request with no out-of-band predicates.
func (r *Repository[T]) FindAll(ctx context.Context, req *Request) *Response[T] {
	return r.FindAllWith(ctx, req, FindOptions[T]{})
}

// FindAllWith answers a table request.
//
// The execution ladder short-circuits to an empty response as soon as a
// step proves nothing can match, so the expensive join/data pipeline only
// runs when it will return rows:
//
//	length 0 -> done
//	reject external predicates touching reference fields
//	total count (pre-filter only) -> 0 means done
//	filtered count pipeline       -> 0 means done
//	data pipeline, decode, map
//
// Failures never propagate: they are captured in Response.Error with Draw
// set and the counts as far as they got. Data is populated only on full
// success.
func (r *Repository[T]) FindAllWith(ctx context.Context, req *Request, opts FindOptions[T]) *Response[T] {
	resp := emptyResponse[T](req.Draw)
	if req.Length == 0 {
		return resp
	}

	if err := r.findInto(ctx, req, opts, resp); err != nil {
		resp.Error = err.Error()
		resp.Data = []T{}
	}
	return resp
}

func (r *Repository[T]) findInto(ctx context.Context, req *Request, opts FindOptions[T], resp *Response[T]) error {
	for _, filter := range []bson.D{opts.PreFilter, opts.Additional} {
		if err := checkReferenceUsage(filter, r.schema); err != nil {
			return err
		}
	}

	total, err := r.run.count(ctx, opts.PreFilter)
	if err != nil {
		return err
	}
	resp.RecordsTotal = total
	if total == 0 {
		return nil
	}

	compiled, err := CompileWith(req, r.schema, opts.PreFilter, opts.Additional)
	if err != nil {
		return err
	}

	var counts []bson.M
	if err := r.run.aggregate(ctx, compiled.Count, &counts); err != nil {
		return err
	}
	resp.RecordsFiltered = filteredCount(counts)
	if resp.RecordsFiltered == 0 {
		return nil
	}

	var rows []T
	if err := r.run.aggregate(ctx, compiled.Data, &rows); err != nil {
		return err
	}
	if opts.Mapper != nil {
		for i := range rows {
			rows[i] = opts.Mapper(rows[i])
		}
	}
	if rows == nil {
		rows = []T{}
	}
	resp.Data = rows
	return nil
}

// filteredCount reads the count pipeline's single result document. A
// missing result means nothing matched.
func filteredCount(docs []bson.M) int64 {
	if len(docs) == 0 {
		return 0
	}
	switch n := docs[0][CountField].(type) {
	case int32:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}
