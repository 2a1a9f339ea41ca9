package datatables

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestWireShape(t *testing.T) {
	wire := `{
		"draw": 7,
		"start": 20,
		"length": 10,
		"search": {"value": "wid", "regex": false},
		"order": [{"column": 1, "dir": "desc"}],
		"columns": [
			{"data": "label", "name": "Label", "searchable": true, "orderable": true, "search": {"value": "", "regex": false}},
			{"data": "amount", "name": "", "searchable": true, "orderable": true, "search": {"value": "3", "regex": false}}
		]
	}`

	var req Request
	require.NoError(t, json.Unmarshal([]byte(wire), &req))

	assert.Equal(t, 7, req.Draw)
	assert.Equal(t, 20, req.Start)
	assert.Equal(t, 10, req.Length)
	assert.Equal(t, Search{Value: "wid"}, req.Search)
	require.Len(t, req.Order, 1)
	assert.Equal(t, Order{Column: 1, Dir: Desc}, req.Order[0])
	require.Len(t, req.Columns, 2)
	assert.Equal(t, "label", req.Columns[0].Data)
	assert.Equal(t, "3", req.Columns[1].Search.Value)

	// Encoding round-trips to the same wire names.
	out, err := json.Marshal(req)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"draw":7`)
	assert.Contains(t, string(out), `"columns":[`)
	assert.Contains(t, string(out), `"searchable":true`)
}

func TestNewRequestDefaults(t *testing.T) {
	req := NewRequest()
	assert.Equal(t, 1, req.Draw)
	assert.Equal(t, 0, req.Start)
	assert.Equal(t, 10, req.Length)
}

func TestColumnByData(t *testing.T) {
	req := NewRequest()
	req.Columns = []Column{
		{Data: "label"},
		{Data: "amount"},
	}

	col, ok := req.ColumnByData("amount")
	require.True(t, ok)
	assert.Equal(t, "amount", col.Data)

	// The pointer addresses the request's own column.
	col.Search.Value = "3"
	assert.Equal(t, "3", req.Columns[1].Search.Value)

	_, ok = req.ColumnByData("missing")
	assert.False(t, ok)
}
