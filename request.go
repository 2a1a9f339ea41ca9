package datatables

// Search carries one search term, either the global one or a per-column one.
type Search struct {
	// Value is the text to search for.
	Value string `json:"value"`

	// Regex marks the value as a raw regular expression. Note that when
	// false the trimmed value is still compiled into a case-insensitive
	// substring regular expression WITHOUT escaping, so metacharacters in
	// plain searches leak through to the store. This matches the wire
	// protocol's historical behavior and is relied on by existing
	// clients; treat user-supplied search text accordingly.
	Regex bool `json:"regex"`
}

// Column describes one column of the submitted table.
type Column struct {
	// Data is the column's document path (e.g. "label" or "address.city").
	// Paths are unique within a request.
	Data string `json:"data"`

	// Name is the display name. It plays no role in compilation.
	Name string `json:"name"`

	// Searchable marks the column as a candidate for global and
	// per-column search.
	Searchable bool `json:"searchable"`

	// Orderable marks the column as a candidate for sorting.
	Orderable bool `json:"orderable"`

	// Search is this column's own search term.
	Search Search `json:"search"`
}

// Direction is a sort direction on the wire: "asc" or "desc".
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Order references a column by its POSITION in the request's column list,
// not by name. This index-based addressing is part of the wire protocol;
// out-of-range or non-orderable entries are skipped, never rejected.
type Order struct {
	Column int       `json:"column"`
	Dir    Direction `json:"dir"`
}

// Request is the declarative descriptor of pagination, search and sort for
// one table query. It mirrors the client-side table widget's wire shape.
type Request struct {
	// Draw is the client's sequence token, echoed back unchanged so
	// asynchronous responses can be correlated.
	Draw int `json:"draw"`

	// Start is the zero-based offset of the first record to return.
	Start int `json:"start"`

	// Length is the page size. 0 short-circuits to an empty response,
	// -1 means "all records".
	Length int `json:"length"`

	// Search is the global search term, applied to every searchable
	// column with OR semantics.
	Search Search `json:"search"`

	// Order lists the requested sort keys, by column position.
	Order []Order `json:"order"`

	// Columns lists the submitted columns, in wire order.
	Columns []Column `json:"columns"`
}

// NewRequest returns a request with the wire protocol's defaults
// (draw 1, page size 10).
func NewRequest() *Request {
	return &Request{Draw: 1, Length: 10}
}

// ColumnByData returns the column with the given data path, if any.
func (r *Request) ColumnByData(data string) (*Column, bool) {
	for i := range r.Columns {
		if r.Columns[i].Data == data {
			return &r.Columns[i], true
		}
	}
	return nil, false
}
