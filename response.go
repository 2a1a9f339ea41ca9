package datatables

// Response is the envelope returned for one table query.
//
// Error is empty on success. Callers must treat a non-empty Error as
// "response unreliable" regardless of any transport-level success signal:
// Draw is always set, the counts retain whatever was computed before the
// failure, and Data is populated only on full success - never partially.
type Response[T any] struct {
	// Draw echoes the request's sequence token.
	Draw int `json:"draw"`

	// RecordsTotal is the record count ignoring every filter except the
	// pre-filter predicate.
	RecordsTotal int64 `json:"recordsTotal"`

	// RecordsFiltered is the record count after all filters.
	RecordsFiltered int64 `json:"recordsFiltered"`

	// Data holds the page of mapped entities. Serializes as an array,
	// never as null.
	Data []T `json:"data"`

	// Error holds the failure text, omitted when empty.
	Error string `json:"error,omitempty"`
}

func emptyResponse[T any](draw int) *Response[T] {
	return &Response[T]{Draw: draw, Data: []T{}}
}
