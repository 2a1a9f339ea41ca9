// Package datatables compiles declarative table requests - the wire shape
// used by common grid/table UI widgets - into MongoDB aggregation
// pipelines, and executes them into a paginated response envelope.
//
// A request describes pagination, per-column and global search, and
// index-addressed sort orders. The server declares each collection's
// queryable shape once as a Schema: field kinds (string, boolean, integer,
// date), excluded fields, a logical identity alias, and reference fields
// that dereference into foreign collections via outer joins before
// filtering or sorting on them.
//
// Compilation produces two related pipelines - a filtered-count pipeline
// and a data pipeline sharing the same prefix - and is deterministic: the
// same request and schema always render structurally identical stage
// sequences. The compiler performs no I/O and keeps no state across calls.
//
//	schema := datatables.NewSchema("_id", "label", "isEnabled", "createdAt", "product").
//		Kind("isEnabled", datatables.KindBoolean).
//		Kind("createdAt", datatables.KindDate).
//		Ref("product", "products", []string{"label"}, "createdAt")
//
//	repo := datatables.NewRepository[Order](db, "orders", schema)
//	resp := repo.FindAll(ctx, req)
//
// Request validation, CRUD plumbing and connection management are the
// caller's concern; a failure during execution is captured in the
// response's Error field rather than propagated.
package datatables
