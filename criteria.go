package datatables

import (
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/tablekit/datatables/internal/pipeline"
)

// physicalID is the store's physical identifier field.
const physicalID = "_id"

// CountField is the field name carrying the result of the count pipeline.
const CountField = "filtered_count"

// Compiled holds the pipeline pair produced for one request: a filtered
// count pipeline and a data pipeline sharing the same prefix. Compilation
// is pure - the same request and schema always yield structurally
// identical pipelines.
type Compiled struct {
	Count mongo.Pipeline
	Data  mongo.Pipeline
}

// Compile translates a table request plus field metadata into the pipeline
// pair, with no external predicates.
func Compile(req *Request, schema *Schema) (*Compiled, error) {
	return CompileWith(req, schema, nil, nil)
}

// CompileWith translates a table request plus field metadata into the
// pipeline pair. preFilter and additional are out-of-band match predicates
// prepended to the shared prefix; either may be nil. A predicate touching
// a reference-configured field aborts compilation with a
// ReferenceUsageError - no partial pipelines are produced.
//
// The request and schema are never mutated: the compiler works on copies,
// so the identity-field substitution and exclusion scrub stay invisible
// to the caller.
func CompileWith(req *Request, schema *Schema, preFilter, additional bson.D) (*Compiled, error) {
	for _, f := range []bson.D{preFilter, additional} {
		if err := checkReferenceUsage(f, schema); err != nil {
			return nil, err
		}
	}

	c := newCompilation(req, schema)

	var shared []pipeline.Stage
	if len(preFilter) > 0 {
		shared = append(shared, pipeline.Match{Filter: preFilter})
	}
	if len(additional) > 0 {
		shared = append(shared, pipeline.Match{Filter: additional})
	}

	if len(c.config) > 0 {
		refStages := c.referenceStages()
		shared = append(shared, refStages...)

		// Dereference projections already carry inclusion semantics; an
		// explicit exclusion projection is only needed without them.
		if len(refStages) == 0 && len(c.excluded) > 0 {
			shared = append(shared, c.fieldProjection())
		}
	} else if len(c.excluded) > 0 {
		shared = append(shared, c.fieldProjection())
	}

	if global := c.globalStage(); global != nil {
		shared = append(shared, global)
	}
	for i := range c.columns {
		if stage := c.columnStage(c.columns[i]); stage != nil {
			shared = append(shared, stage)
		}
	}

	count := make([]pipeline.Stage, len(shared), len(shared)+1)
	copy(count, shared)
	count = append(count, pipeline.Count{Field: CountField})

	data := append(shared, c.pageStages()...)

	return &Compiled{
		Count: pipeline.Render(count),
		Data:  pipeline.Render(data),
	}, nil
}

// compilation is the per-call working state. Everything here is a copy;
// it is discarded once the pipelines are rendered.
type compilation struct {
	req      *Request
	schema   *Schema
	columns  []Column               // exclusions removed, identity aliased
	config   map[string]FieldConfig // keyed by working column paths
	fields   []string               // queryable stored fields
	excluded map[string]bool
	resolved map[string]string // column path -> synthetic dereference name
}

func newCompilation(req *Request, schema *Schema) *compilation {
	c := &compilation{
		req:      req,
		schema:   schema,
		excluded: schema.excludedSet(),
		resolved: make(map[string]string),
	}

	// Excluded fields behave as if never declared: scrubbed from the
	// column list, from order resolution (which runs against the
	// scrubbed list) and from the field metadata before anything else.
	// Excluding a parent path takes its sub-path columns with it.
	c.columns = make([]Column, 0, len(req.Columns))
	for _, col := range req.Columns {
		if c.excluded[col.Data] || c.excluded[pathRoot(col.Data)] {
			continue
		}
		c.columns = append(c.columns, col)
	}

	c.config = make(map[string]FieldConfig, len(schema.Config))
	for field, cfg := range schema.Config {
		if c.excluded[field] {
			continue
		}
		c.config[field] = cfg
	}

	c.fields = schema.queryableFields(c.excluded)

	// Substitute the physical identifier for the logical identity field
	// for the duration of compilation.
	if id := schema.IdentityField; id != "" && id != physicalID {
		for i := range c.columns {
			if c.columns[i].Data != id {
				continue
			}
			c.columns[i].Data = physicalID
			if cfg, ok := c.config[id]; ok {
				delete(c.config, id)
				c.config[physicalID] = cfg
			}
			break
		}
	}

	return c
}

// columnRoots returns the distinct first path segments of the working
// columns, in column order. These are the top-level fields the request
// actually touches.
func (c *compilation) columnRoots() []string {
	roots := make([]string, 0, len(c.columns))
	seen := make(map[string]bool, len(c.columns))
	for _, col := range c.columns {
		root := pathRoot(col.Data)
		if seen[root] {
			continue
		}
		seen[root] = true
		roots = append(roots, root)
	}
	return roots
}

// pathRoot returns the first segment of a document path.
func pathRoot(path string) string {
	if i := strings.IndexByte(path, '.'); i >= 0 {
		return path[:i]
	}
	return path
}

// referenceStages synthesizes the dereference sequence for every reference
// column that is searchable or orderable: normalize the stored reference
// into key/value entries, extract the foreign identifier, materialize it
// under a synthetic name, then outer-join the foreign collection onto that
// name. Returns nothing when no reference column qualifies.
func (c *compilation) referenceStages() []pipeline.Stage {
	var stages []pipeline.Stage
	roots := c.columnRoots()

	for _, col := range c.columns {
		cfg, ok := c.config[col.Data]
		if !ok || !cfg.isReference() || !(col.Searchable || col.Orderable) {
			continue
		}

		synth := syntheticName(col.Data, roots)
		c.resolved[col.Data] = synth

		fkArr := synth + "_fk_arr"
		fkObj := synth + "_fk_obj"
		fkID := synth + "_id"

		stages = append(stages,
			// Stored reference -> array of {k, v} entries.
			pipeline.Project{Spec: c.inclusion(roots, bson.E{
				Key:   fkArr,
				Value: bson.D{{Key: "$objectToArray", Value: "$" + col.Data}},
			})},
			// The identifier entry of the expanded reference.
			pipeline.Project{Spec: c.inclusion(roots, bson.E{
				Key:   fkObj,
				Value: bson.D{{Key: "$arrayElemAt", Value: bson.A{"$" + fkArr, int32(1)}}},
			})},
			// Its value is the foreign key.
			pipeline.Project{Spec: c.inclusion(roots, bson.E{
				Key:   fkID,
				Value: "$" + fkObj + ".v",
			})},
			pipeline.Lookup{
				From:         cfg.Reference.Collection,
				LocalField:   fkID,
				ForeignField: physicalID,
				As:           synth,
			},
		)

		// Keep the joined document alive through later projections.
		roots = append(roots, synth)
	}

	return stages
}

// fieldProjection builds the exclusion projection: every queryable stored
// field plus every column root, as inclusions. Excluding a parent path
// implicitly drops all of its sub-paths.
func (c *compilation) fieldProjection() pipeline.Stage {
	return pipeline.Project{Spec: c.inclusion(c.columnRoots())}
}

// inclusion builds a projection document including the queryable fields
// and the given roots, deduplicated in first-seen order, plus optional
// computed entries.
func (c *compilation) inclusion(roots []string, computed ...bson.E) bson.D {
	spec := make(bson.D, 0, len(c.fields)+len(roots)+len(computed))
	seen := make(map[string]bool, len(c.fields)+len(roots))
	for _, f := range c.fields {
		if seen[f] {
			continue
		}
		seen[f] = true
		spec = append(spec, bson.E{Key: f, Value: int32(1)})
	}
	for _, r := range roots {
		if seen[r] {
			continue
		}
		seen[r] = true
		spec = append(spec, bson.E{Key: r, Value: int32(1)})
	}
	return append(spec, computed...)
}

// syntheticName derives a collision-free name for dereferenced data:
// the column path plus trailing underscores, lengthened until no existing
// root has the candidate as a prefix.
func syntheticName(data string, roots []string) string {
	name := data
	for {
		name += "_"
		collision := false
		for _, r := range roots {
			if strings.HasPrefix(r, name) {
				collision = true
				break
			}
		}
		if !collision {
			return name
		}
	}
}

// globalStage builds the global-search match: the per-column predicates of
// every searchable column, OR-combined. Nil when the term is blank or no
// column yields a predicate.
func (c *compilation) globalStage() pipeline.Stage {
	if !hasText(c.req.Search.Value) {
		return nil
	}

	var criteria []bson.D
	for _, col := range c.columns {
		if !col.Searchable {
			continue
		}
		criteria = append(criteria, c.criteriaFor(col, c.req.Search)...)
	}
	return matchAny(criteria)
}

// columnStage builds one column's own match. Per-column matches are
// emitted as separate stages, so columns compose with AND; within one
// column the elementary predicates OR together.
func (c *compilation) columnStage(col Column) pipeline.Stage {
	if !col.Searchable || !hasText(col.Search.Value) {
		return nil
	}
	return matchAny(c.criteriaFor(col, col.Search))
}

// matchAny wraps elementary criteria in a match stage, OR-combining when
// there is more than one. Nil when there are none.
func matchAny(criteria []bson.D) pipeline.Stage {
	switch len(criteria) {
	case 0:
		return nil
	case 1:
		return pipeline.Match{Filter: criteria[0]}
	default:
		any := make(bson.A, len(criteria))
		for i, crit := range criteria {
			any[i] = crit
		}
		return pipeline.Match{Filter: bson.D{{Key: "$or", Value: any}}}
	}
}

// criteriaFor converts one search term into zero or more elementary
// predicates, typed per the column's field metadata. More than one is
// produced only for reference columns, which fan out across every
// configured foreign search field.
func (c *compilation) criteriaFor(col Column, search Search) []bson.D {
	cfg := c.config[col.Data] // zero value = plain string field

	if cfg.isReference() {
		return c.referenceCriteria(col, cfg, search)
	}

	value := search.Value
	switch cfg.Kind {
	case KindBoolean:
		// Anything but true/false is silently ignored, not an error.
		if strings.EqualFold(value, "true") || strings.EqualFold(value, "false") {
			return []bson.D{{{Key: col.Data, Value: strings.EqualFold(value, "true")}}}
		}
		return nil

	case KindInteger:
		n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return nil
		}
		return []bson.D{{{Key: col.Data, Value: n}}}

	case KindDate:
		return []bson.D{c.dateCriterion(col, cfg, value)}

	default:
		return []bson.D{{{Key: col.Data, Value: searchRegex(search)}}}
	}
}

// referenceCriteria fans a search term out across the foreign search
// fields of a dereferenced column. "true"/"false" compares every field as
// boolean; anything else matches per the string rule.
func (c *compilation) referenceCriteria(col Column, cfg FieldConfig, search Search) []bson.D {
	resolved := c.resolved[col.Data]
	criteria := make([]bson.D, 0, len(cfg.Reference.SearchFields))

	if strings.EqualFold(search.Value, "true") || strings.EqualFold(search.Value, "false") {
		b := strings.EqualFold(search.Value, "true")
		for _, field := range cfg.Reference.SearchFields {
			criteria = append(criteria, bson.D{{Key: resolved + "." + field, Value: b}})
		}
		return criteria
	}

	for _, field := range cfg.Reference.SearchFields {
		criteria = append(criteria, bson.D{{Key: resolved + "." + field, Value: searchRegex(search)}})
	}
	return criteria
}

// dateCriterion matches search text as a case-insensitive substring of the
// stored instant rendered in the column's timezone. Partial date or time
// text ("2021-03", "14:25") therefore matches.
func (c *compilation) dateCriterion(col Column, cfg FieldConfig, value string) bson.D {
	tz := cfg.Timezone
	if tz == "" {
		tz = c.schema.DefaultTimezone
	}
	if tz == "" {
		tz = "UTC"
	}

	return bson.D{{Key: "$expr", Value: bson.D{{Key: "$regexMatch", Value: bson.D{
		{Key: "input", Value: bson.D{{Key: "$dateToString", Value: bson.D{
			{Key: "date", Value: "$" + col.Data},
			{Key: "timezone", Value: tz},
		}}}},
		{Key: "regex", Value: strings.TrimSpace(value)},
		{Key: "options", Value: "i"},
	}}}}}
}

// searchRegex compiles a search term per the string rule: raw pattern when
// the regex flag is set, otherwise the trimmed text as a case-insensitive
// substring pattern. Metacharacters are not escaped in either mode.
func searchRegex(search Search) primitive.Regex {
	if search.Regex {
		return primitive.Regex{Pattern: search.Value}
	}
	return primitive.Regex{Pattern: strings.TrimSpace(search.Value), Options: "i"}
}

// pageStages builds the data pipeline's tail: the resolved sort (when any
// order entry survives resolution), the offset, and the page size unless
// length signals "all".
func (c *compilation) pageStages() []pipeline.Stage {
	var stages []pipeline.Stage

	var keys []pipeline.SortKey
	for _, o := range c.req.Order {
		key, ok := c.resolveOrder(o)
		if !ok {
			continue
		}
		keys = append(keys, key)
	}
	if len(keys) > 0 {
		stages = append(stages, pipeline.Sort{Keys: keys})
	}

	stages = append(stages, pipeline.Skip{N: int64(c.req.Start)})
	if c.req.Length >= 0 {
		stages = append(stages, pipeline.Limit{N: int64(c.req.Length)})
	}
	return stages
}

// resolveOrder maps one order entry onto a sort key. Entries are skipped -
// never rejected - when the index is out of range, the column is not
// orderable, or a reference column has no foreign order field.
func (c *compilation) resolveOrder(o Order) (pipeline.SortKey, bool) {
	if o.Column < 0 || o.Column >= len(c.columns) {
		return pipeline.SortKey{}, false
	}
	col := c.columns[o.Column]
	if !col.Orderable {
		return pipeline.SortKey{}, false
	}

	desc := o.Dir == Desc

	if cfg, ok := c.config[col.Data]; ok && cfg.isReference() {
		if cfg.Reference.OrderField == "" {
			return pipeline.SortKey{}, false
		}
		return pipeline.SortKey{
			Path:       c.resolved[col.Data] + "." + cfg.Reference.OrderField,
			Descending: desc,
		}, true
	}

	return pipeline.SortKey{Path: col.Data, Descending: desc}, true
}

// hasText reports whether s contains anything but whitespace.
func hasText(s string) bool {
	return strings.TrimSpace(s) != ""
}
