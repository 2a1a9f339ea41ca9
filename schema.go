package datatables

import (
	"fmt"
	"reflect"
	"strings"
)

// FieldKind selects how search text is interpreted for a field.
type FieldKind string

const (
	KindString  FieldKind = "string"
	KindBoolean FieldKind = "boolean"
	KindInteger FieldKind = "integer"
	KindDate    FieldKind = "date"
)

func (k FieldKind) valid() bool {
	switch k {
	case "", KindString, KindBoolean, KindInteger, KindDate:
		return true
	}
	return false
}

// Reference describes a foreign-key field eligible for dereferencing.
type Reference struct {
	// Collection is the exact name of the foreign collection.
	Collection string `yaml:"collection" json:"collection"`

	// SearchFields lists the foreign fields matched when the reference
	// column is searched. Matches OR together.
	SearchFields []string `yaml:"searchFields" json:"searchFields"`

	// OrderField is the foreign field used when the reference column is
	// sorted. A reference column without one is silently not sortable.
	OrderField string `yaml:"orderField,omitempty" json:"orderField,omitempty"`
}

// FieldConfig is the server-declared search metadata for one field.
// The zero value means "plain string field".
type FieldConfig struct {
	// Kind defaults to KindString when empty.
	Kind FieldKind `yaml:"kind,omitempty" json:"kind,omitempty"`

	// Timezone renders date fields for text search. Accepts an Olson
	// identifier ("Europe/Berlin"), a UTC offset ("+04:45"), or "UTC".
	// Empty falls back to the schema default, then UTC.
	Timezone string `yaml:"timezone,omitempty" json:"timezone,omitempty"`

	// Reference marks the field as a foreign key. Kind is ignored for
	// reference fields.
	Reference *Reference `yaml:"reference,omitempty" json:"reference,omitempty"`
}

func (c FieldConfig) isReference() bool {
	return c.Reference != nil
}

// Schema is the explicit description of an entity's queryable shape,
// declared once on the server and never serialized to clients. The
// compiler consumes it as plain data; nothing is reflected at query time.
type Schema struct {
	// Fields lists the entity's stored field names in declaration order.
	Fields []string `yaml:"fields" json:"fields"`

	// IdentityField names the logical identity field when it differs
	// from the store's physical "_id". The compiler substitutes "_id"
	// for it during compilation; the substitution is invisible outside.
	IdentityField string `yaml:"identityField,omitempty" json:"identityField,omitempty"`

	// Excluded lists field names removed from compilation entirely:
	// from the column list, from order resolution and from the field
	// metadata. Excluding a parent path drops all of its sub-paths.
	Excluded []string `yaml:"excluded,omitempty" json:"excluded,omitempty"`

	// DefaultTimezone applies to date fields without their own timezone.
	// Empty means UTC. It is threaded through each compile call; there
	// is no process-wide default.
	DefaultTimezone string `yaml:"defaultTimezone,omitempty" json:"defaultTimezone,omitempty"`

	// Config maps field names to their search metadata. Fields without
	// an entry behave as plain string fields.
	Config map[string]FieldConfig `yaml:"config,omitempty" json:"config,omitempty"`
}

// NewSchema declares a schema over the given stored field names.
func NewSchema(fields ...string) *Schema {
	return &Schema{Fields: fields}
}

// WithIdentity names the logical identity field. Chainable.
func (s *Schema) WithIdentity(field string) *Schema {
	s.IdentityField = field
	return s
}

// WithDefaultTimezone sets the fallback timezone for date fields. Chainable.
func (s *Schema) WithDefaultTimezone(tz string) *Schema {
	s.DefaultTimezone = tz
	return s
}

// Exclude removes fields from compilation entirely. Chainable.
func (s *Schema) Exclude(fields ...string) *Schema {
	s.Excluded = append(s.Excluded, fields...)
	return s
}

// Kind sets the search kind for a field. Chainable.
func (s *Schema) Kind(field string, kind FieldKind) *Schema {
	cfg := s.configEntry(field)
	cfg.Kind = kind
	s.Config[field] = cfg
	return s
}

// Timezone sets the rendering timezone for a date field. Chainable.
func (s *Schema) Timezone(field, tz string) *Schema {
	cfg := s.configEntry(field)
	cfg.Timezone = tz
	s.Config[field] = cfg
	return s
}

// Ref marks a field as a reference into another collection. Chainable.
func (s *Schema) Ref(field, collection string, searchFields []string, orderField string) *Schema {
	cfg := s.configEntry(field)
	cfg.Reference = &Reference{
		Collection:   collection,
		SearchFields: searchFields,
		OrderField:   orderField,
	}
	s.Config[field] = cfg
	return s
}

func (s *Schema) configEntry(field string) FieldConfig {
	if s.Config == nil {
		s.Config = make(map[string]FieldConfig)
	}
	return s.Config[field]
}

// Validate checks the schema for internal consistency.
func (s *Schema) Validate() error {
	if len(s.Fields) == 0 {
		return fmt.Errorf("schema: fields list is required and must be non-empty")
	}

	declared := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if f == "" {
			return fmt.Errorf("schema: empty field name")
		}
		if declared[f] {
			return fmt.Errorf("schema: duplicate field %q", f)
		}
		declared[f] = true
	}

	if s.IdentityField != "" && !declared[s.IdentityField] {
		return fmt.Errorf("schema: identity field %q is not a declared field", s.IdentityField)
	}

	for field, cfg := range s.Config {
		if !cfg.Kind.valid() {
			return fmt.Errorf("schema: field %q has unknown kind %q", field, cfg.Kind)
		}
		if ref := cfg.Reference; ref != nil {
			if ref.Collection == "" {
				return fmt.Errorf("schema: reference field %q has no collection", field)
			}
			if len(ref.SearchFields) == 0 {
				return fmt.Errorf("schema: reference field %q has no search fields", field)
			}
		}
	}

	return nil
}

// excludedSet returns the exclusion list as a lookup set.
func (s *Schema) excludedSet() map[string]bool {
	if len(s.Excluded) == 0 {
		return nil
	}
	set := make(map[string]bool, len(s.Excluded))
	for _, f := range s.Excluded {
		set[f] = true
	}
	return set
}

// queryableFields enumerates the stored fields available to projections:
// the declared fields minus exclusions, in declaration order, with the
// logical identity field rewritten to its physical name.
func (s *Schema) queryableFields(excluded map[string]bool) []string {
	fields := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		if excluded[f] {
			continue
		}
		if f == s.IdentityField {
			f = physicalID
		}
		fields = append(fields, f)
	}
	return fields
}

// InferFields derives a stored field list from a struct's bson tags. It
// is a one-time generation step for building a Schema at startup; the
// compiler itself never reflects.
//
//	type Order struct {
//		ID      string    `bson:"_id"`
//		Label   string    `bson:"label"`
//		Created time.Time `bson:"createdAt"`
//	}
//
//	schema := datatables.NewSchema(datatables.InferFields(Order{})...)
func InferFields(v any) []string {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}

	fields := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("bson"); ok {
			parts := strings.Split(tag, ",")
			if parts[0] == "-" {
				continue
			}
			if parts[0] != "" {
				name = parts[0]
			} else {
				name = strings.ToLower(name)
			}
		} else {
			// The driver's default field mapping lowercases the name.
			name = strings.ToLower(name)
		}
		fields = append(fields, name)
	}
	return fields
}
