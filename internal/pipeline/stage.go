package pipeline

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Stage is one aggregation stage descriptor.
//
// This is a sealed interface - only types in this package implement it.
type Stage interface {
	stageNode() // Marker method - seals interface to this package

	// Document renders the stage as a single aggregation document,
	// e.g. {"$match": {...}}.
	Document() bson.D
}

// Match filters documents against a criteria document.
type Match struct {
	Filter bson.D
}

func (Match) stageNode() {}

// Document renders {"$match": filter}.
func (s Match) Document() bson.D {
	return bson.D{{Key: "$match", Value: s.Filter}}
}

// Project reshapes documents. Spec entries are either inclusions
// (field: 1) or computed fields (field: expression). Entry order is
// preserved all the way to the wire.
type Project struct {
	Spec bson.D
}

func (Project) stageNode() {}

// Document renders {"$project": spec}.
func (s Project) Document() bson.D {
	return bson.D{{Key: "$project", Value: s.Spec}}
}

// Lookup performs an outer join against another collection, storing the
// joined documents as an array under As.
type Lookup struct {
	From         string
	LocalField   string
	ForeignField string
	As           string
}

func (Lookup) stageNode() {}

// Document renders {"$lookup": {from, localField, foreignField, as}}.
func (s Lookup) Document() bson.D {
	return bson.D{{Key: "$lookup", Value: bson.D{
		{Key: "from", Value: s.From},
		{Key: "localField", Value: s.LocalField},
		{Key: "foreignField", Value: s.ForeignField},
		{Key: "as", Value: s.As},
	}}}
}

// SortKey is one key of a multi-key sort. Keys compose in slice order,
// which mongo treats as a stable lexicographic sort.
type SortKey struct {
	Path       string
	Descending bool
}

// Sort orders documents by one or more keys.
type Sort struct {
	Keys []SortKey
}

func (Sort) stageNode() {}

// Document renders {"$sort": {path: 1|-1, ...}}.
func (s Sort) Document() bson.D {
	spec := make(bson.D, 0, len(s.Keys))
	for _, k := range s.Keys {
		dir := int32(1)
		if k.Descending {
			dir = -1
		}
		spec = append(spec, bson.E{Key: k.Path, Value: dir})
	}
	return bson.D{{Key: "$sort", Value: spec}}
}

// Skip drops the first N documents.
type Skip struct {
	N int64
}

func (Skip) stageNode() {}

// Document renders {"$skip": n}.
func (s Skip) Document() bson.D {
	return bson.D{{Key: "$skip", Value: s.N}}
}

// Limit caps the result at N documents.
type Limit struct {
	N int64
}

func (Limit) stageNode() {}

// Document renders {"$limit": n}.
func (s Limit) Document() bson.D {
	return bson.D{{Key: "$limit", Value: s.N}}
}

// Count terminates a pipeline with a single document {Field: <count>}.
type Count struct {
	Field string
}

func (Count) stageNode() {}

// Document renders {"$count": field}.
func (s Count) Document() bson.D {
	return bson.D{{Key: "$count", Value: s.Field}}
}

// Render converts a stage sequence into a driver pipeline.
// Rendering is pure: the same stages always produce the same documents.
func Render(stages []Stage) mongo.Pipeline {
	p := make(mongo.Pipeline, 0, len(stages))
	for _, s := range stages {
		p = append(p, s.Document())
	}
	return p
}
