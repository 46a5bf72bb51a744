// Package dsl provides a fluent builder over structgrade schema descriptors.
// Descriptors are assembled once at registration time and validated by Build;
// nothing is derived from runtime type introspection.
//
// Example:
//
//	item := dsl.Object().
//		MatchThreshold(0.8).
//		Field(dsl.Primitive("description", comparators.Levenshtein()).Threshold(0.9)).
//		Field(dsl.Primitive("quantity", comparators.Exact())).
//		MustBuild()
//
//	invoice := dsl.Object().
//		Field(dsl.Primitive("vendor", comparators.FoldCase()).Weight(2)).
//		Field(dsl.NestedList("items", item)).
//		MustBuild()
package dsl

import "github.com/reoring/structgrade"

// ObjectBuilder accumulates field descriptors for one object schema.
type ObjectBuilder struct {
	matchThreshold float64
	fields         []structgrade.FieldSpec
}

// Object starts a schema with match threshold 1.0 (an object pair must grade
// perfectly to count matched unless relaxed).
func Object() *ObjectBuilder {
	return &ObjectBuilder{matchThreshold: 1}
}

// MatchThreshold sets the minimum weighted similarity for an instance pair of
// this schema to classify as matched and expose its field breakdown.
func (b *ObjectBuilder) MatchThreshold(t float64) *ObjectBuilder {
	b.matchThreshold = t
	return b
}

// Field appends one field descriptor. Order is preserved.
func (b *ObjectBuilder) Field(f *FieldBuilder) *ObjectBuilder {
	b.fields = append(b.fields, f.spec)
	return b
}

// Build validates and returns the schema descriptor.
func (b *ObjectBuilder) Build() (*structgrade.Schema, error) {
	return structgrade.NewSchema(b.matchThreshold, b.fields...)
}

// MustBuild is Build that panics on an invalid descriptor. Intended for
// package-level schema registration.
func (b *ObjectBuilder) MustBuild() *structgrade.Schema {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}

// FieldBuilder configures one field descriptor. Defaults: threshold 1.0,
// weight 1.0, clipping on, included in aggregate rollups.
type FieldBuilder struct {
	spec structgrade.FieldSpec
}

// Primitive declares a scalar field scored by cmp.
func Primitive(name string, cmp structgrade.Comparator) *FieldBuilder {
	return &FieldBuilder{spec: structgrade.FieldSpec{
		Name: name, Comparator: cmp, Kind: structgrade.KindPrimitive, Threshold: 1, Weight: 1,
	}}
}

// PrimitiveList declares an unordered scalar collection scored pairwise by cmp.
func PrimitiveList(name string, cmp structgrade.Comparator) *FieldBuilder {
	return &FieldBuilder{spec: structgrade.FieldSpec{
		Name: name, Comparator: cmp, Kind: structgrade.KindPrimitiveList, Threshold: 1, Weight: 1,
	}}
}

// Nested declares a sub-object graded against its own schema.
func Nested(name string, s *structgrade.Schema) *FieldBuilder {
	return &FieldBuilder{spec: structgrade.FieldSpec{
		Name: name, Nested: s, Kind: structgrade.KindObject, Threshold: 1, Weight: 1,
	}}
}

// NestedList declares an unordered collection of sub-objects.
func NestedList(name string, s *structgrade.Schema) *FieldBuilder {
	return &FieldBuilder{spec: structgrade.FieldSpec{
		Name: name, Nested: s, Kind: structgrade.KindObjectList, Threshold: 1, Weight: 1,
	}}
}

// Threshold sets the minimum similarity for a present/present pair to count
// as a true positive.
func (f *FieldBuilder) Threshold(t float64) *FieldBuilder {
	f.spec.Threshold = t
	return f
}

// Weight sets this field's share of the parent weighted score.
func (f *FieldBuilder) Weight(w float64) *FieldBuilder {
	f.spec.Weight = w
	return f
}

// SkipAggregate excludes the field from ancestor aggregate rollups.
func (f *FieldBuilder) SkipAggregate() *FieldBuilder {
	f.spec.SkipAggregate = true
	return f
}

// NoClip keeps a below-threshold raw score in the weighted sum instead of
// clipping it to zero.
func (f *FieldBuilder) NoClip() *FieldBuilder {
	f.spec.SkipClip = true
	return f
}
