package structgrade

import "fmt"

// FieldSpec is the per-field grading descriptor. Descriptors are built once at
// registration time (directly, via dsl, or via schemafile) and never derived
// from runtime type introspection.
type FieldSpec struct {
	// Name is the attribute key on both instance graphs.
	Name string
	// Comparator scores leaf similarity. Required for KindPrimitive and
	// KindPrimitiveList; ignored for object kinds, whose similarity is the
	// nested weighted score.
	Comparator Comparator
	// Threshold is the minimum similarity for a present/present pair to count
	// as TP instead of FD. Must lie in [0, 1].
	Threshold float64
	// Weight is this field's share of the parent's weighted score. Must be >= 0.
	Weight float64
	// Kind selects the comparison strategy.
	Kind Kind
	// Nested is the schema graded against for KindObject and KindObjectList.
	Nested *Schema
	// SkipAggregate excludes this field's counts from ancestor aggregate rollups.
	SkipAggregate bool
	// SkipClip keeps a below-threshold raw score in the weighted sum instead of
	// clipping it to zero. Clipping is the default.
	SkipClip bool
}

// Schema is an ordered field descriptor list plus the match threshold an
// object pair must reach to be classified as matched and to permit exposing
// its nested field breakdown.
type Schema struct {
	Fields         []FieldSpec
	MatchThreshold float64
}

// NewSchema validates and returns a schema descriptor. Field order is
// preserved; it determines iteration and report order.
func NewSchema(matchThreshold float64, fields ...FieldSpec) (*Schema, error) {
	s := &Schema{Fields: fields, MatchThreshold: matchThreshold}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// MustSchema is NewSchema that panics on an invalid descriptor. Intended for
// package-level schema registration.
func MustSchema(matchThreshold float64, fields ...FieldSpec) *Schema {
	s, err := NewSchema(matchThreshold, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) validate() error {
	var iss Issues
	if s.MatchThreshold < 0 || s.MatchThreshold > 1 {
		iss = AppendIssues(iss, Issue{Code: CodeInvalidSchema, Message: fmt.Sprintf("match threshold %v outside [0,1]", s.MatchThreshold)})
	}
	seen := make(map[string]struct{}, len(s.Fields))
	for i := range s.Fields {
		f := &s.Fields[i]
		if f.Name == "" {
			iss = AppendIssues(iss, Issue{Code: CodeInvalidSchema, Message: fmt.Sprintf("field %d has empty name", i)})
			continue
		}
		if _, dup := seen[f.Name]; dup {
			iss = AppendIssues(iss, Issue{Path: f.Name, Code: CodeInvalidSchema, Message: "duplicate field name"})
		}
		seen[f.Name] = struct{}{}
		if f.Threshold < 0 || f.Threshold > 1 {
			iss = AppendIssues(iss, Issue{Path: f.Name, Code: CodeInvalidSchema, Message: fmt.Sprintf("threshold %v outside [0,1]", f.Threshold)})
		}
		if f.Weight < 0 {
			iss = AppendIssues(iss, Issue{Path: f.Name, Code: CodeInvalidSchema, Message: fmt.Sprintf("negative weight %v", f.Weight)})
		}
		switch f.Kind {
		case KindPrimitive, KindPrimitiveList:
			if f.Comparator == nil {
				iss = AppendIssues(iss, Issue{Path: f.Name, Code: CodeInvalidSchema, Message: "primitive field requires a comparator"})
			}
			if f.Nested != nil {
				iss = AppendIssues(iss, Issue{Path: f.Name, Code: CodeInvalidSchema, Message: "primitive field must not carry a nested schema"})
			}
		case KindObject, KindObjectList:
			if f.Nested == nil {
				iss = AppendIssues(iss, Issue{Path: f.Name, Code: CodeInvalidSchema, Message: "object field requires a nested schema"})
			}
		default:
			iss = AppendIssues(iss, Issue{Path: f.Name, Code: CodeInvalidSchema, Message: fmt.Sprintf("unknown kind %d", f.Kind)})
		}
	}
	if len(iss) > 0 {
		return iss
	}
	return nil
}

// Field returns the spec with the given name, or nil.
func (s *Schema) Field(name string) *FieldSpec {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i]
		}
	}
	return nil
}

// declared reports whether name is a schema field. Prediction attributes
// outside the declared set are schema hallucinations and classify as FA.
func (s *Schema) declared(name string) bool {
	return s.Field(name) != nil
}
