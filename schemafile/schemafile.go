// Package schemafile maps a JSON or YAML schema document onto a structgrade
// schema descriptor. The mapping is a pure function of the document and the
// comparator registry; no types are synthesized at runtime.
//
// Document shape:
//
//	match_threshold: 0.8
//	fields:
//	  - name: vendor
//	    kind: primitive
//	    comparator: fold_case
//	    weight: 2
//	  - name: items
//	    kind: object_list
//	    schema:
//	      match_threshold: 0.9
//	      fields:
//	        - name: description
//	          kind: primitive
//	          comparator: levenshtein
//	          threshold: 0.9
package schemafile

import (
	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/reoring/structgrade"
	"github.com/reoring/structgrade/comparators"
	"github.com/reoring/structgrade/i18n"
)

// Registry resolves comparator names in schema documents.
type Registry map[string]structgrade.Comparator

// DefaultRegistry covers the stock comparators. Callers extend the map to
// register their own (for example a semantic comparator).
func DefaultRegistry() Registry {
	return Registry{
		"exact":       comparators.Exact(),
		"fold_case":   comparators.FoldCase(),
		"levenshtein": comparators.Levenshtein(),
		"numeric":     comparators.NumericTolerance(1e-9, 0),
		"boolean":     comparators.Boolean(),
	}
}

type fileSchema struct {
	MatchThreshold *float64    `json:"match_threshold" yaml:"match_threshold"`
	Fields         []fileField `json:"fields" yaml:"fields"`
}

type fileField struct {
	Name          string      `json:"name" yaml:"name"`
	Kind          string      `json:"kind" yaml:"kind"`
	Comparator    string      `json:"comparator" yaml:"comparator"`
	Threshold     *float64    `json:"threshold" yaml:"threshold"`
	Weight        *float64    `json:"weight" yaml:"weight"`
	Schema        *fileSchema `json:"schema" yaml:"schema"`
	SkipAggregate bool        `json:"skip_aggregate" yaml:"skip_aggregate"`
	SkipClip      bool        `json:"skip_clip" yaml:"skip_clip"`
}

// FromJSON builds a schema descriptor from a JSON document.
func FromJSON(data []byte, reg Registry) (*structgrade.Schema, error) {
	var fs fileSchema
	if err := json.Unmarshal(data, &fs); err != nil {
		return nil, structgrade.Issues{structgrade.Issue{
			Code: structgrade.CodeParseError, Message: i18n.T(structgrade.CodeParseError, nil), Cause: err,
		}}
	}
	return build(&fs, reg, "")
}

// FromYAML builds a schema descriptor from a YAML document.
func FromYAML(data []byte, reg Registry) (*structgrade.Schema, error) {
	var fs fileSchema
	if err := yaml.Unmarshal(data, &fs); err != nil {
		return nil, structgrade.Issues{structgrade.Issue{
			Code: structgrade.CodeParseError, Message: i18n.T(structgrade.CodeParseError, nil), Cause: err,
		}}
	}
	return build(&fs, reg, "")
}

func build(fs *fileSchema, reg Registry, path string) (*structgrade.Schema, error) {
	if reg == nil {
		reg = DefaultRegistry()
	}
	mt := 1.0
	if fs.MatchThreshold != nil {
		mt = *fs.MatchThreshold
	}
	specs := make([]structgrade.FieldSpec, 0, len(fs.Fields))
	var iss structgrade.Issues
	for i := range fs.Fields {
		ff := &fs.Fields[i]
		fpath := joinPath(path, ff.Name)
		spec := structgrade.FieldSpec{
			Name:          ff.Name,
			Threshold:     1,
			Weight:        1,
			SkipAggregate: ff.SkipAggregate,
			SkipClip:      ff.SkipClip,
		}
		if ff.Threshold != nil {
			spec.Threshold = *ff.Threshold
		}
		if ff.Weight != nil {
			spec.Weight = *ff.Weight
		}

		kind, ok := parseKind(ff.Kind)
		if !ok {
			iss = structgrade.AppendIssues(iss, structgrade.Issue{
				Path: fpath, Code: structgrade.CodeInvalidSchema,
				Message: "unknown kind " + ff.Kind,
			})
			continue
		}
		spec.Kind = kind

		switch kind {
		case structgrade.KindPrimitive, structgrade.KindPrimitiveList:
			name := ff.Comparator
			if name == "" {
				name = "exact"
			}
			cmp, found := reg[name]
			if !found {
				iss = structgrade.AppendIssues(iss, structgrade.Issue{
					Path: fpath, Code: structgrade.CodeInvalidSchema,
					Message: "unknown comparator " + name,
				})
				continue
			}
			spec.Comparator = cmp
		case structgrade.KindObject, structgrade.KindObjectList:
			if ff.Schema == nil {
				iss = structgrade.AppendIssues(iss, structgrade.Issue{
					Path: fpath, Code: structgrade.CodeInvalidSchema,
					Message: i18n.T(structgrade.CodeInvalidSchema, nil) + ": missing nested schema",
				})
				continue
			}
			nested, err := build(ff.Schema, reg, fpath)
			if err != nil {
				if sub, ok := structgrade.AsIssues(err); ok {
					iss = structgrade.AppendIssues(iss, sub...)
					continue
				}
				return nil, err
			}
			spec.Nested = nested
		}
		specs = append(specs, spec)
	}
	if len(iss) > 0 {
		return nil, iss
	}
	return structgrade.NewSchema(mt, specs...)
}

func parseKind(s string) (structgrade.Kind, bool) {
	switch s {
	case "primitive", "":
		return structgrade.KindPrimitive, true
	case "primitive_list":
		return structgrade.KindPrimitiveList, true
	case "object":
		return structgrade.KindObject, true
	case "object_list":
		return structgrade.KindObjectList, true
	}
	return 0, false
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
