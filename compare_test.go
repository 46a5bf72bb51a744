package structgrade_test

import (
	"context"
	"errors"
	"testing"

	"github.com/reoring/structgrade"
	"github.com/reoring/structgrade/comparators"
	"github.com/reoring/structgrade/dsl"
)

var allOpts = structgrade.CompareOpt{
	IncludeConfusionMatrix: true,
	DocumentNonMatches:     true,
	AddDerivedMetrics:      true,
}

func mustCompare(t *testing.T, s *structgrade.Schema, gt, pred map[string]any) *structgrade.Result {
	t.Helper()
	res, err := structgrade.CompareWith(context.Background(), s, gt, pred, allOpts)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	return res
}

func fieldNode(t *testing.T, res *structgrade.Result, name string) *structgrade.Node {
	t.Helper()
	n, ok := res.ConfusionMatrix.Fields[name]
	if !ok {
		t.Fatalf("no field node %q", name)
	}
	return n
}

func TestCompareWith_NullTablePrimitive(t *testing.T) {
	s := dsl.Object().
		Field(dsl.Primitive("v", comparators.Exact())).
		MustBuild()

	cases := []struct {
		name     string
		gt, pred map[string]any
		want     structgrade.Counts
	}{
		{"absent_absent", map[string]any{}, map[string]any{}, structgrade.Counts{TN: 1}},
		{"absent_present", map[string]any{}, map[string]any{"v": "x"}, structgrade.Counts{FA: 1}},
		{"present_absent", map[string]any{"v": "x"}, map[string]any{}, structgrade.Counts{FN: 1}},
		{"match", map[string]any{"v": "x"}, map[string]any{"v": "x"}, structgrade.Counts{TP: 1}},
		{"mismatch", map[string]any{"v": "x"}, map[string]any{"v": "y"}, structgrade.Counts{FD: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := mustCompare(t, s, tc.gt, tc.pred)
			if got := fieldNode(t, res, "v").Overall.Counts; got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestCompareWith_NullTableObjectAndLists(t *testing.T) {
	nested := dsl.Object().
		Field(dsl.Primitive("city", comparators.Exact())).
		MustBuild()
	s := dsl.Object().
		Field(dsl.Nested("addr", nested)).
		Field(dsl.PrimitiveList("tags", comparators.Exact())).
		MustBuild()

	addr := map[string]any{"city": "Kyoto"}
	tags := []any{"a"}

	cases := []struct {
		name     string
		gt, pred map[string]any
		field    string
		want     structgrade.Counts
	}{
		{"object_absent_absent", map[string]any{}, map[string]any{}, "addr", structgrade.Counts{TN: 1}},
		{"object_absent_present", map[string]any{}, map[string]any{"addr": addr}, "addr", structgrade.Counts{FA: 1}},
		{"object_present_absent", map[string]any{"addr": addr}, map[string]any{}, "addr", structgrade.Counts{FN: 1}},
		{"list_absent_absent", map[string]any{}, map[string]any{}, "tags", structgrade.Counts{TN: 1}},
		{"list_absent_present", map[string]any{}, map[string]any{"tags": tags}, "tags", structgrade.Counts{FA: 1}},
		{"list_present_absent", map[string]any{"tags": tags}, map[string]any{}, "tags", structgrade.Counts{FN: 1}},
		{"list_empty_is_absent", map[string]any{"tags": []any{}}, map[string]any{"tags": []any{}}, "tags", structgrade.Counts{TN: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := mustCompare(t, s, tc.gt, tc.pred)
			if got := fieldNode(t, res, tc.field).Overall.Counts; got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

// The contact scenario: one wrong phone and one hallucinated-but-declared
// email. The object level sees a single false discovery; the field level
// splits into phone FD and email FA.
func TestCompareWith_ContactScenario(t *testing.T) {
	s := dsl.Object().
		Field(dsl.Primitive("phone", comparators.Exact())).
		Field(dsl.Primitive("email", comparators.Exact())).
		MustBuild()

	res := mustCompare(t, s,
		map[string]any{"phone": "555-1"},
		map[string]any{"phone": "555-9", "email": "e@x"},
	)

	root := res.ConfusionMatrix.Overall.Counts
	if root.FD != 1 || root.FP() != 1 || root.FA != 0 || root.FN != 0 {
		t.Fatalf("object level %+v, want fd=1 fp=1 fa=0 fn=0", root)
	}
	if got := fieldNode(t, res, "phone").Overall.Counts; got.FD != 1 {
		t.Fatalf("phone %+v, want fd=1", got)
	}
	if got := fieldNode(t, res, "email").Overall.Counts; got.FA != 1 {
		t.Fatalf("email %+v, want fa=1", got)
	}
	if res.AllFieldsMatched {
		t.Fatalf("all_fields_matched should be false")
	}
}

func TestCompareWith_UndeclaredAttributes(t *testing.T) {
	s := dsl.Object().
		Field(dsl.Primitive("phone", comparators.Exact())).
		MustBuild()

	res := mustCompare(t, s,
		map[string]any{"phone": "555-1"},
		map[string]any{"phone": "555-1", "fax": "555-2", "pager": "555-3"},
	)

	root := res.ConfusionMatrix.Overall.Counts
	if root.FA != 2 {
		t.Fatalf("fa=%d, want exactly 2 for the two undeclared attributes", root.FA)
	}
	if root.TP != 1 || root.FN != 0 {
		t.Fatalf("tp/fn affected: %+v", root)
	}
	var seen int
	for _, nm := range res.NonMatches {
		if nm.Outcome == structgrade.OutcomeFA {
			seen++
		}
	}
	if seen != 2 {
		t.Fatalf("non-match FA records = %d, want 2", seen)
	}
}

func TestCompareWith_ThresholdGatedRecursion(t *testing.T) {
	nested := dsl.Object().
		Field(dsl.Primitive("city", comparators.Exact())).
		Field(dsl.Primitive("zip", comparators.Exact())).
		MustBuild()
	s := dsl.Object().
		MatchThreshold(0).
		Field(dsl.Nested("addr", nested)).
		MustBuild()

	t.Run("below_threshold_is_atomic", func(t *testing.T) {
		res := mustCompare(t, s,
			map[string]any{"addr": map[string]any{"city": "Kyoto", "zip": "600"}},
			map[string]any{"addr": map[string]any{"city": "Kyoto", "zip": "999"}},
		)
		addr := fieldNode(t, res, "addr")
		if addr.Overall.Counts.FD != 1 {
			t.Fatalf("addr overall %+v, want fd=1", addr.Overall.Counts)
		}
		if addr.Fields != nil {
			t.Fatalf("gated-off node must not expose a field subtree")
		}
		if len(addr.NonMatches) != 1 || !closeTo(addr.NonMatches[0].Similarity, 0.5) {
			t.Fatalf("non-match %+v, want one entry with similarity 0.5", addr.NonMatches)
		}
		// The rollup ignores gating: the nested primitives still count.
		if addr.Aggregate == nil || (addr.Aggregate.Counts != structgrade.Counts{TP: 1, FD: 1}) {
			t.Fatalf("addr aggregate %+v, want tp=1 fd=1", addr.Aggregate)
		}
		root := res.ConfusionMatrix
		if root.Aggregate.Counts != (structgrade.Counts{TP: 1, FD: 1}) {
			t.Fatalf("root aggregate %+v, want tp=1 fd=1", root.Aggregate.Counts)
		}
	})

	t.Run("at_threshold_exposes_fields", func(t *testing.T) {
		res := mustCompare(t, s,
			map[string]any{"addr": map[string]any{"city": "Kyoto", "zip": "600"}},
			map[string]any{"addr": map[string]any{"city": "Kyoto", "zip": "600"}},
		)
		addr := fieldNode(t, res, "addr")
		if addr.Overall.Counts.TP != 1 {
			t.Fatalf("addr overall %+v, want tp=1", addr.Overall.Counts)
		}
		if addr.Fields == nil {
			t.Fatalf("matched node must expose its field subtree")
		}
		if got := addr.Fields["zip"].Overall.Counts; got.TP != 1 {
			t.Fatalf("addr.zip %+v, want tp=1", got)
		}
	})
}

func TestCompareWith_ObjectListCrossItemAggregation(t *testing.T) {
	item := dsl.Object().
		MatchThreshold(0.5).
		Field(dsl.Primitive("description", comparators.Exact())).
		Field(dsl.Primitive("quantity", comparators.Exact())).
		MustBuild()
	s := dsl.Object().
		MatchThreshold(0).
		Field(dsl.NestedList("items", item)).
		MustBuild()

	res := mustCompare(t, s,
		map[string]any{"items": []any{
			map[string]any{"description": "widget", "quantity": float64(1)},
			map[string]any{"description": "gadget", "quantity": float64(2)},
			map[string]any{"description": "doohickey", "quantity": float64(3)},
		}},
		map[string]any{"items": []any{
			map[string]any{"description": "widget", "quantity": float64(1)},
			map[string]any{"description": "gadget", "quantity": float64(9)},
		}},
	)

	items := fieldNode(t, res, "items")
	if got := items.Overall.Counts; got.TP != 2 || got.FN != 1 || got.FD != 0 || got.FA != 0 {
		t.Fatalf("items overall %+v, want tp=2 fn=1", got)
	}
	// Both matched pairs cleared the item threshold, so their field children
	// merge into the list field's own bucket.
	if got := items.Fields["description"].Overall.Counts; got.TP != 2 {
		t.Fatalf("items.description %+v, want tp=2 across pairs", got)
	}
	if got := items.Fields["quantity"].Overall.Counts; got.TP != 1 || got.FD != 1 {
		t.Fatalf("items.quantity %+v, want tp=1 fd=1 across pairs", got)
	}
	if got := items.Aggregate.Counts; got != (structgrade.Counts{TP: 3, FD: 1}) {
		t.Fatalf("items aggregate %+v, want tp=3 fd=1", got)
	}
}

func TestCompareWith_ObjectListSubThresholdPair(t *testing.T) {
	item := dsl.Object().
		MatchThreshold(0.9).
		Field(dsl.Primitive("description", comparators.Exact())).
		Field(dsl.Primitive("quantity", comparators.Exact())).
		MustBuild()
	s := dsl.Object().
		MatchThreshold(0).
		Field(dsl.NestedList("items", item)).
		MustBuild()

	res := mustCompare(t, s,
		map[string]any{"items": []any{map[string]any{"description": "widget", "quantity": float64(1)}}},
		map[string]any{"items": []any{map[string]any{"description": "widget", "quantity": float64(7)}}},
	)

	items := fieldNode(t, res, "items")
	if got := items.Overall.Counts; got.FD != 1 || got.TP != 0 {
		t.Fatalf("items overall %+v, want fd=1", got)
	}
	if items.Fields != nil {
		t.Fatalf("sub-threshold pairs must not populate the field bucket")
	}
	if len(items.NonMatches) != 1 || !closeTo(items.NonMatches[0].Similarity, 0.5) {
		t.Fatalf("non-matches %+v, want one fd entry at similarity 0.5", items.NonMatches)
	}
	if got := items.Aggregate.Counts; got != (structgrade.Counts{TP: 1, FD: 1}) {
		t.Fatalf("items aggregate %+v, want tp=1 fd=1 despite gating", got)
	}
}

func TestCompareWith_StringEncodedListLiteral(t *testing.T) {
	s := dsl.Object().
		MatchThreshold(0).
		Field(dsl.PrimitiveList("tags", comparators.Exact())).
		MustBuild()

	res := mustCompare(t, s,
		map[string]any{"tags": `["a", "b"]`},
		map[string]any{"tags": []any{"a", "b"}},
	)
	if got := fieldNode(t, res, "tags").Overall.Counts; got.TP != 2 {
		t.Fatalf("tags %+v, want tp=2 after parsing the literal", got)
	}

	_, err := structgrade.CompareWith(context.Background(), s,
		map[string]any{"tags": `[not json`},
		map[string]any{"tags": []any{"a"}},
		structgrade.CompareOpt{},
	)
	if !structgrade.HasCode(err, structgrade.CodeParseError) {
		t.Fatalf("unreadable literal: got %v, want parse_error", err)
	}
}

func TestCompareWith_WeightedScoreAndClipping(t *testing.T) {
	gt := map[string]any{"a": "same", "b": "abcd"}
	pred := map[string]any{"a": "same", "b": "abcf"}

	clip := dsl.Object().
		MatchThreshold(0).
		Field(dsl.Primitive("a", comparators.Exact()).Weight(3)).
		Field(dsl.Primitive("b", comparators.Levenshtein())).
		MustBuild()
	res := mustCompare(t, clip, gt, pred)
	// b scores 0.75 raw but below its threshold of 1.0, so it clips to zero:
	// (3*1 + 1*0) / 4
	if !closeTo(res.OverallScore, 0.75) {
		t.Fatalf("clipped score %v, want 0.75", res.OverallScore)
	}
	if !closeTo(res.FieldScores["b"], 0.75) {
		t.Fatalf("raw field score %v, want unclipped 0.75", res.FieldScores["b"])
	}

	noclip := dsl.Object().
		MatchThreshold(0).
		Field(dsl.Primitive("a", comparators.Exact()).Weight(3)).
		Field(dsl.Primitive("b", comparators.Levenshtein()).NoClip()).
		MustBuild()
	res = mustCompare(t, noclip, gt, pred)
	// (3*1 + 1*0.75) / 4
	if !closeTo(res.OverallScore, 0.9375) {
		t.Fatalf("unclipped score %v, want 0.9375", res.OverallScore)
	}
}

func TestCompareWith_SkipAggregate(t *testing.T) {
	s := dsl.Object().
		MatchThreshold(0).
		Field(dsl.Primitive("keep", comparators.Exact())).
		Field(dsl.Primitive("drop", comparators.Exact()).SkipAggregate()).
		MustBuild()

	res := mustCompare(t, s,
		map[string]any{"keep": "x", "drop": "y"},
		map[string]any{"keep": "x", "drop": "y"},
	)
	if got := res.ConfusionMatrix.Aggregate.Counts; got != (structgrade.Counts{TP: 1}) {
		t.Fatalf("aggregate %+v, want only the kept field", got)
	}
}

func TestCompareWith_Toggles(t *testing.T) {
	s := dsl.Object().
		Field(dsl.Primitive("v", comparators.Exact())).
		MustBuild()
	gt := map[string]any{"v": "x"}

	res, err := structgrade.CompareWith(context.Background(), s, gt, gt, structgrade.CompareOpt{})
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if res.ConfusionMatrix != nil || res.NonMatches != nil {
		t.Fatalf("tree and non-matches must be omitted unless requested")
	}
	if !closeTo(res.OverallScore, 1) || !res.AllFieldsMatched {
		t.Fatalf("scores must be present regardless: %+v", res)
	}

	res, err = structgrade.CompareWith(context.Background(), s, gt, gt, structgrade.CompareOpt{IncludeConfusionMatrix: true})
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if res.ConfusionMatrix.Overall.Derived != nil {
		t.Fatalf("derived metrics must be omitted unless requested")
	}
}

func TestCompareWith_ErrorTaxonomy(t *testing.T) {
	s := dsl.Object().
		Field(dsl.Primitive("v", comparators.Exact())).
		MustBuild()

	t.Run("malformed_input", func(t *testing.T) {
		_, err := structgrade.CompareWith(context.Background(), s, nil, map[string]any{}, structgrade.CompareOpt{})
		if !structgrade.HasCode(err, structgrade.CodeMalformedInput) {
			t.Fatalf("got %v, want malformed_input", err)
		}
	})

	t.Run("schema_mismatch", func(t *testing.T) {
		nested := dsl.Object().Field(dsl.Primitive("city", comparators.Exact())).MustBuild()
		so := dsl.Object().Field(dsl.Nested("addr", nested)).MustBuild()
		_, err := structgrade.CompareWith(context.Background(), so,
			map[string]any{"addr": "not an object"},
			map[string]any{"addr": map[string]any{"city": "x"}},
			structgrade.CompareOpt{},
		)
		if !structgrade.HasCode(err, structgrade.CodeSchemaMismatch) {
			t.Fatalf("got %v, want schema_mismatch", err)
		}
	})

	t.Run("comparator_failure", func(t *testing.T) {
		boom := errors.New("backend unavailable")
		failing := structgrade.ComparatorFunc(func(context.Context, any, any) (float64, error) {
			return 0, boom
		})
		sf := dsl.Object().Field(dsl.Primitive("v", failing)).MustBuild()
		_, err := structgrade.CompareWith(context.Background(), sf,
			map[string]any{"v": "a"}, map[string]any{"v": "b"}, structgrade.CompareOpt{})
		if !structgrade.HasCode(err, structgrade.CodeComparatorFailure) {
			t.Fatalf("got %v, want comparator_failure", err)
		}
		if !errors.Is(err, boom) {
			t.Fatalf("cause not preserved: %v", err)
		}
	})
}

func TestCompareWith_EveryUnitClassifiedOnce(t *testing.T) {
	// fp is derived, never stored: the five buckets plus FP() must stay
	// consistent on an assorted document.
	item := dsl.Object().
		MatchThreshold(0.5).
		Field(dsl.Primitive("description", comparators.Levenshtein()).Threshold(0.8)).
		MustBuild()
	s := dsl.Object().
		MatchThreshold(0).
		Field(dsl.Primitive("phone", comparators.Exact())).
		Field(dsl.PrimitiveList("tags", comparators.Exact())).
		Field(dsl.NestedList("items", item)).
		MustBuild()

	res := mustCompare(t, s,
		map[string]any{
			"phone": "555-1",
			"tags":  []any{"a", "b"},
			"items": []any{map[string]any{"description": "widget"}},
		},
		map[string]any{
			"phone": "555-2",
			"tags":  []any{"b", "c"},
			"items": []any{map[string]any{"description": "widgette"}},
			"extra": true,
		},
	)

	var walk func(n *structgrade.Node)
	walk = func(n *structgrade.Node) {
		c := n.Overall.Counts
		if c.FP() != c.FA+c.FD {
			t.Fatalf("fp invariant broken: %+v", c)
		}
		if c.TP < 0 || c.FD < 0 || c.FA < 0 || c.FN < 0 || c.TN < 0 {
			t.Fatalf("negative bucket: %+v", c)
		}
		for _, child := range n.Fields {
			walk(child)
		}
	}
	walk(res.ConfusionMatrix)
}
