package structgrade

import (
	"context"
	"fmt"
	"sort"
)

// Result is the outcome of grading one prediction against one ground truth.
type Result struct {
	// FieldScores holds the raw (unclipped) similarity per top-level field.
	FieldScores map[string]float64 `json:"field_scores"`
	// OverallScore is the weighted field score with per-field threshold
	// clipping applied.
	OverallScore     float64    `json:"overall_score"`
	AllFieldsMatched bool       `json:"all_fields_matched"`
	ConfusionMatrix  *Node      `json:"confusion_matrix,omitempty"`
	NonMatches       []NonMatch `json:"non_matches,omitempty"`
}

// CompareWith grades pred against gt under the schema and returns scores plus
// the optional confusion tree. It is a pure function of its inputs; no state
// is retained between calls.
func CompareWith(ctx context.Context, s *Schema, gt, pred map[string]any, opt CompareOpt) (*Result, error) {
	if s == nil {
		return nil, singleIssue(CodeInvalidSchema, "", "nil schema")
	}
	if gt == nil || pred == nil {
		return nil, singleIssue(CodeMalformedInput, "", "nil instance where an object graph is expected")
	}

	node, raws, err := compareObjects(ctx, s, gt, pred, "")
	if err != nil {
		return nil, err
	}
	// The document itself is one matched pair: classify it against the root
	// match threshold.
	if node.ThresholdAppliedScore >= s.MatchThreshold {
		node.Overall.bump(OutcomeTP)
	} else {
		node.Overall.bump(OutcomeFD)
	}

	if opt.AddDerivedMetrics {
		DecorateDerived(node, opt.RecallWithFD)
	}

	res := &Result{
		FieldScores:      raws,
		OverallScore:     node.ThresholdAppliedScore,
		AllFieldsMatched: node.AllFieldsMatched,
	}
	if opt.IncludeConfusionMatrix {
		res.ConfusionMatrix = node
	}
	if opt.DocumentNonMatches {
		res.NonMatches = CollectNonMatches(node)
	}
	return res, nil
}

// CollectNonMatches flattens every non-match record in the tree, walking field
// names in sorted order for deterministic output.
func CollectNonMatches(n *Node) []NonMatch {
	if n == nil {
		return nil
	}
	out := append([]NonMatch(nil), n.NonMatches...)
	names := make([]string, 0, len(n.Fields))
	for name := range n.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out = append(out, CollectNonMatches(n.Fields[name])...)
	}
	return out
}

// compareObjects grades two present object instances field by field. The
// returned node has Fields, Aggregate, NonMatches, ThresholdAppliedScore, and
// AllFieldsMatched populated; the node's own Overall unit is the caller's
// concern (presence and threshold context live one level up).
func compareObjects(ctx context.Context, s *Schema, g, p map[string]any, path string) (*Node, map[string]float64, error) {
	node := &Node{
		Fields:           make(map[string]*Node, len(s.Fields)),
		AllFieldsMatched: true,
	}
	raws := make(map[string]float64, len(s.Fields))
	var agg Counts
	var wsum, wtot float64

	for i := range s.Fields {
		f := &s.Fields[i]
		fpath := joinPath(path, f.Name)
		gv := g[f.Name]
		pv := p[f.Name]

		var (
			child   *Node
			raw     float64
			clipped float64
			err     error
		)
		switch f.Kind {
		case KindPrimitive:
			child, raw, clipped, err = comparePrimitive(ctx, f, fpath, gv, pv)
		case KindPrimitiveList:
			child, raw, clipped, err = comparePrimitiveList(ctx, f, fpath, gv, pv)
		case KindObject:
			child, raw, clipped, err = compareObjectField(ctx, f, fpath, gv, pv)
		case KindObjectList:
			child, raw, clipped, err = compareObjectList(ctx, f, fpath, gv, pv)
		}
		if err != nil {
			return nil, nil, err
		}

		node.Fields[f.Name] = child
		raws[f.Name] = raw
		if !f.SkipAggregate {
			agg = agg.Add(fieldAggregate(f, child))
		}
		wtot += f.Weight
		wsum += f.Weight * clipped
		if !child.AllFieldsMatched {
			node.AllFieldsMatched = false
		}
	}

	// Prediction attributes outside the declared set are schema
	// hallucinations: one FA each at this node, compared to nothing.
	extras := make([]string, 0)
	for k := range p {
		if !s.declared(k) {
			extras = append(extras, k)
		}
	}
	sort.Strings(extras)
	for _, k := range extras {
		node.Overall.bump(OutcomeFA)
		node.AllFieldsMatched = false
		node.NonMatches = append(node.NonMatches, NonMatch{
			FieldPath:  joinPath(path, k),
			Outcome:    OutcomeFA,
			Similarity: 0,
			Prediction: p[k],
		})
	}

	node.Aggregate = &Matrix{Counts: agg}
	if wtot > 0 {
		node.ThresholdAppliedScore = wsum / wtot
	} else if len(s.Fields) == 0 {
		// An empty schema grades two present objects as vacuously identical.
		node.ThresholdAppliedScore = 1
	}
	return node, raws, nil
}

// fieldAggregate picks what a field contributes to the ancestor rollup:
// primitive units directly, object kinds their own primitive-descendant sums.
// The rollup deliberately ignores threshold gating, so a gated-off object
// field still contributes its nested primitive counts.
func fieldAggregate(f *FieldSpec, child *Node) Counts {
	switch f.Kind {
	case KindPrimitive, KindPrimitiveList:
		return child.Overall.Counts
	default:
		if child.Aggregate != nil {
			return child.Aggregate.Counts
		}
		return Counts{}
	}
}

// matchedOutcomeOnly reports whether every unit in c is TP or TN.
func matchedOutcomeOnly(c Counts) bool {
	return c.FD == 0 && c.FA == 0 && c.FN == 0
}

func comparePrimitive(ctx context.Context, f *FieldSpec, fpath string, gv, pv any) (*Node, float64, float64, error) {
	child := &Node{AllFieldsMatched: true}
	gAbsent := isAbsent(gv)
	pAbsent := isAbsent(pv)
	switch {
	case gAbsent && pAbsent:
		child.Overall.bump(OutcomeTN)
		return child, 1, 1, nil
	case gAbsent:
		child.Overall.bump(OutcomeFA)
		child.AllFieldsMatched = false
		child.NonMatches = append(child.NonMatches, NonMatch{FieldPath: fpath, Outcome: OutcomeFA, Prediction: pv})
		return child, 0, 0, nil
	case pAbsent:
		child.Overall.bump(OutcomeFN)
		child.AllFieldsMatched = false
		child.NonMatches = append(child.NonMatches, NonMatch{FieldPath: fpath, Outcome: OutcomeFN, GroundTruth: gv})
		return child, 0, 0, nil
	}

	sim, err := f.Comparator.Compare(ctx, gv, pv)
	if err != nil {
		return nil, 0, 0, wrapComparator(fpath, err)
	}
	sim = clamp01(sim)
	if sim >= f.Threshold {
		child.Overall.bump(OutcomeTP)
		return child, sim, sim, nil
	}
	child.Overall.bump(OutcomeFD)
	child.AllFieldsMatched = false
	child.NonMatches = append(child.NonMatches, NonMatch{
		FieldPath: fpath, Outcome: OutcomeFD, Similarity: sim, GroundTruth: gv, Prediction: pv,
	})
	clipped := sim
	if !f.SkipClip {
		clipped = 0
	}
	return child, sim, clipped, nil
}

func comparePrimitiveList(ctx context.Context, f *FieldSpec, fpath string, gv, pv any) (*Node, float64, float64, error) {
	glist, err := coerceList(fpath, gv)
	if err != nil {
		return nil, 0, 0, err
	}
	plist, err := coerceList(fpath, pv)
	if err != nil {
		return nil, 0, 0, err
	}

	mr, err := AlignLists(ctx, glist, plist, func(ctx context.Context, a, b any) (float64, error) {
		sim, cerr := f.Comparator.Compare(ctx, a, b)
		if cerr != nil {
			return 0, wrapComparator(fpath, cerr)
		}
		return sim, nil
	})
	if err != nil {
		return nil, 0, 0, err
	}

	child := &Node{AllFieldsMatched: true}
	child.Overall.Counts = mr.Classify(f.Threshold)
	raw, clipped := listScores(mr, f.Threshold, f.SkipClip, len(glist), len(plist))
	child.ThresholdAppliedScore = clipped
	if !matchedOutcomeOnly(child.Overall.Counts) {
		child.AllFieldsMatched = false
		child.NonMatches = listNonMatches(mr, f.Threshold, fpath, glist, plist)
	}
	return child, raw, clipped, nil
}

func compareObjectField(ctx context.Context, f *FieldSpec, fpath string, gv, pv any) (*Node, float64, float64, error) {
	child := &Node{AllFieldsMatched: true}
	gAbsent := isAbsent(gv)
	pAbsent := isAbsent(pv)
	switch {
	case gAbsent && pAbsent:
		child.Overall.bump(OutcomeTN)
		return child, 1, 1, nil
	case gAbsent:
		child.Overall.bump(OutcomeFA)
		child.AllFieldsMatched = false
		child.NonMatches = append(child.NonMatches, NonMatch{FieldPath: fpath, Outcome: OutcomeFA, Prediction: pv})
		return child, 0, 0, nil
	case pAbsent:
		child.Overall.bump(OutcomeFN)
		child.AllFieldsMatched = false
		child.NonMatches = append(child.NonMatches, NonMatch{FieldPath: fpath, Outcome: OutcomeFN, GroundTruth: gv})
		return child, 0, 0, nil
	}

	gm, err := coerceObject(fpath, gv)
	if err != nil {
		return nil, 0, 0, err
	}
	pm, err := coerceObject(fpath, pv)
	if err != nil {
		return nil, 0, 0, err
	}

	sub, _, err := compareObjects(ctx, f.Nested, gm, pm, fpath)
	if err != nil {
		return nil, 0, 0, err
	}
	score := sub.ThresholdAppliedScore
	if score >= f.Nested.MatchThreshold {
		// Matched: expose the nested breakdown.
		sub.Overall.bump(OutcomeTP)
		return sub, score, score, nil
	}

	// Threshold-gated recursion: below the nested match threshold the object
	// is atomic. No field subtree is exposed, only the rollup and the
	// non-match record with the achieved similarity.
	child.Overall.bump(OutcomeFD)
	child.AllFieldsMatched = false
	child.Aggregate = sub.Aggregate
	child.ThresholdAppliedScore = score
	child.NonMatches = append(child.NonMatches, NonMatch{
		FieldPath: fpath, Outcome: OutcomeFD, Similarity: score, GroundTruth: gv, Prediction: pv,
	})
	clipped := score
	if !f.SkipClip {
		clipped = 0
	}
	return child, score, clipped, nil
}

func compareObjectList(ctx context.Context, f *FieldSpec, fpath string, gv, pv any) (*Node, float64, float64, error) {
	glist, err := coerceList(fpath, gv)
	if err != nil {
		return nil, 0, 0, err
	}
	plist, err := coerceList(fpath, pv)
	if err != nil {
		return nil, 0, 0, err
	}

	// Each cell of the similarity matrix is a full recursive comparison; keep
	// the nodes so matched pairs are not recomputed after assignment.
	cells := make(map[[2]int]*Node, len(glist)*len(plist))
	mr, err := alignIndexed(len(glist), len(plist), func(i, j int) (float64, error) {
		gm, cerr := coerceObject(fpath, glist[i])
		if cerr != nil {
			return 0, cerr
		}
		pm, cerr := coerceObject(fpath, plist[j])
		if cerr != nil {
			return 0, cerr
		}
		sub, _, cerr := compareObjects(ctx, f.Nested, gm, pm, fpath)
		if cerr != nil {
			return 0, cerr
		}
		cells[[2]int{i, j}] = sub
		return sub.ThresholdAppliedScore, nil
	})
	if err != nil {
		return nil, 0, 0, err
	}

	t := f.Nested.MatchThreshold
	child := &Node{AllFieldsMatched: true}
	child.Overall.Counts = mr.Classify(t)

	aggTotal := Counts{}
	for _, pair := range mr.Pairs {
		sub := cells[[2]int{pair.GTIndex, pair.PredIndex}]
		if sub.Aggregate != nil {
			// The rollup ignores gating: sub-threshold pairs still contribute
			// their primitive counts.
			aggTotal = aggTotal.Add(sub.Aggregate.Counts)
		}
		if pair.Similarity >= t {
			// Cross-item aggregation: qualifying pairs merge their per-field
			// children into the list field's own bucket. The pair node's own
			// Overall holds only hallucinated-attribute FAs, which belong at
			// this node too.
			sub.Aggregate = nil
			child.merge(sub)
		} else {
			child.AllFieldsMatched = false
			child.NonMatches = append(child.NonMatches, NonMatch{
				FieldPath: fpath, Outcome: OutcomeFD, Similarity: pair.Similarity,
				GroundTruth: glist[pair.GTIndex], Prediction: plist[pair.PredIndex],
			})
		}
	}
	for _, i := range mr.UnmatchedGT {
		child.AllFieldsMatched = false
		child.NonMatches = append(child.NonMatches, NonMatch{FieldPath: fpath, Outcome: OutcomeFN, GroundTruth: glist[i]})
	}
	for _, j := range mr.UnmatchedPred {
		child.AllFieldsMatched = false
		child.NonMatches = append(child.NonMatches, NonMatch{FieldPath: fpath, Outcome: OutcomeFA, Prediction: plist[j]})
	}
	child.Aggregate = &Matrix{Counts: aggTotal}

	raw, clipped := listScores(mr, t, f.SkipClip, len(glist), len(plist))
	child.ThresholdAppliedScore = clipped
	return child, raw, clipped, nil
}

// listScores reduces a matching to a single [0,1] field score: summed pair
// similarity over the larger side's length, 1.0 when both sides are empty.
// The clipped variant zeroes below-threshold pairs unless clipping is off.
func listScores(mr MatchResult, threshold float64, skipClip bool, n, m int) (raw, clipped float64) {
	if n == 0 && m == 0 {
		return 1, 1
	}
	denom := float64(max(n, m))
	var rawSum, clipSum float64
	for _, p := range mr.Pairs {
		rawSum += p.Similarity
		if p.Similarity >= threshold || skipClip {
			clipSum += p.Similarity
		}
	}
	return rawSum / denom, clipSum / denom
}

func listNonMatches(mr MatchResult, threshold float64, fpath string, glist, plist []any) []NonMatch {
	var out []NonMatch
	for _, p := range mr.Pairs {
		if p.Similarity < threshold {
			out = append(out, NonMatch{
				FieldPath: fpath, Outcome: OutcomeFD, Similarity: p.Similarity,
				GroundTruth: glist[p.GTIndex], Prediction: plist[p.PredIndex],
			})
		}
	}
	for _, i := range mr.UnmatchedGT {
		out = append(out, NonMatch{FieldPath: fpath, Outcome: OutcomeFN, GroundTruth: glist[i]})
	}
	for _, j := range mr.UnmatchedPred {
		out = append(out, NonMatch{FieldPath: fpath, Outcome: OutcomeFA, Prediction: plist[j]})
	}
	return out
}

// isAbsent treats nil and empty collections as absent. Empty strings and
// empty objects are present values.
func isAbsent(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case []any:
		return len(t) == 0
	}
	return false
}

func coerceObject(path string, v any) (map[string]any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, singleIssue(CodeSchemaMismatch, path, fmt.Sprintf("expected an object, got %T", v))
	}
	return m, nil
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
