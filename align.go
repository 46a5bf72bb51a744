package structgrade

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/reoring/structgrade/internal/hungarian"
)

// PairSim scores one ground-truth/prediction element pair in [0, 1]. For
// object lists this is a full recursive comparison.
type PairSim func(ctx context.Context, gt, pred any) (float64, error)

// MatchPair is one assigned element pair with its raw similarity.
type MatchPair struct {
	GTIndex    int     `json:"gt_index"`
	PredIndex  int     `json:"pred_index"`
	Similarity float64 `json:"similarity"`
}

// MatchResult is a valid partial matching: each ground-truth and prediction
// index is used at most once. Excess elements on either side are reported
// unmatched, never paired with a dummy.
type MatchResult struct {
	Pairs         []MatchPair `json:"pairs"`
	UnmatchedGT   []int       `json:"unmatched_gt"`
	UnmatchedPred []int       `json:"unmatched_pred"`
}

// Classify buckets the matching against the threshold: matched pairs at or
// above it are TP, matched pairs below it FD, unmatched ground truth FN,
// unmatched predictions FA. Two empty sequences are one TN outcome.
func (r MatchResult) Classify(threshold float64) Counts {
	var c Counts
	if len(r.Pairs) == 0 && len(r.UnmatchedGT) == 0 && len(r.UnmatchedPred) == 0 {
		c.TN = 1
		return c
	}
	for _, p := range r.Pairs {
		if p.Similarity >= threshold {
			c.TP++
		} else {
			c.FD++
		}
	}
	c.FN = len(r.UnmatchedGT)
	c.FA = len(r.UnmatchedPred)
	return c
}

// TPFP is the legacy accessor for callers that only need the positive side.
func (r MatchResult) TPFP(threshold float64) (tp, fp int) {
	c := r.Classify(threshold)
	return c.TP, c.FP()
}

// AlignLists builds the pairwise similarity matrix and solves the assignment
// maximizing total matched similarity (equivalently minimizing the summed
// 1-similarity cost). Up to min(len(gt), len(pred)) pairs are matched; excess
// elements and zero-similarity assignments stay unmatched on both sides.
func AlignLists(ctx context.Context, gt, pred []any, sim PairSim) (MatchResult, error) {
	return alignIndexed(len(gt), len(pred), func(i, j int) (float64, error) {
		return sim(ctx, gt[i], pred[j])
	})
}

// alignIndexed is the index-based core of AlignLists. Callers whose cells are
// themselves expensive recursive comparisons use it to memoize per-cell
// results during matrix construction.
func alignIndexed(n, m int, sim func(i, j int) (float64, error)) (MatchResult, error) {
	switch {
	case n == 0 && m == 0:
		return MatchResult{}, nil
	case n == 0:
		return MatchResult{UnmatchedPred: indexRange(m)}, nil
	case m == 0:
		return MatchResult{UnmatchedGT: indexRange(n)}, nil
	case n == 1 && m == 1:
		// Degenerate matrix; the solver would pair the only cell anyway.
		s, err := sim(0, 0)
		if err != nil {
			return MatchResult{}, err
		}
		s = clamp01(s)
		if s == 0 {
			return MatchResult{UnmatchedGT: []int{0}, UnmatchedPred: []int{0}}, nil
		}
		return MatchResult{Pairs: []MatchPair{{GTIndex: 0, PredIndex: 0, Similarity: s}}}, nil
	}

	simMatrix := make([][]float64, n)
	cost := make([][]float64, n)
	for i := 0; i < n; i++ {
		simMatrix[i] = make([]float64, m)
		cost[i] = make([]float64, m)
		for j := 0; j < m; j++ {
			s, err := sim(i, j)
			if err != nil {
				return MatchResult{}, err
			}
			s = clamp01(s)
			simMatrix[i][j] = s
			cost[i][j] = 1 - s
		}
	}

	asn := hungarian.Assign(cost)
	var res MatchResult
	usedPred := make([]bool, m)
	for i, j := range asn {
		// A zero-similarity assignment is no match at all: the solver pairs
		// min(n, m) elements unconditionally, but elements with nothing in
		// common stay unmatched on both sides.
		if j < 0 || simMatrix[i][j] == 0 {
			res.UnmatchedGT = append(res.UnmatchedGT, i)
			continue
		}
		usedPred[j] = true
		res.Pairs = append(res.Pairs, MatchPair{GTIndex: i, PredIndex: j, Similarity: simMatrix[i][j]})
	}
	for j := 0; j < m; j++ {
		if !usedPred[j] {
			res.UnmatchedPred = append(res.UnmatchedPred, j)
		}
	}
	return res, nil
}

func indexRange(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// coerceList normalizes a field value into a []any sequence. Accepted shapes:
// nil (absent, empty), []any, any other slice or array via reflection, and a
// string-encoded JSON list literal, which is parsed before alignment.
func coerceList(path string, v any) ([]any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []any:
		return t, nil
	case string:
		trimmed := strings.TrimSpace(t)
		if trimmed == "" {
			return nil, nil
		}
		if !strings.HasPrefix(trimmed, "[") {
			return nil, singleIssue(CodeMalformedInput, path, fmt.Sprintf("expected a list, got string %q", t))
		}
		var out []any
		if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
			return nil, Issues{Issue{Path: path, Code: CodeParseError, Message: "unreadable list literal", Cause: err}}
		}
		return out, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out, nil
	}
	return nil, singleIssue(CodeMalformedInput, path, fmt.Sprintf("expected a list, got %T", v))
}
