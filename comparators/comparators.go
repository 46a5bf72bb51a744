// Package comparators provides stock leaf comparators for structgrade
// schemas. Every comparator honors the nil convention: two absent values are
// identical (1.0) and an absent value never matches a present one (0.0).
package comparators

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/reoring/structgrade"
)

// nilScore resolves the nil convention before type-specific scoring.
func nilScore(a, b any) (float64, bool) {
	switch {
	case a == nil && b == nil:
		return 1, true
	case a == nil || b == nil:
		return 0, true
	}
	return 0, false
}

// Exact scores 1.0 on normalized equality and 0.0 otherwise. Numbers compare
// numerically (3 equals 3.0), everything else by string rendering.
func Exact() structgrade.Comparator {
	return structgrade.ComparatorFunc(func(_ context.Context, a, b any) (float64, error) {
		if s, done := nilScore(a, b); done {
			return s, nil
		}
		if na, aok := asNumber(a); aok {
			if nb, bok := asNumber(b); bok {
				if na == nb {
					return 1, nil
				}
				return 0, nil
			}
		}
		if render(a) == render(b) {
			return 1, nil
		}
		return 0, nil
	})
}

// FoldCase scores 1.0 when the trimmed, case-folded string renderings match.
func FoldCase() structgrade.Comparator {
	return structgrade.ComparatorFunc(func(_ context.Context, a, b any) (float64, error) {
		if s, done := nilScore(a, b); done {
			return s, nil
		}
		if strings.EqualFold(strings.TrimSpace(render(a)), strings.TrimSpace(render(b))) {
			return 1, nil
		}
		return 0, nil
	})
}

// Levenshtein scores 1 - editDistance/maxLen over the string renderings.
func Levenshtein() structgrade.Comparator {
	return structgrade.ComparatorFunc(func(_ context.Context, a, b any) (float64, error) {
		if s, done := nilScore(a, b); done {
			return s, nil
		}
		sa, sb := render(a), render(b)
		if sa == sb {
			return 1, nil
		}
		maxLen := len([]rune(sa))
		if lb := len([]rune(sb)); lb > maxLen {
			maxLen = lb
		}
		if maxLen == 0 {
			return 1, nil
		}
		return 1 - float64(editDistance(sa, sb))/float64(maxLen), nil
	})
}

// NumericTolerance scores 1.0 when |a-b| <= abs or the relative difference
// against the ground-truth magnitude is within rel, otherwise 0.0. Non-numeric
// input is a comparator failure.
func NumericTolerance(abs, rel float64) structgrade.Comparator {
	return structgrade.ComparatorFunc(func(_ context.Context, a, b any) (float64, error) {
		if s, done := nilScore(a, b); done {
			return s, nil
		}
		na, aok := asNumber(a)
		nb, bok := asNumber(b)
		if !aok || !bok {
			return 0, fmt.Errorf("numeric comparator: non-numeric input %T vs %T", a, b)
		}
		diff := na - nb
		if diff < 0 {
			diff = -diff
		}
		if diff <= abs {
			return 1, nil
		}
		mag := na
		if mag < 0 {
			mag = -mag
		}
		if mag > 0 && diff/mag <= rel {
			return 1, nil
		}
		return 0, nil
	})
}

// Boolean scores 1.0 when both values coerce to the same truth value.
// "true"/"false" strings (any case) coerce; anything else fails.
func Boolean() structgrade.Comparator {
	return structgrade.ComparatorFunc(func(_ context.Context, a, b any) (float64, error) {
		if s, done := nilScore(a, b); done {
			return s, nil
		}
		ba, aok := asBool(a)
		bb, bok := asBool(b)
		if !aok || !bok {
			return 0, fmt.Errorf("boolean comparator: non-boolean input %T vs %T", a, b)
		}
		if ba == bb {
			return 1, nil
		}
		return 0, nil
	})
}

func render(v any) string {
	switch t := v.(type) {
	case string:
		return t
	default:
		return fmt.Sprint(v)
	}
}

func asNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func asBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}

// editDistance is the classic two-row Levenshtein DP over runes.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			sub := prev[j-1]
			if ra[i-1] != rb[j-1] {
				sub++
			}
			del := prev[j] + 1
			ins := cur[j-1] + 1
			m := sub
			if del < m {
				m = del
			}
			if ins < m {
				m = ins
			}
			cur[j] = m
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
