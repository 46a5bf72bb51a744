package structgrade

import "context"

// Comparator scores the similarity of two leaf values in [0, 1].
//
// Convention (not enforced): Compare(nil, nil) = 1.0 and Compare(nil, x) = 0.0
// for non-nil x. Implementations may block (for example a network-backed
// semantic comparator); the grading core treats the call as an opaque
// synchronous operation and owns no retry, timeout, or cancellation policy.
// Errors surface as comparator_failure issues.
type Comparator interface {
	Compare(ctx context.Context, a, b any) (float64, error)
}

// ComparatorFunc adapts a plain function to Comparator.
type ComparatorFunc func(ctx context.Context, a, b any) (float64, error)

// Compare implements Comparator.
func (f ComparatorFunc) Compare(ctx context.Context, a, b any) (float64, error) {
	return f(ctx, a, b)
}

// clamp01 pins comparator output into [0, 1] so a misbehaving implementation
// cannot corrupt weighted scores or classification.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
