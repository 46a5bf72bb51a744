package structgrade

import (
	json "github.com/goccy/go-json"
)

// Counts is one confusion cell set. FP is never stored; it is always derived
// as FA+FD, so the five stored buckets partition every comparison unit.
type Counts struct {
	TP int
	FD int
	FA int
	FN int
	TN int
}

// FP returns the derived false-positive count.
func (c Counts) FP() int { return c.FA + c.FD }

// Add returns the cell-wise sum.
func (c Counts) Add(o Counts) Counts {
	return Counts{TP: c.TP + o.TP, FD: c.FD + o.FD, FA: c.FA + o.FA, FN: c.FN + o.FN, TN: c.TN + o.TN}
}

// IsZero reports whether every bucket is empty.
func (c Counts) IsZero() bool {
	return c == Counts{}
}

func (c *Counts) bump(o Outcome) {
	switch o {
	case OutcomeTP:
		c.TP++
	case OutcomeFD:
		c.FD++
	case OutcomeFA:
		c.FA++
	case OutcomeFN:
		c.FN++
	case OutcomeTN:
		c.TN++
	}
}

type countsWire struct {
	TP int `json:"tp"`
	FP int `json:"fp"`
	FN int `json:"fn"`
	TN int `json:"tn"`
	FD int `json:"fd"`
	FA int `json:"fa"`
}

// MarshalJSON emits the stored buckets plus the derived fp.
func (c Counts) MarshalJSON() ([]byte, error) {
	return json.Marshal(countsWire{TP: c.TP, FP: c.FP(), FN: c.FN, TN: c.TN, FD: c.FD, FA: c.FA})
}

// UnmarshalJSON reads the stored buckets; a serialized fp value is ignored in
// favor of the fa+fd derivation.
func (c *Counts) UnmarshalJSON(data []byte) error {
	var w countsWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*c = Counts{TP: w.TP, FD: w.FD, FA: w.FA, FN: w.FN, TN: w.TN}
	return nil
}

// Derived holds the metrics computed from a Counts cell set.
type Derived struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Accuracy  float64 `json:"accuracy"`
}

// Matrix is a Counts cell set with optional derived decoration.
type Matrix struct {
	Counts
	Derived *Derived
}

type matrixWire struct {
	countsWire
	Derived *Derived `json:"derived,omitempty"`
}

// MarshalJSON emits counts, derived fp, and the derived block when decorated.
func (m Matrix) MarshalJSON() ([]byte, error) {
	return json.Marshal(matrixWire{
		countsWire: countsWire{TP: m.TP, FP: m.FP(), FN: m.FN, TN: m.TN, FD: m.FD, FA: m.FA},
		Derived:    m.Derived,
	})
}

// UnmarshalJSON restores counts and derived decoration.
func (m *Matrix) UnmarshalJSON(data []byte) error {
	var w matrixWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	m.Counts = Counts{TP: w.TP, FD: w.FD, FA: w.FA, FN: w.FN, TN: w.TN}
	m.Derived = w.Derived
	return nil
}

// NonMatch records one below-threshold or presence-mismatch unit with its raw
// (unclipped) similarity for diagnostics.
type NonMatch struct {
	FieldPath   string  `json:"field_path"`
	Outcome     Outcome `json:"type"`
	Similarity  float64 `json:"similarity"`
	GroundTruth any     `json:"gt_value"`
	Prediction  any     `json:"pred_value"`
}

// Node is one level of the hierarchical confusion tree. It is a pure,
// stateless function of the two input graphs and the schema, recreated per
// comparison.
//
// Overall carries the node's own threshold-gated classification while
// Aggregate sums every primitive leaf descendant regardless of ancestor
// gating; the two views are allowed to disagree and both are retained.
type Node struct {
	Overall Matrix `json:"overall"`
	// Fields is present only when recursion was not gated off for this node.
	Fields     map[string]*Node `json:"fields,omitempty"`
	Aggregate  *Matrix          `json:"aggregate,omitempty"`
	NonMatches []NonMatch       `json:"non_matches,omitempty"`
	// ThresholdAppliedScore is the weighted field score with below-threshold
	// field scores clipped to zero (unless a field opts out of clipping).
	ThresholdAppliedScore float64 `json:"threshold_applied_score"`
	AllFieldsMatched      bool    `json:"all_fields_matched"`
}

// Flatten folds every exposed field node's overall counts into dst keyed by
// dotted path; the receiver's own counts land under prefix (the root uses "").
func (n *Node) Flatten(prefix string, dst map[string]Counts) {
	if n == nil {
		return
	}
	dst[prefix] = dst[prefix].Add(n.Overall.Counts)
	for name, child := range n.Fields {
		p := name
		if prefix != "" {
			p = prefix + "." + name
		}
		child.Flatten(p, dst)
	}
}

// merge folds src's counts, children, and non-matches into n. Weighted scores
// are not merged: a cross-item bucket reports counts, not a score.
func (n *Node) merge(src *Node) {
	if src == nil {
		return
	}
	n.Overall.Counts = n.Overall.Counts.Add(src.Overall.Counts)
	if src.Aggregate != nil {
		if n.Aggregate == nil {
			n.Aggregate = &Matrix{}
		}
		n.Aggregate.Counts = n.Aggregate.Counts.Add(src.Aggregate.Counts)
	}
	for name, child := range src.Fields {
		if n.Fields == nil {
			n.Fields = make(map[string]*Node, len(src.Fields))
		}
		dst, ok := n.Fields[name]
		if !ok {
			dst = &Node{AllFieldsMatched: true}
			n.Fields[name] = dst
		}
		dst.merge(child)
	}
	n.NonMatches = append(n.NonMatches, src.NonMatches...)
	n.AllFieldsMatched = n.AllFieldsMatched && src.AllFieldsMatched
}
