package structgrade

// DeriveMetrics computes precision, recall, F1, and accuracy from one cell
// set. Every zero denominator yields 0, not NaN. When recallWithFD is set,
// false discoveries join the recall denominator (tp/(tp+fn+fd)).
func DeriveMetrics(c Counts, recallWithFD bool) Derived {
	var d Derived
	if den := c.TP + c.FP(); den > 0 {
		d.Precision = float64(c.TP) / float64(den)
	}
	rden := c.TP + c.FN
	if recallWithFD {
		rden += c.FD
	}
	if rden > 0 {
		d.Recall = float64(c.TP) / float64(rden)
	}
	if d.Precision+d.Recall > 0 {
		d.F1 = 2 * d.Precision * d.Recall / (d.Precision + d.Recall)
	}
	if den := c.TP + c.TN + c.FP() + c.FN; den > 0 {
		d.Accuracy = float64(c.TP+c.TN) / float64(den)
	}
	return d
}

// DecorateDerived walks the confusion tree and attaches derived metrics to
// every Overall and Aggregate cell set. It is a pure post-processing pass over
// an already-built tree; tree construction and decoration are independently
// toggleable and nothing is recomputed.
func DecorateDerived(n *Node, recallWithFD bool) {
	if n == nil {
		return
	}
	d := DeriveMetrics(n.Overall.Counts, recallWithFD)
	n.Overall.Derived = &d
	if n.Aggregate != nil {
		ad := DeriveMetrics(n.Aggregate.Counts, recallWithFD)
		n.Aggregate.Derived = &ad
	}
	for _, child := range n.Fields {
		DecorateDerived(child, recallWithFD)
	}
}
