package structgrade

// Kind is the closed field-shape tag resolved once at schema build time. The
// comparator branches on this tag instead of re-probing value types per field.
type Kind int

const (
	KindPrimitive     Kind = iota // Scalar compared directly by the field comparator.
	KindPrimitiveList             // Unordered scalars aligned by the assignment solver.
	KindObject                    // Nested record graded against a nested schema.
	KindObjectList                // Unordered nested records aligned by the assignment solver.
)

// String returns the wire name of the kind as used by schema files.
func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindPrimitiveList:
		return "primitive_list"
	case KindObject:
		return "object"
	case KindObjectList:
		return "object_list"
	}
	return "unknown"
}

// Outcome is the single classification bucket of one comparison unit. Every
// unit lands in exactly one bucket; FP is never an outcome of its own, it is
// always derived as FA+FD.
type Outcome string

const (
	OutcomeTP Outcome = "tp"
	OutcomeFD Outcome = "fd" // Matched pair below its required threshold.
	OutcomeFA Outcome = "fa" // Prediction present where ground truth is absent.
	OutcomeFN Outcome = "fn"
	OutcomeTN Outcome = "tn"
)

// CompareOpt bundles per-call comparison options.
type CompareOpt struct {
	// IncludeConfusionMatrix attaches the hierarchical confusion tree to the result.
	IncludeConfusionMatrix bool
	// DocumentNonMatches attaches the flat list of below-threshold and
	// presence-mismatch records to the result.
	DocumentNonMatches bool
	// AddDerivedMetrics decorates every tree node with precision/recall/F1/accuracy.
	AddDerivedMetrics bool
	// RecallWithFD counts false discoveries in the recall denominator
	// (recall = tp/(tp+fn+fd) instead of tp/(tp+fn)).
	RecallWithFD bool
}

// BulkOpt configures an Accumulator.
type BulkOpt struct {
	// ElideErrors records per-document failures instead of propagating them;
	// Compute still itemizes them by document id.
	ElideErrors bool
	// RecallWithFD selects the alternate recall denominator for Compute.
	RecallWithFD bool
	// Sink, when set, receives every per-document result. Sink failures are
	// recorded and never abort subsequent updates.
	Sink ResultSink
}

// Document is one unit of bulk work.
type Document struct {
	DocID       string         `json:"doc_id"`
	GroundTruth map[string]any `json:"ground_truth"`
	Prediction  map[string]any `json:"prediction"`
}
