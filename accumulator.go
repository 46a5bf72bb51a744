package structgrade

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// DocError itemizes one per-document failure recorded under ElideErrors.
type DocError struct {
	DocID   string `json:"doc_id"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AccumulatorState is the flat serializable accumulator snapshot. Merging two
// states is associative and commutative on the per-path totals, which makes
// sharded and resumable accumulation exact.
type AccumulatorState struct {
	ProcessedCount int `json:"processed_count"`
	// FieldCounts maps dotted field paths to running totals. The document-level
	// totals live under the empty path.
	FieldCounts map[string]Counts `json:"field_counts"`
	Errors      []DocError        `json:"errors,omitempty"`
}

// Summary is the Compute output: overall and per-field-path derived metrics
// plus the itemized per-document failures.
type Summary struct {
	ProcessedCount int               `json:"processed_count"`
	Metrics        Matrix            `json:"metrics"`
	FieldMetrics   map[string]Matrix `json:"field_metrics"`
	Errors         []DocError        `json:"errors,omitempty"`
}

// Accumulator streams many document comparisons into running per-field-path
// totals. Per-document trees are discarded after folding, so memory stays
// proportional to the number of distinct field paths, not documents.
//
// An Accumulator is not safe for concurrent Update on one instance; run one
// instance per shard and combine them with MergeState.
type Accumulator struct {
	schema *Schema
	opt    BulkOpt
	state  AccumulatorState
}

// NewAccumulator creates an empty accumulator for one evaluation run.
func NewAccumulator(s *Schema, opt BulkOpt) *Accumulator {
	return &Accumulator{
		schema: s,
		opt:    opt,
		state:  AccumulatorState{FieldCounts: make(map[string]Counts)},
	}
}

// Update grades one document and folds its flattened field-path counts into
// the running totals. An empty docID is replaced with a generated one so
// failures stay attributable. Failures propagate unless ElideErrors is set,
// in which case they are recorded and the document is skipped.
func (a *Accumulator) Update(ctx context.Context, gt, pred map[string]any, docID string) error {
	if docID == "" {
		docID = uuid.NewString()
	}
	withSink := a.opt.Sink != nil
	res, err := CompareWith(ctx, a.schema, gt, pred, CompareOpt{
		IncludeConfusionMatrix: true,
		DocumentNonMatches:     withSink,
		AddDerivedMetrics:      withSink,
		RecallWithFD:           a.opt.RecallWithFD,
	})
	if err != nil {
		// Schema mismatches are fatal regardless of ElideErrors: the corpus
		// does not match the descriptor and no later document can fix that.
		if !a.opt.ElideErrors || HasCode(err, CodeSchemaMismatch) {
			return err
		}
		a.state.Errors = append(a.state.Errors, docError(docID, err))
		return nil
	}

	res.ConfusionMatrix.Flatten("", a.state.FieldCounts)
	a.state.ProcessedCount++

	if withSink {
		// Persistence is append-only and best-effort: a write failure is
		// recorded but must not abort subsequent updates.
		if werr := a.opt.Sink.Write(docID, res); werr != nil {
			a.state.Errors = append(a.state.Errors, DocError{DocID: docID, Code: CodeSinkFailure, Message: werr.Error()})
		}
	}
	return nil
}

// UpdateBatch processes the documents in order. Totals are identical to the
// equivalent sequence of Update calls; there is no batching-induced drift.
func (a *Accumulator) UpdateBatch(ctx context.Context, docs []Document) error {
	for _, d := range docs {
		if err := a.Update(ctx, d.GroundTruth, d.Prediction, d.DocID); err != nil {
			return err
		}
	}
	return nil
}

// Compute derives metrics from the running totals. It is idempotent absent
// interleaved Update calls and always returns a result; per-document failures
// are itemized in Errors.
func (a *Accumulator) Compute() Summary {
	sum := Summary{
		ProcessedCount: a.state.ProcessedCount,
		FieldMetrics:   make(map[string]Matrix, len(a.state.FieldCounts)),
		Errors:         append([]DocError(nil), a.state.Errors...),
	}
	for path, c := range a.state.FieldCounts {
		d := DeriveMetrics(c, a.opt.RecallWithFD)
		m := Matrix{Counts: c, Derived: &d}
		if path == "" {
			sum.Metrics = m
			continue
		}
		sum.FieldMetrics[path] = m
	}
	return sum
}

// State returns a deep copy of the current snapshot.
func (a *Accumulator) State() *AccumulatorState {
	out := &AccumulatorState{
		ProcessedCount: a.state.ProcessedCount,
		FieldCounts:    make(map[string]Counts, len(a.state.FieldCounts)),
		Errors:         append([]DocError(nil), a.state.Errors...),
	}
	for k, v := range a.state.FieldCounts {
		out.FieldCounts[k] = v
	}
	return out
}

// LoadState replaces the accumulator contents with the snapshot.
func (a *Accumulator) LoadState(st *AccumulatorState) error {
	if err := validateState(st); err != nil {
		return err
	}
	a.Reset()
	return a.MergeState(st)
}

// MergeState folds another snapshot into this accumulator. The operation is
// associative and commutative, so shards may be combined in any order.
func (a *Accumulator) MergeState(st *AccumulatorState) error {
	if err := validateState(st); err != nil {
		return err
	}
	a.state.ProcessedCount += st.ProcessedCount
	for path, c := range st.FieldCounts {
		a.state.FieldCounts[path] = a.state.FieldCounts[path].Add(c)
	}
	a.state.Errors = append(a.state.Errors, st.Errors...)
	return nil
}

// Reset clears to the empty state.
func (a *Accumulator) Reset() {
	a.state = AccumulatorState{FieldCounts: make(map[string]Counts)}
}

// MarshalState serializes the current snapshot.
func (a *Accumulator) MarshalState() ([]byte, error) {
	data, err := json.Marshal(a.State())
	if err != nil {
		return nil, Issues{Issue{Code: CodeSerializationFailure, Message: "state encode failed", Cause: err}}
	}
	return data, nil
}

// UnmarshalAccumulatorState parses and validates a serialized snapshot.
func UnmarshalAccumulatorState(data []byte) (*AccumulatorState, error) {
	var st AccumulatorState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, Issues{Issue{Code: CodeSerializationFailure, Message: "state decode failed", Cause: err}}
	}
	if err := validateState(&st); err != nil {
		return nil, err
	}
	return &st, nil
}

// validateState rejects incompatible state shapes. Shape failures are always
// fatal; a caller cannot merge past them.
func validateState(st *AccumulatorState) error {
	if st == nil {
		return singleIssue(CodeSerializationFailure, "", "nil state")
	}
	if st.ProcessedCount < 0 {
		return singleIssue(CodeSerializationFailure, "", fmt.Sprintf("negative processed count %d", st.ProcessedCount))
	}
	for path, c := range st.FieldCounts {
		if c.TP < 0 || c.FD < 0 || c.FA < 0 || c.FN < 0 || c.TN < 0 {
			return singleIssue(CodeSerializationFailure, path, "negative counts")
		}
	}
	return nil
}

func docError(docID string, err error) DocError {
	code := CodeComparatorFailure
	if iss, ok := AsIssues(err); ok && len(iss) > 0 {
		code = iss[0].Code
	}
	return DocError{DocID: docID, Code: code, Message: err.Error()}
}
