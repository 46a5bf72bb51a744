package structgrade

import (
	"io"
	"os"
	"sync"

	json "github.com/goccy/go-json"
)

// ResultSink receives every per-document result from an Accumulator. Writes
// are best-effort: the accumulator records a failed write and keeps going.
type ResultSink interface {
	Write(docID string, res *Result) error
}

type sinkRecord struct {
	DocID            string  `json:"doc_id"`
	ComparisonResult *Result `json:"comparison_result"`
}

// JSONLSink appends one JSON object per document to an io.Writer.
type JSONLSink struct {
	mu sync.Mutex
	w  io.Writer
	c  io.Closer
}

// NewJSONLSink wraps an already-open writer. The caller owns the writer's
// lifetime.
func NewJSONLSink(w io.Writer) *JSONLSink { return &JSONLSink{w: w} }

// OpenJSONLSink opens (or creates) the file for append-only writing.
func OpenJSONLSink(path string) (*JSONLSink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &JSONLSink{w: f, c: f}, nil
}

// Write appends {"doc_id": ..., "comparison_result": ...} as one line.
func (s *JSONLSink) Write(docID string, res *Result) error {
	data, err := json.Marshal(sinkRecord{DocID: docID, ComparisonResult: res})
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(append(data, '\n')); err != nil {
		return err
	}
	return nil
}

// Close closes the underlying file when the sink owns one.
func (s *JSONLSink) Close() error {
	if s.c == nil {
		return nil
	}
	return s.c.Close()
}
