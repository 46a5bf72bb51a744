package structgrade

import (
	"errors"
	"fmt"
	"strings"
)

// Issue codes (exported consts for IDE completion and type safety by convention)
const (
	// CodeSchemaMismatch marks incompatible instance shapes. Fatal, raised immediately.
	CodeSchemaMismatch = "schema_mismatch"
	// CodeComparatorFailure marks an injected comparator error. Propagated by
	// default, elided-and-recorded under bulk ElideErrors.
	CodeComparatorFailure = "comparator_failure"
	// CodeMalformedInput marks nil or non-graph input where an object graph is expected.
	CodeMalformedInput = "malformed_input"
	// CodeSerializationFailure marks incompatible accumulator state shapes on
	// merge/load. Always fatal.
	CodeSerializationFailure = "serialization_failure"
	// CodeInvalidSchema marks a descriptor that fails registration-time validation.
	CodeInvalidSchema = "invalid_schema"
	// CodeParseError marks an unreadable string-encoded list literal or state blob.
	CodeParseError = "parse_error"
	// CodeSinkFailure marks a per-document persistence write failure. Recorded,
	// never fatal to the run.
	CodeSinkFailure = "sink_failure"
)

// Issue represents a single grading failure entry.
type Issue struct {
	Path    string // Dotted field path (for example: items.description).
	Code    string // One of the codes listed above.
	Message string
	Cause   error // Optional: underlying error.
}

// Issues is a collection of failures that implements error.
type Issues []Issue

// Error summarizes the first few issues.
func (iss Issues) Error() string {
	if len(iss) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	n := len(iss)
	lim := n
	if lim > maxShown {
		lim = maxShown
	}
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		it := iss[i]
		// e.g. comparator_failure at items.description
		if it.Path == "" {
			fmt.Fprintf(b, "%s", it.Code)
		} else {
			fmt.Fprintf(b, "%s at %s", it.Code, it.Path)
		}
	}
	if n > lim {
		fmt.Fprintf(b, "; ... (total %d)", n)
	}
	return b.String()
}

// Unwrap exposes the first underlying cause for errors.Is chains.
func (iss Issues) Unwrap() error {
	for _, it := range iss {
		if it.Cause != nil {
			return it.Cause
		}
	}
	return nil
}

// AppendIssues appends issues to the destination, initializing the slice when
// needed.
func AppendIssues(dst Issues, more ...Issue) Issues {
	if dst == nil {
		dst = Issues{}
	}
	dst = append(dst, more...)
	return dst
}

// AsIssues extracts Issues from an error using errors.As internally.
func AsIssues(err error) (Issues, bool) {
	if err == nil {
		return nil, false
	}
	var iss Issues
	if errors.As(err, &iss) {
		return iss, true
	}
	return nil, false
}

// HasCode reports whether err carries at least one Issue with the given code.
func HasCode(err error, code string) bool {
	iss, ok := AsIssues(err)
	if !ok {
		return false
	}
	for _, it := range iss {
		if it.Code == code {
			return true
		}
	}
	return false
}

func singleIssue(code, path, msg string) Issues {
	return Issues{Issue{Path: path, Code: code, Message: msg}}
}

// wrapComparator rebrands an injected comparator error without losing the cause.
func wrapComparator(path string, err error) Issues {
	if iss, ok := AsIssues(err); ok {
		return iss
	}
	return Issues{Issue{Path: path, Code: CodeComparatorFailure, Message: err.Error(), Cause: err}}
}
