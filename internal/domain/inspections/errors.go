package inspections

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned by repositories when an inspection does not exist.
	ErrNotFound = errors.New("inspection not found")
	// ErrEmptyWorklist rejects a run before it starts; it also keeps
	// OverallScore away from a division by zero.
	ErrEmptyWorklist = errors.New("worklist is empty")
)

// ValidationError reports rejected input, keyed by field.
type ValidationError struct {
	Fields map[string]string
	Err    error
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		if e.Err != nil {
			return "validation failed: " + e.Err.Error()
		}
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return e.Err }
