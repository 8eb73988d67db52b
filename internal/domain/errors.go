package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNoTablesFound    = errors.New("no tables found in source")
	ErrTableNotSelected = errors.New("no table selected")
	ErrRunNotFound      = errors.New("run not found")
	ErrSchemaNotFound   = errors.New("schema not found")
	ErrQuotaExceeded    = errors.New("oracle quota exceeded")
)

// SchemaInvalidError reports a structural invariant violation in a table or
// schema. Context carries identifying details (column, constraint, counts).
type SchemaInvalidError struct {
	Reason  string
	Context map[string]string
}

func (e *SchemaInvalidError) Error() string {
	if len(e.Context) == 0 {
		return "schema invalid: " + e.Reason
	}
	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+e.Context[k])
	}
	return fmt.Sprintf("schema invalid: %s (%s)", e.Reason, strings.Join(parts, ", "))
}

// NewSchemaInvalidError creates a SchemaInvalidError.
func NewSchemaInvalidError(reason string, context map[string]string) *SchemaInvalidError {
	return &SchemaInvalidError{Reason: reason, Context: context}
}

// InferenceUnavailableError reports that type inference failed for one column
// after the configured retries were exhausted.
type InferenceUnavailableError struct {
	Column   string
	Attempts int
	Err      error
}

func (e *InferenceUnavailableError) Error() string {
	return fmt.Sprintf("inference unavailable for column %q after %d attempts: %v", e.Column, e.Attempts, e.Err)
}

func (e *InferenceUnavailableError) Unwrap() error {
	return e.Err
}

// RefinementFailedError reports that a feedback round could not produce a
// valid revised schema. The caller retains the prior schema unchanged.
type RefinementFailedError struct {
	SchemaName string
	Err        error
}

func (e *RefinementFailedError) Error() string {
	return fmt.Sprintf("refinement of schema %q failed: %v", e.SchemaName, e.Err)
}

func (e *RefinementFailedError) Unwrap() error {
	return e.Err
}
