package port

import (
	"context"

	"schemaforge/internal/domain"
)

// TableCandidate is one table found in a source document, with the context
// the selection step needs to choose among several.
type TableCandidate struct {
	Index   int
	Caption string
	Table   domain.Table
}

// TableSource yields the tables contained in one input document.
type TableSource interface {
	Tables(ctx context.Context) ([]TableCandidate, error)
}
