package port

import (
	"context"

	"github.com/google/uuid"

	"schemaforge/internal/domain"
)

// SchemaStore defines the contract for run history persistence.
type SchemaStore interface {
	CreateRun(ctx context.Context, run *domain.Run) error
	GetRun(ctx context.Context, runID uuid.UUID) (*domain.Run, error)
	SaveSchemaVersion(ctx context.Context, v *domain.SchemaVersion) error
	LatestSchemaVersion(ctx context.Context, runID uuid.UUID) (*domain.SchemaVersion, error)
	ListSchemaVersions(ctx context.Context, runID uuid.UUID) ([]domain.SchemaVersion, error)
	SaveFeedbackRound(ctx context.Context, round *domain.FeedbackRound) error
	ListFeedbackRounds(ctx context.Context, runID uuid.UUID) ([]domain.FeedbackRound, error)
}
