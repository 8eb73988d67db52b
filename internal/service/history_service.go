package service

import (
	"context"

	"github.com/google/uuid"

	"schemaforge/internal/domain"
	"schemaforge/internal/port"
)

// RunDetail is a run with its schema versions and feedback rounds.
type RunDetail struct {
	Run      *domain.Run            `json:"run"`
	Versions []domain.SchemaVersion `json:"versions"`
	Feedback []domain.FeedbackRound `json:"feedback"`
}

// HistoryService reads persisted run history.
type HistoryService interface {
	GetRun(ctx context.Context, runID uuid.UUID) (*RunDetail, error)
}

type historyService struct {
	store port.SchemaStore
}

// NewHistoryService creates a HistoryService.
func NewHistoryService(store port.SchemaStore) HistoryService {
	return &historyService{store: store}
}

func (s *historyService) GetRun(ctx context.Context, runID uuid.UUID) (*RunDetail, error) {
	if s.store == nil {
		return nil, domain.ErrRunNotFound
	}
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	versions, err := s.store.ListSchemaVersions(ctx, runID)
	if err != nil {
		return nil, err
	}
	feedback, err := s.store.ListFeedbackRounds(ctx, runID)
	if err != nil {
		return nil, err
	}
	return &RunDetail{Run: run, Versions: versions, Feedback: feedback}, nil
}
