package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"schemaforge/internal/config"
	"schemaforge/internal/domain"
	"schemaforge/internal/format"
	"schemaforge/internal/metrics"
	"schemaforge/internal/port"
	"schemaforge/internal/refine"
)

// RefineOutput is the result of one feedback round.
type RefineOutput struct {
	RunID          uuid.UUID
	Version        int
	Schema         *domain.Schema
	ChangedColumns []string
	Metrics        *metrics.Accumulator
}

// RefineService applies free-text feedback to schemas, either directly or to
// a persisted run's latest version.
type RefineService interface {
	Apply(ctx context.Context, s *domain.Schema, feedback string) (*refine.Result, *metrics.Accumulator, error)
	ApplyToRun(ctx context.Context, runID uuid.UUID, feedback string) (*RefineOutput, error)
}

type refineService struct {
	refiner *refine.Refiner
	store   port.SchemaStore // nil disables ApplyToRun
	cfg     *config.Config
}

// NewRefineService creates a RefineService. store may be nil when history is
// disabled; ApplyToRun then fails with ErrRunNotFound.
func NewRefineService(o port.Oracle, store port.SchemaStore, cfg *config.Config) RefineService {
	return &refineService{
		refiner: refine.NewRefiner(o),
		store:   store,
		cfg:     cfg,
	}
}

// Apply runs one stateless refinement round. On failure the input schema is
// untouched and remains the caller's current version.
func (s *refineService) Apply(ctx context.Context, sc *domain.Schema, feedback string) (*refine.Result, *metrics.Accumulator, error) {
	acc := metrics.NewAccumulator()
	done := acc.Track("schema_refinement", domain.PhaseFeedback)
	result, err := s.refiner.Refine(ctx, sc, feedback)
	if result != nil {
		done(result.Usage, s.cfg.Oracle.Refinement.Model)
	} else {
		done(port.Usage{}, s.cfg.Oracle.Refinement.Model)
	}
	if err != nil {
		return nil, acc, err
	}
	return result, acc, nil
}

// ApplyToRun loads the run's latest schema version, refines it, and persists
// the revision plus the feedback record.
func (s *refineService) ApplyToRun(ctx context.Context, runID uuid.UUID, feedback string) (*RefineOutput, error) {
	if s.store == nil {
		return nil, domain.ErrRunNotFound
	}
	latest, err := s.store.LatestSchemaVersion(ctx, runID)
	if err != nil {
		return nil, err
	}
	current, err := latest.Schema()
	if err != nil {
		return nil, fmt.Errorf("decoding stored schema for run %s: %w", runID, err)
	}

	result, acc, err := s.Apply(ctx, current, feedback)
	if err != nil {
		return nil, err
	}

	version := latest.Version + 1
	payload, err := format.JSON(result.Schema)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveSchemaVersion(ctx, &domain.SchemaVersion{
		ID:      uuid.New(),
		RunID:   runID,
		Version: version,
		Payload: payload,
	}); err != nil {
		return nil, err
	}
	if err := s.store.SaveFeedbackRound(ctx, &domain.FeedbackRound{
		ID:             uuid.New(),
		RunID:          runID,
		SchemaVersion:  version,
		Feedback:       feedback,
		ChangedColumns: strings.Join(result.ChangedColumns, ","),
	}); err != nil {
		return nil, err
	}

	return &RefineOutput{
		RunID:          runID,
		Version:        version,
		Schema:         result.Schema,
		ChangedColumns: result.ChangedColumns,
		Metrics:        acc,
	}, nil
}
