package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"schemaforge/internal/domain"
	"schemaforge/internal/port"
)

type schemaStore struct {
	db *sqlx.DB
}

// NewSchemaStore creates a SQLite-backed SchemaStore.
func NewSchemaStore(db *sqlx.DB) port.SchemaStore {
	return &schemaStore{db: db}
}

func (s *schemaStore) CreateRun(ctx context.Context, run *domain.Run) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, source, source_kind, created_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Source, run.SourceKind, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("schemaStore.CreateRun: %w", err)
	}
	return nil
}

func (s *schemaStore) GetRun(ctx context.Context, runID uuid.UUID) (*domain.Run, error) {
	var run domain.Run
	err := s.db.GetContext(ctx, &run, `SELECT * FROM runs WHERE id = ?`, runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("schemaStore.GetRun: %w", err)
	}
	return &run, nil
}

func (s *schemaStore) SaveSchemaVersion(ctx context.Context, v *domain.SchemaVersion) error {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO schema_versions (id, run_id, version, payload, created_at) VALUES (?, ?, ?, ?, ?)`,
		v.ID, v.RunID, v.Version, string(v.Payload), v.CreatedAt)
	if err != nil {
		return fmt.Errorf("schemaStore.SaveSchemaVersion: %w", err)
	}
	return nil
}

func (s *schemaStore) LatestSchemaVersion(ctx context.Context, runID uuid.UUID) (*domain.SchemaVersion, error) {
	var v domain.SchemaVersion
	err := s.db.GetContext(ctx, &v,
		`SELECT * FROM schema_versions WHERE run_id = ? ORDER BY version DESC LIMIT 1`, runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSchemaNotFound
		}
		return nil, fmt.Errorf("schemaStore.LatestSchemaVersion: %w", err)
	}
	return &v, nil
}

func (s *schemaStore) ListSchemaVersions(ctx context.Context, runID uuid.UUID) ([]domain.SchemaVersion, error) {
	var versions []domain.SchemaVersion
	err := s.db.SelectContext(ctx, &versions,
		`SELECT * FROM schema_versions WHERE run_id = ? ORDER BY version ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("schemaStore.ListSchemaVersions: %w", err)
	}
	return versions, nil
}

func (s *schemaStore) SaveFeedbackRound(ctx context.Context, round *domain.FeedbackRound) error {
	if round.CreatedAt.IsZero() {
		round.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feedback_rounds (id, run_id, schema_version, feedback, changed_columns, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		round.ID, round.RunID, round.SchemaVersion, round.Feedback, round.ChangedColumns, round.CreatedAt)
	if err != nil {
		return fmt.Errorf("schemaStore.SaveFeedbackRound: %w", err)
	}
	return nil
}

func (s *schemaStore) ListFeedbackRounds(ctx context.Context, runID uuid.UUID) ([]domain.FeedbackRound, error) {
	var rounds []domain.FeedbackRound
	err := s.db.SelectContext(ctx, &rounds,
		`SELECT * FROM feedback_rounds WHERE run_id = ? ORDER BY created_at ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("schemaStore.ListFeedbackRounds: %w", err)
	}
	return rounds, nil
}
