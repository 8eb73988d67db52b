package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Run records one conversion run: the source it consumed and when it started.
type Run struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	Source     string     `db:"source" json:"source"`
	SourceKind SourceKind `db:"source_kind" json:"source_kind"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// SchemaVersion is one persisted schema revision within a run. Version 1 is
// the initial generation; each accepted feedback round appends the next.
type SchemaVersion struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	RunID     uuid.UUID       `db:"run_id" json:"run_id"`
	Version   int             `db:"version" json:"version"`
	Payload   json.RawMessage `db:"payload" json:"payload"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// Schema returns the decoded schema payload.
func (v *SchemaVersion) Schema() (*Schema, error) {
	var s Schema
	if err := json.Unmarshal(v.Payload, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// FeedbackRound records one refinement request and the columns it changed.
// The diff is kept for observability; it is not part of the schema itself.
type FeedbackRound struct {
	ID             uuid.UUID `db:"id" json:"id"`
	RunID          uuid.UUID `db:"run_id" json:"run_id"`
	SchemaVersion  int       `db:"schema_version" json:"schema_version"`
	Feedback       string    `db:"feedback" json:"feedback"`
	ChangedColumns string    `db:"changed_columns" json:"changed_columns"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
