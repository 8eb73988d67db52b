package sqlite_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schemaforge/internal/config"
	"schemaforge/internal/domain"
	"schemaforge/internal/port"
	"schemaforge/internal/repository/sqlite"
)

func newTestStore(t *testing.T) port.SchemaStore {
	t.Helper()
	db, err := sqlite.NewDB(&config.HistoryConfig{DBPath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlite.NewSchemaStore(db)
}

func newTestRun(t *testing.T, store port.SchemaStore) *domain.Run {
	t.Helper()
	run := &domain.Run{
		ID:         uuid.New(),
		Source:     "https://example.com/data",
		SourceKind: domain.SourceURL,
	}
	require.NoError(t, store.CreateRun(context.Background(), run))
	return run
}

func schemaPayload(t *testing.T, name string) json.RawMessage {
	t.Helper()
	s := &domain.Schema{
		Name: name,
		Columns: []domain.SchemaColumn{
			{Name: "id", Type: domain.TypeInteger, Description: "Identifier"},
		},
	}
	payload, err := json.Marshal(s)
	require.NoError(t, err)
	return payload
}

func TestSchemaStore_CreateAndGetRun(t *testing.T) {
	store := newTestStore(t)
	run := newTestRun(t, store)

	got, err := store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, run.Source, got.Source)
	assert.Equal(t, domain.SourceURL, got.SourceKind)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSchemaStore_GetRun_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetRun(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, domain.ErrRunNotFound))
}

func TestSchemaStore_SchemaVersions(t *testing.T) {
	store := newTestStore(t)
	run := newTestRun(t, store)
	ctx := context.Background()

	for v := 1; v <= 3; v++ {
		require.NoError(t, store.SaveSchemaVersion(ctx, &domain.SchemaVersion{
			ID:      uuid.New(),
			RunID:   run.ID,
			Version: v,
			Payload: schemaPayload(t, "dataset"),
		}))
	}

	latest, err := store.LatestSchemaVersion(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, latest.Version)

	decoded, err := latest.Schema()
	require.NoError(t, err)
	assert.Equal(t, "dataset", decoded.Name)

	versions, err := store.ListSchemaVersions(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, versions, 3)
	assert.Equal(t, 1, versions[0].Version)
	assert.Equal(t, 3, versions[2].Version)
}

func TestSchemaStore_LatestSchemaVersion_NotFound(t *testing.T) {
	store := newTestStore(t)
	run := newTestRun(t, store)

	_, err := store.LatestSchemaVersion(context.Background(), run.ID)
	assert.True(t, errors.Is(err, domain.ErrSchemaNotFound))
}

func TestSchemaStore_DuplicateVersionRejected(t *testing.T) {
	store := newTestStore(t)
	run := newTestRun(t, store)
	ctx := context.Background()

	v := &domain.SchemaVersion{ID: uuid.New(), RunID: run.ID, Version: 1, Payload: schemaPayload(t, "a")}
	require.NoError(t, store.SaveSchemaVersion(ctx, v))

	dup := &domain.SchemaVersion{ID: uuid.New(), RunID: run.ID, Version: 1, Payload: schemaPayload(t, "b")}
	assert.Error(t, store.SaveSchemaVersion(ctx, dup))
}

func TestSchemaStore_FeedbackRounds(t *testing.T) {
	store := newTestStore(t)
	run := newTestRun(t, store)
	ctx := context.Background()

	require.NoError(t, store.SaveFeedbackRound(ctx, &domain.FeedbackRound{
		ID:             uuid.New(),
		RunID:          run.ID,
		SchemaVersion:  2,
		Feedback:       "Date should be a date column",
		ChangedColumns: "Date",
	}))

	rounds, err := store.ListFeedbackRounds(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, rounds, 1)
	assert.Equal(t, 2, rounds[0].SchemaVersion)
	assert.Equal(t, "Date", rounds[0].ChangedColumns)

	other, err := store.ListFeedbackRounds(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, other)
}
