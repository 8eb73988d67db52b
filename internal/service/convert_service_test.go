package service_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schemaforge/internal/config"
	"schemaforge/internal/domain"
	"schemaforge/internal/port"
	"schemaforge/internal/repository/sqlite"
	"schemaforge/internal/service"
)

type stubOracle struct {
	generate func(ctx context.Context, req port.GenerateRequest) (*port.GenerateResult, error)
}

func (s *stubOracle) Generate(ctx context.Context, req port.GenerateRequest) (*port.GenerateResult, error) {
	return s.generate(ctx, req)
}

func jsonResult(t *testing.T, v any) (*port.GenerateResult, error) {
	t.Helper()
	payload, err := json.Marshal(v)
	require.NoError(t, err)
	return &port.GenerateResult{
		Payload: payload,
		Text:    string(payload),
		Model:   "gpt-4o",
		Usage:   port.Usage{PromptTokens: 50, CompletionTokens: 10},
	}, nil
}

// pipelineOracle answers selection, inference and summary requests by
// inspecting the prompt, the way one backing service serves all three.
func pipelineOracle(t *testing.T) *stubOracle {
	return &stubOracle{generate: func(_ context.Context, req port.GenerateRequest) (*port.GenerateResult, error) {
		switch {
		case req.Profile == port.ProfileSelection:
			return jsonResult(t, map[string]any{"main_table": 1, "reasoning": "the data table", "table_type": "data"})
		case strings.Contains(req.Prompt, "naming and describing"):
			return jsonResult(t, map[string]any{"name": "city_population", "description": "Cities and their population."})
		default:
			return jsonResult(t, map[string]any{"columns": []map[string]any{
				{"name": "City", "type": "string", "description": "City name", "nullable": false},
				{"name": "Population", "type": "integer", "description": "Resident count", "nullable": false},
			}})
		}
	}}
}

func writeCityPage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cities.html")
	require.NoError(t, os.WriteFile(path, []byte(`<table>
<thead><tr><th>City</th><th>Population</th></tr></thead>
<tr><td>Paris</td><td>2102650</td></tr>
<tr><td>Tokyo</td><td>14094034</td></tr>
</table>`), 0644))
	return path
}

func testConfig() *config.Config {
	return &config.Config{
		Oracle: config.OracleConfig{
			Generation: config.ModelProfile{Model: "gpt-4o"},
			Selection:  config.ModelProfile{Model: "gpt-4o-mini"},
			Refinement: config.ModelProfile{Model: "gpt-4o"},
		},
		Inference: config.InferenceConfig{
			ConfidenceFloor:   0.5,
			MajorityThreshold: 0.6,
			SampleRows:        5,
			Concurrency:       1,
			MaxChunkTokens:    12000,
		},
	}
}

func newHistoryStore(t *testing.T) port.SchemaStore {
	t.Helper()
	db, err := sqlite.NewDB(&config.HistoryConfig{DBPath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlite.NewSchemaStore(db)
}

func TestConvertService_Convert_FromHTMLFile(t *testing.T) {
	store := newHistoryStore(t)
	svc := service.NewConvertService(pipelineOracle(t), store, testConfig())

	out, err := svc.Convert(context.Background(), service.ConvertInput{
		Source: writeCityPage(t),
		Kind:   domain.SourceFile,
	})

	require.NoError(t, err)
	assert.Equal(t, "city_population", out.Schema.Name)
	require.Len(t, out.Schema.Columns, 2)
	assert.Equal(t, domain.TypeString, out.Schema.Columns[0].Type)
	assert.Equal(t, domain.TypeInteger, out.Schema.Columns[1].Type)
	assert.Equal(t, "only table on the page", out.SelectionReasoning)

	// Run and initial schema version are persisted.
	run, err := store.GetRun(context.Background(), out.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceFile, run.SourceKind)

	latest, err := store.LatestSchemaVersion(context.Background(), out.RunID)
	require.NoError(t, err)
	assert.Equal(t, 1, latest.Version)

	saved, err := latest.Schema()
	require.NoError(t, err)
	assert.Equal(t, out.Schema, saved)

	// Extraction, selection, generation and assembly each left a record.
	assert.Len(t, out.Metrics.Records(), 4)
}

func TestConvertService_Convert_NilStoreSkipsHistory(t *testing.T) {
	svc := service.NewConvertService(pipelineOracle(t), nil, testConfig())

	out, err := svc.Convert(context.Background(), service.ConvertInput{
		Source: writeCityPage(t),
		Kind:   domain.SourceFile,
	})

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, out.RunID)
}

func TestConvertService_Convert_UnknownKind(t *testing.T) {
	svc := service.NewConvertService(pipelineOracle(t), nil, testConfig())

	_, err := svc.Convert(context.Background(), service.ConvertInput{
		Source: "x",
		Kind:   domain.SourceKind("ftp"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown source kind")
}

func TestConvertService_Convert_ExtractionFailure(t *testing.T) {
	svc := service.NewConvertService(pipelineOracle(t), nil, testConfig())

	_, err := svc.Convert(context.Background(), service.ConvertInput{
		Source: filepath.Join(t.TempDir(), "missing.html"),
		Kind:   domain.SourceFile,
	})
	require.Error(t, err)
}

func TestRefineService_ApplyToRun(t *testing.T) {
	store := newHistoryStore(t)
	ctx := context.Background()

	runID := uuid.New()
	require.NoError(t, store.CreateRun(ctx, &domain.Run{
		ID: runID, Source: "cities.html", SourceKind: domain.SourceFile,
	}))

	initial := &domain.Schema{
		Name:        "city_population",
		Description: "Cities and their population.",
		Columns: []domain.SchemaColumn{
			{Name: "City", Type: domain.TypeString, Description: "City name"},
			{Name: "Population", Type: domain.TypeString, Description: "Resident count"},
		},
	}
	payload, err := json.Marshal(initial)
	require.NoError(t, err)
	require.NoError(t, store.SaveSchemaVersion(ctx, &domain.SchemaVersion{
		ID: uuid.New(), RunID: runID, Version: 1, Payload: payload,
	}))

	o := &stubOracle{generate: func(_ context.Context, req port.GenerateRequest) (*port.GenerateResult, error) {
		assert.Equal(t, port.ProfileRefinement, req.Profile)
		return jsonResult(t, map[string]any{
			"name":        "city_population",
			"description": "Cities and their population.",
			"columns": []map[string]any{
				{"name": "City", "type": "string", "description": "City name", "nullable": false},
				{"name": "Population", "type": "integer", "description": "Resident count", "nullable": false},
			},
		})
	}}

	svc := service.NewRefineService(o, store, testConfig())
	out, err := svc.ApplyToRun(ctx, runID, "Population should be an integer")

	require.NoError(t, err)
	assert.Equal(t, 2, out.Version)
	assert.Equal(t, []string{"Population"}, out.ChangedColumns)
	assert.Equal(t, domain.TypeInteger, out.Schema.Columns[1].Type)

	latest, err := store.LatestSchemaVersion(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Version)

	rounds, err := store.ListFeedbackRounds(ctx, runID)
	require.NoError(t, err)
	require.Len(t, rounds, 1)
	assert.Equal(t, "Population", rounds[0].ChangedColumns)
	assert.Equal(t, 2, rounds[0].SchemaVersion)
}

func TestRefineService_ApplyToRun_NoStore(t *testing.T) {
	svc := service.NewRefineService(&stubOracle{}, nil, testConfig())

	_, err := svc.ApplyToRun(context.Background(), uuid.New(), "x")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestRefineService_ApplyToRun_RunWithoutSchema(t *testing.T) {
	store := newHistoryStore(t)
	runID := uuid.New()
	require.NoError(t, store.CreateRun(context.Background(), &domain.Run{
		ID: runID, Source: "x", SourceKind: domain.SourceCSV,
	}))

	svc := service.NewRefineService(&stubOracle{generate: func(_ context.Context, _ port.GenerateRequest) (*port.GenerateResult, error) {
		return nil, fmt.Errorf("must not be called")
	}}, store, testConfig())

	_, err := svc.ApplyToRun(context.Background(), runID, "x")
	assert.ErrorIs(t, err, domain.ErrSchemaNotFound)
}
