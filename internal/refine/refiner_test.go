package refine_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schemaforge/internal/domain"
	"schemaforge/internal/oracle"
	"schemaforge/internal/port"
	"schemaforge/internal/refine"
)

type stubOracle struct {
	generate func(ctx context.Context, req port.GenerateRequest) (*port.GenerateResult, error)
	calls    int
}

func (s *stubOracle) Generate(ctx context.Context, req port.GenerateRequest) (*port.GenerateResult, error) {
	s.calls++
	return s.generate(ctx, req)
}

func replyOracle(t *testing.T, reply map[string]any) *stubOracle {
	t.Helper()
	return &stubOracle{generate: func(_ context.Context, req port.GenerateRequest) (*port.GenerateResult, error) {
		assert.Equal(t, port.ProfileRefinement, req.Profile)
		payload, err := json.Marshal(reply)
		require.NoError(t, err)
		return &port.GenerateResult{
			Payload: payload,
			Text:    string(payload),
			Usage:   port.Usage{PromptTokens: 80, CompletionTokens: 25},
		}, nil
	}}
}

func salesSchema() *domain.Schema {
	return &domain.Schema{
		Name:        "monthly_sales",
		Description: "Sales figures by month.",
		Columns: []domain.SchemaColumn{
			{Name: "Date", Type: domain.TypeString, Description: "Month of the record"},
			{Name: "Revenue", Type: domain.TypeFloat, Description: "Total revenue"},
		},
		SourceMetadata: map[string]string{"source": "report.html"},
	}
}

func columnMap(name, typ, format, description string) map[string]any {
	m := map[string]any{
		"name":        name,
		"type":        typ,
		"description": description,
		"nullable":    false,
	}
	if format != "" {
		m["format"] = format
	}
	return m
}

func TestRefiner_Refine_ChangesRequestedColumn(t *testing.T) {
	prior := salesSchema()
	o := replyOracle(t, map[string]any{
		"name":        "monthly_sales",
		"description": "Sales figures by month.",
		"columns": []map[string]any{
			columnMap("Date", "date", "YYYY-MM-DD", "Month of the record"),
			columnMap("Revenue", "float", "", "Total revenue"),
		},
	})

	r := refine.NewRefiner(o)
	result, err := r.Refine(context.Background(), prior, "Date should be a date column, format YYYY-MM-DD")

	require.NoError(t, err)
	assert.Equal(t, []string{"Date"}, result.ChangedColumns)
	assert.Equal(t, domain.TypeDate, result.Schema.Columns[0].Type)
	assert.Equal(t, "YYYY-MM-DD", result.Schema.Columns[0].Format)

	// Untouched column and metadata survive.
	assert.Equal(t, domain.TypeFloat, result.Schema.Columns[1].Type)
	assert.Equal(t, "report.html", result.Schema.SourceMetadata["source"])

	// The input schema is never mutated.
	assert.Equal(t, domain.TypeString, prior.Columns[0].Type)
	assert.Equal(t, 80, result.Usage.PromptTokens)
}

func TestRefiner_Refine_EmptyFeedbackSkipsOracle(t *testing.T) {
	prior := salesSchema()
	o := &stubOracle{generate: func(_ context.Context, _ port.GenerateRequest) (*port.GenerateResult, error) {
		return nil, fmt.Errorf("must not be called")
	}}

	r := refine.NewRefiner(o)
	result, err := r.Refine(context.Background(), prior, "   ")

	require.NoError(t, err)
	assert.Equal(t, 0, o.calls)
	assert.Empty(t, result.ChangedColumns)
	assert.Equal(t, prior, result.Schema)

	// Deep copy, not the same instance.
	result.Schema.Columns[0].Type = domain.TypeInteger
	assert.Equal(t, domain.TypeString, prior.Columns[0].Type)
}

func TestRefiner_Refine_NoOpFeedbackYieldsDeepEqualSchema(t *testing.T) {
	prior := salesSchema()
	o := replyOracle(t, map[string]any{
		"name":        "monthly_sales",
		"description": "Sales figures by month.",
		"columns": []map[string]any{
			columnMap("Date", "string", "", "Month of the record"),
			columnMap("Revenue", "float", "", "Total revenue"),
		},
	})

	r := refine.NewRefiner(o)
	result, err := r.Refine(context.Background(), prior, "Looks good, change nothing.")

	require.NoError(t, err)
	assert.Empty(t, result.ChangedColumns)
	assert.Equal(t, prior, result.Schema)
}

func TestRefiner_Refine_OracleFailureWrapsRefinementFailed(t *testing.T) {
	prior := salesSchema()
	o := &stubOracle{generate: func(_ context.Context, _ port.GenerateRequest) (*port.GenerateResult, error) {
		return nil, oracle.NewTransientError(fmt.Errorf("service down"), 0)
	}}

	r := refine.NewRefiner(o)
	_, err := r.Refine(context.Background(), prior, "rename Revenue to Sales")

	require.Error(t, err)
	var rfe *domain.RefinementFailedError
	require.True(t, errors.As(err, &rfe))
	assert.Equal(t, "monthly_sales", rfe.SchemaName)

	// Failure leaves the caller's schema untouched.
	assert.Equal(t, "Revenue", prior.Columns[1].Name)
}

func TestRefiner_Refine_InvalidRevisionRejected(t *testing.T) {
	prior := salesSchema()
	o := replyOracle(t, map[string]any{
		"name":        "monthly_sales",
		"description": "Sales figures by month.",
		"columns": []map[string]any{
			columnMap("Date", "not_a_type", "", "Month of the record"),
			columnMap("Revenue", "float", "", "Total revenue"),
		},
	})

	r := refine.NewRefiner(o)
	_, err := r.Refine(context.Background(), prior, "break it")

	require.Error(t, err)
	var rfe *domain.RefinementFailedError
	assert.True(t, errors.As(err, &rfe))
}

func TestRefiner_Refine_ConfidenceCarriedWhenTypeUnchanged(t *testing.T) {
	conf := 0.7
	prior := &domain.Schema{
		Name: "header_only",
		Columns: []domain.SchemaColumn{
			{Name: "email", Type: domain.TypeString, Format: "email", Description: "Email", Confidence: &conf},
		},
	}
	o := replyOracle(t, map[string]any{
		"name":        "header_only",
		"description": "Updated description.",
		"columns": []map[string]any{
			columnMap("email", "string", "email", "Email"),
		},
	})

	r := refine.NewRefiner(o)
	result, err := r.Refine(context.Background(), prior, "improve the description")

	require.NoError(t, err)
	require.NotNil(t, result.Schema.Columns[0].Confidence)
	assert.Equal(t, 0.7, *result.Schema.Columns[0].Confidence)
}

func TestDiff(t *testing.T) {
	base := salesSchema()

	t.Run("identical schemas", func(t *testing.T) {
		assert.Empty(t, refine.Diff(base, base.Clone()))
	})

	t.Run("type change", func(t *testing.T) {
		after := base.Clone()
		after.Columns[0].Type = domain.TypeDate
		assert.Equal(t, []string{"Date"}, refine.Diff(base, after))
	})

	t.Run("added column", func(t *testing.T) {
		after := base.Clone()
		after.Columns = append(after.Columns, domain.SchemaColumn{
			Name: "Region", Type: domain.TypeString, Description: "Sales region",
		})
		assert.Equal(t, []string{"Region"}, refine.Diff(base, after))
	})

	t.Run("removed column appended last", func(t *testing.T) {
		after := base.Clone()
		after.Columns = after.Columns[:1]
		after.Columns[0].Description = "updated"
		assert.Equal(t, []string{"Date", "Revenue"}, refine.Diff(base, after))
	})

	t.Run("rename reports both names", func(t *testing.T) {
		after := base.Clone()
		after.Columns[1].Name = "Sales"
		assert.Equal(t, []string{"Sales", "Revenue"}, refine.Diff(base, after))
	})

	t.Run("constraint change", func(t *testing.T) {
		after := base.Clone()
		after.Columns[1].Constraints = map[string]any{"minimum": 0}
		assert.Equal(t, []string{"Revenue"}, refine.Diff(base, after))
	})

	t.Run("nil versus empty constraints equal", func(t *testing.T) {
		after := base.Clone()
		after.Columns[0].Constraints = map[string]any{}
		assert.Empty(t, refine.Diff(base, after))
	})
}
