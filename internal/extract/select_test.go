package extract_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schemaforge/internal/domain"
	"schemaforge/internal/extract"
	"schemaforge/internal/oracle"
	"schemaforge/internal/port"
)

type stubOracle struct {
	generate func(ctx context.Context, req port.GenerateRequest) (*port.GenerateResult, error)
	calls    int
}

func (s *stubOracle) Generate(ctx context.Context, req port.GenerateRequest) (*port.GenerateResult, error) {
	s.calls++
	return s.generate(ctx, req)
}

func selectionResult(mainTable int, reasoning string) *port.GenerateResult {
	payload, _ := json.Marshal(map[string]any{
		"main_table": mainTable,
		"reasoning":  reasoning,
		"table_type": "data",
	})
	return &port.GenerateResult{Payload: payload, Text: string(payload)}
}

func candidateSet() []port.TableCandidate {
	return []port.TableCandidate{
		{Index: 0, Caption: "Navigation", Table: domain.Table{
			Headers:    []string{"Link"},
			SampleRows: [][]string{{"Home"}},
		}},
		{Index: 1, Caption: "GDP by Country", Table: domain.Table{
			Headers:    []string{"Country", "GDP", "Year"},
			SampleRows: [][]string{{"France", "2.9", "2023"}, {"Japan", "4.2", "2023"}},
		}},
	}
}

func TestSelector_Select_UsesOracleChoice(t *testing.T) {
	o := &stubOracle{generate: func(_ context.Context, req port.GenerateRequest) (*port.GenerateResult, error) {
		assert.Equal(t, port.ProfileSelection, req.Profile)
		assert.Contains(t, req.Prompt, "Table 1:")
		assert.Contains(t, req.Prompt, "Table 2:")
		assert.Contains(t, req.Prompt, "GDP by Country")
		return selectionResult(2, "The GDP table holds the page's main data."), nil
	}}

	s := extract.NewSelector(o)
	selected, reasoning, _, err := s.Select(context.Background(), candidateSet())

	require.NoError(t, err)
	assert.Equal(t, 1, selected.Index)
	assert.Equal(t, "The GDP table holds the page's main data.", reasoning)
}

func TestSelector_Select_SingleCandidateSkipsOracle(t *testing.T) {
	o := &stubOracle{generate: func(_ context.Context, _ port.GenerateRequest) (*port.GenerateResult, error) {
		return nil, fmt.Errorf("must not be called")
	}}

	s := extract.NewSelector(o)
	selected, _, _, err := s.Select(context.Background(), candidateSet()[1:])

	require.NoError(t, err)
	assert.Equal(t, 0, o.calls)
	assert.Equal(t, 1, selected.Index)
}

func TestSelector_Select_NoCandidates(t *testing.T) {
	s := extract.NewSelector(&stubOracle{})
	_, _, _, err := s.Select(context.Background(), nil)
	require.Error(t, err)
}

func TestSelector_Select_FallsBackToLargestOnOracleFailure(t *testing.T) {
	o := &stubOracle{generate: func(_ context.Context, _ port.GenerateRequest) (*port.GenerateResult, error) {
		return nil, oracle.NewTransientError(fmt.Errorf("unavailable"), 0)
	}}

	s := extract.NewSelector(o)
	selected, reasoning, _, err := s.Select(context.Background(), candidateSet())

	require.NoError(t, err)
	assert.Equal(t, 1, selected.Index)
	assert.Contains(t, reasoning, "fallback")
}

func TestSelector_Select_FallsBackOnOutOfRangeIndex(t *testing.T) {
	o := &stubOracle{generate: func(_ context.Context, _ port.GenerateRequest) (*port.GenerateResult, error) {
		return selectionResult(7, "no such table"), nil
	}}

	s := extract.NewSelector(o)
	selected, reasoning, _, err := s.Select(context.Background(), candidateSet())

	require.NoError(t, err)
	assert.Equal(t, 1, selected.Index)
	assert.Contains(t, reasoning, "fallback")
}

func TestSelector_Select_QuotaExhaustionAborts(t *testing.T) {
	o := &stubOracle{generate: func(_ context.Context, _ port.GenerateRequest) (*port.GenerateResult, error) {
		return nil, &oracle.QuotaError{Err: fmt.Errorf("insufficient quota")}
	}}

	s := extract.NewSelector(o)
	_, _, _, err := s.Select(context.Background(), candidateSet())

	require.Error(t, err)
	var qe *oracle.QuotaError
	assert.True(t, errors.As(err, &qe))
}
