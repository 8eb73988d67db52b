package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"schemaforge/internal/config"
	"schemaforge/internal/domain"
	"schemaforge/internal/extract"
	"schemaforge/internal/format"
	"schemaforge/internal/inference"
	"schemaforge/internal/metrics"
	"schemaforge/internal/port"
	"schemaforge/internal/schema"
)

// ConvertInput names the source a conversion run should consume.
type ConvertInput struct {
	Source string            `json:"source" binding:"required"`
	Kind   domain.SourceKind `json:"kind" binding:"required"`
}

// ConvertOutput is the result of one conversion run.
type ConvertOutput struct {
	RunID              uuid.UUID
	Schema             *domain.Schema
	SelectionReasoning string
	Metrics            *metrics.Accumulator
}

// ConvertService runs the extract → select → infer → assemble pipeline.
type ConvertService interface {
	Convert(ctx context.Context, input ConvertInput) (*ConvertOutput, error)
}

type convertService struct {
	selector  *extract.Selector
	engine    *inference.Engine
	assembler *schema.Assembler
	store     port.SchemaStore // nil disables history
	cfg       *config.Config
}

// NewConvertService creates a ConvertService. store may be nil to disable
// run history.
func NewConvertService(o port.Oracle, store port.SchemaStore, cfg *config.Config) ConvertService {
	return &convertService{
		selector:  extract.NewSelector(o),
		engine:    inference.NewEngine(o, cfg.Inference),
		assembler: schema.NewAssembler(o),
		store:     store,
		cfg:       cfg,
	}
}

func (s *convertService) Convert(ctx context.Context, input ConvertInput) (*ConvertOutput, error) {
	acc := metrics.NewAccumulator()
	runID := uuid.New()
	log := slog.With("run_id", runID)

	source, err := s.sourceFor(input)
	if err != nil {
		return nil, err
	}

	doneExtract := acc.Track("table_extraction", domain.PhaseInitial)
	candidates, err := source.Tables(ctx)
	doneExtract(port.Usage{}, "")
	if err != nil {
		return nil, fmt.Errorf("extracting tables from %s: %w", input.Source, err)
	}
	log.Info("tables extracted", "count", len(candidates))

	doneSelect := acc.Track("table_selection", domain.PhaseInitial)
	selected, reasoning, selUsage, err := s.selector.Select(ctx, candidates)
	doneSelect(selUsage, s.cfg.Oracle.Selection.Model)
	if err != nil {
		return nil, err
	}
	log.Info("table selected", "index", selected.Index, "columns", len(selected.Table.Headers))

	doneInfer := acc.Track("schema_generation", domain.PhaseInitial)
	columns, inferUsage, err := s.engine.Infer(ctx, &selected.Table)
	doneInfer(inferUsage, s.cfg.Oracle.Generation.Model)
	if err != nil {
		return nil, err
	}

	doneAssemble := acc.Track("schema_assembly", domain.PhaseInitial)
	result, asmUsage, err := s.assembler.Assemble(ctx, &selected.Table, columns)
	doneAssemble(asmUsage, s.cfg.Oracle.Generation.Model)
	if err != nil {
		return nil, err
	}
	log.Info("schema assembled", "name", result.Name, "columns", len(result.Columns))

	if s.store != nil {
		if err := s.persist(ctx, runID, input, result); err != nil {
			// History is a convenience; the generated schema is still good.
			log.Warn("persisting run history failed", "error", err)
		}
	}

	return &ConvertOutput{
		RunID:              runID,
		Schema:             result,
		SelectionReasoning: reasoning,
		Metrics:            acc,
	}, nil
}

func (s *convertService) sourceFor(input ConvertInput) (port.TableSource, error) {
	sampleRows := s.cfg.Inference.SampleRows
	switch input.Kind {
	case domain.SourceURL:
		return extract.NewHTMLSourceFromURL(input.Source, sampleRows, 30*time.Second), nil
	case domain.SourceFile:
		return extract.NewHTMLSourceFromFile(input.Source, sampleRows), nil
	case domain.SourceCSV:
		return extract.NewCSVSource(input.Source, sampleRows), nil
	default:
		return nil, fmt.Errorf("unknown source kind: %s", input.Kind)
	}
}

func (s *convertService) persist(ctx context.Context, runID uuid.UUID, input ConvertInput, result *domain.Schema) error {
	if err := s.store.CreateRun(ctx, &domain.Run{
		ID:         runID,
		Source:     input.Source,
		SourceKind: input.Kind,
	}); err != nil {
		return err
	}
	payload, err := format.JSON(result)
	if err != nil {
		return err
	}
	return s.store.SaveSchemaVersion(ctx, &domain.SchemaVersion{
		ID:      uuid.New(),
		RunID:   runID,
		Version: 1,
		Payload: payload,
	})
}
