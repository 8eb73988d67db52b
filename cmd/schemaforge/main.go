package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"

	"schemaforge/internal/config"
	"schemaforge/internal/domain"
	"schemaforge/internal/format"
	"schemaforge/internal/logging"
	"schemaforge/internal/metrics"
	"schemaforge/internal/oracle"
	"schemaforge/internal/port"
	"schemaforge/internal/repository/sqlite"
	"schemaforge/internal/service"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	_ = godotenv.Load()

	var (
		urlFlag     = flag.String("url", "", "URL of an HTML page containing the table")
		fileFlag    = flag.String("file", "", "path to a local HTML file")
		csvFlag     = flag.String("csv", "", "path to a CSV file (e.g. a Kaggle export)")
		formatsFlag = flag.String("formats", "", "comma-separated output formats: json,yaml,text,xlsx (overrides config)")
		outFlag     = flag.String("out", "", "output directory (overrides config)")
		interactive = flag.Bool("interactive", false, "enter a feedback loop after generation")
	)
	flag.Parse()

	input, err := inputFromFlags(*urlFlag, *fileFlag, *csvFlag)
	if err != nil {
		flag.Usage()
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if *formatsFlag != "" {
		cfg.Output.Formats = strings.Split(*formatsFlag, ",")
	}
	if *outFlag != "" {
		cfg.Output.Dir = *outFlag
	}

	cleanup, err := logging.Setup(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer func() { _ = cleanup() }()

	var db *sqlx.DB
	var store port.SchemaStore
	if cfg.History.Enabled {
		db, err = sqlite.NewDB(&cfg.History)
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer func() { _ = db.Close() }()
		store = sqlite.NewSchemaStore(db)
	}

	oracleClient := oracle.NewClient(&cfg.Oracle)
	convertSvc := service.NewConvertService(oracleClient, store, cfg)
	refineSvc := service.NewRefineService(oracleClient, store, cfg)

	ctx := context.Background()

	out, err := convertSvc.Convert(ctx, *input)
	if err != nil {
		return err
	}
	if out.SelectionReasoning != "" {
		fmt.Printf("Selected table: %s\n\n", out.SelectionReasoning)
	}
	fmt.Print(format.Text(out.Schema))

	current := out.Schema
	acc := out.Metrics

	if *interactive {
		current, err = feedbackLoop(ctx, refineSvc, current, acc)
		if err != nil {
			return err
		}
	}

	if err := writeOutputs(cfg, current); err != nil {
		return err
	}

	usage, cost := acc.Totals()
	fmt.Printf("\nTokens: %d prompt, %d completion. Estimated cost: $%.4f\n",
		usage.PromptTokens, usage.CompletionTokens, cost)

	if cfg.Metrics.LogPath != "" {
		if err := metrics.AppendLog(cfg.Metrics.LogPath, acc.Records()); err != nil {
			fmt.Fprintf(os.Stderr, "warning: writing metrics log: %v\n", err)
		}
	}
	return nil
}

func inputFromFlags(url, file, csv string) (*service.ConvertInput, error) {
	given := 0
	for _, v := range []string{url, file, csv} {
		if v != "" {
			given++
		}
	}
	if given != 1 {
		return nil, fmt.Errorf("exactly one of -url, -file, or -csv is required")
	}
	switch {
	case url != "":
		return &service.ConvertInput{Source: url, Kind: domain.SourceURL}, nil
	case file != "":
		return &service.ConvertInput{Source: file, Kind: domain.SourceFile}, nil
	default:
		return &service.ConvertInput{Source: csv, Kind: domain.SourceCSV}, nil
	}
}

// feedbackLoop applies refinement rounds read from stdin until the user
// submits an empty line. A failed round keeps the current schema.
func feedbackLoop(ctx context.Context, refineSvc service.RefineService, current *domain.Schema, acc *metrics.Accumulator) (*domain.Schema, error) {
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("\nFeedback (empty line to finish): ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return current, nil
		}
		feedback := strings.TrimSpace(line)
		if feedback == "" {
			return current, nil
		}

		result, roundAcc, err := refineSvc.Apply(ctx, current, feedback)
		acc.Merge(roundAcc)
		if err != nil {
			fmt.Fprintf(os.Stderr, "refinement failed, keeping current schema: %v\n", err)
			continue
		}
		current = result.Schema
		if len(result.ChangedColumns) == 0 {
			fmt.Println("No columns changed.")
		} else {
			fmt.Printf("Changed columns: %s\n", strings.Join(result.ChangedColumns, ", "))
		}
		fmt.Print("\n" + format.Text(current))
	}
}

func writeOutputs(cfg *config.Config, s *domain.Schema) error {
	if err := os.MkdirAll(cfg.Output.Dir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	base := s.Name
	if base == "" {
		base = "schema"
	}
	for _, f := range cfg.Output.Formats {
		of := domain.OutputFormat(strings.ToLower(strings.TrimSpace(f)))
		path := filepath.Join(cfg.Output.Dir, base+"."+format.Extension(of))
		file, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
		if err := format.Write(file, s, of); err != nil {
			_ = file.Close()
			return fmt.Errorf("writing %s: %w", path, err)
		}
		if err := file.Close(); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
	}
	return nil
}
