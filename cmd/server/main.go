package main

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"

	"schemaforge/internal/config"
	"schemaforge/internal/handler"
	"schemaforge/internal/logging"
	"schemaforge/internal/oracle"
	"schemaforge/internal/port"
	"schemaforge/internal/repository/sqlite"
	"schemaforge/internal/router"
	"schemaforge/internal/service"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
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

	// Initialize services
	convertSvc := service.NewConvertService(oracleClient, store, cfg)
	refineSvc := service.NewRefineService(oracleClient, store, cfg)
	historySvc := service.NewHistoryService(store)

	// Initialize handlers
	convertH := handler.NewConvertHandler(convertSvc, refineSvc, historySvc)
	healthH := handler.NewHealthHandler(db)

	// Setup router
	r := router.Setup(convertH, healthH)

	log.Printf("Server starting on %s", cfg.Server.Port)
	if err := r.Run(cfg.Server.Port); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}
