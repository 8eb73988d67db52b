package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Oracle    OracleConfig
	Inference InferenceConfig
	Output    OutputConfig
	History   HistoryConfig
	Metrics   MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// ModelProfile holds the model preset for one oracle call site.
type ModelProfile struct {
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// OracleConfig holds settings for the text-generation service.
type OracleConfig struct {
	APIKey      string `mapstructure:"api_key"`
	BaseURL     string `mapstructure:"base_url"`
	TimeoutSecs int    `mapstructure:"timeout_secs"`
	MaxRetries  int    `mapstructure:"max_retries"`

	// Selection reasoning tolerates nondeterminism; generation and
	// refinement request temperature 0 for reproducibility.
	Selection  ModelProfile `mapstructure:"selection"`
	Generation ModelProfile `mapstructure:"generation"`
	Refinement ModelProfile `mapstructure:"refinement"`
}

// InferenceConfig holds tuning knobs for the type inference engine.
type InferenceConfig struct {
	ConfidenceFloor   float64 `mapstructure:"confidence_floor"`
	MajorityThreshold float64 `mapstructure:"majority_threshold"`
	SampleRows        int     `mapstructure:"sample_rows"`
	Concurrency       int     `mapstructure:"concurrency"`
	MaxChunkTokens    int     `mapstructure:"max_chunk_tokens"`
}

// OutputConfig holds schema output settings.
type OutputConfig struct {
	Formats []string `mapstructure:"formats"`
	Dir     string   `mapstructure:"dir"`
}

// HistoryConfig holds run history persistence settings.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DBPath  string `mapstructure:"db_path"`
}

// MetricsConfig holds metrics reporting settings.
type MetricsConfig struct {
	LogPath string `mapstructure:"log_path"`
}

// Load reads configuration from environment variables with the SCHEMAFORGE_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCHEMAFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.environment", "development")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file_path", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)

	// Oracle defaults
	v.SetDefault("oracle.api_key", "")
	v.SetDefault("oracle.base_url", "https://api.openai.com/v1")
	v.SetDefault("oracle.timeout_secs", 120)
	v.SetDefault("oracle.max_retries", 2)
	v.SetDefault("oracle.selection.model", "gpt-4o-mini")
	v.SetDefault("oracle.selection.temperature", 0.7)
	v.SetDefault("oracle.selection.max_tokens", 1000)
	v.SetDefault("oracle.generation.model", "gpt-4o")
	v.SetDefault("oracle.generation.temperature", 0.0)
	v.SetDefault("oracle.generation.max_tokens", 4000)
	v.SetDefault("oracle.refinement.model", "gpt-4o")
	v.SetDefault("oracle.refinement.temperature", 0.0)
	v.SetDefault("oracle.refinement.max_tokens", 4000)

	// Inference defaults
	v.SetDefault("inference.confidence_floor", 0.5)
	v.SetDefault("inference.majority_threshold", 0.6)
	v.SetDefault("inference.sample_rows", 5)
	v.SetDefault("inference.concurrency", 4)
	v.SetDefault("inference.max_chunk_tokens", 12000)

	// Output defaults
	v.SetDefault("output.formats", "json")
	v.SetDefault("output.dir", ".")

	// History defaults
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.db_path", "schemaforge.db")

	// Metrics defaults
	v.SetDefault("metrics.log_path", "")

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                    "SCHEMAFORGE_SERVER_PORT",
		"server.read_timeout":            "SCHEMAFORGE_SERVER_READ_TIMEOUT",
		"server.write_timeout":           "SCHEMAFORGE_SERVER_WRITE_TIMEOUT",
		"server.environment":             "SCHEMAFORGE_SERVER_ENVIRONMENT",
		"log.level":                      "SCHEMAFORGE_LOG_LEVEL",
		"log.file_path":                  "SCHEMAFORGE_LOG_FILE_PATH",
		"log.max_size_mb":                "SCHEMAFORGE_LOG_MAX_SIZE_MB",
		"log.max_backups":                "SCHEMAFORGE_LOG_MAX_BACKUPS",
		"oracle.api_key":                 "SCHEMAFORGE_ORACLE_API_KEY",
		"oracle.base_url":                "SCHEMAFORGE_ORACLE_BASE_URL",
		"oracle.timeout_secs":            "SCHEMAFORGE_ORACLE_TIMEOUT_SECS",
		"oracle.max_retries":             "SCHEMAFORGE_ORACLE_MAX_RETRIES",
		"oracle.selection.model":         "SCHEMAFORGE_ORACLE_SELECTION_MODEL",
		"oracle.selection.temperature":   "SCHEMAFORGE_ORACLE_SELECTION_TEMPERATURE",
		"oracle.selection.max_tokens":    "SCHEMAFORGE_ORACLE_SELECTION_MAX_TOKENS",
		"oracle.generation.model":        "SCHEMAFORGE_ORACLE_GENERATION_MODEL",
		"oracle.generation.temperature":  "SCHEMAFORGE_ORACLE_GENERATION_TEMPERATURE",
		"oracle.generation.max_tokens":   "SCHEMAFORGE_ORACLE_GENERATION_MAX_TOKENS",
		"oracle.refinement.model":        "SCHEMAFORGE_ORACLE_REFINEMENT_MODEL",
		"oracle.refinement.temperature":  "SCHEMAFORGE_ORACLE_REFINEMENT_TEMPERATURE",
		"oracle.refinement.max_tokens":   "SCHEMAFORGE_ORACLE_REFINEMENT_MAX_TOKENS",
		"inference.confidence_floor":     "SCHEMAFORGE_INFERENCE_CONFIDENCE_FLOOR",
		"inference.majority_threshold":   "SCHEMAFORGE_INFERENCE_MAJORITY_THRESHOLD",
		"inference.sample_rows":          "SCHEMAFORGE_INFERENCE_SAMPLE_ROWS",
		"inference.concurrency":          "SCHEMAFORGE_INFERENCE_CONCURRENCY",
		"inference.max_chunk_tokens":     "SCHEMAFORGE_INFERENCE_MAX_CHUNK_TOKENS",
		"output.formats":                 "SCHEMAFORGE_OUTPUT_FORMATS",
		"output.dir":                     "SCHEMAFORGE_OUTPUT_DIR",
		"history.enabled":                "SCHEMAFORGE_HISTORY_ENABLED",
		"history.db_path":                "SCHEMAFORGE_HISTORY_DB_PATH",
		"metrics.log_path":               "SCHEMAFORGE_METRICS_LOG_PATH",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Hosting platforms set a PORT env var. Use it if SCHEMAFORGE_SERVER_PORT
	// is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("SCHEMAFORGE_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
	}
	cfg.Log = LogConfig{
		Level:      v.GetString("log.level"),
		FilePath:   v.GetString("log.file_path"),
		MaxSizeMB:  v.GetInt("log.max_size_mb"),
		MaxBackups: v.GetInt("log.max_backups"),
	}
	cfg.Oracle = OracleConfig{
		APIKey:      v.GetString("oracle.api_key"),
		BaseURL:     v.GetString("oracle.base_url"),
		TimeoutSecs: v.GetInt("oracle.timeout_secs"),
		MaxRetries:  v.GetInt("oracle.max_retries"),
		Selection: ModelProfile{
			Model:       v.GetString("oracle.selection.model"),
			Temperature: v.GetFloat64("oracle.selection.temperature"),
			MaxTokens:   v.GetInt("oracle.selection.max_tokens"),
		},
		Generation: ModelProfile{
			Model:       v.GetString("oracle.generation.model"),
			Temperature: v.GetFloat64("oracle.generation.temperature"),
			MaxTokens:   v.GetInt("oracle.generation.max_tokens"),
		},
		Refinement: ModelProfile{
			Model:       v.GetString("oracle.refinement.model"),
			Temperature: v.GetFloat64("oracle.refinement.temperature"),
			MaxTokens:   v.GetInt("oracle.refinement.max_tokens"),
		},
	}
	cfg.Inference = InferenceConfig{
		ConfidenceFloor:   v.GetFloat64("inference.confidence_floor"),
		MajorityThreshold: v.GetFloat64("inference.majority_threshold"),
		SampleRows:        v.GetInt("inference.sample_rows"),
		Concurrency:       v.GetInt("inference.concurrency"),
		MaxChunkTokens:    v.GetInt("inference.max_chunk_tokens"),
	}

	// Parse output formats from comma-separated string
	var formats []string
	for _, f := range strings.Split(v.GetString("output.formats"), ",") {
		f = strings.TrimSpace(f)
		if f != "" {
			formats = append(formats, f)
		}
	}
	cfg.Output = OutputConfig{
		Formats: formats,
		Dir:     v.GetString("output.dir"),
	}

	cfg.History = HistoryConfig{
		Enabled: v.GetBool("history.enabled"),
		DBPath:  v.GetString("history.db_path"),
	}
	cfg.Metrics = MetricsConfig{
		LogPath: v.GetString("metrics.log_path"),
	}

	return cfg, nil
}
