package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pesio-ai/be-ap-reconciler/internal/errors"
)

// Config is the full service configuration
type Config struct {
	Service        ServiceConfig        `yaml:"service"`
	Server         ServerConfig         `yaml:"server"`
	Database       DatabaseConfig       `yaml:"database"`
	NATS           NATSConfig           `yaml:"nats"`
	Extraction     ExtractionConfig     `yaml:"extraction"`
	Explanation    ExplanationConfig    `yaml:"explanation"`
	Catalog        CatalogConfig        `yaml:"catalog"`
	Reconciliation ReconciliationConfig `yaml:"reconciliation"`
	Batch          BatchConfig          `yaml:"batch"`
}

// ServiceConfig identifies the running service
type ServiceConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`
}

// ServerConfig holds HTTP and gRPC listener settings
type ServerConfig struct {
	Port            int           `yaml:"port"`
	GRPCPort        int           `yaml:"grpc_port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
}

// DatabaseConfig holds Postgres settings. Persistence is optional.
type DatabaseConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	User        string        `yaml:"user"`
	Password    string        `yaml:"password"`
	Database    string        `yaml:"database"`
	SSLMode     string        `yaml:"ssl_mode"`
	MaxConns    int32         `yaml:"max_conns"`
	MinConns    int32         `yaml:"min_conns"`
	MaxConnTime time.Duration `yaml:"max_conn_time"`
	MaxIdleTime time.Duration `yaml:"max_idle_time"`
	HealthCheck time.Duration `yaml:"health_check"`
}

// NATSConfig configures decision event publishing
type NATSConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// ExtractionConfig points at the document understanding service
type ExtractionConfig struct {
	GRPCAddr string        `yaml:"grpc_addr"`
	Timeout  time.Duration `yaml:"timeout"`
}

// ExplanationConfig configures the chat-completions explanation client
type ExplanationConfig struct {
	Enabled     bool          `yaml:"enabled"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// CatalogConfig says where the purchase order catalog comes from
type CatalogConfig struct {
	Source string `yaml:"source"` // file | postgres
	Path   string `yaml:"path"`
}

// ReconciliationConfig tunes the decision pipeline
type ReconciliationConfig struct {
	ExactMatchConfidence   float64 `yaml:"exact_match_confidence"`
	CalibrationDivisor     float64 `yaml:"calibration_divisor"`
	ItemMatchThreshold     int     `yaml:"item_match_threshold"`
	LowConfidenceThreshold float64 `yaml:"low_confidence_threshold"`
	PriceTolerance         string  `yaml:"price_tolerance"`
	QuantityTolerance      string  `yaml:"quantity_tolerance"`
}

// BatchConfig tunes batch processing
type BatchConfig struct {
	Concurrency int    `yaml:"concurrency"`
	OutputDir   string `yaml:"output_dir"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "be-ap-reconciler",
			Version:     "0.1.0",
			Environment: "development",
			LogLevel:    "info",
		},
		Server: ServerConfig{
			Port:            8086,
			GRPCPort:        9086,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Host:        "localhost",
			Port:        5432,
			User:        "postgres",
			Database:    "ap_reconciler",
			SSLMode:     "disable",
			MaxConns:    10,
			MinConns:    2,
			MaxConnTime: time.Hour,
			MaxIdleTime: 30 * time.Minute,
			HealthCheck: time.Minute,
		},
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			SubjectPrefix: "reconciliation",
		},
		Extraction: ExtractionConfig{
			Timeout: 60 * time.Second,
		},
		Explanation: ExplanationConfig{
			BaseURL:     "https://api.groq.com/openai/v1",
			Model:       "llama-3.1-8b-instant",
			Temperature: 0.1,
			MaxTokens:   2048,
			Timeout:     30 * time.Second,
		},
		Catalog: CatalogConfig{
			Source: "file",
			Path:   "purchase_orders.json",
		},
		Reconciliation: ReconciliationConfig{
			ExactMatchConfidence:   0.99,
			CalibrationDivisor:     300,
			ItemMatchThreshold:     70,
			LowConfidenceThreshold: 0.6,
			PriceTolerance:         "0",
			QuantityTolerance:      "0",
		},
		Batch: BatchConfig{
			Concurrency: 4,
			OutputDir:   "outputs",
		},
	}
}

// Load builds the configuration from defaults, the YAML file named by
// RECONCILER_CONFIG (if any) and environment overrides.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("RECONCILER_CONFIG"))
}

// LoadFile is Load with an explicit YAML path; an empty path skips the file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, fmt.Sprintf("failed to read config %s", path))
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, fmt.Sprintf("failed to parse config %s", path))
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides file values with environment variables
func applyEnv(cfg *Config) {
	cfg.Service.Environment = getEnv("ENVIRONMENT", cfg.Service.Environment)
	cfg.Service.LogLevel = getEnv("LOG_LEVEL", cfg.Service.LogLevel)

	cfg.Server.Port = getEnvInt("HTTP_PORT", cfg.Server.Port)
	cfg.Server.GRPCPort = getEnvInt("GRPC_PORT", cfg.Server.GRPCPort)

	cfg.Database.Enabled = getEnvBool("DB_ENABLED", cfg.Database.Enabled)
	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvInt("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Database = getEnv("DB_NAME", cfg.Database.Database)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", cfg.Database.SSLMode)

	cfg.NATS.Enabled = getEnvBool("NATS_ENABLED", cfg.NATS.Enabled)
	cfg.NATS.URL = getEnv("NATS_URL", cfg.NATS.URL)

	cfg.Extraction.GRPCAddr = getEnv("EXTRACTION_GRPC_URL", cfg.Extraction.GRPCAddr)

	cfg.Explanation.Enabled = getEnvBool("EXPLANATION_ENABLED", cfg.Explanation.Enabled)
	cfg.Explanation.BaseURL = getEnv("LLM_BASE_URL", cfg.Explanation.BaseURL)
	cfg.Explanation.APIKey = getEnv("LLM_API_KEY", cfg.Explanation.APIKey)
	cfg.Explanation.Model = getEnv("LLM_MODEL", cfg.Explanation.Model)

	cfg.Catalog.Source = getEnv("CATALOG_SOURCE", cfg.Catalog.Source)
	cfg.Catalog.Path = getEnv("CATALOG_PATH", cfg.Catalog.Path)

	cfg.Reconciliation.PriceTolerance = getEnv("PRICE_TOLERANCE", cfg.Reconciliation.PriceTolerance)
	cfg.Reconciliation.QuantityTolerance = getEnv("QUANTITY_TOLERANCE", cfg.Reconciliation.QuantityTolerance)

	cfg.Batch.Concurrency = getEnvInt("BATCH_CONCURRENCY", cfg.Batch.Concurrency)
	cfg.Batch.OutputDir = getEnv("OUTPUT_DIR", cfg.Batch.OutputDir)
}

// Validate rejects settings the pipeline cannot run with
func (c *Config) Validate() error {
	r := c.Reconciliation
	if r.ExactMatchConfidence < 0 || r.ExactMatchConfidence > 1 {
		return errors.InvalidInput("reconciliation.exact_match_confidence", "must be between 0 and 1")
	}
	if r.CalibrationDivisor <= 0 {
		return errors.InvalidInput("reconciliation.calibration_divisor", "must be positive")
	}
	if r.ItemMatchThreshold < 0 || r.ItemMatchThreshold > 100 {
		return errors.InvalidInput("reconciliation.item_match_threshold", "must be between 0 and 100")
	}
	if r.LowConfidenceThreshold < 0 || r.LowConfidenceThreshold > 1 {
		return errors.InvalidInput("reconciliation.low_confidence_threshold", "must be between 0 and 1")
	}
	if _, err := r.Options(); err != nil {
		return err
	}
	if c.Batch.Concurrency < 1 {
		return errors.InvalidInput("batch.concurrency", "must be at least 1")
	}
	switch c.Catalog.Source {
	case "file", "postgres":
	default:
		return errors.InvalidInput("catalog.source", fmt.Sprintf("unknown catalog source '%s'", c.Catalog.Source))
	}
	if c.Catalog.Source == "postgres" && !c.Database.Enabled {
		return errors.InvalidInput("catalog.source", "postgres catalog requires database.enabled")
	}
	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as int or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.Atoi(value); err == nil {
			return result
		}
	}
	return defaultValue
}

// getEnvBool gets an environment variable as bool or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.ParseBool(value); err == nil {
			return result
		}
	}
	return defaultValue
}
