package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Storage selects the persistence backend.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type ServerConfig struct {
	Addr     string `yaml:"addr"`
	APIToken string `yaml:"apiToken"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// ConnectionString builds the lib/pq connection string.
func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Password, d.Name)
}

// URL builds the database URL used by the migration tool.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type EngineConfig struct {
	// IncomeThreshold is the minimum inflow treated as income, as a
	// decimal string.
	IncomeThreshold string `yaml:"incomeThreshold"`
	// HistoryLimit caps the in-memory execution log. 0 means unbounded.
	HistoryLimit int `yaml:"historyLimit"`
	// SeedTemplates creates example rules on startup when missing.
	SeedTemplates bool `yaml:"seedTemplates"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Engine   EngineConfig   `yaml:"engine"`
	Storage  string         `yaml:"storage"`
}

// Default returns the configuration used when no file or env vars are set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:     ":8080",
			APIToken: "dev-token",
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     "5432",
			User:     "postgres",
			Password: "postgres",
			Name:     "autofund",
		},
		Engine: EngineConfig{
			IncomeThreshold: "100",
			HistoryLimit:    0,
		},
		Storage: StoragePostgres,
	}
}

// Load reads configuration in ascending precedence: defaults, then the
// YAML file at path (if it exists), then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if _, err := cfg.IncomeThreshold(); err != nil {
		return nil, err
	}
	if cfg.Storage != StoragePostgres && cfg.Storage != StorageMemory {
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}

	return cfg, nil
}

// IncomeThreshold parses the configured income threshold.
func (c *Config) IncomeThreshold() (decimal.Decimal, error) {
	threshold, err := decimal.NewFromString(c.Engine.IncomeThreshold)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid income threshold %q: %w", c.Engine.IncomeThreshold, err)
	}
	return threshold, nil
}

func applyEnv(cfg *Config) {
	setFromEnv(&cfg.Server.Addr, "SERVER_ADDR")
	setFromEnv(&cfg.Server.APIToken, "API_TOKEN")
	setFromEnv(&cfg.Database.Host, "DB_HOST")
	setFromEnv(&cfg.Database.Port, "DB_PORT")
	setFromEnv(&cfg.Database.User, "DB_USER")
	setFromEnv(&cfg.Database.Password, "DB_PASSWORD")
	setFromEnv(&cfg.Database.Name, "DB_NAME")
	setFromEnv(&cfg.Engine.IncomeThreshold, "INCOME_THRESHOLD")
	setFromEnv(&cfg.Storage, "STORAGE")

	if raw := os.Getenv("SEED_TEMPLATES"); raw != "" {
		if parsed, err := strconv.ParseBool(raw); err == nil {
			cfg.Engine.SeedTemplates = parsed
		}
	}
}

func setFromEnv(target *string, key string) {
	if value := os.Getenv(key); value != "" {
		*target = value
	}
}
