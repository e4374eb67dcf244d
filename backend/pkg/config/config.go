package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ambled/genealogy-neo4j-import/backend/internal/constants"
	apperrors "github.com/ambled/genealogy-neo4j-import/backend/pkg/errors"
)

// Store drivers
const (
	StoreNeo4j  = "neo4j"
	StoreBadger = "badger"
)

// Config holds all application configuration
type Config struct {
	// App
	Env      string
	LogLevel string
	Port     string

	// Store
	StoreDriver string

	// Neo4j
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string

	// Badger. BadgerMemTableMB bounds the size of one import, as Badger
	// caps a transaction at 15% of the memtable.
	BadgerPath       string
	BadgerMemTableMB int

	// Import
	Locale       string
	DryRun       bool
	EnsureSchema bool

	// S3 input files
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("log.level", "")
	v.SetDefault("server.port", "8080")
	v.SetDefault("store.driver", StoreNeo4j)
	v.SetDefault("neo4j.uri", "bolt://localhost:7687")
	v.SetDefault("neo4j.user", "neo4j")
	v.SetDefault("neo4j.password", "password")
	v.SetDefault("neo4j.database", "neo4j")
	v.SetDefault("badger.path", "./data/graph")
	v.SetDefault("badger.memtable_mb", 256)
	v.SetDefault("import.locale", constants.LocaleEnglish)
	v.SetDefault("import.dry_run", false)
	v.SetDefault("import.ensure_schema", true)
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
}

// Load reads configuration from .env, an optional config file, environment
// variables and whatever flags the caller bound on v, in increasing priority.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	SetDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("gedimport")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg := &Config{
		Env:              v.GetString("env"),
		LogLevel:         v.GetString("log.level"),
		Port:             v.GetString("server.port"),
		StoreDriver:      strings.ToLower(v.GetString("store.driver")),
		Neo4jURI:         v.GetString("neo4j.uri"),
		Neo4jUser:        v.GetString("neo4j.user"),
		Neo4jPassword:    v.GetString("neo4j.password"),
		Neo4jDatabase:    v.GetString("neo4j.database"),
		BadgerPath:       v.GetString("badger.path"),
		BadgerMemTableMB: v.GetInt("badger.memtable_mb"),
		Locale:           strings.ToLower(v.GetString("import.locale")),
		DryRun:           v.GetBool("import.dry_run"),
		EnsureSchema:     v.GetBool("import.ensure_schema"),
		S3Region:         v.GetString("s3.region"),
		S3Endpoint:       v.GetString("s3.endpoint"),
		S3AccessKey:      v.GetString("s3.access_key"),
		S3SecretKey:      v.GetString("s3.secret_key"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreNeo4j:
		if c.Neo4jURI == "" {
			return apperrors.NewConfigMissingRequired("NEO4J_URI")
		}
		if c.Neo4jUser == "" {
			return apperrors.NewConfigMissingRequired("NEO4J_USER")
		}
		if c.Neo4jPassword == "" {
			return apperrors.NewConfigMissingRequired("NEO4J_PASSWORD")
		}
	case StoreBadger:
		if c.BadgerPath == "" {
			return apperrors.NewConfigMissingRequired("BADGER_PATH")
		}
		if c.BadgerMemTableMB < 0 {
			return apperrors.NewConfigValidationFailed("BADGER_MEMTABLE_MB", "must not be negative")
		}
	default:
		return apperrors.NewConfigValidationFailed("STORE_DRIVER", fmt.Sprintf("unknown driver %q", c.StoreDriver))
	}

	if c.Locale != constants.LocaleEnglish && c.Locale != constants.LocaleNorwegian {
		return apperrors.NewConfigValidationFailed("IMPORT_LOCALE", fmt.Sprintf("unsupported locale %q", c.Locale))
	}
	return nil
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
