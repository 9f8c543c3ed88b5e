package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces every environment variable read by the service.
const EnvPrefix = "MILK"

const (
	BackendREST     = "rest"
	BackendPostgres = "postgres"
)

// Config holds runtime configuration parsed from environment variables.
type Config struct {
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080" validate:"required"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s" validate:"gt=0"`
	CORSOrigins     []string      `envconfig:"CORS_ORIGINS"`
	Log             LogConfig
	Store           StoreConfig
	DB              DBConfig
	Redis           RedisConfig
	Session         SessionConfig
}

type LogConfig struct {
	Level string `envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Mode  string `envconfig:"MODE" default:"production" validate:"oneof=production development"`
	File  string `envconfig:"FILE"`
}

// StoreConfig selects and addresses the remote table store.
type StoreConfig struct {
	Backend   string        `envconfig:"BACKEND" default:"rest" validate:"oneof=rest postgres"`
	URL       string        `envconfig:"URL" validate:"omitempty,url"`
	AnonKey   string        `envconfig:"ANON_KEY"`
	JWTSecret string        `envconfig:"JWT_SECRET"`
	Timeout   time.Duration `envconfig:"TIMEOUT" default:"15s" validate:"gt=0"`
}

type DBConfig struct {
	DSN      string `envconfig:"DSN"`
	MaxConns int32  `envconfig:"MAX_CONNS" default:"10" validate:"min=1"`
}

type RedisConfig struct {
	URL string `envconfig:"URL"`
}

type SessionConfig struct {
	TTL time.Duration `envconfig:"TTL" default:"720h" validate:"gt=0"`
}

// FromEnv loads an optional .env file, then builds Config from MILK_* variables.
func FromEnv() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// StoreConfigured reports whether the selected backend has everything it needs.
// An unconfigured store is a supported demo mode, not an error.
func (c Config) StoreConfigured() bool {
	switch c.Store.Backend {
	case BackendPostgres:
		return c.DB.DSN != ""
	default:
		return c.Store.URL != "" && c.Store.AnonKey != ""
	}
}
