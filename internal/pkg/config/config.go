package config

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port      string `env:"PORT,      default=8080"`
	Env       string `env:"ENV,       default=development" validate:"oneof=development test staging production"`
	JWTSecret string `env:"JWT_SECRET"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`
	Store     string `env:"STORE,     default=memory" validate:"oneof=memory mongo"`

	TokenRole string        `env:"TOKEN_ROLE, default=editor" validate:"oneof=admin editor reader"`
	TokenTTL  time.Duration `env:"TOKEN_TTL,  default=24h"    validate:"gt=0"`

	Client ClientConfig
	Mongo  MongoConfig
	Redis  RedisConfig
}

// ClientConfig addresses the backend the sync engine talks to.
type ClientConfig struct {
	BaseURL   string        `env:"SCRIBBLE_API_URL,    default=http://localhost:8080" validate:"required,url"`
	APIPrefix string        `env:"SCRIBBLE_API_PREFIX, default=/api/r1"               validate:"startswith=/"`
	Timeout   time.Duration `env:"SCRIBBLE_TIMEOUT,    default=10s"                   validate:"gt=0"`
	Subject   string        `env:"SCRIBBLE_SUBJECT,    default=scribble"`
	Role      string        `env:"SCRIBBLE_ROLE,       default=editor"                validate:"oneof=admin editor reader"`
	Token     string        `env:"SCRIBBLE_TOKEN"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=scribble"`
}

type RedisConfig struct {
	Enabled bool   `env:"REDIS_ENABLED, default=false"`
	Addr    string `env:"REDIS_ADDR,    default=localhost:6379"`
	DB      int    `env:"REDIS_DB,      default=0"`
	Channel string `env:"REDIS_CHANNEL, default=scribble:saved" validate:"required"`
}

// IsProduction reports whether pretty console logging should be off.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "staging"
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	cfg, err := LoadWith(context.Background(), envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

// LoadWith reads configuration through l and validates it.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	return &cfg, nil
}
