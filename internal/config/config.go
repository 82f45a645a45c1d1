package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Port               string        `mapstructure:"port"`
	GinMode            string        `mapstructure:"gin_mode"`
	DBDriver           string        `mapstructure:"db_driver"`
	DatabaseURL        string        `mapstructure:"database_url"`
	RedisURL           string        `mapstructure:"redis_url"`
	JWTSecret          string        `mapstructure:"jwt_secret"`
	InstanceID         string        `mapstructure:"instance_id"`
	SessionIdleTimeout time.Duration `mapstructure:"session_idle_timeout"`
	SweepInterval      time.Duration `mapstructure:"sweep_interval"`
	LogLevel           string        `mapstructure:"log_level"`
}

// Load читает .env.local, затем .env, затем переменные окружения
func Load() (*Config, error) {
	if err := godotenv.Load(".env.local"); err != nil {
		if err := godotenv.Load(); err != nil {
			logrus.Info(".env not found, using environment variables")
		}
	}
	return fromViper(viper.New())
}

func fromViper(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()

	v.SetDefault("port", "8080")
	v.SetDefault("gin_mode", "release")
	v.SetDefault("db_driver", DriverPostgres)
	v.SetDefault("database_url", "")
	v.SetDefault("redis_url", "")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("instance_id", "")
	v.SetDefault("session_idle_timeout", "2m")
	v.SetDefault("sweep_interval", "30s")
	v.SetDefault("log_level", "info")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for db driver %q", c.DBDriver)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	if c.SessionIdleTimeout < 0 {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT must not be negative")
	}
	if c.SessionIdleTimeout > 0 && c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive when idle sweep is enabled")
	}
	return nil
}

// HasRedis без Redis не работают черный список токенов, relay и asynq
func (c *Config) HasRedis() bool {
	return c.RedisURL != ""
}

// SweepEnabled очистка зависших сессий включена
func (c *Config) SweepEnabled() bool {
	return c.SessionIdleTimeout > 0
}
