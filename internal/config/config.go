// Package config loads settings for the API server and quitctl.
//
// Sources are applied in order, later ones winning: built-in defaults, the
// TOML file named by KANSO_CONFIG, a .env file in the working directory, and
// finally process environment variables.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
	_ "time/tzdata" // containers often ship without zoneinfo

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
)

type Config struct {
	Port     string `toml:"port" validate:"required,numeric"`
	Timezone string `toml:"timezone" validate:"required,timezone"`
	// RemoteTimeout bounds every remote read and write.
	RemoteTimeout    time.Duration `toml:"remote_timeout" validate:"gt=0"`
	DefaultPackPrice float64       `toml:"default_pack_price" validate:"gte=0"`
	Currency         string        `toml:"currency" validate:"required"`
	QueueSize        int           `toml:"queue_size" validate:"gt=0"`
	// RateLimit is requests per minute per client; 0 disables the limiter.
	RateLimit int `toml:"rate_limit" validate:"gte=0"`

	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	Auth     AuthConfig     `toml:"auth"`
	Local    LocalConfig    `toml:"local"`
}

type DatabaseConfig struct {
	Host     string `toml:"host"`
	Port     string `toml:"port" validate:"omitempty,numeric"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Name     string `toml:"name"`
	SSLMode  string `toml:"sslmode" validate:"oneof=disable allow prefer require verify-ca verify-full"`
}

// Enabled reports whether a remote database is configured at all.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != "" && d.Name != ""
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Host     string `toml:"host"`
	Port     string `toml:"port" validate:"omitempty,numeric"`
	Password string `toml:"password"`
	DB       int    `toml:"db" validate:"gte=0,lte=15"`
}

func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

type AuthConfig struct {
	Secret   string        `toml:"secret"`
	Issuer   string        `toml:"issuer" validate:"required"`
	TokenTTL time.Duration `toml:"token_ttl" validate:"gt=0"`
}

type LocalConfig struct {
	Driver string `toml:"driver" validate:"oneof=sqlite badger"`
	Path   string `toml:"path" validate:"required"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	return &Config{
		Port:             "8080",
		Timezone:         "Asia/Seoul",
		RemoteTimeout:    3 * time.Second,
		DefaultPackPrice: 4500,
		Currency:         "KRW",
		QueueSize:        100,
		RateLimit:        100,
		Database: DatabaseConfig{
			Port:    "5432",
			SSLMode: "disable",
		},
		Redis: RedisConfig{
			Port: "6379",
		},
		Auth: AuthConfig{
			Issuer:   "kanso-quit-engine",
			TokenTTL: 24 * time.Hour,
		},
		Local: LocalConfig{
			Driver: DriverSQLite,
			Path:   home + "/.kanso/quit.db",
		},
	}
}

// Load builds the configuration from every source and validates it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[CONFIG] Ignoring unreadable .env: %v", err)
	}
	return LoadFile(os.Getenv("KANSO_CONFIG"))
}

// LoadFile is Load without the .env step. An empty path skips the TOML file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Location resolves the configured timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) applyEnv() error {
	setString(&c.Port, "PORT")
	setString(&c.Timezone, "TIMEZONE")
	setString(&c.Currency, "CURRENCY")

	setString(&c.Database.Host, "DB_HOST")
	setString(&c.Database.Port, "DB_PORT")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.Name, "DB_NAME")
	setString(&c.Database.SSLMode, "DB_SSLMODE")

	setString(&c.Redis.Host, "REDIS_HOST")
	setString(&c.Redis.Port, "REDIS_PORT")
	setString(&c.Redis.Password, "REDIS_PASSWORD")

	setString(&c.Auth.Secret, "JWT_SECRET")
	setString(&c.Auth.Issuer, "JWT_ISSUER")

	setString(&c.Local.Driver, "LOCAL_DRIVER")
	setString(&c.Local.Path, "LOCAL_PATH")

	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REDIS_DB: %w", err)
		}
		c.Redis.DB = n
	}
	if v := os.Getenv("QUEUE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("QUEUE_SIZE: %w", err)
		}
		c.QueueSize = n
	}
	if v := os.Getenv("RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT: %w", err)
		}
		c.RateLimit = n
	}
	if v := os.Getenv("REMOTE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("REMOTE_TIMEOUT: %w", err)
		}
		c.RemoteTimeout = d
	}
	if v := os.Getenv("JWT_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("JWT_TTL: %w", err)
		}
		c.Auth.TokenTTL = d
	}
	if v := os.Getenv("DEFAULT_PACK_PRICE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("DEFAULT_PACK_PRICE: %w", err)
		}
		c.DefaultPackPrice = f
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
