// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// ストアの種類。
const (
	StoreDriverFile   = "file"
	StoreDriverSQLite = "sqlite"
	StoreDriverMySQL  = "mysql"
)

// Config はアプリケーション設定を表す。
type Config struct {
	Port          string `env:"PORT" envDefault:"8080"`
	DeviceName    string `env:"DEVICE_NAME" envDefault:"SmartLock"`
	DataDir       string `env:"DATA_DIR" envDefault:"./data"`
	StoreDriver   string `env:"STORE_DRIVER" envDefault:"file"`
	DatabaseURL   string `env:"DATABASE_URL"`
	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"./migrations"`

	KMSKeyName         string `env:"KMS_KEY_NAME"`
	GoogleCloudProject string `env:"GOOGLE_CLOUD_PROJECT"`

	RelockInterval time.Duration `env:"RELOCK_INTERVAL" envDefault:"7500ms"`
	ActuatorPath   string        `env:"ACTUATOR_PATH"`
	LogTimezone    string        `env:"LOG_TIMEZONE" envDefault:"Local"`
	// FactoryTime はRTC未設定時に使うUNIX時刻。
	FactoryTime int64  `env:"FACTORY_TIME" envDefault:"1648016868"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"INFO"`

	OtelEnabled      bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OtelEndpoint     string  `env:"OTEL_ENDPOINT" envDefault:"localhost:4317"`
	OtelServiceName  string  `env:"OTEL_SERVICE_NAME" envDefault:"smartlock-service"`
	OtelSamplingRate float64 `env:"OTEL_SAMPLING_RATE" envDefault:"1.0"`
}

// Load は環境変数から設定を読み込む。
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate は設定値の整合性を検証する。
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverFile:
	case StoreDriverSQLite, StoreDriverMySQL:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for store driver %q", c.StoreDriver)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.RelockInterval <= 0 {
		return fmt.Errorf("RELOCK_INTERVAL must be positive, got %s", c.RelockInterval)
	}
	return nil
}

// Location は監査ログのタイムスタンプに使うタイムゾーンを返す。
func (c *Config) Location() (*time.Location, error) {
	if c.LogTimezone == "" || c.LogTimezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.LogTimezone)
	if err != nil {
		return nil, fmt.Errorf("loading LOG_TIMEZONE: %w", err)
	}
	return loc, nil
}
