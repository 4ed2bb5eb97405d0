// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// App is the full service configuration.
type App struct {
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`

	DB DB

	JWTSecret    string        `envconfig:"JWT_SECRET"`
	JWTExpireMin int           `envconfig:"JWT_EXPIRE_MIN" default:"60"`
	LogLevel     string        `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty    bool          `envconfig:"LOG_PRETTY" default:"false"`
	Timezone     string        `envconfig:"FACILITY_TIMEZONE" default:"UTC"`
	Currency     string        `envconfig:"CURRENCY" default:"INR"`
	CORSOrigin   string        `envconfig:"CORS_ORIGIN" default:"*"`
	SweepEvery   time.Duration `envconfig:"SWEEP_INTERVAL" default:"60s"`
	PendingTTL   time.Duration `envconfig:"PENDING_RETENTION" default:"5m"`

	Rabbit  Rabbit
	Gateway Gateway
}

// DB holds PostgreSQL connection settings.
type DB struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASSWORD" default:"postgres"`
	Name     string `envconfig:"DB_NAME" default:"groundzero"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	MaxConns int32  `envconfig:"DB_MAX_CONNS" default:"20"`
}

// DSN builds a libpq-compatible connection string.
func (c DB) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Rabbit configures the event exchange. An empty URL disables messaging.
type Rabbit struct {
	URL          string `envconfig:"RABBIT_URL"`
	Exchange     string `envconfig:"EVENTS_EXCHANGE" default:"booking.exchange"`
	PaymentQueue string `envconfig:"PAYMENT_QUEUE"`
}

// Gateway configures Mercado Pago. An empty token selects manual capture.
type Gateway struct {
	AccessToken   string `envconfig:"MP_ACCESS_TOKEN"`
	WebhookSecret string `envconfig:"MP_WEBHOOK_SECRET"`
	PublicBaseURL string `envconfig:"PUBLIC_BASE_URL" default:"http://localhost:8080"`
}

// Load reads .env when present, then the environment.
func Load() (App, error) {
	_ = godotenv.Load()

	var c App
	if err := envconfig.Process("", &c); err != nil {
		return App{}, fmt.Errorf("load config: %w", err)
	}
	return c, nil
}

// Location resolves the facility timezone.
func (c App) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("facility timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// RequireJWT fails when no signing secret is configured.
func (c App) RequireJWT() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return nil
}
