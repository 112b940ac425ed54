package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Environment    string   `env:"ENVIRONMENT" envDefault:"development"`
	ServiceVersion string   `env:"SERVICE_VERSION" envDefault:"0.1.0"`
	Port           string   `env:"PORT" envDefault:"8080"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
	DatabaseURL    string   `env:"DATABASE_URL"`
	RedisURL       string   `env:"REDIS_URL"`
	KafkaBrokers   []string `env:"KAFKA_BROKERS" envSeparator:","`
	OTLPEndpoint   string   `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	PaymentsOn     bool     `env:"PAYMENTS_ENABLED" envDefault:"true"`

	Log      Log
	SMTP     SMTP `envPrefix:"SMTP_"`
	Store    Store
	Auth     Auth
	Razorpay Razorpay `envPrefix:"RAZORPAY_"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type SMTP struct {
	Host   string `env:"HOST"`
	Port   int    `env:"PORT" envDefault:"587"`
	User   string `env:"USER"`
	Pass   string `env:"PASS"`
	Secure bool   `env:"SECURE"`
}

// Enabled reports whether a mail transport is configured.
func (s SMTP) Enabled() bool {
	return s.Host != ""
}

type Store struct {
	Name         string `env:"STORE_NAME" envDefault:"Storefront"`
	FromEmail    string `env:"FROM_EMAIL"`
	AdminEmail   string `env:"ADMIN_EMAIL"`
	OrdersEmail  string `env:"ORDERS_EMAIL"`
	ReturnsEmail string `env:"RETURNS_EMAIL"`
}

type Auth struct {
	AdminSecret string        `env:"ADMIN_SECRET"`
	TokenSecret string        `env:"TOKEN_SECRET"`
	TokenTTL    time.Duration `env:"TOKEN_TTL" envDefault:"168h"`
	OTPTTL      time.Duration `env:"OTP_TTL" envDefault:"5m"`
	// OTPVerifyAttempts is the burst of verify-otp calls allowed per email;
	// one more is allowed each minute.
	OTPVerifyAttempts int `env:"OTP_VERIFY_ATTEMPTS" envDefault:"5"`
}

type Razorpay struct {
	KeyID     string `env:"KEY_ID"`
	KeySecret string `env:"KEY_SECRET"`
	BaseURL   string `env:"BASE_URL" envDefault:"https://api.razorpay.com"`
}

// PaymentsEnabled reports whether online payments can be taken.
func (c *Config) PaymentsEnabled() bool {
	return c.PaymentsOn && c.Razorpay.KeyID != "" && c.Razorpay.KeySecret != ""
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	return Parse(env.Options{})
}

// Parse builds a Config from the environment described by opts.
func Parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	c.Store.AdminEmail = strings.ToLower(strings.TrimSpace(c.Store.AdminEmail))
	if c.Store.OrdersEmail == "" {
		c.Store.OrdersEmail = c.Store.AdminEmail
	}
	if c.Store.ReturnsEmail == "" {
		c.Store.ReturnsEmail = c.Store.AdminEmail
	}
	if c.Store.FromEmail == "" {
		c.Store.FromEmail = c.SMTP.User
	}
	c.AllowedOrigins = trimAll(c.AllowedOrigins)
	c.KafkaBrokers = trimAll(c.KafkaBrokers)
}

// MemoryMode reports whether stores should be kept in process memory.
func (c *Config) MemoryMode() bool {
	return c.DatabaseURL == ""
}

func trimAll(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
