package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultPort           = "8080"
	defaultDatabaseURL    = "bikerental.db"
	defaultJWTSecret      = "change-me-jwt-secret"
	defaultJWTTTL         = "24h"
	defaultCurrency       = "usd"
	defaultSuccessURL     = "http://localhost:3000/bookings/success"
	defaultCancelURL      = "http://localhost:3000/bookings/cancel"
	defaultPaymentWindow  = "15m"
	defaultSweepInterval  = "5m"
	defaultBusySlotTTL    = "2m"
	defaultUploadDir      = "uploads"
	defaultCompanyName    = "Bike Rental"
	defaultAllowedOrigins = "http://localhost:3000"
)

type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	JWTSecret string
	JWTTTL    time.Duration

	StripeSecretKey     string
	StripeWebhookSecret string
	CheckoutSuccessURL  string
	CheckoutCancelURL   string
	Currency            string

	BookingPaymentWindow time.Duration
	BookingSweepInterval time.Duration
	BusySlotCacheTTL     time.Duration

	RedisURL string

	S3Bucket      string
	S3Region      string
	S3PublicURL   string
	UploadDir     string
	PublicBaseURL string

	CompanyName    string
	AllowedOrigins []string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = strings.TrimSpace(os.Getenv("ENV"))
	}
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.Port = strings.TrimSpace(getEnv("PORT", defaultPort))
	cfg.DatabaseURL = strings.TrimSpace(getEnv("DATABASE_URL", defaultDatabaseURL))
	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", defaultJWTSecret))

	cfg.StripeSecretKey = strings.TrimSpace(os.Getenv("STRIPE_SECRET_KEY"))
	cfg.StripeWebhookSecret = strings.TrimSpace(os.Getenv("STRIPE_WEBHOOK_SECRET"))
	cfg.CheckoutSuccessURL = strings.TrimSpace(getEnv("CHECKOUT_SUCCESS_URL", defaultSuccessURL))
	cfg.CheckoutCancelURL = strings.TrimSpace(getEnv("CHECKOUT_CANCEL_URL", defaultCancelURL))
	cfg.Currency = strings.ToLower(strings.TrimSpace(getEnv("PAYMENT_CURRENCY", defaultCurrency)))

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))

	cfg.S3Bucket = strings.TrimSpace(os.Getenv("AWS_S3_BUCKET"))
	cfg.S3Region = strings.TrimSpace(os.Getenv("AWS_REGION"))
	cfg.S3PublicURL = strings.TrimSpace(os.Getenv("AWS_S3_PUBLIC_URL"))
	cfg.UploadDir = strings.TrimSpace(getEnv("UPLOAD_DIR", defaultUploadDir))
	cfg.PublicBaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("PUBLIC_BASE_URL")), "/")

	cfg.CompanyName = strings.TrimSpace(getEnv("COMPANY_NAME", defaultCompanyName))
	cfg.AllowedOrigins = splitList(getEnv("CORS_ALLOWED_ORIGINS", defaultAllowedOrigins))

	var err error
	if cfg.JWTTTL, err = parseDurationEnv("JWT_TTL", defaultJWTTTL); err != nil {
		return nil, err
	}
	if cfg.BookingPaymentWindow, err = parseDurationEnv("BOOKING_PAYMENT_WINDOW", defaultPaymentWindow); err != nil {
		return nil, err
	}
	if cfg.BookingSweepInterval, err = parseDurationEnv("BOOKING_SWEEP_INTERVAL", defaultSweepInterval); err != nil {
		return nil, err
	}
	if cfg.BusySlotCacheTTL, err = parseDurationEnv("BUSY_SLOT_CACHE_TTL", defaultBusySlotTTL); err != nil {
		return nil, err
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsProdLike() bool { return isProdLike(c.AppEnv) }

func validateConfig(cfg *Config) error {
	if cfg.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be > 0")
	}
	if cfg.BookingPaymentWindow <= 0 {
		return fmt.Errorf("BOOKING_PAYMENT_WINDOW must be > 0")
	}
	if cfg.BookingSweepInterval <= 0 {
		return fmt.Errorf("BOOKING_SWEEP_INTERVAL must be > 0")
	}
	if cfg.BusySlotCacheTTL < 0 {
		return fmt.Errorf("BUSY_SLOT_CACHE_TTL must be >= 0")
	}
	if len(cfg.Currency) != 3 {
		return fmt.Errorf("PAYMENT_CURRENCY must be a three letter ISO code")
	}
	if cfg.S3Bucket != "" && cfg.S3Region == "" {
		return fmt.Errorf("AWS_REGION is required when AWS_S3_BUCKET is set")
	}

	if isProdLike(cfg.AppEnv) {
		if isEmptyOrDefault(cfg.JWTSecret, defaultJWTSecret) {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
		if cfg.StripeSecretKey == "" {
			return fmt.Errorf("in prod/release STRIPE_SECRET_KEY must be set")
		}
		if cfg.StripeWebhookSecret == "" {
			return fmt.Errorf("in prod/release STRIPE_WEBHOOK_SECRET must be set")
		}
		if !strings.HasPrefix(cfg.DatabaseURL, "postgres://") && !strings.HasPrefix(cfg.DatabaseURL, "postgresql://") {
			return fmt.Errorf("in prod/release DATABASE_URL must point at PostgreSQL")
		}
	}

	return nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
