package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env  string
	Port string

	MongoURI string
	DBName   string

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	StripeSecretKey        string
	StripeWebhookSecret    string
	SubscriptionPriceCents int64

	FrontendURL string
	UploadDir   string

	MailjetAPIKey    string
	MailjetSecretKey string
	MailFrom         string
	MailFromName     string

	ReminderSchedule string
}

// Load reads .env (if present) and the process environment.
// It returns the warning from godotenv separately so callers can log it.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	envErr := godotenv.Load(files...)

	cfg := &Config{
		Env:                    getenv("APP_ENV", "development"),
		Port:                   getenv("PORT", "8080"),
		MongoURI:               os.Getenv("MONGO_URI"),
		DBName:                 getenv("DB_NAME", "realestate"),
		JWTSecret:              os.Getenv("JWT_SECRET"),
		RedisAddr:              getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		StripeSecretKey:        os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret:    os.Getenv("STRIPE_WEBHOOK_SECRET"),
		FrontendURL:            getenv("FRONTEND_URL", "http://localhost:5173"),
		UploadDir:              getenv("UPLOAD_DIR", "uploads"),
		MailjetAPIKey:          os.Getenv("MAILJET_API_KEY"),
		MailjetSecretKey:       os.Getenv("MAILJET_SECRET_KEY"),
		MailFrom:               getenv("MAIL_FROM", "no-reply@realestate.local"),
		MailFromName:           getenv("MAIL_FROM_NAME", "Real Estate"),
		ReminderSchedule:       getenv("REMINDER_SCHEDULE", "0 9 * * *"),
		AccessTokenTTL:         24 * time.Hour,
		RefreshTokenTTL:        7 * 24 * time.Hour,
		SubscriptionPriceCents: 1000,
	}

	var err error
	if cfg.RedisDB, err = getint("REDIS_DB", 0); err != nil {
		return nil, err
	}
	price, err := getint("SUBSCRIPTION_PRICE_CENTS", 1000)
	if err != nil {
		return nil, err
	}
	cfg.SubscriptionPriceCents = int64(price)
	if v := os.Getenv("ACCESS_TOKEN_TTL"); v != "" {
		if cfg.AccessTokenTTL, err = time.ParseDuration(v); err != nil {
			return nil, fmt.Errorf("invalid ACCESS_TOKEN_TTL: %w", err)
		}
	}
	if v := os.Getenv("REFRESH_TOKEN_TTL"); v != "" {
		if cfg.RefreshTokenTTL, err = time.ParseDuration(v); err != nil {
			return nil, fmt.Errorf("invalid REFRESH_TOKEN_TTL: %w", err)
		}
	}

	if cfg.MongoURI == "" {
		return nil, fmt.Errorf("MONGO_URI environment variable not set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable not set")
	}

	if envErr != nil {
		return cfg, &EnvFileError{Err: envErr}
	}
	return cfg, nil
}

// EnvFileError means the .env file could not be read; the returned config is still usable.
type EnvFileError struct{ Err error }

func (e *EnvFileError) Error() string { return "loading .env: " + e.Err.Error() }

func (e *EnvFileError) Unwrap() error { return e.Err }

func (c *Config) Production() bool { return c.Env == "production" }

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
