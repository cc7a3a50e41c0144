// Package config loads application settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	RateLimitStoreMemory = "memory"
	RateLimitStoreRedis  = "redis"
)

type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Reset     ResetConfig
	SMTP      SMTPConfig
	JWT       JWTConfig
	Account   AccountConfig
}

type ServerConfig struct {
	Port        string
	Environment string
}

type LogConfig struct {
	Level  string
	Format string
}

type PostgresConfig struct {
	URL         string
	AutoMigrate bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RateLimitConfig holds the fixed-window policies applied to the reset endpoints.
type RateLimitConfig struct {
	Store          string
	Window         time.Duration
	EmailMax       int
	OriginEmailMax int
	ConfirmMax     int
	GCInterval     time.Duration
}

type ResetConfig struct {
	TokenTTL           time.Duration
	StepTimeout        time.Duration
	MinResponseTime    time.Duration
	SweepInterval      time.Duration
	SurfaceStoreErrors bool
}

type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	FromName   string
	UseSSL     bool
	RequireTLS bool
	RetryBase  time.Duration

	AppName    string
	AppBaseURL string
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

// AccountConfig lists emails that register with the admin role.
type AccountConfig struct {
	AdminEmails []string
}

func (c Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var errs []string
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	redisDB, err := getInt("REDIS_DB", 0)
	collect(err)

	rateLimit, err := buildRateLimitConfig()
	collect(err)

	reset, err := buildResetConfig()
	collect(err)

	smtpCfg, err := buildSMTPConfig()
	collect(err)

	autoMigrate, err := getBool("POSTGRES_AUTO_MIGRATE", true)
	collect(err)

	jwtTTL, err := getDuration("JWT_TTL", 24*time.Hour)
	collect(err)

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}

	cfg := Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("APP_ENV", "development"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Postgres: PostgresConfig{
			URL:         os.Getenv("POSTGRES_URL"),
			AutoMigrate: autoMigrate,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		RateLimit: rateLimit,
		Reset:     reset,
		SMTP:      smtpCfg,
		JWT:       JWTConfig{Secret: os.Getenv("JWT_SECRET"), TTL: jwtTTL},
		Account:   AccountConfig{AdminEmails: getEmailList("ADMIN_EMAILS")},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that single getters cannot.
func (c Config) Validate() error {
	switch c.RateLimit.Store {
	case RateLimitStoreMemory, RateLimitStoreRedis:
	default:
		return fmt.Errorf("unsupported RATE_LIMIT_STORE: %s", c.RateLimit.Store)
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}
	if c.RateLimit.EmailMax < 1 || c.RateLimit.OriginEmailMax < 1 || c.RateLimit.ConfirmMax < 1 {
		return fmt.Errorf("rate limit maxima must be at least 1")
	}
	if c.Reset.TokenTTL <= 0 {
		return fmt.Errorf("RESET_TOKEN_TTL must be positive")
	}
	if c.Reset.StepTimeout <= 0 {
		return fmt.Errorf("RESET_STEP_TIMEOUT must be positive")
	}
	if c.IsProduction() && c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	return nil
}

func buildRateLimitConfig() (RateLimitConfig, error) {
	window, err := getDuration("RATE_LIMIT_WINDOW", 15*time.Minute)
	if err != nil {
		return RateLimitConfig{}, err
	}
	emailMax, err := getInt("RATE_LIMIT_EMAIL_MAX", 5)
	if err != nil {
		return RateLimitConfig{}, err
	}
	originEmailMax, err := getInt("RATE_LIMIT_ORIGIN_EMAIL_MAX", 3)
	if err != nil {
		return RateLimitConfig{}, err
	}
	confirmMax, err := getInt("RATE_LIMIT_CONFIRM_MAX", 10)
	if err != nil {
		return RateLimitConfig{}, err
	}
	gcInterval, err := getDuration("RATE_LIMIT_GC_INTERVAL", time.Minute)
	if err != nil {
		return RateLimitConfig{}, err
	}

	return RateLimitConfig{
		Store:          strings.ToLower(getEnv("RATE_LIMIT_STORE", RateLimitStoreMemory)),
		Window:         window,
		EmailMax:       emailMax,
		OriginEmailMax: originEmailMax,
		ConfirmMax:     confirmMax,
		GCInterval:     gcInterval,
	}, nil
}

func buildResetConfig() (ResetConfig, error) {
	ttl, err := getDuration("RESET_TOKEN_TTL", 15*time.Minute)
	if err != nil {
		return ResetConfig{}, err
	}
	stepTimeout, err := getDuration("RESET_STEP_TIMEOUT", 5*time.Second)
	if err != nil {
		return ResetConfig{}, err
	}
	minResponse, err := getDuration("RESET_MIN_RESPONSE_TIME", 300*time.Millisecond)
	if err != nil {
		return ResetConfig{}, err
	}
	sweepInterval, err := getDuration("RESET_SWEEP_INTERVAL", 10*time.Minute)
	if err != nil {
		return ResetConfig{}, err
	}
	surface, err := getBool("RESET_SURFACE_STORE_ERRORS", false)
	if err != nil {
		return ResetConfig{}, err
	}

	return ResetConfig{
		TokenTTL:           ttl,
		StepTimeout:        stepTimeout,
		MinResponseTime:    minResponse,
		SweepInterval:      sweepInterval,
		SurfaceStoreErrors: surface,
	}, nil
}

func buildSMTPConfig() (SMTPConfig, error) {
	port, err := getInt("SMTP_PORT", 587)
	if err != nil {
		return SMTPConfig{}, err
	}
	useSSL, err := getBool("SMTP_USE_SSL", false)
	if err != nil {
		return SMTPConfig{}, err
	}
	requireTLS, err := getBool("SMTP_REQUIRE_TLS", true)
	if err != nil {
		return SMTPConfig{}, err
	}
	retryBase, err := getDuration("SMTP_RETRY_BASE", 500*time.Millisecond)
	if err != nil {
		return SMTPConfig{}, err
	}

	return SMTPConfig{
		Host:       getEnv("SMTP_HOST", "smtp.gmail.com"),
		Port:       port,
		Username:   os.Getenv("SMTP_USERNAME"),
		Password:   os.Getenv("SMTP_PASSWORD"),
		From:       getEnv("SMTP_FROM", "no-reply@studiq.app"),
		FromName:   getEnv("SMTP_FROM_NAME", "StudIQ"),
		UseSSL:     useSSL,
		RequireTLS: requireTLS,
		RetryBase:  retryBase,
		AppName:    getEnv("APP_NAME", "StudIQ"),
		AppBaseURL: getEnv("APP_BASE_URL", "http://localhost:3000"),
	}, nil
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getBool(key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

// getEmailList reads a comma separated list, lower-cased, blanks dropped.
func getEmailList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if email := strings.ToLower(strings.TrimSpace(part)); email != "" {
			out = append(out, email)
		}
	}
	return out
}

// getDuration accepts Go duration strings ("15m", "500ms").
func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return v, nil
}
