package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName        = "FXWallet"
	defaultAppEnv         = "development"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultShutdownDelay  = 10 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour
	defaultFxCacheTTL     = time.Hour
	defaultFxFetchTimeout = 5 * time.Second
	defaultFxAPIURL       = "https://v6.exchangerate-api.com/v6"
	defaultStarterSet     = "USD,EUR,NGN"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName           string
	Env               string
	Port              string
	LogLevel          string
	DatabaseURL       string
	RedisURL          string
	FxAPIURL          string
	FxAPIKey          string
	FxCacheTTL        time.Duration
	FxFetchTimeout    time.Duration
	StarterCurrencies []string
	ShutdownPeriod    time.Duration
	IdempotencyTTL    time.Duration
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:     getEnv("APP_NAME", defaultAppName),
		Env:         getEnv("APP_ENV", defaultAppEnv),
		Port:        getEnv("PORT", defaultPort),
		LogLevel:    strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		FxAPIURL:    getEnv("FX_API_URL", defaultFxAPIURL),
		FxAPIKey:    os.Getenv("FX_API_KEY"),
	}

	var err error
	if cfg.FxCacheTTL, err = durationEnv("FX_CACHE_TTL", defaultFxCacheTTL); err != nil {
		return Config{}, err
	}
	if cfg.FxFetchTimeout, err = durationEnv("FX_FETCH_TIMEOUT", defaultFxFetchTimeout); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownPeriod, err = durationEnv("SHUTDOWN_TIMEOUT", defaultShutdownDelay); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationEnv("IDEMPOTENCY_TTL", defaultIdempotencyTTL); err != nil {
		return Config{}, err
	}

	for _, code := range strings.Split(getEnv("STARTER_CURRENCIES", defaultStarterSet), ",") {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code != "" {
			cfg.StarterCurrencies = append(cfg.StarterCurrencies, code)
		}
	}
	if len(cfg.StarterCurrencies) == 0 {
		return Config{}, fmt.Errorf("STARTER_CURRENCIES must list at least one currency")
	}

	if !isDev(cfg.Env) {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.Env)
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.Env)
		}
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the configured environment is a local development one.
func (c Config) IsDev() bool {
	return isDev(c.Env)
}

func isDev(env string) bool {
	switch strings.ToLower(env) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	if seconds, err := strconv.Atoi(v); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
