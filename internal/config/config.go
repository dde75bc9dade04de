package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Mode string

const (
	ModeWorker Mode = "worker"
	ModeAPI    Mode = "api"
)

// Config holds service configuration shared by the API server and the price worker.
type Config struct {
	DatabaseURL string
	Port        string

	// SessionSecretKey may be empty at load time; issuing a session token
	// without it fails at call time.
	SessionSecretKey    string
	SessionTokenExpiry  string
	IdentityProviderKey string

	RedisURL        string
	HistoryCacheTTL time.Duration

	PriceProviderName     string
	PriceProviderAPIKey   string
	PriceProviderBaseURL  string
	PriceRefreshInterval  time.Duration
	PriceProviderCurrency string
	// PriceProviderRateLimit is the maximum provider requests per second.
	PriceProviderRateLimit float64
}

func LoadForWorker() (Config, error) {
	return load(ModeWorker)
}

func LoadForAPI() (Config, error) {
	return load(ModeAPI)
}

func load(mode Mode) (Config, error) {
	cfg := Config{
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		Port:                  envDefault("PORT", "8080"),
		SessionSecretKey:      os.Getenv("SESSION_SECRET_KEY"),
		SessionTokenExpiry:    envDefault("SESSION_TOKEN_EXPIRY", "1h"),
		IdentityProviderKey:   os.Getenv("IDENTITY_PROVIDER_KEY"),
		RedisURL:              os.Getenv("REDIS_URL"),
		PriceProviderName:     os.Getenv("PRICE_PROVIDER_NAME"),
		PriceProviderAPIKey:   os.Getenv("PRICE_PROVIDER_API_KEY"),
		PriceProviderBaseURL:  os.Getenv("PRICE_PROVIDER_BASE_URL"),
		PriceProviderCurrency: envDefault("PRICE_PROVIDER_CURRENCY", "usd"),
	}

	var validationErrs []string
	requireEnv("DATABASE_URL", cfg.DatabaseURL, &validationErrs)

	switch mode {
	case ModeWorker:
		requireEnv("PRICE_PROVIDER_NAME", cfg.PriceProviderName, &validationErrs)
		requireEnv("PRICE_PROVIDER_API_KEY", cfg.PriceProviderAPIKey, &validationErrs)
		cfg.PriceRefreshInterval = envDuration("PRICE_REFRESH_INTERVAL", 24*time.Hour, &validationErrs)
		cfg.PriceProviderRateLimit = envFloat("PRICE_PROVIDER_RATE_LIMIT", 0.5, &validationErrs)
	case ModeAPI:
		cfg.HistoryCacheTTL = envDuration("HISTORY_CACHE_TTL", 5*time.Minute, &validationErrs)
	default:
		validationErrs = append(validationErrs, "unknown service mode")
	}

	if len(validationErrs) > 0 {
		return cfg, errors.New(strings.Join(validationErrs, "; "))
	}

	return cfg, nil
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration, errs *[]string) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		*errs = append(*errs, key+" must be a positive duration")
		return fallback
	}
	return d
}

func envFloat(key string, fallback float64, errs *[]string) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		*errs = append(*errs, key+" must be a non-negative number")
		return fallback
	}
	return v
}

// LoadDotEnv loads variables from the given .env files without overriding the
// process environment. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

func requireEnv(name, value string, errs *[]string) {
	if strings.TrimSpace(value) == "" {
		*errs = append(*errs, name+" is required")
	}
}
