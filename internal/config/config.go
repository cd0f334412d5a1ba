package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Values injected at build time, e.g.
//
//	go build -ldflags "-X github.com/clinicdesk/clinicdesk/internal/config.BuildStoreURL=https://..."
var (
	BuildStoreURL string
	BuildStoreKey string
)

const defaultStoreURL = "http://localhost:54321"

type Config struct {
	Port           string        `mapstructure:"PORT"`
	Env            string        `mapstructure:"ENV"`
	StoreBackend   string        `mapstructure:"STORE_BACKEND"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32         `mapstructure:"DB_MIN_CONNS"`
	StoreURL       string        `mapstructure:"STORE_URL"`
	StoreKey       string        `mapstructure:"STORE_KEY"`
	StoreTimeout   time.Duration `mapstructure:"STORE_TIMEOUT"`
	RedisURL       string        `mapstructure:"REDIS_URL"`
	LockTTL        time.Duration `mapstructure:"LOCK_TTL"`
	AuthIssuer     string        `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string        `mapstructure:"AUTH_AUDIENCE"`
	AuthJWKSURL    string        `mapstructure:"AUTH_JWKS_URL"`
	AuthSigningKey string        `mapstructure:"AUTH_SIGNING_KEY"`
	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	GenAIURL       string        `mapstructure:"GENAI_URL"`
	GenAIAPIKey    string        `mapstructure:"GENAI_API_KEY"`
	GenAIModel     string        `mapstructure:"GENAI_MODEL"`
}

var keys = []string{
	"PORT", "ENV", "STORE_BACKEND", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"STORE_URL", "STORE_KEY", "STORE_TIMEOUT", "REDIS_URL", "LOCK_TTL",
	"AUTH_ISSUER", "AUTH_AUDIENCE", "AUTH_JWKS_URL", "AUTH_SIGNING_KEY", "CORS_ORIGINS",
	"GENAI_URL", "GENAI_API_KEY", "GENAI_MODEL",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORE_BACKEND", "postgres")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("STORE_TIMEOUT", "15s")
	v.SetDefault("LOCK_TTL", "10s")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("GENAI_MODEL", "gemini-1.5-flash")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	cfg.StoreURL = firstNonEmpty(cfg.StoreURL, BuildStoreURL, defaultStoreURL)
	cfg.StoreKey = firstNonEmpty(cfg.StoreKey, BuildStoreKey)
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.IsDev() {
		log.Println("WARNING: running in development mode; all requests are treated as admin")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the selected store backend has what it needs.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND is \"postgres\"")
		}
	case "rest":
		if c.StoreKey == "" {
			return fmt.Errorf("STORE_KEY is required when STORE_BACKEND is \"rest\"")
		}
	case "memory":
	default:
		return fmt.Errorf("STORE_BACKEND must be \"postgres\", \"rest\", or \"memory\", got %q", c.StoreBackend)
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive")
	}
	if !c.IsDev() && c.AuthIssuer == "" && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_ISSUER or AUTH_SIGNING_KEY must be set outside development (ENV=%q)", c.Env)
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
