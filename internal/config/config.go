package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Gateway   GatewayConfig
	Services  ServicesConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Trace     TraceConfig
}

type GatewayConfig struct {
	Addr           string
	MaxUploadBytes int64
	StaticDir      string
}

type ServicesConfig struct {
	ExtractionURL string
	EnrichmentURL string
	Timeout       time.Duration
}

type AuthConfig struct {
	Enabled  bool
	Username string
	Password string
}

type RateLimitConfig struct {
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	RequestsPerMinute int
}

func (r RateLimitConfig) Enabled() bool {
	return strings.TrimSpace(r.RedisAddr) != ""
}

type TraceConfig struct {
	Exporter     string
	OTLPEndpoint string
	OTLPInsecure bool
}

func Load() Config {
	authPassword := env("GATEWAY_AUTH_PASSWORD", "")

	return Config{
		Gateway: GatewayConfig{
			Addr:           env("JPLENS_GATEWAY_ADDR", ":3000"),
			MaxUploadBytes: int64(envInt("JPLENS_MAX_UPLOAD_MB", 10)) << 20,
			StaticDir:      env("JPLENS_STATIC_DIR", ""),
		},
		Services: ServicesConfig{
			ExtractionURL: env("JPLENS_EXTRACTION_URL", "http://127.0.0.1:8000"),
			EnrichmentURL: env("JPLENS_ENRICHMENT_URL", "http://127.0.0.1:8001"),
			Timeout:       time.Duration(envInt("JPLENS_DOWNSTREAM_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Auth: AuthConfig{
			Enabled:  authPassword != "",
			Username: env("GATEWAY_AUTH_USERNAME", "jplens"),
			Password: authPassword,
		},
		RateLimit: RateLimitConfig{
			RedisAddr:         env("REDIS_ADDR", ""),
			RedisPassword:     env("REDIS_PASSWORD", ""),
			RedisDB:           envInt("REDIS_DB", 0),
			RequestsPerMinute: envInt("RATE_LIMIT_RPM", 60),
		},
		Trace: TraceConfig{
			Exporter:     env("JPLENS_TRACE_EXPORTER", "none"),
			OTLPEndpoint: env("JPLENS_OTLP_ENDPOINT", ""),
			OTLPInsecure: envBool("JPLENS_OTLP_INSECURE", false),
		},
	}
}

// Validate rejects service URLs without an explicit scheme rather than
// guessing http vs https from the host pattern.
func (c Config) Validate() error {
	if err := validateServiceURL("JPLENS_EXTRACTION_URL", c.Services.ExtractionURL); err != nil {
		return err
	}
	if err := validateServiceURL("JPLENS_ENRICHMENT_URL", c.Services.EnrichmentURL); err != nil {
		return err
	}
	if c.Gateway.MaxUploadBytes <= 0 {
		return fmt.Errorf("JPLENS_MAX_UPLOAD_MB must be positive")
	}
	if c.Services.Timeout <= 0 {
		return fmt.Errorf("JPLENS_DOWNSTREAM_TIMEOUT_SECONDS must be positive")
	}
	return nil
}

func validateServiceURL(name, raw string) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", name, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must include an explicit http or https scheme, got %q", name, raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host, got %q", name, raw)
	}
	return nil
}

func env(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
