// Package config loads Probegate configuration from environment
// variables and resolves the XDG directories that hold cookie profiles
// and prompt guides.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the Probegate server.
type Config struct {
	ListenAddr string
	Version    string
	LogLevel   string
	Database   DatabaseConfig
	HTTP       HTTPConfig
	Embeddings EmbeddingsConfig
	Cookies    CookiesConfig
	Telemetry  TelemetryConfig
}

type DatabaseConfig struct {
	// Driver selects the store backend: "postgres" or "memory". When
	// empty, postgres is used if DATABASE_URL is set; otherwise the
	// server runs without storage and persistence tools report
	// store_unavailable.
	Driver         string
	URL            string
	MaxConnections int
}

// HTTPConfig controls the outbound request executor.
type HTTPConfig struct {
	Timeout        time.Duration // default per-request timeout
	MaxTimeout     time.Duration // hard cap for the timeout argument
	ProxyURL       string
	MaxRedirects   int
	MaxBodyBytes   int
	VerifyTLS      bool
	ExtraSensitive []string // additional request headers to redact
}

type EmbeddingsConfig struct {
	// Driver selects the embedder: "ollama" or "static".
	Driver    string
	OllamaURL string
	Model     string
}

type CookiesConfig struct {
	// ConfigPath overrides the default cookie_sessions.yaml location.
	ConfigPath string
	// DataDir overrides the directory cookie files must live under.
	DataDir string
	// DefaultTTL applies to profiles without an explicit cache_ttl.
	DefaultTTL time.Duration
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		ListenAddr: envStr("PROBEGATE_LISTEN_ADDR", ""),
		Version:    envStr("PROBEGATE_VERSION", "0.2.0"),
		LogLevel:   envStr("LOG_LEVEL", "info"),
		Database: DatabaseConfig{
			Driver:         envStr("STORE_DRIVER", ""),
			URL:            envStr("DATABASE_URL", ""),
			MaxConnections: envInt("DATABASE_MAX_CONNECTIONS", 16),
		},
		HTTP: HTTPConfig{
			Timeout:      envDur("HTTP_TIMEOUT", 30*time.Second),
			MaxTimeout:   envDur("HTTP_MAX_TIMEOUT", 300*time.Second),
			ProxyURL:     envStr("HTTP_PROXY_URL", ""),
			MaxRedirects: envInt("HTTP_MAX_REDIRECTS", 10),
			MaxBodyBytes: envInt("HTTP_MAX_BODY_BYTES", 1<<20),
			VerifyTLS:    envBool("HTTP_VERIFY_TLS", true),
		},
		Embeddings: EmbeddingsConfig{
			Driver:    envStr("EMBEDDINGS_DRIVER", "ollama"),
			OllamaURL: envStr("OLLAMA_URL", "http://localhost:11434"),
			Model:     envStr("EMBEDDING_MODEL", "all-minilm"),
		},
		Cookies: CookiesConfig{
			ConfigPath: envStr("COOKIE_SESSIONS_PATH", ""),
			DataDir:    envStr("COOKIE_DATA_DIR", ""),
			DefaultTTL: envDur("COOKIE_CACHE_TTL", 5*time.Minute),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "probegate"),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDur(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return fallback
}
