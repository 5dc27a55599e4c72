// Package config loads and validates the typed configuration value the rest
// of the engine is constructed with. Nothing outside this package reads the
// ambient environment after Load returns.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the immutable, validated configuration for one process.
type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	CORS      CORSConfig
	AWS       AWSConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Session   SessionConfig
	Audio     AudioConfig
}

// ServerConfig controls the fiber HTTP listener.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// WebSocketConfig controls the gofiber/contrib websocket upgrade.
type WebSocketConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
}

// CORSConfig controls the cors middleware.
type CORSConfig struct {
	AllowOrigins string
	AllowHeaders string
}

// AWSConfig holds the shared credentials/region for ASR/MT/TTS adapters.
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// PostgresConfig is optional; empty DSN disables the audit adapter.
type PostgresConfig struct {
	DSN string
}

// RedisConfig is optional; empty Addr keeps the in-memory stores.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AudioConfig validates the handshake header the transport gateway reads
// off the first binary frame of every audio connection.
type AudioConfig struct {
	ValidSampleRates  []uint32
	MaxChannels       uint16
	ValidBitDepths    []uint16
	ChannelBufferSize int
	HandshakeTimeout  time.Duration
}

// SessionConfig carries every tunable named in the wire/config contract.
type SessionConfig struct {
	SessionMaxDuration         time.Duration
	MaxListenersPerSession     int
	ConnectionRefreshMinutes   int
	ConnectionWarningMinutes   int
	ConnectionIdleTimeout      time.Duration
	PartialResultsEnabled      bool
	MinStabilityThreshold      float64
	MaxBufferTimeout           time.Duration
	PauseThreshold             time.Duration
	OrphanTimeout              time.Duration
	MaxRatePerSecond           int
	DedupCacheTTL              time.Duration
	TranslationCacheMaxEntries int
	TranslationCacheTTL        time.Duration
	MaxConcurrentBroadcasts    int
	RateLimiterWindow          time.Duration
	SweepInterval              time.Duration
}

// Load reads environment variables (optionally from a local .env via
// godotenv), applies documented defaults, and validates ranges. It returns an
// error instead of silently clamping an out-of-range value.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8080"),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  getEnvInt("WS_READ_BUFFER_SIZE", 4096),
			WriteBufferSize: getEnvInt("WS_WRITE_BUFFER_SIZE", 4096),
		},
		CORS: CORSConfig{
			AllowOrigins: getEnv("CORS_ALLOW_ORIGINS", "*"),
			AllowHeaders: getEnv("CORS_ALLOW_HEADERS", "Origin, Content-Type, Accept, Authorization"),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		},
		Postgres: PostgresConfig{
			DSN: getEnv("POSTGRES_DSN", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Session: SessionConfig{
			SessionMaxDuration:         time.Duration(getEnvInt("SESSION_MAX_DURATION_HOURS", 2)) * time.Hour,
			MaxListenersPerSession:     getEnvInt("MAX_LISTENERS_PER_SESSION", 500),
			ConnectionRefreshMinutes:   getEnvInt("CONNECTION_REFRESH_MINUTES", 100),
			ConnectionWarningMinutes:   getEnvInt("CONNECTION_WARNING_MINUTES", 105),
			ConnectionIdleTimeout:      time.Duration(getEnvInt("CONNECTION_IDLE_TIMEOUT_SECONDS", 120)) * time.Second,
			PartialResultsEnabled:      getEnvBool("PARTIAL_RESULTS_ENABLED", true),
			MinStabilityThreshold:      getEnvFloat("MIN_STABILITY_THRESHOLD", 0.85),
			MaxBufferTimeout:           time.Duration(getEnvInt("MAX_BUFFER_TIMEOUT", 5)) * time.Second,
			PauseThreshold:             time.Duration(getEnvInt("PAUSE_THRESHOLD", 2)) * time.Second,
			OrphanTimeout:              time.Duration(getEnvInt("ORPHAN_TIMEOUT", 15)) * time.Second,
			MaxRatePerSecond:           getEnvInt("MAX_RATE_PER_SECOND", 5),
			DedupCacheTTL:              time.Duration(getEnvInt("DEDUP_CACHE_TTL", 10)) * time.Second,
			TranslationCacheMaxEntries: getEnvInt("TRANSLATION_CACHE_MAX_ENTRIES", 10000),
			TranslationCacheTTL:        time.Duration(getEnvInt("TRANSLATION_CACHE_TTL", 3600)) * time.Second,
			MaxConcurrentBroadcasts:    getEnvInt("MAX_CONCURRENT_BROADCASTS", 100),
			RateLimiterWindow:          getEnvDuration("RATE_LIMITER_WINDOW", 200*time.Millisecond),
			SweepInterval:              getEnvDuration("SWEEP_INTERVAL", 60*time.Second),
		},
		Audio: AudioConfig{
			ValidSampleRates:  []uint32{8000, 16000, 22050, 44100, 48000},
			MaxChannels:       2,
			ValidBitDepths:    []uint16{8, 16, 24, 32},
			ChannelBufferSize: getEnvInt("AUDIO_CHANNEL_BUFFER_SIZE", 256),
			HandshakeTimeout:  getEnvDuration("AUDIO_HANDSHAKE_TIMEOUT", 10*time.Second),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	s := c.Session
	if err := ValidateMinStabilityThreshold(s.MinStabilityThreshold); err != nil {
		return fmt.Errorf("config: MIN_STABILITY_THRESHOLD: %w", err)
	}
	if err := ValidateMaxBufferTimeout(s.MaxBufferTimeout); err != nil {
		return fmt.Errorf("config: MAX_BUFFER_TIMEOUT: %w", err)
	}
	if s.MaxListenersPerSession <= 0 {
		return fmt.Errorf("config: MAX_LISTENERS_PER_SESSION must be positive")
	}
	if s.ConnectionWarningMinutes < s.ConnectionRefreshMinutes {
		return fmt.Errorf("config: CONNECTION_WARNING_MINUTES must be >= CONNECTION_REFRESH_MINUTES")
	}
	return nil
}

// ValidateMinStabilityThreshold enforces the same [0.70, 0.95] range the
// process-wide default is validated against, reused by the transport layer
// when a client requests a per-session override.
func ValidateMinStabilityThreshold(v float64) error {
	if v < 0.70 || v > 0.95 {
		return fmt.Errorf("minStability must be in [0.70, 0.95], got %f", v)
	}
	return nil
}

// ValidateMaxBufferTimeout enforces the same [2,10]s range the process-wide
// default is validated against, reused by the transport layer when a client
// requests a per-session override.
func ValidateMaxBufferTimeout(d time.Duration) error {
	if d < 2*time.Second || d > 10*time.Second {
		return fmt.Errorf("maxBufferTimeout must be in [2,10]s, got %s", d)
	}
	return nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
