package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string
	HTTPPort    string
	LogLevel    string
	LogFormat   string

	StoreBackend   string
	PostgresDSN    string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string

	AdminToken        string
	AllowedOrigins    []string
	LivenessInterval  time.Duration
	WriteTimeout      time.Duration
	PersistTimeout    time.Duration
	SendBuffer        int
	PollActiveOnStart bool
}

// Load reads the process environment. Values from ENV_FILE (default .env) are
// applied first without overriding variables that are already set; a missing
// file is not an error.
func Load() (Config, error) {
	envFile := strings.TrimSpace(os.Getenv("ENV_FILE"))
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := Config{
		ServiceName: envString("SERVICE_NAME", "pollcast"),
		HTTPPort:    envString("HTTP_PORT", "8000"),
		LogLevel:    strings.ToLower(envString("LOG_LEVEL", "info")),
		LogFormat:   strings.ToLower(envString("LOG_FORMAT", "json")),

		StoreBackend:   strings.ToLower(envString("STORE_BACKEND", BackendMemory)),
		PostgresDSN:    os.Getenv("POSTGRES_DSN"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        envInt("REDIS_DB", 0),
		RedisKeyPrefix: envString("REDIS_KEY_PREFIX", "pollcast"),

		AdminToken:        os.Getenv("ADMIN_TOKEN"),
		AllowedOrigins:    envList("ALLOWED_ORIGINS"),
		LivenessInterval:  envDuration("LIVENESS_INTERVAL", 30*time.Second),
		WriteTimeout:      envDuration("WRITE_TIMEOUT", 10*time.Second),
		PersistTimeout:    envDuration("PERSIST_TIMEOUT", 5*time.Second),
		SendBuffer:        envInt("SEND_BUFFER", 16),
		PollActiveOnStart: envBool("POLL_ACTIVE_ON_START", false),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory:
	case BackendPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return errors.New("POSTGRES_DSN is required when STORE_BACKEND=postgres")
		}
	case BackendRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			return errors.New("REDIS_ADDR is required when STORE_BACKEND=redis")
		}
	default:
		return fmt.Errorf("unsupported STORE_BACKEND %q", c.StoreBackend)
	}
	if c.LivenessInterval <= 0 {
		return errors.New("LIVENESS_INTERVAL must be positive")
	}
	if c.WriteTimeout <= 0 || c.WriteTimeout > c.LivenessInterval {
		return errors.New("WRITE_TIMEOUT must be positive and not exceed LIVENESS_INTERVAL")
	}
	// Zero disables the per-vote write deadline.
	if c.PersistTimeout < 0 || c.PersistTimeout > c.LivenessInterval {
		return errors.New("PERSIST_TIMEOUT must not be negative or exceed LIVENESS_INTERVAL")
	}
	if c.SendBuffer <= 0 {
		return errors.New("SEND_BUFFER must be positive")
	}
	return nil
}

func envString(name string, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(name)); value != "" {
		return value
	}
	return fallback
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envList(name string) []string {
	var out []string
	for _, value := range strings.Split(os.Getenv(name), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			out = append(out, value)
		}
	}
	return out
}
