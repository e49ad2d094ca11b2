package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTranscribeURL    = "wss://platform-api.wisprflow.ai/api/v1/dash/ws"
	defaultLanguage         = "en"
	defaultConnectTimeoutMS = 5000
	defaultScriptTimeoutMS  = 30000
	defaultHelperCommand    = "voxroute-helper"
	defaultObserverAddr     = "127.0.0.1:7071"
	defaultRedisChannel     = "voxroute:events"
	defaultLogLevel         = "info"
)

// Config stores runtime configuration resolved from the environment.
type Config struct {
	Transcription TranscriptionConfig
	Scripts       ScriptsConfig
	Helper        HelperConfig
	Observer      ObserverConfig
	Redis         RedisConfig
	Tracing       TracingConfig
	LogLevel      string
}

type TranscriptionConfig struct {
	Token          string
	URL            string
	Language       string
	ConnectTimeout time.Duration
}

// Enabled reports whether a credential is configured.
func (c TranscriptionConfig) Enabled() bool {
	return c.Token != ""
}

type ScriptsConfig struct {
	Dir     string
	Timeout time.Duration
}

type HelperConfig struct {
	Command string
}

type ObserverConfig struct {
	Addr string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// Enabled reports whether the event mirror should run.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// TracingConfig selects a span exporter. An empty Exporter disables tracing.
type TracingConfig struct {
	Exporter string
	File     string
}

func (c TracingConfig) Enabled() bool {
	return c.Exporter != "" && c.Exporter != "none"
}

// Load resolves configuration from environment variables and sensible defaults.
func Load() (Config, error) {
	scriptsDir := strings.TrimSpace(os.Getenv("VOXROUTE_SCRIPTS_DIR"))
	if scriptsDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, errors.New("could not determine home directory")
		}
		scriptsDir = filepath.Join(home, ".config", "voxroute", "scripts")
	}

	cfg := Config{
		Transcription: TranscriptionConfig{
			Token:          strings.TrimSpace(os.Getenv("VOXROUTE_TRANSCRIBE_TOKEN")),
			URL:            envOrDefault("VOXROUTE_TRANSCRIBE_URL", defaultTranscribeURL),
			Language:       envOrDefault("VOXROUTE_LANGUAGE", defaultLanguage),
			ConnectTimeout: time.Duration(envOrDefaultPositiveInt("VOXROUTE_CONNECT_TIMEOUT_MS", defaultConnectTimeoutMS)) * time.Millisecond,
		},
		Scripts: ScriptsConfig{
			Dir:     scriptsDir,
			Timeout: time.Duration(envOrDefaultPositiveInt("VOXROUTE_SCRIPT_TIMEOUT_MS", defaultScriptTimeoutMS)) * time.Millisecond,
		},
		Helper: HelperConfig{
			Command: envOrDefault("VOXROUTE_HELPER_COMMAND", defaultHelperCommand),
		},
		Observer: ObserverConfig{
			Addr: envOrDefault("VOXROUTE_OBSERVER_ADDR", defaultObserverAddr),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(os.Getenv("VOXROUTE_REDIS_ADDR")),
			Password: os.Getenv("VOXROUTE_REDIS_PASSWORD"),
			DB:       envOrDefaultInt("VOXROUTE_REDIS_DB", 0),
			Channel:  envOrDefault("VOXROUTE_REDIS_CHANNEL", defaultRedisChannel),
		},
		Tracing: TracingConfig{
			Exporter: strings.ToLower(strings.TrimSpace(os.Getenv("VOXROUTE_TRACE_EXPORTER"))),
			File:     strings.TrimSpace(os.Getenv("VOXROUTE_TRACE_FILE")),
		},
		LogLevel: strings.ToLower(envOrDefault("VOXROUTE_LOG_LEVEL", defaultLogLevel)),
	}

	if cfg.Redis.DB < 0 {
		cfg.Redis.DB = 0
	}

	return cfg, nil
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultPositiveInt(key string, fallback int) int {
	if parsed := envOrDefaultInt(key, fallback); parsed > 0 {
		return parsed
	}
	return fallback
}
