package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Overlay store backends accepted by OVERLAY_STORE.
const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

// Config holds all process-wide settings. Values come from the environment,
// optionally seeded from a .env file by Load.
type Config struct {
	Port      string `envconfig:"PORT" default:"8080"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// Directory shared with ffmpeg for the playlist and its segments.
	StreamDir string `envconfig:"STREAM_DIR" default:"./stream"`

	FFmpegPath  string `envconfig:"FFMPEG_PATH" default:"ffmpeg"`
	FFprobePath string `envconfig:"FFPROBE_PATH" default:"ffprobe"`

	WarmupDelay          time.Duration `envconfig:"WARMUP_DELAY" default:"4s"`
	StopTimeout          time.Duration `envconfig:"STOP_TIMEOUT" default:"10s"`
	ProbeTimeout         time.Duration `envconfig:"PROBE_TIMEOUT" default:"15s"`
	ProbeInternalTimeout time.Duration `envconfig:"PROBE_INTERNAL_TIMEOUT" default:"10s"`
	LivenessInterval     time.Duration `envconfig:"LIVENESS_INTERVAL" default:"5s"`

	OverlayStore         string `envconfig:"OVERLAY_STORE" default:"mongo"`
	MongoURI             string `envconfig:"MONGO_URI" default:"mongodb://localhost:27017"`
	MongoDatabase        string `envconfig:"MONGO_DATABASE" default:"rtsp_overlay_app"`
	MongoCollection      string `envconfig:"MONGO_COLLECTION" default:"overlays"`
	MongoConnectAttempts uint   `envconfig:"MONGO_CONNECT_ATTEMPTS" default:"5"`

	CORSOrigins      []string `envconfig:"CORS_ORIGINS" default:"*"`
	ControlRateLimit int      `envconfig:"CONTROL_RATE_LIMIT" default:"30"`
}

// Load reads the .env file from the current working directory and sets
// environment variables. A missing file is not an error; callers fall back to
// the system environment and defaults. Pass one or more paths to load specific
// files instead of ".env".
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	err := godotenv.Load(paths...)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Process fills a Config from the environment and validates it.
func Process() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.StreamDir == "" {
		return fmt.Errorf("STREAM_DIR is required")
	}
	if c.FFmpegPath == "" {
		return fmt.Errorf("FFMPEG_PATH is required")
	}
	if c.FFprobePath == "" {
		return fmt.Errorf("FFPROBE_PATH is required")
	}
	if c.WarmupDelay <= 0 {
		return fmt.Errorf("WARMUP_DELAY must be positive")
	}
	if c.StopTimeout <= 0 {
		return fmt.Errorf("STOP_TIMEOUT must be positive")
	}
	if c.ProbeTimeout <= 0 || c.ProbeInternalTimeout <= 0 {
		return fmt.Errorf("PROBE_TIMEOUT and PROBE_INTERNAL_TIMEOUT must be positive")
	}
	if c.LivenessInterval < 0 {
		return fmt.Errorf("LIVENESS_INTERVAL must not be negative")
	}
	if c.ControlRateLimit < 0 {
		return fmt.Errorf("CONTROL_RATE_LIMIT must not be negative")
	}

	switch strings.ToLower(c.OverlayStore) {
	case StoreMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required when OVERLAY_STORE=%s", StoreMongo)
		}
		if c.MongoConnectAttempts == 0 {
			c.MongoConnectAttempts = 1
		}
	case StoreMemory:
	default:
		return fmt.Errorf("OVERLAY_STORE must be %q or %q, got %q", StoreMongo, StoreMemory, c.OverlayStore)
	}
	c.OverlayStore = strings.ToLower(c.OverlayStore)

	return nil
}
