// Package config holds the complete vodforge configuration. Values come from
// an optional YAML file with environment variable overrides on top, so a bare
// container can run with nothing but env vars.
package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server" json:"server"`
	Database    DatabaseConfig    `yaml:"database" json:"database"`
	Storage     StorageConfig     `yaml:"storage" json:"storage"`
	Transcoding TranscodingConfig `yaml:"transcoding" json:"transcoding"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host" json:"host" env:"VODFORGE_HOST"`
	Port         int           `yaml:"port" json:"port" env:"VODFORGE_PORT"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	EnableCORS   bool          `yaml:"enable_cors" json:"enable_cors"`
}

// DatabaseConfig selects and configures the catalog database.
type DatabaseConfig struct {
	Type     string `yaml:"type" json:"type" env:"DATABASE_TYPE"` // sqlite or postgres
	Path     string `yaml:"path" json:"path" env:"VODFORGE_DATABASE_PATH"`
	Host     string `yaml:"host" json:"host" env:"POSTGRES_HOST"`
	Port     int    `yaml:"port" json:"port" env:"POSTGRES_PORT"`
	Username string `yaml:"username" json:"username" env:"POSTGRES_USER"`
	Password string `yaml:"password" json:"password" env:"POSTGRES_PASSWORD"`
	Database string `yaml:"database" json:"database" env:"POSTGRES_DB"`
}

// StorageConfig configures the output object store.
type StorageConfig struct {
	// DataDir is the root under which all per-video artifacts are written.
	DataDir string `yaml:"data_dir" json:"data_dir" env:"VODFORGE_DATA_DIR"`
}

// TranscodingConfig configures the rendition pipeline.
type TranscodingConfig struct {
	FFmpegPath  string `yaml:"ffmpeg_path" json:"ffmpeg_path" env:"VODFORGE_FFMPEG_PATH"`
	FFprobePath string `yaml:"ffprobe_path" json:"ffprobe_path" env:"VODFORGE_FFPROBE_PATH"`

	// MaxConcurrentJobs bounds how many videos encode at once. Renditions
	// within a job are always sequential; this only fans out across jobs.
	MaxConcurrentJobs int `yaml:"max_concurrent_jobs" json:"max_concurrent_jobs" env:"VODFORGE_MAX_CONCURRENT_JOBS"`

	SegmentSeconds int `yaml:"segment_seconds" json:"segment_seconds" env:"VODFORGE_SEGMENT_SECONDS"`
	ThumbnailCount int `yaml:"thumbnail_count" json:"thumbnail_count" env:"VODFORGE_THUMBNAIL_COUNT"`

	// PosterWebP re-encodes the selected poster frame to WebP.
	PosterWebP bool `yaml:"poster_webp" json:"poster_webp" env:"VODFORGE_POSTER_WEBP"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" json:"format" env:"LOG_FORMAT"`
}

var (
	current *Config
	mu      sync.RWMutex
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			EnableCORS:   true,
		},
		Database: DatabaseConfig{
			Type:     "sqlite",
			Path:     "./vodforge-data/vodforge.db",
			Host:     "localhost",
			Port:     5432,
			Username: "vodforge",
			Database: "vodforge",
		},
		Storage: StorageConfig{
			DataDir: "./vodforge-data/media",
		},
		Transcoding: TranscodingConfig{
			FFmpegPath:        "ffmpeg",
			FFprobePath:       "ffprobe",
			MaxConcurrentJobs: 2,
			SegmentSeconds:    10,
			ThumbnailCount:    5,
			PosterWebP:        true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from the given YAML file (optional) and applies
// environment overrides. It installs the result as the process configuration.
func Load(path string) error {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}

	mu.Lock()
	current = cfg
	mu.Unlock()
	return nil
}

// Get returns the process configuration, loading defaults if Load was never
// called.
func Get() *Config {
	mu.RLock()
	if current != nil {
		defer mu.RUnlock()
		return current
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if current == nil {
		cfg := Default()
		applyEnvOverrides(cfg)
		current = cfg
	}
	return current
}

// Reset clears the loaded configuration. Intended for tests.
func Reset() {
	mu.Lock()
	current = nil
	mu.Unlock()
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Database.Type != "sqlite" && c.Database.Type != "postgres" {
		return fmt.Errorf("unsupported database.type: %s", c.Database.Type)
	}
	if c.Transcoding.MaxConcurrentJobs < 1 {
		return fmt.Errorf("transcoding.max_concurrent_jobs must be at least 1")
	}
	if c.Transcoding.SegmentSeconds < 1 {
		return fmt.Errorf("transcoding.segment_seconds must be at least 1")
	}
	if c.Transcoding.ThumbnailCount < 1 {
		return fmt.Errorf("transcoding.thumbnail_count must be at least 1")
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Server.Host, "VODFORGE_HOST")
	setInt(&cfg.Server.Port, "VODFORGE_PORT")

	setString(&cfg.Database.Type, "DATABASE_TYPE")
	setString(&cfg.Database.Path, "VODFORGE_DATABASE_PATH")
	setString(&cfg.Database.Host, "POSTGRES_HOST")
	setInt(&cfg.Database.Port, "POSTGRES_PORT")
	setString(&cfg.Database.Username, "POSTGRES_USER")
	setString(&cfg.Database.Password, "POSTGRES_PASSWORD")
	setString(&cfg.Database.Database, "POSTGRES_DB")

	setString(&cfg.Storage.DataDir, "VODFORGE_DATA_DIR")

	setString(&cfg.Transcoding.FFmpegPath, "VODFORGE_FFMPEG_PATH")
	setString(&cfg.Transcoding.FFprobePath, "VODFORGE_FFPROBE_PATH")
	setInt(&cfg.Transcoding.MaxConcurrentJobs, "VODFORGE_MAX_CONCURRENT_JOBS")
	setInt(&cfg.Transcoding.SegmentSeconds, "VODFORGE_SEGMENT_SECONDS")
	setInt(&cfg.Transcoding.ThumbnailCount, "VODFORGE_THUMBNAIL_COUNT")
	setBool(&cfg.Transcoding.PosterWebP, "VODFORGE_POSTER_WEBP")

	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
