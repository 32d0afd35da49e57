package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment   string              `toml:"environment"`
	Server        ServerConfig        `toml:"server"`
	Storage       StorageConfig       `toml:"storage"`
	Ingest        IngestConfig        `toml:"ingest"`
	Notifications NotificationsConfig `toml:"notifications"`
	Maintenance   MaintenanceConfig   `toml:"maintenance"`
	Logging       LoggingConfig       `toml:"logging"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	// Type selects the document store backend: "badger" or "file"
	Type   string       `toml:"type"`
	Badger BadgerConfig `toml:"badger"`
	File   FileConfig   `toml:"file"`

	// UploadDir holds uploaded files awaiting processing
	UploadDir string `toml:"upload_dir"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`
	ResetOnStartup bool   `toml:"reset_on_startup"`
}

// FileConfig represents the JSON-file document store configuration
type FileConfig struct {
	Path string `toml:"path"`
}

type IngestConfig struct {
	Concurrency int    `toml:"concurrency"`
	QueueSize   int    `toml:"queue_size"`
	MaxFileSize int64  `toml:"max_file_size"`
	StuckAfter  string `toml:"stuck_after"` // e.g. "5m", processing-time threshold
}

// StuckThreshold returns the stuck-processing threshold as a duration
func (c IngestConfig) StuckThreshold() time.Duration {
	d, err := time.ParseDuration(c.StuckAfter)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

type NotificationsConfig struct {
	// LogFile is the append-only JSONL notification log
	LogFile string `toml:"log_file"`
	// ProjectionDir holds each feature's denormalized projection file
	ProjectionDir string `toml:"projection_dir"`
	// QueueSize bounds each feature's dispatch queue
	QueueSize int `toml:"queue_size"`
	// SampleRows caps how many rows propagate with source_added events
	SampleRows int `toml:"sample_rows"`
}

type MaintenanceConfig struct {
	Enabled bool `toml:"enabled"`
	// StuckSweepSchedule re-queues sources stuck in processing (cron format)
	StuckSweepSchedule string `toml:"stuck_sweep_schedule"`
	// CleanupSchedule runs inactive-source and log cleanup (cron format)
	CleanupSchedule string `toml:"cleanup_schedule"`
	// InactiveDays is the last-access age after which a source is removed
	InactiveDays int `toml:"inactive_days"`
	// LogRetentionDays is the age after which notification logs are dropped
	LogRetentionDays int `toml:"log_retention_days"`
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // default "15:04:05.000"
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Type: "badger",
			Badger: BadgerConfig{
				Path: "./data/registry",
			},
			File: FileConfig{
				Path: "./data/registry.json",
			},
			UploadDir: "./data/uploads",
		},
		Ingest: IngestConfig{
			Concurrency: 4,
			QueueSize:   64,
			MaxFileSize: 50 * 1024 * 1024, // 50MB
			StuckAfter:  "5m",
		},
		Notifications: NotificationsConfig{
			LogFile:       "./data/notifications.log",
			ProjectionDir: "./data/projections",
			QueueSize:     256,
			SampleRows:    5,
		},
		Maintenance: MaintenanceConfig{
			Enabled:            true,
			StuckSweepSchedule: "*/1 * * * *",  // every minute
			CleanupSchedule:    "0 3 * * *",    // daily at 03:00
			InactiveDays:       30,
			LogRetentionDays:   30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// defaults -> file1 -> file2 -> ... -> env. Later files override earlier
// files; environment variables override all files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("REPORTER_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("REPORTER_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("REPORTER_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if storageType := os.Getenv("REPORTER_STORAGE_TYPE"); storageType != "" {
		config.Storage.Type = storageType
	}
	if badgerPath := os.Getenv("REPORTER_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if filePath := os.Getenv("REPORTER_REGISTRY_FILE"); filePath != "" {
		config.Storage.File.Path = filePath
	}
	if uploadDir := os.Getenv("REPORTER_UPLOAD_DIR"); uploadDir != "" {
		config.Storage.UploadDir = uploadDir
	}

	if concurrency := os.Getenv("REPORTER_INGEST_CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil {
			config.Ingest.Concurrency = c
		}
	}
	if stuckAfter := os.Getenv("REPORTER_INGEST_STUCK_AFTER"); stuckAfter != "" {
		config.Ingest.StuckAfter = stuckAfter
	}

	if logFile := os.Getenv("REPORTER_NOTIFICATION_LOG"); logFile != "" {
		config.Notifications.LogFile = logFile
	}

	if level := os.Getenv("REPORTER_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}
