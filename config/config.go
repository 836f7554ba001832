package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// Prefix is the prefix of every environment variable read by LoadConfig.
const Prefix = "DATAROUTER"

// Config struct for environment variables. Command line flags override it.
type Config struct {
	Source string `envconfig:"SOURCE"`
	Dest   string `envconfig:"DEST"`

	Parallelism int      `envconfig:"PARALLELISM" default:"2"`
	ChunkSize   int      `envconfig:"CHUNK_SIZE" default:"10000000"`
	Extensions  []string `envconfig:"EXTENSIONS" default:".mp4,.avi,.mkv,.mpeg"`
	IncludeText bool     `envconfig:"INCLUDE_TEXT" default:"false"`
	Recursive   bool     `envconfig:"RECURSIVE" default:"false"`
	Sniff       bool     `envconfig:"SNIFF" default:"false"`
	KeepSource  bool     `envconfig:"KEEP_SOURCE" default:"false"`

	StatsFile string `envconfig:"STATS_FILE" default:"stats.csv"`
	StateDir  string `envconfig:"STATE_DIR" default:".datarouter"`
	LogDir    string `envconfig:"LOG_DIR" default:"logs"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"INFO"`
	TUI       bool   `envconfig:"TUI" default:"false"`
}

// LoadConfig reads environment variables and populates the Config struct.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
	}

	return &cfg, nil
}

// Validate reports settings that cannot be used for a move.
func (c *Config) Validate() error {
	switch {
	case c.Source == "":
		return fmt.Errorf("source directory is required")
	case c.Dest == "":
		return fmt.Errorf("destination directory is required")
	case c.Parallelism < 1:
		return fmt.Errorf("parallelism must be at least 1, got %d", c.Parallelism)
	case c.ChunkSize <= 0:
		return fmt.Errorf("chunk size must be greater than zero, got %d", c.ChunkSize)
	}
	return nil
}

// FileExtensions returns the extensions to move, with .txt added when text
// files are included.
func (c *Config) FileExtensions() []string {
	exts := append([]string(nil), c.Extensions...)
	if c.IncludeText {
		exts = append(exts, ".txt")
	}
	return exts
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
