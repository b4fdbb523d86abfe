// Package util provides logging setup and host introspection shared by the
// pokebattle packages.
package util

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// One dated file per day; retention is judged by the date in the name, not
// file mtime, so copied or restored files age out on schedule too.
const (
	logFilePrefix = "pokebattle_"
	logFileLayout = "2006-01-02"
)

// LogConfig holds configuration for the logging system.
type LogConfig struct {
	Level      string `json:"level"`
	Directory  string `json:"directory"`
	MaxBackups int    `json:"max_backups"`
	Console    bool   `json:"console"`
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:      "info",
		Directory:  "logs",
		MaxBackups: 5,
		Console:    true,
	}
}

// InitLogger initializes the zerolog global logger. The console writer gets
// the human format on stderr; when a directory is configured the same stream
// also goes to today's JSON file, and files past the retention window are
// swept before the first line is written.
func InitLogger(cfg LogConfig) error {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var writers []io.Writer
	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
		})
	}

	var logFilePath string
	if cfg.Directory != "" {
		if err := os.MkdirAll(cfg.Directory, 0755); err != nil {
			return fmt.Errorf("creating log directory %s: %w", cfg.Directory, err)
		}
		CleanOldLogs(cfg.Directory, cfg.MaxBackups)

		name := logFilePrefix + time.Now().Format(logFileLayout) + ".log"
		logFilePath = filepath.Join(cfg.Directory, name)
		logFile, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("opening log file %s: %w", logFilePath, err)
		}
		writers = append(writers, logFile)
	}
	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().
		Timestamp().
		Str("app", "pokebattle").
		Logger()

	log.Info().
		Str("level", level.String()).
		Str("log_file", logFilePath).
		Msg("logger initialized")
	return nil
}

// CleanOldLogs removes dated session log files more than maxBackups days old,
// judged by the date stamped in the file name. Files that do not match the
// naming scheme are left alone. Returns the number of files removed.
func CleanOldLogs(directory string, maxBackups int) int {
	entries, err := os.ReadDir(directory)
	if err != nil {
		return 0
	}

	cutoff := time.Now().AddDate(0, 0, -maxBackups)
	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, logFilePrefix) || !strings.HasSuffix(name, ".log") {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, logFilePrefix), ".log")
		day, err := time.ParseInLocation(logFileLayout, stamp, time.Local)
		if err != nil {
			continue
		}
		if day.Before(cutoff) {
			path := filepath.Join(directory, name)
			if os.Remove(path) == nil {
				removed++
				log.Debug().Str("file", path).Msg("removed old log file")
			}
		}
	}
	return removed
}

// ComponentLogger creates a logger with a component name field.
func ComponentLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
