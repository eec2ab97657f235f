package logging

import (
	"io"
	"os"
	"time"

	"github.com/nushungry/review-migrator/internal/config"
	migerrors "github.com/nushungry/review-migrator/internal/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup initializes the global logger based on configuration
func Setup(cfg *config.LoggingConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	zerolog.TimeFieldFormat = time.RFC3339Nano

	var output io.Writer
	if cfg.Format == "json" {
		output = os.Stdout
	} else {
		output = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
		}
	}

	log.Logger = zerolog.New(output).
		With().
		Timestamp().
		Str("service", "review-migrator").
		Logger()
}

// NewLogger creates a new logger with additional context
func NewLogger(component string) zerolog.Logger {
	return log.Logger.With().Str("component", component).Logger()
}

// BatchLogEntry describes the outcome of one bulk insert
type BatchLogEntry struct {
	Collection string
	Batch      int
	Size       int
	Inserted   int
	Failed     int
	Duplicates int
	Latency    time.Duration
}

// LogBatch logs a bulk insert batch with structured data
func LogBatch(logger zerolog.Logger, entry *BatchLogEntry) {
	event := logger.Debug()
	if entry.Failed > entry.Duplicates {
		event = logger.Warn()
	}

	event.
		Str("collection", entry.Collection).
		Int("batch", entry.Batch).
		Int("size", entry.Size).
		Int("inserted", entry.Inserted).
		Int("failed", entry.Failed).
		Int("duplicates", entry.Duplicates).
		Dur("latency", entry.Latency).
		Msg("Batch written")
}

// LogWriteAnomaly logs a write error that is not a duplicate-identity conflict
func LogWriteAnomaly(logger zerolog.Logger, collection string, index, code int, message string) {
	logger.Warn().
		Str("collection", collection).
		Int("index", index).
		Str("error_code", string(migerrors.ErrWrite)).
		Int("code", code).
		Str("details", SanitizeForLog(message, 256)).
		Msg("Unexpected write error")
}

// LogError logs an error with context
func LogError(logger zerolog.Logger, err error, stage, operation string) {
	logger.Error().
		Err(err).
		Str("stage", stage).
		Str("operation", operation).
		Msg("Error occurred")
}

// SanitizeForLog truncates long strings before they are logged
func SanitizeForLog(data string, maxLen int) string {
	if len(data) > maxLen {
		return data[:maxLen] + "...[truncated]"
	}
	return data
}
