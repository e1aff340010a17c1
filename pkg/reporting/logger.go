package reporting

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// LogFormat selects the zerolog output encoding.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

// LoggerConfig configures the global zerolog logger.
type LoggerConfig struct {
	Level  string
	Format LogFormat
	Output io.Writer
}

// InitGlobalLogger configures zerolog's global logger and level from cfg.
func InitGlobalLogger(cfg LoggerConfig) zerolog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	var output io.Writer = cfg.Output
	if cfg.Format == LogFormatText {
		output = zerolog.ConsoleWriter{
			Out:        cfg.Output,
			TimeFormat: time.RFC3339,
		}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger = logger.Level(level)
	zerolog.SetGlobalLevel(level)

	return logger
}
