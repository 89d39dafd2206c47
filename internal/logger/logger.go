package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup builds the process logger and installs it as the global zerolog
// logger. Debug switches to console output at debug level.
func Setup(debug bool) zerolog.Logger {
	logger := New(os.Stderr, debug)
	log.Logger = logger
	return logger
}

func New(out io.Writer, debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Caller().Logger()

	if debug {
		logger = logger.Output(zerolog.ConsoleWriter{Out: out, FormatTimestamp: func(i any) string {
			return time.Now().Format(time.TimeOnly)
		}}).Level(level).With().Stack().Logger()
	}

	return logger
}
