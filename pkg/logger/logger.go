package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Log is silent until Init is called, which keeps tests quiet.
var Log = zerolog.Nop()

// Init initializes the global logger
func Init(env, level string) {
	zerolog.TimeFieldFormat = time.RFC3339

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	if env == "development" {
		Log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}).
			Level(lvl).
			With().
			Timestamp().
			Caller().
			Logger()
		return
	}

	Log = zerolog.New(os.Stdout).
		Level(lvl).
		With().
		Timestamp().
		Str("service", "ecostep-api").
		Logger()
}

func Info() *zerolog.Event {
	return Log.Info()
}

func Error() *zerolog.Event {
	return Log.Error()
}

func Warn() *zerolog.Event {
	return Log.Warn()
}

func Debug() *zerolog.Event {
	return Log.Debug()
}

func Fatal() *zerolog.Event {
	return Log.Fatal()
}
