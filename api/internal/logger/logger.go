package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

const (
	EnvLocal = "local"
	EnvProd  = "production"
	EnvTest  = "test"
	EnvDev   = "development"
)

func SetupLogger(env string) zerolog.Logger {
	return New(env, os.Stdout)
}

// New builds the logger for env writing to w.
func New(env string, w io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	var log zerolog.Logger
	switch env {
	case EnvTest, EnvDev:
		log = zerolog.New(w).Level(zerolog.DebugLevel)
	case EnvProd:
		log = zerolog.New(w).Level(zerolog.InfoLevel)
	default:
		log = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen, NoColor: env != EnvLocal}).Level(zerolog.DebugLevel)
	}
	return log.With().Timestamp().Str("service", "paperai").Logger()
}
