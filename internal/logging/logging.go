package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// New builds the process logger. JSON to stdout by default, human
// readable console output in dev.
func New(env, component string) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("component", component).Logger()
	if env == "dev" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Str("component", component).Logger()
	}
	return logger
}
