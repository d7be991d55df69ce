package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New creates and configures a new zerolog logger
func New(logLevel string) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(logLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Console writer for human-readable output in development
	if os.Getenv("API_ENV") == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	logger := zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("service", "soluxe").
		Logger()

	return logger
}

// WithRound adds a round id to logger context
func WithRound(logger zerolog.Logger, roundID string) zerolog.Logger {
	return logger.With().Str("round_id", roundID).Logger()
}

// WithWallet adds a wallet address to logger context
func WithWallet(logger zerolog.Logger, wallet string) zerolog.Logger {
	return logger.With().Str("wallet", wallet).Logger()
}

// WithIdentity adds an identity id to logger context
func WithIdentity(logger zerolog.Logger, identityID string) zerolog.Logger {
	return logger.With().Str("identity_id", identityID).Logger()
}
