package common

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/samber/do/v2"
)

func NewLogger(_ do.Injector) (zerolog.Logger, error) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	logger := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Logger()

	return logger, nil
}
