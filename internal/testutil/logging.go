package testutil

import (
	"io"

	"api-integrator/internal/common/logging"
)

// QuietLogger discards everything below error level
func QuietLogger() logging.Logger {
	return logging.NewLogger(logging.LogConfig{Level: logging.ErrorLevel, Output: io.Discard})
}
