package testhelpers

import (
	"github.com/medcircle/medresident/internal/logging"
	"io"
	"log/slog"
)

// NewLogger creates a debug level logger writing to logSink such as io.Discard or a [bytes.Buffer].
func NewLogger(logSink io.Writer) *slog.Logger {
	return logging.NewLogger(logSink, false)
}
