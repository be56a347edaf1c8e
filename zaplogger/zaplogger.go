// Package zaplogger backs logger.Logger with a go.uber.org/zap logger,
// used by the binaries to get JSON structured output.
package zaplogger

import (
	"go.uber.org/zap"

	"github.com/get-eventually/go-catchup/logger"
)

var _ logger.Logger = (*Logger)(nil)

// Logger forwards log entries to the wrapped zap.Logger.
type Logger struct {
	zap *zap.Logger
}

// Wrap returns a Logger writing through l.
func Wrap(l *zap.Logger) *Logger {
	return &Logger{zap: l}
}

// Debug implements logger.Logger.
func (l *Logger) Debug(msg string, fields ...logger.Field) { l.zap.Debug(msg, toZap(fields)...) }

// Info implements logger.Logger.
func (l *Logger) Info(msg string, fields ...logger.Field) { l.zap.Info(msg, toZap(fields)...) }

// Error implements logger.Logger.
func (l *Logger) Error(msg string, fields ...logger.Field) { l.zap.Error(msg, toZap(fields)...) }

// Sync flushes buffered entries of the underlying zap.Logger.
func (l *Logger) Sync() error { return l.zap.Sync() }

func toZap(fields []logger.Field) []zap.Field {
	if len(fields) == 0 {
		return nil
	}

	out := make([]zap.Field, len(fields))

	for i, f := range fields {
		// Errors use NamedError so zap renders the message instead of an empty object.
		if err, ok := f.Value.(error); ok {
			out[i] = zap.NamedError(f.Key, err)
			continue
		}

		out[i] = zap.Any(f.Key, f.Value)
	}

	return out
}
