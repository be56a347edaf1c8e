// Package logger contains the structured logging interface used by
// the Subscription components, and helpers to use it when optional.
package logger

// Field represents a structured field to be added to a Log entry.
type Field struct {
	Key   string
	Value any
}

// With is an helper function to add a field in a functional way.
func With(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Err adds the error to the Log entry, using the "err" key.
func Err(err error) Field {
	return Field{Key: "err", Value: err}
}

// Logger is a structured logger capable of printing information about
// the execution of a component at various levels.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Debug delegates the debug log call to the provided logger, if not nil.
func Debug(l Logger, msg string, fields ...Field) {
	if l != nil {
		l.Debug(msg, fields...)
	}
}

// Info delegates the info log call to the provided logger, if not nil.
func Info(l Logger, msg string, fields ...Field) {
	if l != nil {
		l.Info(msg, fields...)
	}
}

// Error delegates the error log call to the provided logger, if not nil.
func Error(l Logger, msg string, fields ...Field) {
	if l != nil {
		l.Error(msg, fields...)
	}
}

// WithFields returns a Logger that adds the provided fields to every Log entry.
// A nil Logger stays nil.
func WithFields(l Logger, fields ...Field) Logger {
	if l == nil {
		return nil
	}

	return contextual{logger: l, fields: fields}
}

type contextual struct {
	logger Logger
	fields []Field
}

func (c contextual) with(fields []Field) []Field {
	all := make([]Field, 0, len(c.fields)+len(fields))
	all = append(all, c.fields...)

	return append(all, fields...)
}

func (c contextual) Debug(msg string, fields ...Field) { c.logger.Debug(msg, c.with(fields)...) }

func (c contextual) Info(msg string, fields ...Field) { c.logger.Info(msg, c.with(fields)...) }

func (c contextual) Error(msg string, fields ...Field) { c.logger.Error(msg, c.with(fields)...) }
