package forge

import "go.uber.org/zap"

// Logger wraps a zap.SugaredLogger for the handful of points FORGE's core
// needs to surface a warning without returning an error to the caller:
// store corruption recovery and partial calendar fan-out failure.
type Logger struct {
	sugar *zap.SugaredLogger
}

// NewLogger creates a production-configured Logger. The zero value of
// *Logger is valid and silently discards every call, so components may
// accept a nil *Logger.
func NewLogger() (*Logger, error) {
	z, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return &Logger{sugar: z.Sugar()}, nil
}

// Warnf logs a warning, formatted like fmt.Sprintf. A nil Logger is a
// no-op.
func (l *Logger) Warnf(template string, args ...any) {
	if l == nil || l.sugar == nil {
		return
	}
	l.sugar.Warnf(template, args...)
}

// Errorf logs an error, formatted like fmt.Sprintf. A nil Logger is a
// no-op.
func (l *Logger) Errorf(template string, args ...any) {
	if l == nil || l.sugar == nil {
		return
	}
	l.sugar.Errorf(template, args...)
}

// Sync flushes any buffered log entries. A nil Logger is a no-op.
func (l *Logger) Sync() error {
	if l == nil || l.sugar == nil {
		return nil
	}
	return l.sugar.Sync()
}
