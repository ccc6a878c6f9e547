// Package logging adapts zap to the runtime.Logger interface so the game
// packages log the same way inside and outside Nakama.
package logging

import (
	"github.com/heroiclabs/nakama-common/runtime"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a runtime.Logger backed by zap.
type Logger struct {
	sugar  *zap.SugaredLogger
	fields map[string]interface{}
}

// New wraps z.
func New(z *zap.Logger) *Logger {
	return &Logger{sugar: z.WithOptions(zap.AddCallerSkip(1)).Sugar(), fields: map[string]interface{}{}}
}

// Nop discards everything.
func Nop() runtime.Logger {
	return New(zap.NewNop())
}

// NewConsole builds a human-readable logger for the CLI. debug lowers the
// level to Debug.
func NewConsole(debug bool) (*Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return New(z), nil
}

func (l *Logger) Debug(format string, v ...interface{}) { l.sugar.Debugf(format, v...) }
func (l *Logger) Info(format string, v ...interface{})  { l.sugar.Infof(format, v...) }
func (l *Logger) Warn(format string, v ...interface{})  { l.sugar.Warnf(format, v...) }
func (l *Logger) Error(format string, v ...interface{}) { l.sugar.Errorf(format, v...) }

func (l *Logger) WithField(key string, v interface{}) runtime.Logger {
	return l.WithFields(map[string]interface{}{key: v})
}

func (l *Logger) WithFields(fields map[string]interface{}) runtime.Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
		args = append(args, k, v)
	}
	return &Logger{sugar: l.sugar.With(args...), fields: merged}
}

func (l *Logger) Fields() map[string]interface{} {
	return l.fields
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}
