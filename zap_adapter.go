package walstream

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapAdapter adapts a *zap.Logger to Logger, the way the sugared
// zap.S() wrapper is used in marketstore's utils/log package — except
// here the *zap.SugaredLogger is held directly rather than installed
// as a package global, since a daemon running many senders wants one
// logger per Sender, not one process-wide logger.
type ZapAdapter struct {
	logger *zap.SugaredLogger
}

var _ Logger = (*ZapAdapter)(nil)

// NewZapAdapter wraps logger's sugared form.
func NewZapAdapter(logger *zap.Logger) *ZapAdapter {
	return &ZapAdapter{logger: logger.Sugar()}
}

func (z *ZapAdapter) Debug(msg string, keysAndValues ...any) { z.logger.Debugw(msg, keysAndValues...) }
func (z *ZapAdapter) Info(msg string, keysAndValues ...any)  { z.logger.Infow(msg, keysAndValues...) }
func (z *ZapAdapter) Warn(msg string, keysAndValues ...any)  { z.logger.Warnw(msg, keysAndValues...) }
func (z *ZapAdapter) Error(msg string, keysAndValues ...any) { z.logger.Errorw(msg, keysAndValues...) }

func (z *ZapAdapter) WithContext(ctx context.Context) Logger { return z }

func (z *ZapAdapter) WithFields(keysAndValues ...any) Logger {
	return &ZapAdapter{logger: z.logger.With(keysAndValues...)}
}

// newProductionZapLogger builds a *zap.Logger the way marketstore's
// utils/log package does (zap.NewProduction), adjusted to honor the
// requested threshold instead of always logging at info.
func newProductionZapLogger(level LogLevel) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch level {
	case LogLevelDebug:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case LogLevelWarn:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case LogLevelError:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	return cfg.Build()
}
