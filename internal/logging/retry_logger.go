package logger

import (
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

var _ retryablehttp.LeveledLogger = (*RetryZapLogger)(nil)

// RetryZapLogger lets go-retryablehttp write through zap.
type RetryZapLogger struct {
	s *zap.SugaredLogger
}

func NewRetryZapLogger(log *zap.Logger) *RetryZapLogger {
	return &RetryZapLogger{s: log.Named("carp-http").Sugar()}
}

func (l *RetryZapLogger) Error(msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, keysAndValues...)
}

func (l *RetryZapLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Infow(msg, keysAndValues...)
}

// Debug is where retryablehttp reports every request; keep it at debug.
func (l *RetryZapLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l *RetryZapLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.s.Warnw(msg, keysAndValues...)
}
