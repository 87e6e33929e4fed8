// logger/logger.go
package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Logger is the structured logger handed to every component. Values logged under keys
// that look like credentials never reach the output.
type Logger struct {
	s *zap.SugaredLogger
}

// New builds a JSON production logger for mode "prod", a debug-level console logger otherwise.
func New(mode string) (*Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if m := strings.ToLower(strings.TrimSpace(mode)); m == "prod" || m == "production" {
		cfg = zap.NewProductionConfig()
	}
	z, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return FromZap(z), nil
}

func FromZap(z *zap.Logger) *Logger {
	return &Logger{s: z.Sugar()}
}

func NewNop() *Logger {
	return FromZap(zap.NewNop())
}

func (l *Logger) Sync() { _ = l.s.Sync() }

func (l *Logger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, redact(kv)...) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.s.Infow(msg, redact(kv)...) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, redact(kv)...) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, redact(kv)...) }

func (l *Logger) With(kv ...interface{}) *Logger {
	return &Logger{s: l.s.With(redact(kv)...)}
}

var secretKeyParts = []string{"token", "authorization", "password", "secret", "access_key"}

// redact copies kv, masking the value of every credential-looking key.
func redact(kv []interface{}) []interface{} {
	out := append([]interface{}(nil), kv...)
	for i := 0; i+1 < len(out); i += 2 {
		key, ok := out[i].(string)
		if !ok {
			continue
		}
		key = strings.ToLower(key)
		for _, part := range secretKeyParts {
			if strings.Contains(key, part) {
				out[i+1] = "[REDACTED]"
				break
			}
		}
	}
	return out
}
