package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Structured JSON logging backed by zap. Call sites pass free-form field
// maps so handlers and storage don't depend on zap directly.

var log = newLogger()

func newLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	cfg.InitialFields = map[string]interface{}{"service": "traceability"}
	cfg.DisableCaller = true
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func Info(message string, fields map[string]interface{}) {
	log.Info(message, zapFields(fields)...)
}

func Warn(message string, fields map[string]interface{}) {
	log.Warn(message, zapFields(fields)...)
}

func Error(message string, fields map[string]interface{}) {
	log.Error(message, zapFields(fields)...)
}

// Fatal logs the message and exits the process.
func Fatal(message string, fields map[string]interface{}) {
	log.Fatal(message, zapFields(fields)...)
}

func zapFields(fields map[string]interface{}) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	zf := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zf = append(zf, zap.Any(k, v))
	}
	return zf
}
