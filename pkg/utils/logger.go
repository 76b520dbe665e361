package utils

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger returns the process logger tagged with the service name. Debug selects the
// development encoder at debug level; otherwise JSON at info level, with stack traces only
// for errors logged at DPanic and above.
func NewLogger(debug bool) (*zap.Logger, error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "time"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	return cfg.Build(
		zap.AddStacktrace(zapcore.DPanicLevel),
		zap.Fields(zap.String("service", "titlenorm")),
	)
}
