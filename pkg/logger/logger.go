package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// No-op until Init so packages can log from tests.
var log = zap.NewNop().Sugar()

func Init(logLevel, appEnv string) {
	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(parseLevel(logLevel)),
		Development:      appEnv == "development",
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		fallbackLogger := zap.NewExample()
		log = fallbackLogger.Sugar()
		log.Warn("Failed to initialize custom logger, using fallback", "error", err)
		return
	}

	log = logger.Sugar()
}

func parseLevel(logLevel string) zapcore.Level {
	switch logLevel {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func Debug(msg string, keysAndValues ...interface{}) {
	log.Debugw(msg, keysAndValues...)
}

func Info(msg string, keysAndValues ...interface{}) {
	log.Infow(msg, keysAndValues...)
}

func Warn(msg string, keysAndValues ...interface{}) {
	log.Warnw(msg, keysAndValues...)
}

func Error(msg string, keysAndValues ...interface{}) {
	log.Errorw(msg, keysAndValues...)
}

func Fatal(msg string, err error) {
	log.Fatalw(msg, "error", err)
}

// Printf adapts the logger to libraries that expect a printf-style sink
// (cron, the Telegram client).
type Printf struct{}

func (Printf) Printf(format string, v ...interface{}) {
	log.Debugf(format, v...)
}

func (Printf) Println(v ...interface{}) {
	log.Debug(v...)
}

func Sync() {
	if log != nil {
		_ = log.Sync()
	}
}
