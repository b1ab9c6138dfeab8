// Package log wraps a process-wide zap SugaredLogger.
package log

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// sugar is a no-op logger until Init is called, so library code and tests
// can log freely without setup.
var sugar = zap.NewNop().Sugar()

// Init configures the logger. format "console" selects the human-readable
// development encoder; anything else emits JSON. When outputPath is set the
// log is also written to <outputPath>/clinrag.log.
func Init(level, format, outputPath string) error {
	logLevel := zap.NewAtomicLevel()
	if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		logLevel.SetLevel(zap.InfoLevel)
	}

	var zapConfig zap.Config
	if format == "console" {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zapConfig = zap.NewProductionConfig()
		zapConfig.Encoding = "json"
	}

	zapConfig.Level = logLevel
	// stdout carries command output, logs go to stderr.
	zapConfig.OutputPaths = []string{"stderr"}
	if outputPath != "" {
		if err := os.MkdirAll(outputPath, 0o755); err != nil {
			return err
		}
		zapConfig.OutputPaths = append(zapConfig.OutputPaths, filepath.Join(outputPath, "clinrag.log"))
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return err
	}
	sugar = logger.Sugar()
	return nil
}

// Set replaces the logger. Used by tests that want to observe output.
func Set(l *zap.Logger) {
	sugar = l.Sugar()
}

func Debugf(template string, args ...interface{}) {
	sugar.Debugf(template, args...)
}

func Info(msg string) {
	sugar.Info(msg)
}

func Infof(template string, args ...interface{}) {
	sugar.Infof(template, args...)
}

// Infow logs a message with structured key/value context.
func Infow(msg string, keysAndValues ...interface{}) {
	sugar.Infow(msg, keysAndValues...)
}

func Warnf(template string, args ...interface{}) {
	sugar.Warnf(template, args...)
}

func Warnw(msg string, keysAndValues ...interface{}) {
	sugar.Warnw(msg, keysAndValues...)
}

// Error logs msg at error level with err attached under the "error" key.
func Error(msg string, err error) {
	sugar.Errorw(msg, "error", err)
}

func Errorf(template string, args ...interface{}) {
	sugar.Errorf(template, args...)
}

// Sync flushes buffered entries. Call before the process exits.
func Sync() {
	_ = sugar.Sync()
}
