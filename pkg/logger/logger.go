package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
)

var (
	globalBase  *zap.Logger
	globalSugar *zap.SugaredLogger
)

// Init builds the global zap logger. env selects the preset: "prod" or
// "production" gives the JSON production config, anything else the
// development config. Stdlib log output is redirected to zap so stray
// log.Printf calls from dependencies are captured.
func Init(env string) (*zap.Logger, error) {
	if globalBase != nil {
		return globalBase, nil
	}

	var cfg zap.Config
	if strings.EqualFold(env, "prod") || strings.EqualFold(env, "production") {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	base, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	zap.ReplaceGlobals(base)
	_ = zap.RedirectStdLog(base)

	globalBase = base
	globalSugar = base.Sugar()
	return globalBase, nil
}

// Base returns the global *zap.Logger, initializing a development
// logger on first use if Init was never called.
func Base() *zap.Logger {
	if globalBase == nil {
		if _, err := Init(os.Getenv("LOG_ENV")); err != nil {
			base, _ := zap.NewDevelopment()
			globalBase = base
			globalSugar = base.Sugar()
		}
	}
	return globalBase
}

// L returns the global sugared logger.
func L() *zap.SugaredLogger {
	Base()
	return globalSugar
}

// Sync flushes buffered log entries. Call before process exit.
func Sync() {
	if globalBase != nil {
		_ = globalBase.Sync()
	}
}

// GORMWriter adapts the global logger to gorm's logger.Writer
// interface (a single Printf method). GORM only routes messages here
// at warn level and above, so everything is logged as a warning.
type GORMWriter struct{}

// NewGORMWriter returns a writer for gorm's logger.New.
func NewGORMWriter() GORMWriter {
	return GORMWriter{}
}

// Printf implements gorm.io/gorm/logger.Writer.
func (w GORMWriter) Printf(format string, v ...interface{}) {
	msg := strings.TrimRight(fmt.Sprintf(format, v...), "\r\n")
	Base().Warn(msg)
}
