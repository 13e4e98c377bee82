// Package logger wraps zap with the application's output and rotation settings
package logger

import (
	"os"
	"strings"

	"github.com/Belgarat/freedownloadlandingpage/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger struct {
	SugaredLogger *zap.SugaredLogger
}

// New builds a logger writing to stdout, a rotated file, or both
func New(cfg config.LoggingConfig) (*Logger, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
		level.SetLevel(zap.InfoLevel)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	var sinks []zapcore.WriteSyncer
	switch cfg.Output {
	case "file":
		sinks = append(sinks, fileSink(cfg))
	case "both":
		sinks = append(sinks, zapcore.Lock(os.Stdout), fileSink(cfg))
	default:
		sinks = append(sinks, zapcore.Lock(os.Stdout))
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(sinks...), level)

	var opts []zap.Option
	if cfg.EnableCaller {
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(1))
	}
	if cfg.EnableStacktrace {
		opts = append(opts, zap.AddStacktrace(zap.ErrorLevel))
	}

	return &Logger{SugaredLogger: zap.New(core, opts...).Sugar()}, nil
}

// NewNop returns a logger that discards everything
func NewNop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func fileSink(cfg config.LoggingConfig) zapcore.WriteSyncer {
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	})
}

func (l *Logger) Sync() {
	_ = l.SugaredLogger.Sync()
}

func (l *Logger) Debug(msg string, keysAndValues ...any) {
	l.SugaredLogger.Debugw(msg, keysAndValues...)
}
func (l *Logger) Info(msg string, keysAndValues ...any) {
	l.SugaredLogger.Infow(msg, keysAndValues...)
}
func (l *Logger) Warn(msg string, keysAndValues ...any) {
	l.SugaredLogger.Warnw(msg, keysAndValues...)
}
func (l *Logger) Error(msg string, keysAndValues ...any) {
	l.SugaredLogger.Errorw(msg, keysAndValues...)
}
func (l *Logger) Fatal(msg string, keysAndValues ...any) {
	l.SugaredLogger.Fatalw(msg, keysAndValues...)
}
func (l *Logger) With(keysAndValues ...any) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(keysAndValues...)}
}
