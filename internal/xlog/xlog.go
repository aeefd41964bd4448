// Package xlog is the node-wide structured logger: a thin wrapper over
// zap exposing the Debug/Info/Warn/Error/Crit levels and key-value pairs
// the rest of this module logs with, plus the console/file sink wiring the
// CLI configures at startup.
package xlog

import (
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is a leveled, structured logger. The zero value is not usable;
// construct one via New or use the package-level default.
type Logger struct {
	z *zap.SugaredLogger
}

var std = New(Config{Level: zapcore.InfoLevel})

// Default returns the package-level logger used by the top-level
// Debug/Info/Warn/Error/Crit functions.
func Default() *Logger { return std }

// SetDefault replaces the package-level default logger, e.g. once the CLI
// has parsed --log-level.
func SetDefault(l *Logger) { std = l }

// Config controls a Logger's sinks and verbosity.
type Config struct {
	Level      zapcore.Level
	FilePath   string // optional rotated file sink, empty disables it
	MaxSizeMB  int    // lumberjack rotation size, default 100
	MaxBackups int    // lumberjack retained rotations, default 5
	MaxAgeDays int    // lumberjack retention window, default 28
}

// New builds a Logger writing colorized level-prefixed lines to stderr
// (matching go-ethereum's console `log` package convention, colorized only
// when stderr is a TTY) and, if cfg.FilePath is set, JSON lines to a
// lumberjack-rotated file.
func New(cfg Config) *Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	var consoleWriter zapcore.WriteSyncer
	if isatty.IsTerminal(os.Stderr.Fd()) {
		consoleWriter = zapcore.AddSync(colorable.NewColorableStderr())
	} else {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		consoleWriter = zapcore.AddSync(os.Stderr)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), consoleWriter, cfg.Level),
	}

	if cfg.FilePath != "" {
		maxSize, maxBackups, maxAge := cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays
		if maxSize == 0 {
			maxSize = 100
		}
		if maxBackups == 0 {
			maxBackups = 5
		}
		if maxAge == 0 {
			maxAge = 28
		}
		fileEncoderCfg := zap.NewProductionEncoderConfig()
		fileEncoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
			MaxAge:     maxAge,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileEncoderCfg), fileWriter, cfg.Level))
	}

	core := zapcore.NewTee(cores...)
	return &Logger{z: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()}
}

// With returns a child logger carrying the given key-value pairs on every
// subsequent log line.
func (l *Logger) With(kv ...interface{}) *Logger {
	return &Logger{z: l.z.With(kv...)}
}

func (l *Logger) Debug(msg string, kv ...interface{}) { l.z.Debugw(msg, kv...) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.z.Infow(msg, kv...) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.z.Warnw(msg, kv...) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.z.Errorw(msg, kv...) }

// Crit logs at error level and then terminates the process, matching
// go-ethereum's log.Crit semantics (an unrecoverable startup/config fault).
func (l *Logger) Crit(msg string, kv ...interface{}) {
	l.z.Errorw(msg, kv...)
	os.Exit(1)
}

// Sync flushes any buffered log lines; callers should defer this at process
// shutdown.
func (l *Logger) Sync() error { return l.z.Sync() }

func Debug(msg string, kv ...interface{}) { std.Debug(msg, kv...) }
func Info(msg string, kv ...interface{})  { std.Info(msg, kv...) }
func Warn(msg string, kv ...interface{})  { std.Warn(msg, kv...) }
func Error(msg string, kv ...interface{}) { std.Error(msg, kv...) }
func Crit(msg string, kv ...interface{})  { std.Crit(msg, kv...) }
