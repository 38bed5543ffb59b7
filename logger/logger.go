// logger/logger.go
package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// String returns the lower-case level name used in configuration files.
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "debug"
	case INFO:
		return "info"
	case WARN:
		return "warn"
	case ERROR:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLevel maps a configuration string onto a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG, nil
	case "", "info":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("unknown log level %q", s)
	}
}

// Options controls where log lines go.
// If File is empty, logs only to console.
// If Console is false, logs only to file.
type Options struct {
	File       string
	Console    bool
	Level      LogLevel
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type Logger struct {
	sugar *zap.SugaredLogger
	level zap.AtomicLevel
	file  *lumberjack.Logger
}

var (
	defaultLogger *Logger
	once          sync.Once
	mu            sync.RWMutex
)

// ensureInitialized creates a console logger at DEBUG if Init was never called
func ensureInitialized() *Logger {
	once.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		if defaultLogger == nil {
			defaultLogger, _ = build(Options{Console: true, Level: DEBUG})
		}
	})
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

func build(opts Options) (*Logger, error) {
	level := zap.NewAtomicLevelAt(opts.Level.zapLevel())
	var cores []zapcore.Core

	if opts.File != "" {
		file := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
		enc := zap.NewProductionEncoderConfig()
		enc.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(file), level))

		l := &Logger{level: level, file: file}
		if opts.Console {
			cores = append(cores, consoleCore(level))
		}
		l.sugar = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()
		return l, nil
	}

	if !opts.Console {
		return nil, fmt.Errorf("no output destination specified")
	}
	cores = append(cores, consoleCore(level))
	return &Logger{
		sugar: zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1)).Sugar(),
		level: level,
	}, nil
}

func consoleCore(level zap.AtomicLevel) zapcore.Core {
	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	enc.EncodeTime = zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05")
	return zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.Lock(os.Stdout), level)
}

// Init replaces the default logger. Safe to call more than once; the previous
// log file is flushed and closed.
func Init(opts Options) error {
	l, err := build(opts)
	if err != nil {
		return err
	}
	once.Do(func() {})

	mu.Lock()
	prev := defaultLogger
	defaultLogger = l
	mu.Unlock()

	if prev != nil {
		prev.close()
	}
	return nil
}

// SetLevel sets the minimum log level (DEBUG, INFO, WARN, ERROR).
// Messages below this level will not be logged.
func SetLevel(level LogLevel) {
	ensureInitialized().level.SetLevel(level.zapLevel())
}

// Level reports the current minimum level.
func Level() LogLevel {
	switch ensureInitialized().level.Level() {
	case zapcore.DebugLevel:
		return DEBUG
	case zapcore.WarnLevel:
		return WARN
	case zapcore.ErrorLevel, zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return ERROR
	default:
		return INFO
	}
}

// Close flushes buffered entries and closes the log file if one is open
func Close() {
	mu.RLock()
	l := defaultLogger
	mu.RUnlock()
	if l != nil {
		l.close()
	}
}

func (l *Logger) close() {
	_ = l.sugar.Sync()
	if l.file != nil {
		l.file.Close()
	}
}

// Zap exposes the underlying logger for libraries that accept one.
func Zap() *zap.Logger {
	return ensureInitialized().sugar.Desugar()
}

// Debug logs a debug message
func Debug(v ...interface{}) {
	ensureInitialized().sugar.Debug(fmt.Sprint(v...))
}

// Debugf logs a formatted debug message
func Debugf(format string, v ...interface{}) {
	ensureInitialized().sugar.Debugf(format, v...)
}

// Info logs an info message
func Info(v ...interface{}) {
	ensureInitialized().sugar.Info(fmt.Sprint(v...))
}

// Infof logs a formatted info message
func Infof(format string, v ...interface{}) {
	ensureInitialized().sugar.Infof(format, v...)
}

// Warn logs a warning message
func Warn(v ...interface{}) {
	ensureInitialized().sugar.Warn(fmt.Sprint(v...))
}

// Warnf logs a formatted warning message
func Warnf(format string, v ...interface{}) {
	ensureInitialized().sugar.Warnf(format, v...)
}

// Error logs an error message
func Error(v ...interface{}) {
	ensureInitialized().sugar.Error(fmt.Sprint(v...))
}

// Errorf logs a formatted error message
func Errorf(format string, v ...interface{}) {
	ensureInitialized().sugar.Errorf(format, v...)
}

// Fatal logs an error message and exits the program
func Fatal(v ...interface{}) {
	l := ensureInitialized()
	l.sugar.Error(fmt.Sprint(v...))
	l.close()
	os.Exit(1)
}

// Fatalf logs a formatted error message and exits the program
func Fatalf(format string, v ...interface{}) {
	l := ensureInitialized()
	l.sugar.Errorf(format, v...)
	l.close()
	os.Exit(1)
}
