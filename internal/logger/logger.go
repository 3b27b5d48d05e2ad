// Package logger is kvsfs's structured logging layer: a package-level slog
// logger whose handler, level, and output sink are reconfigurable at
// startup from cfg.LoggingConfig, following the teacher's own
// internal/logger package (slog + severity levels + lumberjack rotation +
// selectable text/json rendering).
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/kvsfs/kvsfs/cfg"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Severity levels, mapped onto slog's int levels with TRACE and OFF added
// below and above slog's built-in Debug..Error range respectively.
const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	LevelOff   = slog.Level(16)
)

func severityToLevel(s cfg.LogSeverity) slog.Level {
	switch s {
	case cfg.TraceLogSeverity:
		return LevelTrace
	case cfg.DebugLogSeverity:
		return LevelDebug
	case cfg.InfoLogSeverity:
		return LevelInfo
	case cfg.WarningLogSeverity:
		return LevelWarn
	case cfg.ErrorLogSeverity:
		return LevelError
	case cfg.OffLogSeverity:
		return LevelOff
	default:
		return LevelInfo
	}
}

func levelLabel(l slog.Level) string {
	switch {
	case l < LevelDebug:
		return "TRACE"
	case l < LevelInfo:
		return "DEBUG"
	case l < LevelWarn:
		return "INFO"
	case l < LevelError:
		return "WARNING"
	default:
		return "ERROR"
	}
}

// loggerFactory owns the current sink (stderr or a rotating file) and
// format, so the level/format/destination can be swapped at runtime
// without callers re-acquiring a new logger handle.
type loggerFactory struct {
	file      *os.File
	async     *AsyncLogger
	format    string // "text" or "json"
	level     cfg.LogSeverity
	logRotate cfg.LogRotateConfig
}

func (f *loggerFactory) createHandler(w io.Writer, levelVar *slog.LevelVar) slog.Handler {
	return f.createJsonOrTextHandler(w, levelVar, "")
}

func (f *loggerFactory) createJsonOrTextHandler(w io.Writer, levelVar *slog.LevelVar, prefix string) slog.Handler {
	replace := func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == slog.LevelKey {
			a.Key = "severity"
			lvl, _ := a.Value.Any().(slog.Level)
			a.Value = slog.StringValue(levelLabel(lvl))
		}
		if a.Key == slog.MessageKey && prefix != "" {
			a.Value = slog.StringValue(prefix + a.Value.String())
		}
		return a
	}
	opts := &slog.HandlerOptions{Level: levelVar, ReplaceAttr: replace}
	if f.format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

var programLevel = new(slog.LevelVar)

var (
	defaultLoggerFactory = &loggerFactory{format: "text", level: cfg.InfoLogSeverity}
	defaultLogger         = slog.New(defaultLoggerFactory.createHandler(os.Stderr, programLevel))
)

func setLoggingLevel(level cfg.LogSeverity, v *slog.LevelVar) {
	v.Set(severityToLevel(level))
}

// Init (re)configures the package-level logger from c. It is not
// concurrency-safe against concurrent Tracef/Debugf/... calls and is meant
// to be called once during server startup.
func Init(c cfg.LoggingConfig) error {
	format := c.Format
	if format == "" {
		format = "text"
	}

	var w io.Writer = os.Stderr
	f := &loggerFactory{format: format, level: c.Severity, logRotate: c.LogRotate}

	if c.FilePath != "" {
		lj := &lumberjack.Logger{
			Filename:   string(c.FilePath),
			MaxSize:    c.LogRotate.MaxFileSizeMB,
			MaxBackups: c.LogRotate.BackupFileCount,
			Compress:   c.LogRotate.Compress,
		}
		async := NewAsyncLogger(lj, 4096)
		f.async = async
		w = async
	}

	defaultLoggerFactory = f
	setLoggingLevel(c.Severity, programLevel)
	defaultLogger = slog.New(f.createHandler(w, programLevel))
	return nil
}

// SetLevel changes the active severity threshold without touching the
// output sink or format.
func SetLevel(s cfg.LogSeverity) {
	defaultLoggerFactory.level = s
	setLoggingLevel(s, programLevel)
}

// Close releases the background writer and file handle, if Init opened
// one. Safe to call even if Init was never called or logged to stderr.
func Close() error {
	if defaultLoggerFactory.async != nil {
		return defaultLoggerFactory.async.Close()
	}
	return nil
}

func Tracef(format string, args ...any) { logf(LevelTrace, format, args...) }
func Debugf(format string, args ...any) { logf(LevelDebug, format, args...) }
func Infof(format string, args ...any)  { logf(LevelInfo, format, args...) }
func Warnf(format string, args ...any)  { logf(LevelWarn, format, args...) }
func Errorf(format string, args ...any) { logf(LevelError, format, args...) }

func logf(level slog.Level, format string, args ...any) {
	defaultLogger.Log(context.Background(), level, fmt.Sprintf(format, args...))
}
