// Package cfg is the kvsfs server's configuration surface: the Config
// struct bound to cobra/pflag/viper flags and an optional YAML file (spec
// §1 lists config-file parsing as an external concern, but the shape of the
// config itself — which backends to open, how to log — is load-bearing
// here and follows the teacher's BindFlags-into-viper idiom).
package cfg

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// LogSeverity is the logging verbosity threshold, ordered TRACE..OFF.
type LogSeverity string

const (
	TraceLogSeverity   LogSeverity = "TRACE"
	DebugLogSeverity   LogSeverity = "DEBUG"
	InfoLogSeverity    LogSeverity = "INFO"
	WarningLogSeverity LogSeverity = "WARNING"
	ErrorLogSeverity   LogSeverity = "ERROR"
	OffLogSeverity     LogSeverity = "OFF"
)

var severityRank = map[LogSeverity]int{
	TraceLogSeverity:   0,
	DebugLogSeverity:   1,
	InfoLogSeverity:    2,
	WarningLogSeverity: 3,
	ErrorLogSeverity:   4,
	OffLogSeverity:     5,
}

func (l *LogSeverity) UnmarshalText(text []byte) error {
	level := LogSeverity(strings.ToUpper(string(text)))
	if _, ok := severityRank[level]; !ok {
		return fmt.Errorf("invalid log severity %q: must be one of [TRACE, DEBUG, INFO, WARNING, ERROR, OFF]", text)
	}
	*l = level
	return nil
}

func (l LogSeverity) MarshalText() ([]byte, error) { return []byte(l), nil }

// Rank returns severity's position in the TRACE(0)..OFF(5) ordering, or -1
// for an unrecognized value.
func (l LogSeverity) Rank() int {
	if r, ok := severityRank[l]; ok {
		return r
	}
	return -1
}

// Octal is a base-8 integer config value (e.g. a POSIX mode mask).
type Octal int

func (o *Octal) UnmarshalText(text []byte) error {
	v, err := strconv.ParseInt(string(text), 8, 32)
	if err != nil {
		return err
	}
	*o = Octal(v)
	return nil
}

func (o Octal) MarshalText() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(o), 8)), nil
}

// ResolvedPath is a config path resolved to an absolute form at bind time.
type ResolvedPath string

func (p *ResolvedPath) UnmarshalText(text []byte) error {
	s := string(text)
	if s == "" {
		*p = ""
		return nil
	}
	abs, err := filepath.Abs(s)
	if err != nil {
		return err
	}
	*p = ResolvedPath(abs)
	return nil
}

// KVSBackend selects the kvs.Store implementation the server opens on
// startup (spec §4.A names the contract, not a concrete backend — see
// DESIGN.md's "KVS backend choice" Open Question decision).
type KVSBackend string

const (
	KVSBackendBbolt KVSBackend = "bbolt"
	KVSBackendMem   KVSBackend = "mem"
)

// DSALBackend selects the dsal.Backend implementation.
type DSALBackend string

const (
	DSALBackendGCS DSALBackend = "gcs"
	DSALBackendMem DSALBackend = "mem"
)

// LogRotateConfig mirrors the teacher's lumberjack-backed log-rotation
// knobs (internal/logger, grounded on lumberjack.Logger's own fields).
type LogRotateConfig struct {
	MaxFileSizeMB   int  `yaml:"max-file-size-mb" mapstructure:"max-file-size-mb"`
	BackupFileCount int  `yaml:"backup-file-count" mapstructure:"backup-file-count"`
	Compress        bool `yaml:"compress" mapstructure:"compress"`
}

// LoggingConfig configures internal/logger.
type LoggingConfig struct {
	Severity  LogSeverity     `yaml:"severity" mapstructure:"severity"`
	Format    string          `yaml:"format" mapstructure:"format"` // "text" or "json"
	FilePath  ResolvedPath    `yaml:"file-path" mapstructure:"file-path"`
	LogRotate LogRotateConfig `yaml:"log-rotate" mapstructure:"log-rotate"`
}

// KVSConfig configures the kvs.Store the server opens for namespace
// metadata.
type KVSConfig struct {
	Backend KVSBackend   `yaml:"backend" mapstructure:"backend"`
	Path    ResolvedPath `yaml:"path" mapstructure:"path"`
}

// DSALConfig configures the dsal.Backend the server opens for file data.
type DSALConfig struct {
	Backend DSALBackend `yaml:"backend" mapstructure:"backend"`
	Bucket  string      `yaml:"bucket" mapstructure:"bucket"`
}

// ExportConfig configures the rendered endpoint/export list (spec §6, §9).
type ExportConfig struct {
	Path ResolvedPath `yaml:"path" mapstructure:"path"`
}

// MetricsConfig configures internal/metrics' Prometheus exposition.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Addr    string `yaml:"addr" mapstructure:"addr"`
}

// TracingConfig configures internal/tracing's otel span export.
type TracingConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// Config is the top-level, YAML-and-flag-bound server configuration.
type Config struct {
	AppName string        `yaml:"app-name" mapstructure:"app-name"`
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	KVS     KVSConfig     `yaml:"kvs" mapstructure:"kvs"`
	DSAL    DSALConfig    `yaml:"dsal" mapstructure:"dsal"`
	Export  ExportConfig  `yaml:"export" mapstructure:"export"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
}
