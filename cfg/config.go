package cfg

import (
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// BindFlags registers every Config flag on flagSet and binds it into v,
// following the teacher's BindFlags-into-viper idiom (cfg/config.go): flags
// are the source of truth for defaults, viper merges in config-file and
// environment overrides on top.
func BindFlags(v *viper.Viper, flagSet *pflag.FlagSet) error {
	d := Default()

	flagSet.String("app-name", d.AppName, "Name reported by this server instance.")

	flagSet.String("logging.severity", string(d.Logging.Severity), "Minimum log severity: TRACE, DEBUG, INFO, WARNING, ERROR, OFF.")
	flagSet.String("logging.format", d.Logging.Format, "Log output format: text or json.")
	flagSet.String("logging.file-path", string(d.Logging.FilePath), "Log file path; empty logs to stderr.")
	flagSet.Int("logging.log-rotate.max-file-size-mb", d.Logging.LogRotate.MaxFileSizeMB, "Log file size, in MB, before rotation.")
	flagSet.Int("logging.log-rotate.backup-file-count", d.Logging.LogRotate.BackupFileCount, "Rotated log files to retain (0 retains all).")
	flagSet.Bool("logging.log-rotate.compress", d.Logging.LogRotate.Compress, "Gzip-compress rotated log files.")

	flagSet.String("kvs.backend", string(d.KVS.Backend), "KVS driver backend: bbolt or mem.")
	flagSet.String("kvs.path", string(d.KVS.Path), "Path to the bbolt KVS database file.")

	flagSet.String("dsal.backend", string(d.DSAL.Backend), "DSAL backend: gcs or mem.")
	flagSet.String("dsal.bucket", d.DSAL.Bucket, "GCS bucket backing the DSAL object store.")

	flagSet.String("export.path", string(d.Export.Path), "Path to render the rendered NFS endpoint/export config file.")

	flagSet.Bool("metrics.enabled", d.Metrics.Enabled, "Expose Prometheus metrics.")
	flagSet.String("metrics.addr", d.Metrics.Addr, "Address to serve Prometheus metrics on.")

	flagSet.Bool("tracing.enabled", d.Tracing.Enabled, "Emit OpenTelemetry traces for CFS operations.")

	return v.BindPFlags(flagSet)
}

// decodeHook composes the UnmarshalText-aware string decoders this package's
// custom types (LogSeverity, Octal, ResolvedPath) need, the same role the
// teacher's cfg/decode_hook.go plays for its own custom flag types.
func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
	)
}

// Decode populates cfg from v (flags merged with any loaded config file).
func Decode(v *viper.Viper, out *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       decodeHook(),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(v.AllSettings())
}
