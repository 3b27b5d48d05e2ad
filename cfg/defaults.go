package cfg

// Default returns the configuration used when no flags or config file
// override it: a bbolt KVS file (kvsfs.db) with the in-memory DSAL backend,
// so a first run needs no GCS bucket, INFO logging to stderr, and
// metrics/tracing off.
func Default() Config {
	return Config{
		AppName: "kvsfsd",
		Logging: LoggingConfig{
			Severity: InfoLogSeverity,
			Format:   "text",
			LogRotate: LogRotateConfig{
				MaxFileSizeMB:   512,
				BackupFileCount: 10,
				Compress:        true,
			},
		},
		KVS: KVSConfig{
			Backend: KVSBackendBbolt,
			Path:    "kvsfs.db",
		},
		DSAL: DSALConfig{
			Backend: DSALBackendMem,
		},
		Export: ExportConfig{
			Path: "exports.json",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9100",
		},
		Tracing: TracingConfig{
			Enabled: false,
		},
	}
}
