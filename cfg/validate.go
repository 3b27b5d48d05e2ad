package cfg

import "fmt"

// Validate returns a non-nil error if c cannot be used to start a server.
func Validate(c *Config) error {
	if c.Logging.Severity.Rank() < 0 {
		return fmt.Errorf("invalid logging.severity %q", c.Logging.Severity)
	}
	if c.Logging.Format != "" && c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid logging.format %q: must be \"text\" or \"json\"", c.Logging.Format)
	}
	if err := validateLogRotate(&c.Logging.LogRotate); err != nil {
		return fmt.Errorf("logging.log-rotate: %w", err)
	}
	switch c.KVS.Backend {
	case KVSBackendBbolt, KVSBackendMem:
	default:
		return fmt.Errorf("invalid kvs.backend %q: must be \"bbolt\" or \"mem\"", c.KVS.Backend)
	}
	switch c.DSAL.Backend {
	case DSALBackendGCS, DSALBackendMem:
	default:
		return fmt.Errorf("invalid dsal.backend %q: must be \"gcs\" or \"mem\"", c.DSAL.Backend)
	}
	if c.DSAL.Backend == DSALBackendGCS && c.DSAL.Bucket == "" {
		return fmt.Errorf("dsal.bucket is required when dsal.backend is \"gcs\"")
	}
	if c.KVS.Backend == KVSBackendBbolt && c.KVS.Path == "" {
		return fmt.Errorf("kvs.path is required when kvs.backend is \"bbolt\"")
	}
	return nil
}

func validateLogRotate(r *LogRotateConfig) error {
	if r.MaxFileSizeMB <= 0 {
		return fmt.Errorf("max-file-size-mb must be at least 1")
	}
	if r.BackupFileCount < 0 {
		return fmt.Errorf("backup-file-count must be 0 (retain all) or positive")
	}
	return nil
}
