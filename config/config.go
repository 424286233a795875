package config

// Config represents the core tabx configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database" toml:"database"`
	Import    ImportConfig    `mapstructure:"import" toml:"import"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts" toml:"artifacts"`
	Ingest    IngestConfig    `mapstructure:"ingest" toml:"ingest"`
	Log       LogConfig       `mapstructure:"log" toml:"log"`
}

// DatabaseConfig configures the SQLite record store
type DatabaseConfig struct {
	Path string `mapstructure:"path" toml:"path"`
}

// ImportConfig configures CSV analysis and batch import
type ImportConfig struct {
	// BatchSize is the number of records committed per batch (default: 1000)
	BatchSize int `mapstructure:"batch_size" toml:"batch_size"`
	// SampleRows bounds how many data rows structural analysis reads
	// for type inference and column statistics (default: 1000)
	SampleRows int `mapstructure:"sample_rows" toml:"sample_rows"`
	// SampleValues caps the per-column raw value sample kept for
	// UI/debug display (default: 5)
	SampleValues int `mapstructure:"sample_values" toml:"sample_values"`
	// FallbackEncoding is used when the UTF-8 probe fails (default: latin-1)
	FallbackEncoding string `mapstructure:"fallback_encoding" toml:"fallback_encoding"`
}

// ArtifactsConfig configures where generated XML/XSD documents are written
type ArtifactsConfig struct {
	XMLDir string `mapstructure:"xml_dir" toml:"xml_dir"`
	XSDDir string `mapstructure:"xsd_dir" toml:"xsd_dir"`
}

// IngestConfig configures the drop-directory auto-import watcher
type IngestConfig struct {
	Enabled bool `mapstructure:"enabled" toml:"enabled"`
	// WatchDir is the directory scanned for dropped CSV files
	WatchDir string `mapstructure:"watch_dir" toml:"watch_dir"`
	// ImportsPerMinute throttles auto-imports (default: 12)
	ImportsPerMinute int `mapstructure:"imports_per_minute" toml:"imports_per_minute"`
	// DebounceMs coalesces rapid write events for the same file (default: 500)
	DebounceMs int `mapstructure:"debounce_ms" toml:"debounce_ms"`
}

// LogConfig configures the shared logger
type LogConfig struct {
	JSON  bool `mapstructure:"json" toml:"json"`
	Debug bool `mapstructure:"debug" toml:"debug"`
}
