package config

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "tabx.db")

	// Import defaults
	v.SetDefault("import.batch_size", 1000)     // records per committed batch
	v.SetDefault("import.sample_rows", 1000)    // rows read for inference/stats
	v.SetDefault("import.sample_values", 5)     // raw values kept per column
	v.SetDefault("import.fallback_encoding", "latin-1")

	// Artifact defaults
	v.SetDefault("artifacts.xml_dir", "artifacts/xml")
	v.SetDefault("artifacts.xsd_dir", "artifacts/xsd")

	// Ingest watcher defaults
	v.SetDefault("ingest.enabled", false)
	v.SetDefault("ingest.watch_dir", "incoming")
	v.SetDefault("ingest.imports_per_minute", 12) // keeps bulk drops from saturating the importer
	v.SetDefault("ingest.debounce_ms", 500)

	// Log defaults
	v.SetDefault("log.json", false)
	v.SetDefault("log.debug", false)
}
