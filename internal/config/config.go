// =============================================================================
// Invoice Pipeline - Configuration Module
// =============================================================================
//
// This module loads the single YAML configuration file driving a pipeline
// run: directories, the processed-document database, the reference catalog,
// the remote bulk-quantity service and the export formatting.
//
// LOADING SEQUENCE:
//   1. Read and parse the YAML file
//   2. Apply defaults for unset values
//   3. Validate (and bootstrap the directory tree)
//
// A missing config file is not an error at the Load level when the caller
// passes allowMissing; the defaults describe a fully local, remote-disabled
// run, which is what first-time users get.
//
// =============================================================================

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the application configuration, loaded from config.yaml.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is the directory scanned for invoice inputs (.xml and .zip).
	// Default: "./input"
	InputDir string `yaml:"input_dir"`

	// OutputDir is the directory where CSV exports, the consolidated Excel
	// report and the run summary are written.
	// Default: "./output"
	OutputDir string `yaml:"output_dir"`

	// ArchiveDir is the directory where processed inputs are moved.
	// Default: "./archive"
	ArchiveDir string `yaml:"archive_dir"`

	// DatabasePath is the SQLite file backing the processed-document ledger.
	// Default: "./data/pipeline.db"
	DatabasePath string `yaml:"database_path"`

	// =========================================================================
	// CATALOG SETTINGS
	// =========================================================================

	Catalog CatalogConfig `yaml:"catalog"`

	// =========================================================================
	// REMOTE SERVICE SETTINGS
	// =========================================================================

	Remote RemoteConfig `yaml:"remote"`

	// =========================================================================
	// EXPORT SETTINGS
	// =========================================================================

	CSV CSVSettings `yaml:"csv_settings"`

	// OutputNameFormat defines the CSV file name per run.
	// Placeholders: {uuid}, {timestamp}, {date}, {time}.
	// Default: "facturas_{timestamp}_{uuid}.csv"
	OutputNameFormat string `yaml:"output_name_format"`

	// DisableExcelReport turns off the consolidated Excel report that is
	// otherwise written alongside the CSV export.
	// Default: false (report enabled)
	DisableExcelReport bool `yaml:"disable_excel_report"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `yaml:"log_level"`
}

// CatalogConfig locates the reference catalog workbook.
type CatalogConfig struct {
	// Path is the XLSX workbook holding the product reference table. Empty
	// means no catalog: every line resolves via remote or text pattern.
	Path string `yaml:"path"`

	// FuzzyMaxDistance enables closest-match description lookup within the
	// given Levenshtein distance. Zero (the default) keeps matching exact.
	FuzzyMaxDistance int `yaml:"fuzzy_max_distance"`
}

// RemoteConfig carries the remote bulk-quantity service settings.
type RemoteConfig struct {
	// Enabled switches remote enrichment on. Requires BaseURL, Username and
	// Password when true.
	Enabled bool `yaml:"enabled"`

	// BaseURL is the service root, e.g.
	// "https://somexapp.com/ApiAutoAccess/SomexAutoAccess".
	BaseURL string `yaml:"base_url"`

	// Username and Password authenticate against the login endpoint.
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// TimeoutSeconds bounds each HTTP request. Default: 30.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Timeout returns the configured request timeout as a duration.
func (r RemoteConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// CSVSettings controls the delimited export formatting.
type CSVSettings struct {
	// Delimiter separates the fields. Default: ";"
	Delimiter string `yaml:"delimiter"`

	// DecimalPlaces for quantities and prices. Default: 5
	DecimalPlaces int `yaml:"decimal_places"`

	// DecimalSeparator replaces '.' in formatted numbers. Default: ","
	DecimalSeparator string `yaml:"decimal_separator"`
}

// =============================================================================
// CONFIGURATION LOADING
// =============================================================================

// Load reads the configuration from a YAML file, applies defaults and
// validates the result. When allowMissing is true and the file does not
// exist, the defaults are returned instead of an error.
func Load(configPath string, allowMissing bool) (*MainConfig, error) {
	var config MainConfig

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case os.IsNotExist(err) && allowMissing:
		// First run without a config file: defaults only.
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	applyDefaults(&config)

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// applyDefaults sets default values for any unset configuration options.
func applyDefaults(config *MainConfig) {
	if config.InputDir == "" {
		config.InputDir = "./input"
	}
	if config.OutputDir == "" {
		config.OutputDir = "./output"
	}
	if config.ArchiveDir == "" {
		config.ArchiveDir = "./archive"
	}
	if config.DatabasePath == "" {
		config.DatabasePath = "./data/pipeline.db"
	}
	if config.Remote.TimeoutSeconds == 0 {
		config.Remote.TimeoutSeconds = 30
	}
	if config.CSV.Delimiter == "" {
		config.CSV.Delimiter = ";"
	}
	if config.CSV.DecimalPlaces == 0 {
		config.CSV.DecimalPlaces = 5
	}
	if config.CSV.DecimalSeparator == "" {
		config.CSV.DecimalSeparator = ","
	}
	if config.OutputNameFormat == "" {
		config.OutputNameFormat = "facturas_{timestamp}_{uuid}.csv"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
}

// validate checks cross-field constraints and bootstraps the directories.
func validate(config *MainConfig) error {
	switch config.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", config.LogLevel)
	}

	if len([]rune(config.CSV.Delimiter)) != 1 {
		return fmt.Errorf("csv_settings.delimiter must be a single character, got %q", config.CSV.Delimiter)
	}
	if config.CSV.DecimalPlaces < 0 || config.CSV.DecimalPlaces > 10 {
		return fmt.Errorf("csv_settings.decimal_places out of range: %d", config.CSV.DecimalPlaces)
	}

	if config.Remote.Enabled {
		if config.Remote.BaseURL == "" {
			return fmt.Errorf("remote.base_url is required when remote.enabled is true")
		}
		if config.Remote.Username == "" || config.Remote.Password == "" {
			return fmt.Errorf("remote.username and remote.password are required when remote.enabled is true")
		}
	}

	if config.Catalog.FuzzyMaxDistance < 0 {
		return fmt.Errorf("catalog.fuzzy_max_distance must not be negative")
	}

	for _, dir := range []string{config.InputDir, config.OutputDir, config.ArchiveDir} {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
	}

	return nil
}

// DelimiterRune returns the configured delimiter as a rune.
func (c CSVSettings) DelimiterRune() rune {
	return []rune(c.Delimiter)[0]
}
