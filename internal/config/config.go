// =============================================================================
// SEPA Direct Debit Generator - Configuration Module
// =============================================================================
//
// This module is responsible for loading and managing all configuration files.
// It handles the main application configuration and optional per-club
// profiles.
//
// CONFIGURATION SOURCES (later wins):
//   1. Main Config (config.yaml): directories, logging, the club and the
//      column mapping
//   2. .env file: loaded into the process environment if present
//   3. SEPA_* environment variables: override the club identity
//   4. Club profiles (profiles/*.yaml): per-export club and mapping, chosen
//      by file name pattern
//
// =============================================================================

package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/clubsepa/lastschrift/internal/mapping"
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
// This is loaded from the main config.yaml file.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is scanned for member exports in directory mode.
	// Default: "./input"
	InputDir string `yaml:"input_dir"`

	// OutputDir is where generated XML files are placed.
	// Default: "./output"
	OutputDir string `yaml:"output_dir"`

	// InputArchiveDir receives exports after a successful run when
	// ArchiveInputs is set.
	// Default: "./input_archive"
	InputArchiveDir string `yaml:"input_archive_dir"`

	// ProfilesDir contains optional club profiles.
	// Default: "./profiles"
	ProfilesDir string `yaml:"profiles_dir"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogDir is where advisory and summary logs are written.
	// Default: "./logs"
	LogDir string `yaml:"log_dir"`

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// OutputName is the template for output file names.
	// Placeholders:
	//   {date}      - Build date (YYYY-MM-DD)
	//   {timestamp} - Build time (YYYYMMDD_HHMMSS)
	//   {uuid}      - A random UUID
	//   {original}  - Input file name without extension
	//
	// Default: "sepa-lastschrift-{date}.xml"
	OutputName string `yaml:"output_name"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// MaxConcurrency is the maximum number of files processed concurrently
	// in directory mode. Set to 1 for sequential processing.
	// Default: 4
	MaxConcurrency int `yaml:"max_concurrency"`

	// ContinueOnError keeps processing other files when one fails.
	// Default: false
	ContinueOnError bool `yaml:"continue_on_error"`

	// ArchiveInputs moves processed exports to InputArchiveDir.
	// Default: false
	ArchiveInputs bool `yaml:"archive_inputs"`

	// =========================================================================
	// SERVER SETTINGS
	// =========================================================================

	Server ServerConfig `yaml:"server"`

	// =========================================================================
	// CLUB AND MAPPING
	// =========================================================================

	// Club is the collecting club.
	Club OriginatorConfig `yaml:"club"`

	// Mapping is the column mapping applied to exports.
	Mapping MappingConfig `yaml:"mapping"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	// Addr is the listen address.
	// Default: ":8080"
	Addr string `yaml:"addr"`

	// MaxUploadMB limits the size of uploaded exports.
	// Default: 10
	MaxUploadMB int64 `yaml:"max_upload_mb"`
}

// MappingConfig is the column mapping as written in YAML.
//
// Example:
//
//	mapping:
//	  has_header: true
//	  columns:
//	    full_name: 0
//	    iban: 1
//	    mandate_date: 2
//	    mandate_reference: 3
type MappingConfig struct {
	// HasHeader declares the first row a header.
	HasHeader bool `yaml:"has_header" json:"hasHeader"`

	// Columns maps field names to zero-based column indexes.
	Columns map[string]int `yaml:"columns" json:"columns"`
}

// FieldMapping converts the configured columns into a FieldMapping.
func (m MappingConfig) FieldMapping() (mapping.FieldMapping, error) {
	fm, err := mapping.FromIndexes(m.Columns)
	if err != nil {
		return mapping.FieldMapping{}, fmt.Errorf("mapping: %w", err)
	}
	return fm, nil
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// LoadMainConfig loads the main configuration from a YAML file.
//
// PARAMETERS:
//   - configPath: The path to the main configuration file.
//
// RETURNS:
//   - A pointer to the MainConfig struct, with defaults applied and
//     environment overrides merged.
//   - An error if the file cannot be read or parsed.
//
// The club configuration is not validated here: a config without a club is
// still usable for the identifier commands. Callers that build documents
// call Club.Validate.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	// Read the configuration file.
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config, err := ParseMainConfig(data)
	if err != nil {
		return nil, err
	}

	// Environment overrides.
	if err := ApplyEnv(config); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	// Validate the configuration.
	if err := validateMainConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// ParseMainConfig parses YAML and applies defaults. No directories are
// touched and the environment is not consulted.
func ParseMainConfig(data []byte) (*MainConfig, error) {
	var config MainConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyMainConfigDefaults(&config)

	return &config, nil
}

// Default returns a configuration with every default applied.
func Default() *MainConfig {
	var config MainConfig
	applyMainConfigDefaults(&config)
	return &config
}

// applyMainConfigDefaults sets default values for any unset configuration options.
func applyMainConfigDefaults(config *MainConfig) {
	if config.InputDir == "" {
		config.InputDir = "./input"
	}
	if config.OutputDir == "" {
		config.OutputDir = "./output"
	}
	if config.InputArchiveDir == "" {
		config.InputArchiveDir = "./input_archive"
	}
	if config.ProfilesDir == "" {
		config.ProfilesDir = "./profiles"
	}
	if config.LogDir == "" {
		config.LogDir = "./logs"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.OutputName == "" {
		config.OutputName = "sepa-lastschrift-{date}.xml"
	}
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = 4
	}
	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
	if config.Server.MaxUploadMB == 0 {
		config.Server.MaxUploadMB = 10
	}
	config.Club.ApplyDefaults()
}

// validateMainConfig validates the main configuration.
func validateMainConfig(config *MainConfig) error {
	switch strings.ToLower(config.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level %q is not one of debug, info, warn, error", config.LogLevel)
	}

	if config.MaxConcurrency < 1 {
		return fmt.Errorf("max_concurrency must be at least 1")
	}

	if !strings.HasSuffix(strings.ToLower(config.OutputName), ".xml") {
		return fmt.Errorf("output_name %q must end in .xml", config.OutputName)
	}

	if len(config.Mapping.Columns) > 0 {
		if _, err := config.Mapping.FieldMapping(); err != nil {
			return err
		}
	}

	return nil
}

// EnsureDirs creates the output and log directories if needed.
func (c *MainConfig) EnsureDirs() error {
	dirs := []string{
		c.OutputDir,
		c.LogDir,
	}
	if c.ArchiveInputs {
		dirs = append(dirs, c.InputArchiveDir)
	}

	for _, dir := range dirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			// Create the directory if it doesn't exist.
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
	}

	return nil
}
