package config

import (
	"os"
	"strconv"

	"gobiome/internal/errors"
)

// Config represents the complete analysis configuration
type Config struct {
	Data   DataConfig
	Model  ModelConfig
	Output OutputConfig
}

// DataConfig holds input table settings
type DataConfig struct {
	MetadataFile  string
	AbundanceFile string
	SubjectColumn string  // auto-detected when empty
	SumTolerance  float64 // allowed deviation of abundance row sums from 1
}

// ModelConfig holds regression and correction settings
type ModelConfig struct {
	Alpha          float64 // adjusted-p significance threshold
	FDRMethod      string  // "BY" or "BH"
	Workers        int     // per-feature fit workers; 1 = sequential
	ReferenceLevel string  // categorical reference level; lexicographic minimum when empty
}

// OutputConfig holds export paths
type OutputConfig struct {
	Dir        string
	ReportHTML bool
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Data: DataConfig{
			MetadataFile:  getEnvOrDefault("METADATA_FILE", ""),
			AbundanceFile: getEnvOrDefault("ABUNDANCE_FILE", ""),
			SubjectColumn: getEnvOrDefault("SUBJECT_COLUMN", ""),
			SumTolerance:  getEnvFloatOrDefault("SUM_TOLERANCE", 0.01),
		},
		Model: ModelConfig{
			Alpha:          getEnvFloatOrDefault("ALPHA", 0.05),
			FDRMethod:      getEnvOrDefault("FDR_METHOD", "BY"),
			Workers:        getEnvIntOrDefault("FIT_WORKERS", 1),
			ReferenceLevel: getEnvOrDefault("REFERENCE_LEVEL", ""),
		},
		Output: OutputConfig{
			Dir:        getEnvOrDefault("OUTPUT_DIR", "./results"),
			ReportHTML: getEnvBoolOrDefault("REPORT_HTML", false),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func validateConfig(config *Config) error {
	if config.Model.Alpha <= 0 || config.Model.Alpha >= 1 {
		return errors.ConfigInvalid("ALPHA must be in (0,1)")
	}
	if config.Model.FDRMethod != "BY" && config.Model.FDRMethod != "BH" {
		return errors.ConfigInvalid("FDR_METHOD must be BY or BH")
	}
	if config.Model.Workers < 1 {
		return errors.ConfigInvalid("FIT_WORKERS must be >= 1")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
