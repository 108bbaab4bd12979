package logging

import (
	"kvbench/internal/config"
)

// VerboseLoggingConfig logs every engine event in human readable form.
func VerboseLoggingConfig() config.LoggingConfig {
	return config.LoggingConfig{
		Level:  "debug",
		Format: "console",
		Output: "stderr",
	}
}

// CILoggingConfig emits machine readable logs for benchmark pipelines.
func CILoggingConfig() config.LoggingConfig {
	return config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}
}

// TestLoggingConfig returns logging configuration optimized for testing
func TestLoggingConfig() config.LoggingConfig {
	return config.LoggingConfig{
		Level:  "error",
		Format: "json",
		Output: "stderr",
	}
}

// SetupEnvironmentLogging configures logging based on environment
func SetupEnvironmentLogging(cfg *config.Config, environment string) {
	switch environment {
	case "verbose", "dev":
		cfg.Logging = VerboseLoggingConfig()
	case "ci":
		cfg.Logging = CILoggingConfig()
	case "test", "testing":
		cfg.Logging = TestLoggingConfig()
	}
}
