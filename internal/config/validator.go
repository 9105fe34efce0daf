package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Path    string
	Message string
}

// Error returns the error message
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors is a list of validation errors returned as one error.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	msgs := make([]string, len(ve))
	for i, e := range ve {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// ValidateConfig checks the semantic rules the schema cannot express.
func ValidateConfig(config *Config) []ValidationError {
	var errors []ValidationError

	if config.TotalProcs < 0 {
		errors = append(errors, ValidationError{
			Path:    "totalProcs",
			Message: "must not be negative",
		})
	}

	if config.ConcurrencyLimit < 0 {
		errors = append(errors, ValidationError{
			Path:    "concurrencyLimit",
			Message: "must not be negative",
		})
	} else if config.ConcurrencyLimit == 0 && config.TotalProcs > 0 {
		// Admission could never succeed and the run would stall until the
		// watchdog fires.
		errors = append(errors, ValidationError{
			Path:    "concurrencyLimit",
			Message: fmt.Sprintf("must be at least 1 to launch %d workers", config.TotalProcs),
		})
	}

	if config.ChildTimeLimit < 1 {
		errors = append(errors, ValidationError{
			Path:    "childTimeLimit",
			Message: "must be at least 1 second",
		})
	}

	if config.LaunchIntervalMs < 0 {
		errors = append(errors, ValidationError{
			Path:    "launchIntervalMs",
			Message: "must not be negative",
		})
	}

	if config.TableCapacity < 1 {
		errors = append(errors, ValidationError{
			Path:    "tableCapacity",
			Message: "must be at least 1",
		})
	}

	if strings.TrimSpace(config.LogFile) == "" {
		errors = append(errors, ValidationError{
			Path:    "logFile",
			Message: "log file is required",
		})
	}

	if d, err := config.RealTimeLimit(); err != nil {
		errors = append(errors, ValidationError{
			Path:    "timeLimit",
			Message: err.Error(),
		})
	} else if d <= 0 {
		errors = append(errors, ValidationError{
			Path:    "timeLimit",
			Message: "must be positive",
		})
	}

	return errors
}
