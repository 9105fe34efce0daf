package config

import (
	"strings"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      ValidationError
		expected string
	}{
		{
			name:     "simple error",
			err:      ValidationError{Path: "totalProcs", Message: "must not be negative"},
			expected: "totalProcs: must not be negative",
		},
		{
			name:     "empty path",
			err:      ValidationError{Path: "", Message: "error message"},
			expected: ": error message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("ValidationError.Error() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestValidationErrors_Error(t *testing.T) {
	errs := ValidationErrors{
		{Path: "a", Message: "first"},
		{Path: "b", Message: "second"},
	}
	if got, want := errs.Error(), "a: first; b: second"; got != want {
		t.Errorf("ValidationErrors.Error() = %q, want %q", got, want)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantPaths []string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:   "nothing to launch with zero limit",
			mutate: func(c *Config) { c.TotalProcs = 0; c.ConcurrencyLimit = 0 },
		},
		{
			name:      "zero limit with work to do",
			mutate:    func(c *Config) { c.ConcurrencyLimit = 0 },
			wantPaths: []string{"concurrencyLimit"},
		},
		{
			name:      "negative counts",
			mutate:    func(c *Config) { c.TotalProcs = -1; c.ConcurrencyLimit = -2 },
			wantPaths: []string{"totalProcs", "concurrencyLimit"},
		},
		{
			name:      "child time limit below one second",
			mutate:    func(c *Config) { c.ChildTimeLimit = 0 },
			wantPaths: []string{"childTimeLimit"},
		},
		{
			name:      "negative launch interval",
			mutate:    func(c *Config) { c.LaunchIntervalMs = -5 },
			wantPaths: []string{"launchIntervalMs"},
		},
		{
			name:      "empty table",
			mutate:    func(c *Config) { c.TableCapacity = 0 },
			wantPaths: []string{"tableCapacity"},
		},
		{
			name:      "missing log file",
			mutate:    func(c *Config) { c.LogFile = "  " },
			wantPaths: []string{"logFile"},
		},
		{
			name:      "unparseable time limit",
			mutate:    func(c *Config) { c.TimeLimit = "soon" },
			wantPaths: []string{"timeLimit"},
		},
		{
			name:      "zero time limit",
			mutate:    func(c *Config) { c.TimeLimit = "0s" },
			wantPaths: []string{"timeLimit"},
		},
		{
			name:   "limit above capacity is allowed",
			mutate: func(c *Config) { c.ConcurrencyLimit = 50; c.TableCapacity = 3 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			errs := ValidateConfig(cfg)
			if len(errs) != len(tt.wantPaths) {
				t.Fatalf("ValidateConfig() returned %d errors, want %d: %v", len(errs), len(tt.wantPaths), errs)
			}
			for i, path := range tt.wantPaths {
				if errs[i].Path != path {
					t.Errorf("error %d path = %q, want %q", i, errs[i].Path, path)
				}
				if strings.TrimSpace(errs[i].Message) == "" {
					t.Errorf("error %d has empty message", i)
				}
			}
		})
	}
}
