package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gobwas/glob"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "launcher.discovery_interval_ms")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// maxShells is a primary shell plus exactly one alternate.
const maxShells = 2

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError
	errors = append(errors, c.validateLauncher()...)
	errors = append(errors, c.validateDiscovery()...)
	errors = append(errors, c.validateLogging()...)
	return errors
}

func (c *Config) validateLauncher() []ValidationError {
	var errors []ValidationError
	l := c.Launcher

	if strings.TrimSpace(l.DefaultName) == "" {
		errors = append(errors, ValidationError{
			Field:   "launcher.default_name",
			Value:   l.DefaultName,
			Message: "must not be empty",
		})
	}

	if l.DiscoveryBudgetMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "launcher.discovery_budget_ms",
			Value:   l.DiscoveryBudgetMs,
			Message: "must be non-negative",
		})
	}

	if l.DiscoveryIntervalMs <= 0 {
		errors = append(errors, ValidationError{
			Field:   "launcher.discovery_interval_ms",
			Value:   l.DiscoveryIntervalMs,
			Message: "must be positive",
		})
	} else if l.DiscoveryBudgetMs > 0 && l.DiscoveryIntervalMs > l.DiscoveryBudgetMs {
		errors = append(errors, ValidationError{
			Field:   "launcher.discovery_interval_ms",
			Value:   l.DiscoveryIntervalMs,
			Message: fmt.Sprintf("must not exceed discovery_budget_ms (%d)", l.DiscoveryBudgetMs),
		})
	}

	if l.StopTimeoutMs <= 0 {
		errors = append(errors, ValidationError{
			Field:   "launcher.stop_timeout_ms",
			Value:   l.StopTimeoutMs,
			Message: "must be positive",
		})
	}

	if len(l.Shells) > maxShells {
		errors = append(errors, ValidationError{
			Field:   "launcher.shells",
			Value:   l.Shells,
			Message: fmt.Sprintf("at most %d shells (primary and one alternate)", maxShells),
		})
	}
	for i, sh := range l.Shells {
		if strings.TrimSpace(sh) == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("launcher.shells[%d]", i),
				Value:   sh,
				Message: "must not be empty",
			})
		}
	}

	return errors
}

func (c *Config) validateDiscovery() []ValidationError {
	var errors []ValidationError

	for i, name := range c.Discovery.Interpreters {
		if name == "" || strings.ContainsAny(name, `/\`) || filepath.Ext(name) != "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("discovery.interpreters[%d]", i),
				Value:   name,
				Message: "must be a bare program name without path or extension",
			})
		}
	}

	for i, pattern := range c.Discovery.ExecutablePatterns {
		if _, err := glob.Compile(strings.ToLower(pattern)); err != nil || pattern == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("discovery.executable_patterns[%d]", i),
				Value:   pattern,
				Message: "must be a valid glob pattern",
			})
		}
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	const maxLogSizeMB = 1000
	switch {
	case c.Logging.MaxSizeMB <= 0:
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	case c.Logging.MaxSizeMB > maxLogSizeMB:
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
