package config

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"github.com/softcask/filetrack/internal/logging"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // the config field path (e.g., "registry.store_capacity")
	Value   any    // the invalid value
	Message string // human-readable error description
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
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Validate checks the Config for invalid values and returns all validation
// errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	if c.Registry.StoreCapacity < 1 {
		errors = append(errors, ValidationError{
			Field:   "registry.store_capacity",
			Value:   c.Registry.StoreCapacity,
			Message: "must be at least 1",
		})
	}
	if c.Registry.StoreTrials < 1 {
		errors = append(errors, ValidationError{
			Field:   "registry.store_trials",
			Value:   c.Registry.StoreTrials,
			Message: "must be at least 1",
		})
	}

	if c.Tracker.NameLenMax < 1 {
		errors = append(errors, ValidationError{
			Field:   "tracker.name_len_max",
			Value:   c.Tracker.NameLenMax,
			Message: "must be at least 1",
		})
	}

	if c.Logging.Level != "" {
		valid := false
		for _, l := range logging.ValidLevels() {
			if strings.EqualFold(c.Logging.Level, l) {
				valid = true
				break
			}
		}
		if !valid {
			errors = append(errors, ValidationError{
				Field:   "logging.level",
				Value:   c.Logging.Level,
				Message: fmt.Sprintf("must be one of %v", logging.ValidLevels()),
			})
		}
	}

	if c.Report.Pattern != "" {
		if _, err := glob.Compile(c.Report.Pattern); err != nil {
			errors = append(errors, ValidationError{
				Field:   "report.pattern",
				Value:   c.Report.Pattern,
				Message: "must be a valid glob pattern",
			})
		}
	}

	for _, p := range c.Watch.IgnorePatterns {
		if _, err := glob.Compile(p); err != nil {
			errors = append(errors, ValidationError{
				Field:   "watch.ignore_patterns",
				Value:   p,
				Message: "must be a valid glob pattern",
			})
		}
	}
	if c.Watch.DebounceMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "watch.debounce_ms",
			Value:   c.Watch.DebounceMs,
			Message: "must not be negative",
		})
	}

	return errors
}
