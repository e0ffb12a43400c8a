// validate.go - Accumulating validation of sciwi configuration.
//
// Collects every bad setting in one pass so startup fails with a complete
// list instead of one error at a time.
package config

import (
	"fmt"
	"net/url"
	"strings"

	"sciwi/internal/chat"
)

// ConfigValidationError represents a configuration validation error.
type ConfigValidationError struct {
	Field   string
	Message string
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// ValidationErrors is every problem found in one validation pass.
type ValidationErrors []ConfigValidationError

func (v ValidationErrors) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d error(s):\n", len(v)))
	for i, err := range v {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Validator accumulates configuration errors so they can be reported at once.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{}
}

// AddError adds a validation error.
func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, ConfigValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are validation errors.
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Err returns nil or the accumulated ValidationErrors.
func (v *Validator) Err() error {
	if !v.HasErrors() {
		return nil
	}
	return v.errors
}

// ValidatePort validates that a value is a valid port number.
func (v *Validator) ValidatePort(key string, port int) {
	if port < 1 || port > 65535 {
		v.AddError(key, fmt.Sprintf("port must be between 1 and 65535 (got %d)", port))
	}
}

// ValidateURL validates that a non-empty value is an http or https URL with a host.
func (v *Validator) ValidateURL(key, value string) {
	if value == "" {
		return
	}

	parsed, err := url.Parse(value)
	if err != nil {
		v.AddError(key, fmt.Sprintf("invalid URL format: %v", err))
		return
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		v.AddError(key, "URL must use http or https scheme")
		return
	}
	if parsed.Host == "" {
		v.AddError(key, "URL must include a host")
	}
}

// ValidateWebhookURL validates a non-empty incoming webhook URL.
func (v *Validator) ValidateWebhookURL(key, value string) {
	if value == "" {
		return
	}
	if !chat.ValidIncomingURL(value) {
		v.AddError(key, "must look like {http|https}://{host}/webapi/entry.cgi?api=SYNO.Chat.External&method=incoming&version=2&token=%22{token}%22")
	}
}

// ValidateEnum validates that a value is one of allowed options.
func (v *Validator) ValidateEnum(key, value string, allowed []string) {
	for _, opt := range allowed {
		if value == opt {
			return
		}
	}
	v.AddError(key, fmt.Sprintf("must be one of: %s (got: %s)", strings.Join(allowed, ", "), value))
}

// ValidateNonNegative validates that a number is zero or more.
func (v *Validator) ValidateNonNegative(key string, value int) {
	if value < 0 {
		v.AddError(key, "must not be negative")
	}
}
