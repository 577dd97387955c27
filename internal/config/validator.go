package config

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers assistant-alexa validation rules.
// Must be called before validating AppConfig.
func RegisterCustomValidators(v *validator.Validate) error {
	// route_path: absolute, clean URL path without query or fragment
	if err := v.RegisterValidation("route_path", validateRoutePath); err != nil {
		return fmt.Errorf("failed to register route_path validator: %w", err)
	}
	// duration: parseable by time.ParseDuration
	if err := v.RegisterValidation("duration", validateDuration); err != nil {
		return fmt.Errorf("failed to register duration validator: %w", err)
	}
	return nil
}

// validateRoutePath validates webhook routes like "/alexa".
func validateRoutePath(fl validator.FieldLevel) bool {
	route := fl.Field().String()
	if !strings.HasPrefix(route, "/") || strings.ContainsAny(route, "?# \t") {
		return false
	}
	return path.Clean(route) == route
}

// validateDuration validates non-negative durations like "5s" or "2m".
func validateDuration(fl validator.FieldLevel) bool {
	d, err := time.ParseDuration(fl.Field().String())
	return err == nil && d >= 0
}

// Validate validates the AppConfig using struct tags and custom cross-field rules.
// Returns an error if validation fails, with actionable error messages.
func (c *AppConfig) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	// Cross-field validation: reply names identify rules in logs
	if err := c.validateUniqueReplyNames(); err != nil {
		return err
	}

	return nil
}

// validateUniqueReplyNames ensures no two replies share a name.
func (c *AppConfig) validateUniqueReplyNames() error {
	seen := make(map[string]struct{}, len(c.Replies))
	for i, r := range c.Replies {
		if _, exists := seen[r.Name]; exists {
			return fmt.Errorf("replies[%d]: duplicate reply name: %s", i, r.Name)
		}
		seen[r.Name] = struct{}{}
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors to user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

// formatSingleValidationError creates a user-friendly message for a single validation error.
func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "gte", "lte":
		return fmt.Sprintf("%s must be between 0 and 1", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "route_path":
		return fmt.Sprintf("%s must be an absolute path like /alexa", field)
	case "duration":
		return fmt.Sprintf("%s must be a duration like 5s or 2m", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}
