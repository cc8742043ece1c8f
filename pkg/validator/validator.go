// Package validator provides struct validation utilities with custom validators.
package validator

import (
	stderrors "errors"
	"fmt"
	"net"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/net/publicsuffix"
)

// domainLabelRegex validates a single DNS label: alphanumeric with
// embedded hyphens, max 63 characters.
var domainLabelRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)

// Validator wraps the go-playground validator with custom validations.
type Validator struct {
	validate *validator.Validate
}

// ValidationError represents a single field validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, e := range v {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return sb.String()
}

// New creates a new Validator with custom validators registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("domain", validateDomain)
	_ = v.RegisterValidation("service", validateService)

	return &Validator{validate: v}
}

// Validate validates a struct and returns ValidationErrors on failure.
func (v *Validator) Validate(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !stderrors.As(err, &validationErrors) {
		return err
	}

	result := make(ValidationErrors, 0, len(validationErrors))
	for _, e := range validationErrors {
		result = append(result, ValidationError{
			Field:   toSnakeCase(e.Field()),
			Message: formatErrorMessage(e),
		})
	}

	return result
}

// validateDomain checks that the value is a plausible registrable domain
// name: syntactically valid labels, a public-suffix-derived eTLD+1, and
// not a bare IP address or URL.
func validateDomain(fl validator.FieldLevel) bool {
	return IsValidDomain(fl.Field().String())
}

// NormalizeDomain lowercases and trims a domain for storage and query
// embedding so equal domains compare equal.
func NormalizeDomain(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

// IsValidDomain reports whether s is an acceptable scan target domain.
func IsValidDomain(s string) bool {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || len(s) > 253 {
		return false
	}
	// Reject URLs and paths; callers must pass a bare domain.
	if strings.ContainsAny(s, "/@:? ") {
		return false
	}
	if net.ParseIP(s) != nil {
		return false
	}

	labels := strings.Split(s, ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels {
		if !domainLabelRegex.MatchString(label) {
			return false
		}
	}

	// The registrable domain must be derivable; this rejects bare public
	// suffixes such as "com" or "co.uk".
	etld1, err := publicsuffix.EffectiveTLDPlusOne(s)
	if err != nil {
		return false
	}
	return etld1 != "" && strings.HasSuffix(s, etld1)
}

// validateService checks the credential service name format.
func validateService(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" || len(s) > 64 {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' && r != '-' {
			return false
		}
	}
	return true
}

// formatErrorMessage converts a field error to a human-readable message.
func formatErrorMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", e.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", e.Param())
	case "domain":
		return "must be a valid domain name (e.g., example.com)"
	case "service":
		return "must be a valid service name (lowercase letters, numbers, hyphens, underscores)"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "uuid":
		return "must be a valid UUID"
	default:
		return fmt.Sprintf("failed on '%s' validation", e.Tag())
	}
}

// toSnakeCase converts PascalCase/camelCase to snake_case.
func toSnakeCase(s string) string {
	var result strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result.WriteByte('_')
		}
		result.WriteRune(r)
	}
	return strings.ToLower(result.String())
}
