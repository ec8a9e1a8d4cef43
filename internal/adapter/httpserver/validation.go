package httpserver

import (
	"regexp"
	"strconv"
)

// ValidationError describes one rejected request parameter.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult carries the outcome of request parameter validation.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

const (
	defaultStatsLimit = 50
	maxStatsLimit     = 100
)

var vendorNameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateVendorName checks a vendor query parameter against the identifier
// shape used in vendor configuration.
func ValidateVendorName(name string) ValidationResult {
	if name == "" {
		return ValidationResult{
			Valid: false,
			Errors: []ValidationError{
				{Field: "vendor", Code: "REQUIRED", Message: "vendor is required"},
			},
		}
	}
	if len(name) > 100 {
		return ValidationResult{
			Valid: false,
			Errors: []ValidationError{
				{Field: "vendor", Code: "TOO_LONG", Message: "vendor is too long (max 100 characters)"},
			},
		}
	}
	if !vendorNameRe.MatchString(name) {
		return ValidationResult{
			Valid: false,
			Errors: []ValidationError{
				{Field: "vendor", Code: "INVALID_FORMAT", Message: "vendor contains invalid characters"},
			},
		}
	}
	return ValidationResult{Valid: true}
}

// ValidateLimit parses the stats limit parameter. Empty input is valid and
// yields the default.
func ValidateLimit(raw string) (int, ValidationResult) {
	if raw == "" {
		return defaultStatsLimit, ValidationResult{Valid: true}
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxStatsLimit {
		return 0, ValidationResult{
			Valid: false,
			Errors: []ValidationError{
				{Field: "limit", Code: "INVALID_FORMAT", Message: "limit must be an integer between 1 and 100"},
			},
		}
	}
	return n, ValidationResult{Valid: true}
}
