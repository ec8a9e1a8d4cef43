package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
)

// MaxErrorLen bounds the persisted error string.
const MaxErrorLen = 1000

// requestIDRe matches the canonical 36-char UUID v4 form, case-insensitive.
var requestIDRe = regexp.MustCompile(`^(?i)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// ValidateRequestID rejects identifiers that are not canonical UUID v4.
func ValidateRequestID(id string) error {
	if !requestIDRe.MatchString(id) {
		return fmt.Errorf("%w: request id %q is not a uuid", ErrValidation, id)
	}
	return nil
}

// ValidatePayload requires a JSON object; null, scalars, and arrays are
// rejected.
func ValidatePayload(p json.RawMessage) error {
	trimmed := bytes.TrimSpace(p)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return fmt.Errorf("%w: payload must be a json object", ErrValidation)
	}
	return nil
}

// ValidateErrMsg bounds the persisted error string length.
func ValidateErrMsg(errMsg *string) error {
	if errMsg != nil && len(*errMsg) > MaxErrorLen {
		return fmt.Errorf("%w: error exceeds %d characters", ErrValidation, MaxErrorLen)
	}
	return nil
}

// ValidateNewJob checks everything Create needs: canonical id, object payload,
// pending status, no terminal fields.
func ValidateNewJob(j Job) error {
	if err := ValidateRequestID(j.RequestID); err != nil {
		return err
	}
	if err := ValidatePayload(j.Payload); err != nil {
		return err
	}
	if j.Status != "" && j.Status != JobPending {
		return fmt.Errorf("%w: new job must be pending, got %q", ErrValidation, j.Status)
	}
	if j.Result != nil || j.Error != nil {
		return fmt.Errorf("%w: new job must not carry result or error", ErrValidation)
	}
	return nil
}

// ValidateTerminalWrite enforces the terminal invariants: complete carries
// exactly one of result or error, failed always carries an error.
func ValidateTerminalWrite(status JobStatus, result json.RawMessage, errMsg *string) error {
	if !status.IsTerminal() {
		return fmt.Errorf("%w: status %q is not terminal", ErrValidation, status)
	}
	if err := ValidateErrMsg(errMsg); err != nil {
		return err
	}
	hasResult := len(bytes.TrimSpace(result)) > 0
	hasErr := errMsg != nil && *errMsg != ""
	switch status {
	case JobComplete:
		if hasResult == hasErr {
			return fmt.Errorf("%w: complete requires exactly one of result or error", ErrValidation)
		}
	case JobFailed:
		if !hasErr {
			return fmt.Errorf("%w: failed requires an error", ErrValidation)
		}
	}
	return nil
}

// ValidateStatus rejects unknown status values.
func ValidateStatus(status JobStatus) error {
	switch status {
	case JobPending, JobProcessing, JobComplete, JobFailed:
		return nil
	}
	return fmt.Errorf("%w: unknown status %q", ErrValidation, status)
}
