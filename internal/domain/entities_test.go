package domain

import (
	"errors"
	"testing"
)

func TestJobStatusConstants(t *testing.T) {
	tests := []struct {
		name     string
		constant JobStatus
		expected string
	}{
		{"JobPending", JobPending, "pending"},
		{"JobProcessing", JobProcessing, "processing"},
		{"JobComplete", JobComplete, "complete"},
		{"JobFailed", JobFailed, "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if string(tt.constant) != tt.expected {
				t.Errorf("Expected %s to be %q, got %q", tt.name, tt.expected, string(tt.constant))
			}
		})
	}
}

func TestJobStatusIsTerminal(t *testing.T) {
	tests := []struct {
		status   JobStatus
		terminal bool
	}{
		{JobPending, false},
		{JobProcessing, false},
		{JobComplete, true},
		{JobFailed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal(%q) = %v, want %v", tt.status, got, tt.terminal)
			}
		})
	}
}

func TestVendorNameConstants(t *testing.T) {
	if SyncVendorName != "syncVendor" {
		t.Errorf("SyncVendorName = %q", SyncVendorName)
	}
	if AsyncVendorName != "asyncVendor" {
		t.Errorf("AsyncVendorName = %q", AsyncVendorName)
	}
}

func TestVendorConfigTimeout(t *testing.T) {
	vc := VendorConfig{TimeoutMS: 5000}
	if got := vc.Timeout().Milliseconds(); got != 5000 {
		t.Errorf("Timeout() = %dms, want 5000ms", got)
	}
}

func TestSentinelErrorsAreDistinct(t *testing.T) {
	sentinels := []error{
		ErrValidation,
		ErrNotFound,
		ErrDuplicateID,
		ErrCircuitOpen,
		ErrUnknownVendor,
		ErrVendor,
		ErrTransient,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && errors.Is(a, b) {
				t.Errorf("sentinel %v unexpectedly matches %v", a, b)
			}
		}
	}
}
