package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeVendorFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vendors.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write vendor file: %v", err)
	}
	return path
}

func Test_LoadVendorFile_OK(t *testing.T) {
	path := writeVendorFile(t, `
vendors:
  - name: premiumVendor
    url: http://premium.example
    rate_limit_per_minute: 120
    is_async: true
    timeout_ms: 8000
  - name: budgetVendor
    url: http://budget.example
`)

	vendors, err := LoadVendorFile(path)
	if err != nil {
		t.Fatalf("load err: %v", err)
	}
	if len(vendors) != 2 {
		t.Fatalf("expected 2 vendors, got %d", len(vendors))
	}
	if vendors[0].Name != "premiumVendor" || !vendors[0].IsAsync || vendors[0].RateLimitPerMinute != 120 {
		t.Fatalf("unexpected first vendor: %+v", vendors[0])
	}
	// Defaults applied when omitted.
	if vendors[1].RateLimitPerMinute != 60 || vendors[1].TimeoutMS != 5000 {
		t.Fatalf("defaults not applied: %+v", vendors[1])
	}
}

func Test_LoadVendorFile_MissingName(t *testing.T) {
	path := writeVendorFile(t, `
vendors:
  - url: http://nameless.example
`)
	if _, err := LoadVendorFile(path); err == nil {
		t.Fatalf("expected error for nameless vendor")
	}
}

func Test_LoadVendorFile_NotFound(t *testing.T) {
	if _, err := LoadVendorFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func Test_Vendors_WithExtraFile(t *testing.T) {
	path := writeVendorFile(t, `
vendors:
  - name: extraVendor
    url: http://extra.example
`)
	t.Setenv("VENDOR_CONFIG_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load err: %v", err)
	}
	vendors, err := cfg.Vendors()
	if err != nil {
		t.Fatalf("vendors err: %v", err)
	}
	if len(vendors) != 3 {
		t.Fatalf("expected 3 vendors, got %d", len(vendors))
	}
	if vendors[2].Name != "extraVendor" {
		t.Fatalf("extra vendor not appended: %+v", vendors[2])
	}
}
