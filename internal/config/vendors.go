// Package config provides configuration loading utilities for vendor registries.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/fairyhunter13/dispatchd/internal/domain"
)

// vendorYAML represents the structure of a vendor registry YAML file.
type vendorYAML struct {
	Vendors []domain.VendorConfig `yaml:"vendors"`
}

// LoadVendorFile loads additional vendor configurations from a YAML file.
// Entries must carry a name and url; rate limit and timeout fall back to
// conservative defaults when omitted.
func LoadVendorFile(filePath string) ([]domain.VendorConfig, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("op=config.LoadVendorFile: %w", err)
	}

	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("op=config.LoadVendorFile: file not found: %s", absPath)
	}

	// #nosec G304 -- Configuration files are expected to be safe
	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("op=config.LoadVendorFile: %w", err)
	}

	var doc vendorYAML
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("op=config.LoadVendorFile: parse %s: %w", filePath, err)
	}

	vendors := make([]domain.VendorConfig, 0, len(doc.Vendors))
	for _, v := range doc.Vendors {
		if v.Name == "" || v.URL == "" {
			return nil, fmt.Errorf("op=config.LoadVendorFile: vendor entries require name and url")
		}
		if v.RateLimitPerMinute <= 0 {
			v.RateLimitPerMinute = 60
		}
		if v.TimeoutMS <= 0 {
			v.TimeoutMS = 5000
		}
		vendors = append(vendors, v)
	}
	return vendors, nil
}
