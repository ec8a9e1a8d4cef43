// Package vendorclient dispatches job payloads to downstream vendors.
//
// Every call passes the vendor's rate limiter and circuit breaker, and every
// failure is normalized into an error result instead of a returned error, so
// callers record outcomes rather than handle transport faults.
package vendorclient

import (
	"fmt"
	"sort"

	"github.com/fairyhunter13/dispatchd/internal/domain"
)

// Registry resolves vendor names to their configuration.
type Registry struct {
	vendors map[string]domain.VendorConfig
}

// NewRegistry indexes the configured vendors by name.
func NewRegistry(vendors []domain.VendorConfig) *Registry {
	m := make(map[string]domain.VendorConfig, len(vendors))
	for _, v := range vendors {
		m[v.Name] = v
	}
	return &Registry{vendors: m}
}

// Resolve returns the configuration for a vendor name.
func (r *Registry) Resolve(name string) (domain.VendorConfig, error) {
	v, ok := r.vendors[name]
	if !ok {
		return domain.VendorConfig{}, fmt.Errorf("vendor %q: %w", name, domain.ErrUnknownVendor)
	}
	return v, nil
}

// All returns the configured vendors in name order.
func (r *Registry) All() []domain.VendorConfig {
	out := make([]domain.VendorConfig, 0, len(r.vendors))
	for _, v := range r.vendors {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
