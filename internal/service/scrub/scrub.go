// Package scrub masks sensitive fields in vendor result documents before
// they are persisted.
package scrub

import (
	"encoding/json"
	"strings"
)

const masked = "***"

// FieldMasker implements the result scrubber port by replacing the values of
// configured field names, matched case-insensitively at any nesting depth.
type FieldMasker struct {
	fields map[string]struct{}
}

// NewFieldMasker builds a masker for the given field names. Empty and
// whitespace-only names are ignored.
func NewFieldMasker(fields []string) *FieldMasker {
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" {
			set[f] = struct{}{}
		}
	}
	return &FieldMasker{fields: set}
}

// Scrub returns data with every configured field's value replaced by a mask.
// Input that does not parse as JSON is returned unchanged: scrubbing must
// never lose a vendor result.
func (m *FieldMasker) Scrub(data json.RawMessage) json.RawMessage {
	if len(m.fields) == 0 || len(data) == 0 {
		return data
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return data
	}
	out, err := json.Marshal(m.walk(doc))
	if err != nil {
		return data
	}
	return out
}

// walk descends objects and arrays, masking matching keys wherever they occur.
func (m *FieldMasker) walk(v any) any {
	switch node := v.(type) {
	case map[string]any:
		for k, child := range node {
			if _, hit := m.fields[strings.ToLower(k)]; hit {
				node[k] = masked
				continue
			}
			node[k] = m.walk(child)
		}
		return node
	case []any:
		for i, child := range node {
			node[i] = m.walk(child)
		}
		return node
	default:
		return v
	}
}
