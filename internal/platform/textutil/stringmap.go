package textutil

import "strings"

// NormalizeStringMap trims keys and values and drops entries whose key
// becomes empty. A map with nothing left collapses to nil so callers can
// treat it as absent.
func NormalizeStringMap(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	cleaned := make(map[string]string, len(values))
	for key, value := range values {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		cleaned[key] = strings.TrimSpace(value)
	}
	if len(cleaned) == 0 {
		return nil
	}
	return cleaned
}
