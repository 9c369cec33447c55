package observability

import "unicode"

const maxFieldLen = 256

// sanitizeString drops control characters and truncates the value so a
// request cannot inject structure into log output.
func sanitizeString(value string, limit int) string {
	if limit <= 0 {
		limit = maxFieldLen
	}

	kept := make([]rune, 0, len(value))
	for _, r := range value {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			continue
		}
		kept = append(kept, r)
	}
	if len(kept) > limit {
		kept = kept[:limit]
	}
	return string(kept)
}

// SanitizeRoute cleans a route pattern for logging.
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return sanitizeString(route, 180)
}

// SanitizeMethod cleans an HTTP method for logging.
func SanitizeMethod(method string) string {
	return sanitizeString(method, 10)
}

// SanitizeUserID bounds a user identifier before it reaches the logs.
func SanitizeUserID(uid string) string {
	if len(uid) == 0 {
		return ""
	}
	return sanitizeString(uid, 64)
}
