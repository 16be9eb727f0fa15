package logging

import "strings"

// RedactedValue is the canonical placeholder used for sensitive fields in logs.
const RedactedValue = "[REDACTED]"

// RedactKey truncates an opaque tenant key so log lines never carry a usable
// credential. The reserved prefix plus the first four characters of the body
// are enough to correlate a tenant across log lines.
func RedactKey(key string) string {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return ""
	}
	const keep = 7 // "cg_" + 4
	if len(trimmed) <= keep {
		return RedactedValue
	}
	return trimmed[:keep] + RedactedValue
}
