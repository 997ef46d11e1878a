package logger

import "strings"

// RedactAddress masks a mailbox address for safe logging.
// "monitoring.ai@example.com" → "mo***@example.com"
// Short local parts (≤2 chars) are fully masked: "ab@example.com" → "***@example.com"
func RedactAddress(addr string) string {
	parts := strings.Split(addr, "@")
	if len(parts) != 2 {
		return "***@***"
	}
	name := parts[0]
	if len(name) > 2 {
		return name[:2] + "***@" + parts[1]
	}
	return "***@" + parts[1]
}
