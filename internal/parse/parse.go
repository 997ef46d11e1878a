// Package parse extracts structured fields from monitoring alert emails:
// trigger and resource lines, machine names, and reply-chain trimming.
package parse

import (
	"regexp"
	"strings"
)

// Fields are the values pulled out of an alert body.
type Fields struct {
	TriggerName  string
	ResourceName string
}

var (
	triggerLineRegex  = regexp.MustCompile(`(?im)^\s*Trigger name:\s*(.+)$`)
	resourceLineRegex = regexp.MustCompile(`(?im)^\s*Resource name:\s*(.+)$`)
	controlupURLRegex = regexp.MustCompile(`<controlup://[^>]*>|controlup://\S*`)

	// Machine names as the monitoring tool writes them, e.g. DESDN01057,
	// DEROT04428, or fully-qualified host.bitzer.biz forms.
	machineCodeRegex = regexp.MustCompile(`(?i)(DE[A-Z]{2,4}\d{5,6})`)
	machineFQDNRegex = regexp.MustCompile(`(?i)([\w-]+\.bitzer\.biz)`)

	gracefulRegex = regexp.MustCompile(`(?i)machine\s*shut\s*down\s*gracefully`)

	replyMarkers = regexp.MustCompile(`(?m)^(From:.*|On .* wrote:|-----Original Message-----|Sent:.*)$`)
)

// ExtractFields pulls the trigger and resource lines from an alert body.
// Embedded controlup:// links are stripped from the values.
func ExtractFields(body string) Fields {
	var f Fields
	if m := triggerLineRegex.FindStringSubmatch(body); m != nil {
		f.TriggerName = cleanValue(m[1])
	}
	if m := resourceLineRegex.FindStringSubmatch(body); m != nil {
		f.ResourceName = cleanValue(m[1])
	}
	return f
}

// ExtractMachine finds the machine name in an alert subject, preferring
// the short machine code over a fully-qualified name. Returns "" when no
// machine can be identified.
func ExtractMachine(subject string) string {
	if m := machineCodeRegex.FindStringSubmatch(subject); m != nil {
		return strings.ToUpper(m[1])
	}
	if m := machineFQDNRegex.FindStringSubmatch(subject); m != nil {
		return m[1]
	}
	return ""
}

// IsGracefulShutdown reports whether the combined subject and body carry a
// "machine shut down gracefully" marker, any case, any internal whitespace.
func IsGracefulShutdown(text string) bool {
	return gracefulRegex.MatchString(text)
}

// TrimReplyChain returns the top message of a reply chain, cutting at the
// first quoted-reply marker.
func TrimReplyChain(body string) string {
	if loc := replyMarkers.FindStringIndex(body); loc != nil {
		return strings.TrimSpace(body[:loc[0]])
	}
	return strings.TrimSpace(body)
}

func cleanValue(s string) string {
	s = controlupURLRegex.ReplaceAllString(s, "")
	return strings.TrimSpace(strings.Join(strings.Fields(s), " "))
}
