package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// EmailID returns the deterministic identifier for a mailbox message:
// the SHA-256 of subject + "|" + the received timestamp in ISO-8601 form.
// The same message ingested twice always yields the same ID.
func EmailID(subject string, receivedAt time.Time) string {
	h := sha256.Sum256([]byte(subject + "|" + isoFormat(receivedAt)))
	return hex.EncodeToString(h[:])
}

// isoFormat renders t the way the mailbox connector timestamps are keyed:
// UTC, seconds always present, microseconds only when non-zero, and an
// explicit +00:00 offset.
func isoFormat(t time.Time) string {
	t = t.UTC()
	base := t.Format("2006-01-02T15:04:05")
	if micro := t.Nanosecond() / 1000; micro != 0 {
		return fmt.Sprintf("%s.%06d+00:00", base, micro)
	}
	return base + "+00:00"
}

// TicketSignature is the dedup key for cross-ticket suppression.
func TicketSignature(trigger, resource string) string {
	return trigger + "|" + resource
}

// BatchSignature is the dedup key for in-batch suppression.
func BatchSignature(trigger, resource, subject string) string {
	return trigger + "|" + resource + "|" + subject
}
