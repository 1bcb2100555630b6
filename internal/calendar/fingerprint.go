package calendar

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
)

// Normalize cleans an event's summary and joins it with its start instant.
// It trims whitespace, lowercases, and normalizes line endings so cosmetic
// edits on the remote side do not change the result.
func Normalize(summary string, start time.Time) string {
	s := strings.ToLower(summary)
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")

	// Joined with a newline so the summary can never run into the timestamp.
	return strings.Join([]string{s, start.UTC().Format(time.RFC3339)}, "\n")
}

// Fingerprint returns a stable identifier for events that carry no UID.
func Fingerprint(summary string, start time.Time) string {
	normalized := Normalize(summary, start)
	hashBytes := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("fp-%x", hashBytes)
}
