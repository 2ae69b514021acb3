package ledger

import (
	"strings"
	"time"
)

// normalizeDate returns the canonical YYYY-MM-DD form of a snapshot date.
// Bare dates pass through; timestamps ("2024-01-02T15:04:05+05:30" or
// "2024-01-02 15:04:05") are truncated to their date part. Anything else
// reports ok=false and the row is skipped by the pipeline stages.
func normalizeDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 10 {
		return "", false
	}

	candidate := s[:10]
	if _, err := time.Parse("2006-01-02", candidate); err != nil {
		return "", false
	}

	// Only accept a remainder that looks like a time-of-day separator.
	if len(s) > 10 && s[10] != 'T' && s[10] != ' ' {
		return "", false
	}

	return candidate, true
}
