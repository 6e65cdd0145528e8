package models

import (
	"fmt"
	"strings"
	"time"
)

// InstantPrecision is the resolution of timestamptz columns.
const InstantPrecision = time.Microsecond

// ParseInstant parses an ISO-8601 instant carrying an explicit offset
// ("2024-05-01T20:15:00Z", "2024-05-01T22:15:00.123+02:00"). Local times
// without an offset are rejected since they do not name a single instant.
func ParseInstant(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty instant")
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse instant %q: %w", s, err)
	}
	return NormalizeInstant(t), nil
}

// NormalizeInstant converts t to UTC at storage precision so that two
// instants compare equal in memory exactly when they do in the database.
func NormalizeInstant(t time.Time) time.Time {
	return t.UTC().Truncate(InstantPrecision)
}

// ParseInstants parses every string or fails on the first bad one.
func ParseInstants(values []string) ([]time.Time, error) {
	out := make([]time.Time, 0, len(values))
	for _, v := range values {
		t, err := ParseInstant(v)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
