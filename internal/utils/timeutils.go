package utils

import (
	"fmt"
	"time"
)

// ParseRFC3339 returns a time from the provided string or an error.
func ParseRFC3339(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time: %w", err)
	}
	return t, nil
}

// TimeBucket truncates t to the given granularity in UTC. Identical inputs
// within one bucket share answers and briefing periods.
func TimeBucket(t time.Time, granularity time.Duration) time.Time {
	if granularity <= 0 {
		granularity = time.Hour
	}
	return t.UTC().Truncate(granularity)
}
