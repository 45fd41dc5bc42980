// Package dateutil resolves the CLI date selector and formats durations for
// the run summary.
package dateutil

import (
	"fmt"
	"strings"
	"time"
)

// Layout is the canonical date format used for bulletin files and artifacts.
const Layout = "2006-01-02"

// SelectorLatest requests the most recent available bulletin rather than a
// specific date; it is resolved by the bulletin reader, not here.
const SelectorLatest = "latest"

// Resolve turns a date selector (yesterday, today, or YYYY-MM-DD) into a
// concrete date truncated to midnight local time. The "latest" selector is
// not a date and must be handled by the caller before Resolve.
func Resolve(selector string, now time.Time) (time.Time, error) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch strings.ToLower(strings.TrimSpace(selector)) {
	case "today":
		return day, nil
	case "yesterday", "":
		return day.AddDate(0, 0, -1), nil
	case SelectorLatest:
		return time.Time{}, fmt.Errorf("selector %q must be resolved against available bulletins", selector)
	}

	parsed, err := time.ParseInLocation(Layout, strings.TrimSpace(selector), now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date selector %q (want yesterday, today, latest, or YYYY-MM-DD): %w", selector, err)
	}
	return parsed, nil
}

// FormatDuration renders a duration as a short human-readable string,
// e.g. "4m32s" or "1h02m15s".
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
