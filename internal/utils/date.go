package utils

import (
	"time"
)

const (
	// isoTimestampLayout matches the UTC millisecond form, e.g. 2024-05-01T09:30:00.000Z
	isoTimestampLayout = "2006-01-02T15:04:05.000Z"
	isoDateLayout      = "2006-01-02"
)

// FormatTimestamp formats t as an ISO 8601 UTC timestamp with millisecond precision
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(isoTimestampLayout)
}

// FormatDate formats t as an ISO 8601 calendar date in UTC
func FormatDate(t time.Time) string {
	return t.UTC().Format(isoDateLayout)
}

// FormatDateForOData formats a time.Time for the given Edm date/time type.
// Types other than Edm.Date fall back to the full timestamp.
func FormatDateForOData(t time.Time, edmType string) string {
	switch edmType {
	case "Edm.Date", "Date":
		return FormatDate(t)
	default:
		return FormatTimestamp(t)
	}
}
