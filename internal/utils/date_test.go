package utils

import (
	"testing"
	"time"
)

func TestFormatTimestamp(t *testing.T) {
	loc := time.FixedZone("CEST", 2*60*60)
	tests := []struct {
		name     string
		input    time.Time
		expected string
	}{
		{"UTC with millis", time.Date(2024, 5, 1, 9, 30, 0, 123000000, time.UTC), "2024-05-01T09:30:00.123Z"},
		{"whole seconds", time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC), "2024-05-01T09:30:00.000Z"},
		{"offset converted to UTC", time.Date(2024, 5, 1, 1, 0, 0, 0, loc), "2024-04-30T23:00:00.000Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatTimestamp(tt.input)
			if result != tt.expected {
				t.Errorf("FormatTimestamp() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestFormatDateForOData(t *testing.T) {
	ts := time.Date(2023, 12, 31, 23, 59, 59, 999000000, time.UTC)
	tests := []struct {
		edmType  string
		expected string
	}{
		{"Edm.Date", "2023-12-31"},
		{"Date", "2023-12-31"},
		{"Edm.DateTimeOffset", "2023-12-31T23:59:59.999Z"},
		{"DateTimeOffset", "2023-12-31T23:59:59.999Z"},
	}

	for _, tt := range tests {
		t.Run(tt.edmType, func(t *testing.T) {
			result := FormatDateForOData(ts, tt.edmType)
			if result != tt.expected {
				t.Errorf("FormatDateForOData(%q) = %q, want %q", tt.edmType, result, tt.expected)
			}
		})
	}
}
