package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow() time.Time {
	return time.Date(2025, time.July, 8, 12, 0, 0, 0, time.Local)
}

func TestParseExportTimestampDisambiguation(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{
			name: "ambiguous components default day first",
			raw:  "08/07/2025 09:02:37 AM",
			want: time.Date(2025, time.July, 8, 9, 2, 37, 0, time.Local),
		},
		{
			name: "first component above twelve is the day",
			raw:  "25/07/2025 10:15:00",
			want: time.Date(2025, time.July, 25, 10, 15, 0, 0, time.Local),
		},
		{
			name: "second component above twelve means month first source",
			raw:  "07/25/2025 10:15:00",
			want: time.Date(2025, time.July, 25, 10, 15, 0, 0, time.Local),
		},
		{
			name: "dash separated date",
			raw:  "08-07-2025 14:30:00",
			want: time.Date(2025, time.July, 8, 14, 30, 0, 0, time.Local),
		},
		{
			name: "two digit year",
			raw:  "08/07/25 09:00:00",
			want: time.Date(2025, time.July, 8, 9, 0, 0, 0, time.Local),
		},
		{
			name: "pm meridiem adds twelve",
			raw:  "08/07/2025 02:30:00 PM",
			want: time.Date(2025, time.July, 8, 14, 30, 0, 0, time.Local),
		},
		{
			name: "twelve pm stays noon",
			raw:  "08/07/2025 12:05:00 PM",
			want: time.Date(2025, time.July, 8, 12, 5, 0, 0, time.Local),
		},
		{
			name: "twelve am is midnight",
			raw:  "08/07/2025 12:05:00 AM",
			want: time.Date(2025, time.July, 8, 0, 5, 0, 0, time.Local),
		},
		{
			name: "missing seconds",
			raw:  "08/07/2025 09:02",
			want: time.Date(2025, time.July, 8, 9, 2, 0, 0, time.Local),
		},
		{
			name: "date only",
			raw:  "08/07/2025",
			want: time.Date(2025, time.July, 8, 0, 0, 0, 0, time.Local),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseExportTimestamp(tt.raw, fixedNow)
			require.True(t, ok)
			assert.True(t, got.Equal(tt.want), "got %s want %s", got, tt.want)
		})
	}
}

func TestParseExportTimestampFallback(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: ""},
		{name: "whitespace only", raw: "   "},
		{name: "not a date", raw: "garbage"},
		{name: "two date components", raw: "08/2025 10:00:00"},
		{name: "both components above twelve", raw: "13/13/2025 10:00:00"},
		{name: "invalid hour", raw: "08/07/2025 25:00:00"},
		{name: "invalid minute", raw: "08/07/2025 10:61:00"},
		{name: "year before epoch", raw: "08/07/1950 10:00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseExportTimestamp(tt.raw, fixedNow)
			assert.False(t, ok)
			assert.True(t, got.Equal(fixedNow()), "fallback should be the injected clock")
		})
	}
}
