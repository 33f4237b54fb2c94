package service

import (
	"strconv"
	"strings"
	"time"
)

// Meeting exports carry locale-ambiguous timestamps such as
// "08/07/2025 09:02:37 AM". The three numeric date components are
// disambiguated positionally: a component larger than 12 must be the day.
// When both are <= 12 the source is assumed day-first, matching the locale
// the exports are produced in. Changing this default changes document output.

// ParseExportTimestamp parses a raw export timestamp. On any failure it
// returns now() and ok=false so a single malformed cell degrades the row
// instead of failing the whole ingestion.
func ParseExportTimestamp(raw string, now func() time.Time) (time.Time, bool) {
	if now == nil {
		now = time.Now
	}

	fields := strings.Fields(strings.TrimSpace(raw))
	if len(fields) == 0 {
		return now(), false
	}

	day, month, year, ok := parseDateComponents(fields[0])
	if !ok {
		return now(), false
	}

	hour, minute, second := 0, 0, 0
	if len(fields) > 1 {
		meridiem := ""
		if len(fields) > 2 {
			meridiem = strings.ToUpper(fields[2])
		}
		h, m, s, ok := parseTimeComponents(fields[1], meridiem)
		if !ok {
			return now(), false
		}
		hour, minute, second = h, m, s
	}

	return time.Date(year, time.Month(month), day, hour, minute, second, 0, time.Local), true
}

func parseDateComponents(raw string) (day, month, year int, ok bool) {
	sep := "/"
	if !strings.Contains(raw, sep) {
		sep = "-"
	}
	parts := strings.Split(raw, sep)
	if len(parts) != 3 {
		return 0, 0, 0, false
	}

	p1, err1 := strconv.Atoi(parts[0])
	p2, err2 := strconv.Atoi(parts[1])
	p3, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, 0, 0, false
	}

	switch {
	case p1 > 12 && p2 <= 12:
		day, month = p1, p2
	case p2 > 12 && p1 <= 12:
		// Source was month-first; swap.
		day, month = p2, p1
	case p1 <= 12 && p2 <= 12:
		// Ambiguous; the deployment locale is day-first.
		day, month = p1, p2
	default:
		return 0, 0, 0, false
	}

	year = p3
	if year < 100 {
		year += 2000
	}

	if month < 1 || month > 12 || day < 1 || day > 31 || year < 1970 {
		return 0, 0, 0, false
	}
	return day, month, year, true
}

func parseTimeComponents(raw, meridiem string) (hour, minute, second int, ok bool) {
	parts := strings.Split(raw, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, 0, 0, false
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, 0, false
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, 0, false
	}
	if len(parts) == 3 {
		second, err = strconv.Atoi(parts[2])
		if err != nil {
			return 0, 0, 0, false
		}
	}

	switch meridiem {
	case "AM":
		if hour == 12 {
			hour = 0
		}
	case "PM":
		if hour != 12 {
			hour += 12
		}
	}

	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return 0, 0, 0, false
	}
	return hour, minute, second, true
}
