package sepa

import (
	"strconv"
	"strings"
	"time"
)

// dateStrategy parses one mandate date notation.
type dateStrategy struct {
	name  string
	parse func(s string) (time.Time, bool)
}

// mandateDateStrategies are tried in order; the first match wins.
var mandateDateStrategies = []dateStrategy{
	{name: "iso-date", parse: layout("2006-01-02")},
	{name: "iso-datetime", parse: layout("2006-01-02T15:04:05")},
	{name: "iso-datetime-space", parse: layout("2006-01-02 15:04:05")},
	{name: "rfc3339", parse: layout(time.RFC3339)},
	{name: "day.month.year", parse: dayMonthYear},
	{name: "spreadsheet-default", parse: layout("01-02-06")},
}

// ParseMandateDate parses a mandate signature date as exported by club
// software: ISO 8601 first, then German day.month.year. The bool is false if
// no strategy matched.
func ParseMandateDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, strategy := range mandateDateStrategies {
		if t, ok := strategy.parse(s); ok {
			return t, true
		}
	}

	return time.Time{}, false
}

func layout(l string) func(string) (time.Time, bool) {
	return func(s string) (time.Time, bool) {
		t, err := time.Parse(l, s)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
}

// dayMonthYear accepts "31.12.2024", "1.2.2024" and two-digit years
// ("31.12.24" is 2024).
func dayMonthYear(s string) (time.Time, bool) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return time.Time{}, false
	}

	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return time.Time{}, false
		}
		nums[i] = n
	}

	day, month, year := nums[0], nums[1], nums[2]
	switch len(parts[2]) {
	case 2:
		year += 2000
	case 4:
	default:
		return time.Time{}, false
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}

	return t, true
}
