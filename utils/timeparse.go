package utils

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var clockPattern = regexp.MustCompile(`\d{1,2}:\d{2}(?::\d{2})?`)

// ParseHourMinute extracts hour and minute from "HH:MM", "HH:MM:SS" or a full datetime string.
// Seconds are truncated.
func ParseHourMinute(value string) (int, int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, 0, fmt.Errorf("time value cannot be empty")
	}

	layout := "15:04"
	if strings.Count(value, ":") >= 2 {
		layout = "15:04:05"
	}

	t, err := time.Parse(layout, value)
	if err == nil {
		return t.Hour(), t.Minute(), nil
	}

	for _, alt := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04",
		"2006-01-02T15:04",
	} {
		if parsed, altErr := time.Parse(alt, value); altErr == nil {
			return parsed.Hour(), parsed.Minute(), nil
		}
	}

	if match := clockPattern.FindString(value); match != "" && match != value {
		return ParseHourMinute(match)
	}

	return 0, 0, fmt.Errorf("invalid time format %q: %w", value, err)
}

// CivilDate truncates t to midnight of its calendar day in loc.
func CivilDate(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// ParseCivilDate parses a YYYY-MM-DD string as a calendar day in loc.
func ParseCivilDate(value string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(value), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return d, nil
}

var weekdayLabels = [...]string{"일", "월", "화", "수", "목", "금", "토"}

// WeekdayLabel returns the label class_schedules.day_of_week uses for the calendar day of date.
// The year, month and day of date are taken as-is, without zone conversion.
func WeekdayLabel(date time.Time) string {
	civil := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	return weekdayLabels[civil.Weekday()]
}
