package helpers

import (
	"fmt"
	"time"

	"github.com/turbot/edgar-log-pipeline/constants"
)

// ParseDate parses a YYYY-MM-DD date as midnight UTC
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(constants.DateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", s, err)
	}
	return d, nil
}

// FormatDate formats a date as YYYY-MM-DD
func FormatDate(d time.Time) string {
	return d.UTC().Format(constants.DateFormat)
}

// DateRange returns every date from start to end inclusive, in ascending order
func DateRange(start, end time.Time) ([]time.Time, error) {
	start = truncateDay(start)
	end = truncateDay(end)
	if end.Before(start) {
		return nil, fmt.Errorf("end date %s is before start date %s", FormatDate(end), FormatDate(start))
	}
	var res []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		res = append(res, d)
	}
	return res, nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
