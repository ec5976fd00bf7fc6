package timeutil

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var clockRE = regexp.MustCompile(`^(\d{1,2}):(\d{2})\s*([AaPp][Mm])?$`)

// ParseEventDate parses the API's event_date component.
func ParseEventDate(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, errors.New("date is required")
	}
	return time.ParseInLocation(dateLayout, trimmed, time.UTC)
}

// ParseEventTime parses "7:00 PM" or "19:00" into an offset from midnight.
func ParseEventTime(value string) (time.Duration, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, errors.New("time is required")
	}
	m := clockRE.FindStringSubmatch(trimmed)
	if m == nil {
		return 0, fmt.Errorf("invalid time %q", value)
	}

	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	if minutes > 59 {
		return 0, fmt.Errorf("invalid time %q", value)
	}

	switch strings.ToUpper(m[3]) {
	case "":
		if hours > 23 {
			return 0, fmt.Errorf("invalid time %q", value)
		}
	case "AM":
		if hours < 1 || hours > 12 {
			return 0, fmt.Errorf("invalid time %q", value)
		}
		if hours == 12 {
			hours = 0
		}
	case "PM":
		if hours < 1 || hours > 12 {
			return 0, fmt.Errorf("invalid time %q", value)
		}
		if hours != 12 {
			hours += 12
		}
	}

	return time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute, nil
}

// EventStart combines an event's date and optional time components. timed is
// false when only the date is known.
func EventStart(date, clock string) (start time.Time, timed bool, err error) {
	day, err := ParseEventDate(date)
	if err != nil {
		return time.Time{}, false, err
	}
	if strings.TrimSpace(clock) == "" {
		return day, false, nil
	}
	offset, err := ParseEventTime(clock)
	if err != nil {
		return day, false, nil
	}
	return day.Add(offset), true, nil
}

// FormatClock renders an offset from midnight as "7:00 PM".
func FormatClock(offset time.Duration) string {
	return time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC).Add(offset).Format("3:04 PM")
}

// WeekDates returns the seven days of the Sunday-started week containing day.
func WeekDates(day time.Time) []time.Time {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	start = start.AddDate(0, 0, -int(start.Weekday()))

	dates := make([]time.Time, 7)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i)
	}
	return dates
}

// DateKey formats a day the way the API stores event_date.
func DateKey(day time.Time) string {
	return day.Format(dateLayout)
}
