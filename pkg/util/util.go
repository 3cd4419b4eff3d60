package util

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// CompactLayout is the naive local timestamp form used in calendar output.
	CompactLayout = "20060102T150405"
	// CompactUTCLayout is CompactLayout pinned to UTC.
	CompactUTCLayout = "20060102T150405Z"
	// DateLayout is the whole-day form used in calendar output.
	DateLayout = "20060102"
)

// ParseCompact parses a calendar timestamp in any of the compact forms
// (YYYYMMDD, YYYYMMDDTHHMMSS, YYYYMMDDTHHMMSSZ). Naive values are read in loc.
func ParseCompact(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	s = strings.TrimSpace(s)
	switch {
	case len(s) == len(DateLayout):
		return time.ParseInLocation(DateLayout, s, loc)
	case strings.HasSuffix(s, "Z"):
		return time.Parse(CompactUTCLayout, s)
	default:
		return time.ParseInLocation(CompactLayout, s, loc)
	}
}

// AddMinutes adds minutes to a compact timestamp and returns the result in
// the same family: a UTC input stays UTC, anything else comes back as a naive
// YYYYMMDDTHHMMSS. A bare date is treated as midnight.
func AddMinutes(stamp string, minutes int) (string, error) {
	t, err := ParseCompact(stamp, time.UTC)
	if err != nil {
		return "", fmt.Errorf("invalid timestamp %q: %w", stamp, err)
	}
	t = t.Add(time.Duration(minutes) * time.Minute)
	if strings.HasSuffix(strings.TrimSpace(stamp), "Z") {
		return t.Format(CompactUTCLayout), nil
	}
	return t.Format(CompactLayout), nil
}

var clockRe = regexp.MustCompile(`(?i)^\s*(\d{1,2})(?::(\d{2}))?(?::(\d{2}))?\s*([ap]m)?\s*$`)

// Clock is a time of day read from free text.
type Clock struct {
	Hour, Minute, Second int
}

// ParseClock reads H, H:MM or H:MM:SS with an optional am/pm suffix into a
// 24-hour clock.
func ParseClock(s string) (Clock, error) {
	m := clockRe.FindStringSubmatch(s)
	if m == nil {
		return Clock{}, fmt.Errorf("invalid time format %q", s)
	}
	hour, err := strconv.Atoi(m[1])
	if err != nil {
		return Clock{}, fmt.Errorf("invalid hour %q: %w", m[1], err)
	}
	var c Clock
	if m[2] != "" {
		c.Minute, _ = strconv.Atoi(m[2])
	}
	if m[3] != "" {
		c.Second, _ = strconv.Atoi(m[3])
	}
	switch strings.ToLower(m[4]) {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	if hour > 23 || c.Minute > 59 || c.Second > 59 {
		return Clock{}, fmt.Errorf("time out of range %q", s)
	}
	c.Hour = hour
	return c, nil
}

// DefaultEndTime returns the 12-hour clock text thirty minutes after start,
// e.g. "11:45pm" gives "12:15 AM" and "11:45am" gives "12:15 PM".
func DefaultEndTime(start string) (string, error) {
	c, err := ParseClock(start)
	if err != nil {
		return "", err
	}
	minute := c.Minute + 30
	hour := c.Hour
	if minute >= 60 {
		minute -= 60
		hour++
	}
	hour %= 24

	meridiem := "AM"
	if hour >= 12 {
		meridiem = "PM"
		if hour > 12 {
			hour -= 12
		}
	}
	if hour == 0 {
		hour = 12
	}
	return fmt.Sprintf("%d:%02d %s", hour, minute, meridiem), nil
}
