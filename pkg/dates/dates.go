// Package dates extracts named dates and day-planner clock ranges from task lines.
package dates

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/harrisonrobin/mdical/pkg/model"
	"github.com/harrisonrobin/mdical/pkg/util"
)

var (
	ErrInvalidDate = errors.New("invalid date")
	ErrInvalidTime = errors.New("invalid time")
)

// Emoji markers for each date name, as written by the Obsidian Tasks plugin.
const (
	CreatedEmoji   = "➕"
	ScheduledEmoji = "⏳"
	StartEmoji     = "🛫"
	DueEmoji       = "📅"
	DoneEmoji      = "✅"
	RecurringEmoji = "🔁"
)

var emojiNames = map[string]model.DateName{
	CreatedEmoji:   model.Created,
	ScheduledEmoji: model.Scheduled,
	StartEmoji:     model.Start,
	DueEmoji:       model.Due,
	DoneEmoji:      model.DoneDate,
}

var fieldEmoji = map[string]string{
	"created":    CreatedEmoji,
	"scheduled":  ScheduledEmoji,
	"start":      StartEmoji,
	"due":        DueEmoji,
	"done":       DoneEmoji,
	"completion": DoneEmoji,
	"cancelled":  "",
}

const emojiAlt = CreatedEmoji + "|" + ScheduledEmoji + "|" + StartEmoji + "|" + DueEmoji + "|" + DoneEmoji

var (
	// EmojiAlternation matches any date emoji; shared with the summary cleaner.
	EmojiAlternation = emojiAlt

	taggedDateRe = regexp.MustCompile(`(?:(` + emojiAlt + `)\s?)?(\d{4})-(\d{2})-(\d{1,2})\b`)
	bareDateRe   = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{1,2})\b`)
	fieldDateRe  = regexp.MustCompile(`(?i)\[(created|scheduled|start|due|done|completion|cancelled)::\s?(\d{4}-\d{2}-\d{1,2})\s*\]`)

	timePart  = `\d{1,2}(?::\d{2})?(?::\d{2})?`
	timeToken = `(` + timePart + `\s*[ap]m|` + timePart + `)`
	timeRe    = regexp.MustCompile(`(?i)\b` + timeToken + `(?:\s*-\s*` + timeToken + `)?\b`)
)

// NormalizeFields rewrites structured fields such as [due:: 2024-01-02] into
// the emoji notation ("📅 2024-01-02") so one pattern reads both.
func NormalizeFields(line string) string {
	return fieldDateRe.ReplaceAllStringFunc(line, func(m string) string {
		sub := fieldDateRe.FindStringSubmatch(m)
		emoji := fieldEmoji[strings.ToLower(sub[1])]
		if emoji == "" {
			return sub[2]
		}
		return emoji + " " + sub[2]
	})
}

// HasDate reports whether the line contains any YYYY-MM-DD date.
func HasDate(line string) bool {
	return bareDateRe.MatchString(line)
}

// HasTime reports whether the line contains a clock time or time range.
func HasTime(line string) bool {
	return timeRe.MatchString(line)
}

// Extract returns every date on the line, in order. A date without an
// emoji marker is named Unknown. Repeated names are kept.
func Extract(line string, loc *time.Location) ([]model.TaskDate, error) {
	if loc == nil {
		loc = time.Local
	}
	line = NormalizeFields(line)

	var out []model.TaskDate
	for _, m := range taggedDateRe.FindAllStringSubmatch(line, -1) {
		date, err := parseDate(m[2], m[3], m[4], loc)
		if err != nil {
			return nil, err
		}
		name, ok := emojiNames[m[1]]
		if !ok {
			name = model.Unknown
		}
		out = append(out, model.TaskDate{Name: name, Date: date})
	}
	return out, nil
}

// ParseHeadingDate returns the first YYYY-MM-DD date in a heading title.
func ParseHeadingDate(text string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	m := bareDateRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	date, err := parseDate(m[1], m[2], m[3], loc)
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}

// ExtractTimes reads the first clock time or time range on the line and
// anchors it on day. A single time gets a thirty minute range. The result is
// a TimeStart/TimeEnd pair, or nothing when the line has no time.
func ExtractTimes(line string, day time.Time) ([]model.TaskDate, error) {
	m := timeRe.FindStringSubmatch(line)
	if m == nil {
		return nil, nil
	}
	startText, endText := m[1], m[2]
	if endText == "" {
		var err error
		endText, err = util.DefaultEndTime(startText)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTime, err)
		}
	}

	start, err := atClock(day, startText)
	if err != nil {
		return nil, err
	}
	end, err := atClock(day, endText)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		end = end.AddDate(0, 0, 1)
	}
	return []model.TaskDate{
		{Name: model.TimeStart, Date: start},
		{Name: model.TimeEnd, Date: end},
	}, nil
}

func atClock(day time.Time, text string) (time.Time, error) {
	c, err := util.ParseClock(text)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidTime, err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour, c.Minute, c.Second, 0, day.Location()), nil
}

func parseDate(year, month, day string, loc *time.Location) (time.Time, error) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: year %q", ErrInvalidDate, year)
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return time.Time{}, fmt.Errorf("%w: month %q", ErrInvalidDate, month)
	}
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 || d > 31 {
		return time.Time{}, fmt.Errorf("%w: day %q", ErrInvalidDate, day)
	}
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, loc), nil
}
