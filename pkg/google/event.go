package google

import (
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"
	"google.golang.org/api/calendar/v3"

	"github.com/harrisonrobin/mdical/pkg/ical"
	"github.com/harrisonrobin/mdical/pkg/model"
	"github.com/harrisonrobin/mdical/pkg/util"
)

// KeyProperty is the private extended property holding an event's key.
const KeyProperty = "mdical_key"

// EventKey identifies an occurrence by its content. The same task line keeps
// its key across runs until its text or dates change.
func EventKey(task *model.Task, occ ical.Occurrence) string {
	h, _ := blake2b.New256(nil)
	for _, part := range []string{task.Location, occ.Prefix, task.Display(), occ.Start, occ.End} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// ConvertOccurrence builds the Google event for one occurrence of task.
// A whole day without an end becomes an all-day event; anything else is a
// timed event, thirty minutes long when no end is given.
func ConvertOccurrence(task *model.Task, occ ical.Occurrence, key string, loc *time.Location) (*calendar.Event, error) {
	if task == nil {
		return nil, fmt.Errorf("could not convert nil task")
	}
	start, err := util.ParseCompact(occ.Start, loc)
	if err != nil {
		return nil, fmt.Errorf("start %q: %w", occ.Start, err)
	}

	event := &calendar.Event{
		Summary:     occ.Summary(task),
		Description: task.Location,
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{KeyProperty: key},
		},
	}

	if occ.End == "" && len(occ.Start) == len(util.DateLayout) {
		event.Start = &calendar.EventDateTime{Date: start.Format(time.DateOnly)}
		event.End = &calendar.EventDateTime{Date: start.AddDate(0, 0, 1).Format(time.DateOnly)}
		return event, nil
	}

	end := start.Add(ical.DefaultDurationMinutes * time.Minute)
	if occ.End != "" {
		if end, err = util.ParseCompact(occ.End, loc); err != nil {
			return nil, fmt.Errorf("end %q: %w", occ.End, err)
		}
	}
	event.Start = &calendar.EventDateTime{DateTime: start.Format(time.RFC3339)}
	event.End = &calendar.EventDateTime{DateTime: end.Format(time.RFC3339)}
	return event, nil
}

// EventNeedsUpdate returns a patch carrying the fields of target that differ
// from existing, or nil when they already match.
func EventNeedsUpdate(existing, target *calendar.Event) *calendar.Event {
	patch := &calendar.Event{}
	needsUpdate := false

	if existing.Summary != target.Summary {
		patch.Summary = target.Summary
		needsUpdate = true
	}
	if existing.Description != target.Description {
		patch.Description = target.Description
		needsUpdate = true
	}
	if existing.ColorId != target.ColorId {
		patch.ColorId = target.ColorId
		needsUpdate = true
	}
	if !sameTime(existing.Start, target.Start) || !sameTime(existing.End, target.End) {
		patch.Start = switchable(target.Start)
		patch.End = switchable(target.End)
		needsUpdate = true
	}

	if needsUpdate {
		return patch
	}
	return nil
}

// switchable clears the other form of the time so an event can move between
// all-day and timed in a patch.
func switchable(t *calendar.EventDateTime) *calendar.EventDateTime {
	out := *t
	if out.Date != "" {
		out.NullFields = []string{"DateTime"}
	} else {
		out.NullFields = []string{"Date"}
	}
	return &out
}

func sameTime(a, b *calendar.EventDateTime) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Date != "" || b.Date != "" {
		return a.Date == b.Date
	}
	ta, errA := time.Parse(time.RFC3339, a.DateTime)
	tb, errB := time.Parse(time.RFC3339, b.DateTime)
	if errA != nil || errB != nil {
		return a.DateTime == b.DateTime
	}
	return ta.Equal(tb)
}
