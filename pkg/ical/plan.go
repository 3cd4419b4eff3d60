package ical

import (
	"fmt"

	"github.com/harrisonrobin/mdical/pkg/model"
	"github.com/harrisonrobin/mdical/pkg/util"
)

// DefaultDurationMinutes is the length given to events that only have a start.
const DefaultDurationMinutes = 30

// Occurrence is one calendar event derived from a task. Start and End hold
// iCalendar date or date-time values; End is empty when the event has none.
type Occurrence struct {
	Prefix string
	Start  string
	End    string
}

// Summary returns the display summary with the occurrence prefix applied.
func (o Occurrence) Summary(task *model.Task) string {
	return o.Prefix + task.Display()
}

var perDateGlyphs = []struct {
	name  model.DateName
	glyph string
}{
	{model.Start, "🛫 "},
	{model.Scheduled, "⏳ "},
	{model.Due, "📅 "},
}

// Plan decides which events a task produces under policy. A task without
// dates produces none. A clock range wins over every policy.
func Plan(task *model.Task, policy model.MultiDatePolicy) ([]Occurrence, error) {
	if !task.HasAnyDate() {
		return nil, nil
	}

	if task.Has(model.TimeStart) && task.Has(model.TimeEnd) {
		return []Occurrence{{
			Start: format(task, model.TimeStart, util.CompactUTCLayout),
			End:   format(task, model.TimeEnd, util.CompactUTCLayout),
		}}, nil
	}

	switch policy {
	case model.PreferStartDate:
		name := firstPresent(task, model.Start, model.Due)
		return []Occurrence{{Start: format(task, name, util.DateLayout)}}, nil

	case model.EventPerDate:
		var out []Occurrence
		for _, g := range perDateGlyphs {
			if task.Has(g.name) {
				out = append(out, Occurrence{Prefix: g.glyph, Start: format(task, g.name, util.DateLayout)})
			}
		}
		if len(out) == 0 {
			out = append(out, Occurrence{Start: format(task, "", util.DateLayout)})
		}
		return out, nil

	default:
		switch {
		case task.Has(model.Start) && task.Has(model.Due):
			return []Occurrence{{
				Start: format(task, model.Start, util.CompactLayout),
				End:   format(task, model.Due, util.CompactLayout),
			}}, nil
		case task.Has(model.Due):
			return withDefaultEnd(task, model.Due)
		case task.Has(model.Start):
			return withDefaultEnd(task, model.Start)
		default:
			return []Occurrence{{Start: format(task, "", util.DateLayout)}}, nil
		}
	}
}

func withDefaultEnd(task *model.Task, name model.DateName) ([]Occurrence, error) {
	end, err := util.AddMinutes(format(task, name, util.CompactLayout), DefaultDurationMinutes)
	if err != nil {
		return nil, fmt.Errorf("default end for %s: %w", name, err)
	}
	return []Occurrence{{
		Start: format(task, name, util.DateLayout),
		End:   end,
	}}, nil
}

func firstPresent(task *model.Task, names ...model.DateName) model.DateName {
	for _, name := range names {
		if task.Has(name) {
			return name
		}
	}
	return ""
}

// format renders the named date (the first date when name is empty).
// Clock times are converted to UTC; whole days are written as they read.
func format(task *model.Task, name model.DateName, layout string) string {
	var (
		d  model.TaskDate
		ok bool
	)
	if name == "" {
		d, ok = task.FirstDate()
	} else {
		d, ok = task.Date(name)
	}
	if !ok {
		return ""
	}
	if d.HasTime() {
		return d.Date.UTC().Format(layout)
	}
	return d.Date.Format(layout)
}
