// Package ical renders tasks as an iCalendar feed of VEVENT and VTODO blocks.
package ical

import (
	"io"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/harrisonrobin/mdical/pkg/model"
	"github.com/harrisonrobin/mdical/pkg/util"
)

const (
	DefaultProductID    = "-//harrisonrobin//mdical v1.0.0//EN"
	DefaultCalendarName = "Obsidian Calendar"
)

// Renderer builds calendar text from tasks.
type Renderer struct {
	Options      model.Options
	ProductID    string
	CalendarName string
	Log          log.FieldLogger
	// NewUID mints block identifiers; nil means a random UUID.
	NewUID func() string
}

// NewRenderer returns a Renderer with the default envelope headers.
func NewRenderer(opts model.Options, logger log.FieldLogger) *Renderer {
	if logger == nil {
		l := log.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Renderer{
		Options:      opts,
		ProductID:    DefaultProductID,
		CalendarName: DefaultCalendarName,
		Log:          logger,
		NewUID:       uuid.NewString,
	}
}

// Render returns the complete calendar for tasks, events first then to-dos.
func (r *Renderer) Render(tasks []*model.Task) string {
	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\r\n")
	b.WriteString("VERSION:2.0\r\n")
	b.WriteString("PRODID:" + r.productID() + "\r\n")
	b.WriteString("X-WR-CALNAME:" + r.calendarName() + "\r\n")
	b.WriteString("NAME:" + r.calendarName() + "\r\n")
	b.WriteString("CALSCALE:GREGORIAN\r\n")

	for _, task := range tasks {
		b.WriteString(r.events(task))
	}
	if r.Options.IncludeTodos {
		for _, task := range tasks {
			if r.Options.OnlyUndatedTodos && task.HasAnyDate() {
				continue
			}
			b.WriteString(r.todo(task))
		}
	}

	b.WriteString("END:VCALENDAR\r\n")
	return Normalize(b.String())
}

func (r *Renderer) events(task *model.Task) string {
	occurrences, err := Plan(task, r.Options.MultiDate)
	if err != nil {
		r.logger().WithError(err).WithField("location", task.Location).Debug("skip event")
		return ""
	}

	var b strings.Builder
	for _, occ := range occurrences {
		b.WriteString("BEGIN:VEVENT\r\n")
		b.WriteString("UID:" + r.uid() + "\r\n")
		b.WriteString("DTSTAMP:" + stamp(task) + "\r\n")
		b.WriteString("DTSTART:" + occ.Start + "\r\n")
		if occ.End != "" {
			b.WriteString("DTEND:" + occ.End + "\r\n")
		}
		b.WriteString("SUMMARY:" + Escape(occ.Summary(task)) + "\r\n")
		if r.Options.LinkDescription {
			b.WriteString("DESCRIPTION:" + EncodeURI(task.Location) + "\r\n")
		}
		b.WriteString(location(task))
		b.WriteString("END:VEVENT\r\n")
	}
	return b.String()
}

func (r *Renderer) todo(task *model.Task) string {
	var b strings.Builder
	b.WriteString("BEGIN:VTODO\r\n")
	b.WriteString("UID:" + r.uid() + "\r\n")
	b.WriteString("SUMMARY:" + Escape(task.Display()) + "\r\n")
	if task.HasAnyDate() {
		b.WriteString("DTSTAMP:" + stamp(task) + "\r\n")
	}
	b.WriteString(location(task))
	if task.Has(model.Due) {
		b.WriteString("DUE;VALUE=DATE:" + format(task, model.Due, util.DateLayout) + "\r\n")
	}
	if task.Has(model.DoneDate) {
		b.WriteString("COMPLETED;VALUE=DATE:" + format(task, model.DoneDate, util.DateLayout) + "\r\n")
	}
	b.WriteString("STATUS:" + todoStatus(task.Status) + "\r\n")
	if r.Options.LinkDescription {
		b.WriteString("DESCRIPTION:" + EncodeURI(task.Location) + "\r\n")
	}
	b.WriteString("END:VTODO\r\n")
	return b.String()
}

func todoStatus(s model.Status) string {
	switch s {
	case model.InProgress:
		return "IN-PROCESS"
	case model.Done:
		return "COMPLETED"
	case model.Cancelled:
		return "CANCELLED"
	default:
		return "NEEDS-ACTION"
	}
}

// stamp is the task's first date as a date-time, UTC when it carries a clock.
func stamp(task *model.Task) string {
	d, ok := task.FirstDate()
	if !ok {
		return ""
	}
	if d.HasTime() {
		return format(task, "", util.CompactUTCLayout)
	}
	return format(task, "", util.CompactLayout)
}

func location(task *model.Task) string {
	uri := EncodeURI(task.Location)
	return "LOCATION;ALTREP=\"" + uri + "\":" + uri + "\r\n"
}

func (r *Renderer) logger() log.FieldLogger {
	if r.Log == nil {
		l := log.New()
		l.SetOutput(io.Discard)
		return l
	}
	return r.Log
}

func (r *Renderer) uid() string {
	if r.NewUID == nil {
		return uuid.NewString()
	}
	return r.NewUID()
}

func (r *Renderer) productID() string {
	if r.ProductID == "" {
		return DefaultProductID
	}
	return r.ProductID
}

func (r *Renderer) calendarName() string {
	if r.CalendarName == "" {
		return DefaultCalendarName
	}
	return r.CalendarName
}
