// Package tasks recognizes checklist lines and builds model.Task values from them.
package tasks

import (
	"fmt"
	"io"
	"regexp"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/harrisonrobin/mdical/pkg/dates"
	"github.com/harrisonrobin/mdical/pkg/model"
	"github.com/harrisonrobin/mdical/pkg/summary"
)

var taskRe = regexp.MustCompile(`^\s*(?:[*-]\s*)?(\[.?\])\s*(.*?)\s*$`)

// Recognizer turns single lines into tasks according to Options.
type Recognizer struct {
	Options model.Options
	Log     log.FieldLogger
	// Now is used for the age cutoff; nil means time.Now.
	Now func() time.Time
}

// NewRecognizer returns a Recognizer. A nil logger discards output.
func NewRecognizer(opts model.Options, logger log.FieldLogger) *Recognizer {
	if logger == nil {
		logger = discard()
	}
	return &Recognizer{Options: opts, Log: logger, Now: time.Now}
}

func discard() log.FieldLogger {
	l := log.New()
	l.SetOutput(io.Discard)
	return l
}

func (r *Recognizer) logger() log.FieldLogger {
	if r.Log == nil {
		return discard()
	}
	return r.Log
}

// ParseStatus maps a bracketed status token to a Status. Unknown tokens are ToDo.
func ParseStatus(token string) model.Status {
	switch token {
	case "[-]":
		return model.Cancelled
	case "[/]", "[d]":
		return model.InProgress
	case "[x]", "[X]":
		return model.Done
	default:
		return model.ToDo
	}
}

// FromLine returns the task on line, or nil when the line is not a task or
// the options exclude it. A non-nil override replaces date extraction with a
// clock time read from the line and anchored on that day. An error means the
// line had a malformed date or time; callers skip the line.
func (r *Recognizer) FromLine(line, location string, override *time.Time) (*model.Task, error) {
	m := taskRe.FindStringSubmatch(line)
	if m == nil {
		return nil, nil
	}
	opts := r.Options

	if !dates.HasDate(line) && override == nil && !opts.IncludeTodos {
		return nil, nil
	}

	status := ParseStatus(m[1])
	if status == model.Done && opts.IgnoreCompleted {
		r.logger().WithField("location", location).Debug("skip completed task")
		return nil, nil
	}

	var (
		taskDates []model.TaskDate
		err       error
	)
	if override != nil {
		taskDates, err = dates.ExtractTimes(line, *override)
	} else {
		taskDates, err = dates.Extract(line, opts.Loc())
	}
	if err != nil {
		return nil, fmt.Errorf("task %q: %w", location, err)
	}

	if opts.IgnoreOld && len(taskDates) > 0 && r.allBefore(taskDates, r.cutoff()) {
		r.logger().WithField("location", location).Debug("skip task older than cutoff")
		return nil, nil
	}

	return &model.Task{
		Status:   status,
		Dates:    taskDates,
		Summary:  summary.Clean(m[2], opts.Links),
		Location: location,
	}, nil
}

// cutoff is midnight OldTaskDays before today; a date on the cutoff day is kept.
func (r *Recognizer) cutoff() time.Time {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	today := now().In(r.Options.Loc())
	midnight := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	return midnight.AddDate(0, 0, -r.Options.OldTaskDays)
}

func (r *Recognizer) allBefore(taskDates []model.TaskDate, cutoff time.Time) bool {
	for _, d := range taskDates {
		if !d.Date.Before(cutoff) {
			return false
		}
	}
	return true
}
