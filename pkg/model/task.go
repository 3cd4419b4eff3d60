package model

import "time"

// Status is the checklist state of a task line.
type Status int

const (
	ToDo Status = iota
	Done
	InProgress
	Cancelled
)

// Emoji returns the glyph prepended to a task's summary in calendar output.
func (s Status) Emoji() string {
	switch s {
	case Cancelled:
		return "🚫"
	case Done:
		return "✅"
	case InProgress:
		return "🏃"
	default:
		return "🔲"
	}
}

func (s Status) String() string {
	switch s {
	case Cancelled:
		return "cancelled"
	case Done:
		return "done"
	case InProgress:
		return "in-progress"
	default:
		return "todo"
	}
}

// DateName identifies the meaning of a date found on a task line.
type DateName string

const (
	Created   DateName = "Created"
	Scheduled DateName = "Scheduled"
	Start     DateName = "Start"
	Due       DateName = "Due"
	DoneDate  DateName = "Done"
	TimeStart DateName = "TimeStart"
	TimeEnd   DateName = "TimeEnd"
	Unknown   DateName = "Unknown"
)

// TaskDate is a single named date attached to a task.
// TimeStart and TimeEnd always come as a pair and carry a clock time;
// every other name is a whole-day value.
type TaskDate struct {
	Name DateName
	Date time.Time
}

// HasTime reports whether the date carries a clock time.
func (d TaskDate) HasTime() bool {
	return d.Name == TimeStart || d.Name == TimeEnd
}

// Task is one recognized checklist line.
type Task struct {
	Status   Status
	Dates    []TaskDate
	Summary  string
	Location string
}

// Has reports whether the task carries a date with the given name.
func (t *Task) Has(name DateName) bool {
	for _, d := range t.Dates {
		if d.Name == name {
			return true
		}
	}
	return false
}

// HasAnyDate reports whether the task carries at least one date.
func (t *Task) HasAnyDate() bool {
	return len(t.Dates) > 0
}

// Date returns the first date with the given name.
func (t *Task) Date(name DateName) (TaskDate, bool) {
	for _, d := range t.Dates {
		if d.Name == name {
			return d, true
		}
	}
	return TaskDate{}, false
}

// FirstDate returns the first date found on the line, whatever its name.
func (t *Task) FirstDate() (TaskDate, bool) {
	if len(t.Dates) == 0 {
		return TaskDate{}, false
	}
	return t.Dates[0], true
}

// Display returns the summary with the status glyph in front.
func (t *Task) Display() string {
	return t.Status.Emoji() + " " + t.Summary
}
