package model

import "time"

// LinkPolicy controls how wikilinks and markdown links are rewritten in summaries.
type LinkPolicy string

const (
	LinksUnchanged   LinkPolicy = "DoNotModifyThem"
	LinksKeepTitle   LinkPolicy = "KeepTitle"
	LinksPreferTitle LinkPolicy = "PreferTitle"
	LinksRemove      LinkPolicy = "RemoveThem"
)

// MultiDatePolicy chooses which dates become event times when a task has several.
type MultiDatePolicy string

const (
	PreferDueDate   MultiDatePolicy = "PreferDueDate"
	PreferStartDate MultiDatePolicy = "PreferStartDate"
	EventPerDate    MultiDatePolicy = "CreateMultipleEvents"
)

// Options is the read-only parsing configuration threaded through the
// recognizer, the scanner and the renderer.
type Options struct {
	Links            LinkPolicy
	IgnoreCompleted  bool
	IgnoreOld        bool
	OldTaskDays      int
	IncludeTodos     bool
	OnlyUndatedTodos bool
	MultiDate        MultiDatePolicy
	IncludeTags      []string
	ExcludeTags      []string
	DayPlanner       bool
	LinkDescription  bool

	// Location is the zone naive dates and clock times are read in.
	// Nil means time.Local.
	Location *time.Location
}

// DefaultOptions mirrors the defaults of a fresh configuration.
func DefaultOptions() Options {
	return Options{
		Links:            LinksUnchanged,
		OldTaskDays:      365,
		OnlyUndatedTodos: true,
		MultiDate:        PreferDueDate,
	}
}

// Loc returns the configured location, falling back to time.Local.
func (o Options) Loc() *time.Location {
	if o.Location == nil {
		return time.Local
	}
	return o.Location
}
