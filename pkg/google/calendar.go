// Package google publishes task occurrences as events in a Google calendar.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"

	"github.com/harrisonrobin/mdical/pkg/colors"
	"github.com/harrisonrobin/mdical/pkg/ical"
	"github.com/harrisonrobin/mdical/pkg/index"
	"github.com/harrisonrobin/mdical/pkg/model"
)

// CalendarClient is a Google Calendar API client.
type CalendarClient struct {
	srv        *calendar.Service
	calendarID string
	index      *index.EventIndex
	colors     *colors.ColorCache
	log        log.FieldLogger
}

// NewCalendarClient creates a new Google Calendar client. A nil index or
// color cache is replaced by an in-memory one.
func NewCalendarClient(srv *calendar.Service, calendarID string, idx *index.EventIndex, cc *colors.ColorCache, logger log.FieldLogger) *CalendarClient {
	if idx == nil {
		idx, _ = index.NewEventIndex("")
	}
	if cc == nil {
		cc, _ = colors.NewColorCache("")
	}
	if logger == nil {
		l := log.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &CalendarClient{srv: srv, calendarID: calendarID, index: idx, colors: cc, log: logger}
}

// SyncResult counts what a Sync did.
type SyncResult struct {
	Created, Updated, Unchanged, Deleted int
}

// Sync makes the calendar hold exactly the occurrences of tasks: new ones are
// created, changed ones patched and events of vanished occurrences deleted.
// Events of the documents at the unread locations are kept as they are.
func (c *CalendarClient) Sync(ctx context.Context, tasks []*model.Task, policy model.MultiDatePolicy, loc *time.Location, unread ...string) (SyncResult, error) {
	var (
		res  SyncResult
		errs []error
	)
	seen := make(map[string]bool)
	keep := make(map[string]bool, len(unread))
	for _, l := range unread {
		keep[l] = true
	}

	for _, task := range tasks {
		occurrences, err := ical.Plan(task, policy)
		if err != nil {
			c.log.WithError(err).WithField("location", task.Location).Debug("skip task")
			continue
		}
		for _, occ := range occurrences {
			key := EventKey(task, occ)
			for n := 2; seen[key]; n++ {
				key = fmt.Sprintf("%s-%d", EventKey(task, occ), n)
			}
			seen[key] = true

			event, err := ConvertOccurrence(task, occ, key, loc)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			event.ColorId = c.colors.ColorID(task.Location)

			outcome, err := c.upsert(ctx, key, event)
			if err != nil {
				errs = append(errs, fmt.Errorf("sync %q: %w", event.Summary, err))
				continue
			}
			c.index.SetLocation(key, task.Location)
			switch outcome {
			case created:
				res.Created++
			case updated:
				res.Updated++
			default:
				res.Unchanged++
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return res, err
	}
	for _, key := range c.index.Keys() {
		if seen[key] || keep[c.index.Location(key)] {
			continue
		}
		if err := c.DeleteEvent(ctx, c.index.Get(key)); err != nil && !isGone(err) {
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
			continue
		}
		c.index.Remove(key)
		res.Deleted++
	}

	c.log.WithFields(log.Fields{
		"created":   res.Created,
		"updated":   res.Updated,
		"unchanged": res.Unchanged,
		"deleted":   res.Deleted,
	}).Info("calendar synced")
	return res, errors.Join(errs...)
}

type outcome int

const (
	unchanged outcome = iota
	created
	updated
)

func (c *CalendarClient) upsert(ctx context.Context, key string, event *calendar.Event) (outcome, error) {
	var existing *calendar.Event
	if eventID := c.index.Get(key); eventID != "" {
		e, err := c.srv.Events.Get(c.calendarID, eventID).Context(ctx).Do()
		if err == nil && e.Status != "cancelled" {
			existing = e
		}
	}
	if existing == nil {
		e, err := c.GetEventByKey(ctx, key)
		if err != nil {
			return unchanged, fmt.Errorf("error searching for event: %w", err)
		}
		existing = e
	}

	if existing != nil {
		c.index.Set(key, existing.Id)
		patch := EventNeedsUpdate(existing, event)
		if patch == nil {
			return unchanged, nil
		}
		if _, err := c.PatchEvent(ctx, existing.Id, patch); err != nil {
			return unchanged, err
		}
		return updated, nil
	}

	createdEvent, err := c.srv.Events.Insert(c.calendarID, event).Context(ctx).Do()
	if err != nil {
		return unchanged, err
	}
	c.index.Set(key, createdEvent.Id)
	return created, nil
}

// PatchEvent performs a partial update on an event.
func (c *CalendarClient) PatchEvent(ctx context.Context, eventID string, patch *calendar.Event) (*calendar.Event, error) {
	return c.srv.Events.Patch(c.calendarID, eventID, patch).Context(ctx).Do()
}

// DeleteEvent deletes an event from the calendar.
func (c *CalendarClient) DeleteEvent(ctx context.Context, eventID string) error {
	return c.srv.Events.Delete(c.calendarID, eventID).Context(ctx).Do()
}

// GetEventByKey searches for a live event carrying key in its private
// extended properties.
func (c *CalendarClient) GetEventByKey(ctx context.Context, key string) (*calendar.Event, error) {
	events, err := c.srv.Events.List(c.calendarID).
		PrivateExtendedProperty(KeyProperty + "=" + key).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	for _, e := range events.Items {
		if e.Status != "cancelled" {
			return e, nil
		}
	}
	return nil, nil
}

func isGone(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone
	}
	return false
}
