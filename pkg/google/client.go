package google

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"google.golang.org/api/calendar/v3"

	"github.com/harrisonrobin/mdical/pkg/auth"
	"github.com/harrisonrobin/mdical/pkg/colors"
	"github.com/harrisonrobin/mdical/pkg/index"
)

// NewClient authenticates and returns a client for the calendar named
// calendarName.
func NewClient(ctx context.Context, calendarName string, idx *index.EventIndex, cc *colors.ColorCache, logger log.FieldLogger) (*CalendarClient, error) {
	srv, err := auth.GetCalendarService(ctx)
	if err != nil {
		return nil, err
	}
	calendarID, err := FindCalendar(ctx, srv, calendarName)
	if err != nil {
		return nil, err
	}
	return NewCalendarClient(srv, calendarID, idx, cc, logger), nil
}

// FindCalendar returns the id of the calendar whose title is name.
func FindCalendar(ctx context.Context, srv *calendar.Service, name string) (string, error) {
	calendarList, err := srv.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to retrieve calendar list: %w", err)
	}
	for _, item := range calendarList.Items {
		if item.Summary == name {
			return item.Id, nil
		}
	}
	return "", fmt.Errorf("calendar '%s' not found", name)
}
