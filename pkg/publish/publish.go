// Package publish delivers rendered calendars to a file, a GitHub gist or
// the hosted calendar API.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	ErrAPIKeyMissing        = errors.New("secret key is required")
	ErrInvalidUser          = errors.New("invalid user")
	ErrNoActiveSubscription = errors.New("no active subscription")
	ErrNotConfigured        = errors.New("publisher not configured")
)

// Publisher stores a rendered calendar somewhere.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, calendar string) error
}

// All publishes to every target and joins their errors. A failing target
// does not stop the others.
func All(ctx context.Context, calendar string, targets ...Publisher) error {
	var errs []error
	for _, p := range targets {
		if err := p.Publish(ctx, calendar); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// StatusError is an unexpected HTTP response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
