package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/harrisonrobin/mdical/pkg/validation"
)

const DefaultAPIURL = "https://obsidian-ical.com/api"

// APIClient talks to the hosted calendar service. Subscription checks are
// cached so a save does not validate on every run.
type APIClient struct {
	BaseURL   string
	VaultName string
	SecretKey string
	HTTP      *http.Client
	Cache     *validation.Cache
	Log       log.FieldLogger
}

// NewAPIClient returns a client for vault. A nil cache gets an in-memory one.
func NewAPIClient(baseURL, vaultName, secretKey string, cache *validation.Cache, logger log.FieldLogger) *APIClient {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	if cache == nil {
		cache, _ = validation.NewCache("")
	}
	if logger == nil {
		l := log.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &APIClient{
		BaseURL:   baseURL,
		VaultName: vaultName,
		SecretKey: secretKey,
		HTTP:      &http.Client{Timeout: 30 * time.Second},
		Cache:     cache,
		Log:       logger,
	}
}

func (c *APIClient) Name() string { return "api" }

// SavedCalendar describes where the service published a calendar.
type SavedCalendar struct {
	URL       string
	UpdatedAt string
	VaultName string
	Message   string
	Found     bool
}

type envelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type validateData struct {
	Subscription struct {
		Status    string `json:"status"`
		ExpiresAt string `json:"expiresAt"`
	} `json:"subscription"`
}

type calendarData struct {
	Calendar *struct {
		URL       string `json:"url"`
		UpdatedAt string `json:"updatedAt"`
		VaultName string `json:"vaultName"`
	} `json:"calendar"`
}

// IsActive reports the subscription state of the secret key, from the cache
// unless force is set or the cached answer has expired.
func (c *APIClient) IsActive(ctx context.Context, force bool) (validation.Entry, error) {
	if !force {
		if e, ok := c.Cache.Get(c.SecretKey); ok {
			c.Log.WithField("active", e.Active()).Debug("using cached validation")
			return e, nil
		}
	}

	c.Log.Debug("validating secret key")
	env, err := c.do(ctx, http.MethodGet, "/validate", nil)
	if err != nil {
		c.Cache.Clear(c.SecretKey)
		return validation.Entry{}, err
	}
	var data validateData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return validation.Entry{}, fmt.Errorf("failed to decode validation: %w", err)
	}
	entry := validation.Entry{
		Status:  validation.ParseStatus(data.Subscription.Status),
		Message: env.Message,
	}
	if data.Subscription.ExpiresAt != "" {
		if t, err := time.Parse(time.RFC3339, data.Subscription.ExpiresAt); err == nil {
			entry.ExpiresAt = &t
		}
	}
	c.Cache.Set(c.SecretKey, entry)
	return entry, nil
}

// Save uploads the calendar. It refuses without a request when the cached
// validation says the subscription is inactive.
func (c *APIClient) Save(ctx context.Context, calendar string) (SavedCalendar, error) {
	if e, ok := c.Cache.Get(c.SecretKey); ok && !e.Active() {
		c.Log.Debug("skip save, cached subscription inactive")
		return SavedCalendar{}, fmt.Errorf("%w (cached)", ErrNoActiveSubscription)
	}

	env, err := c.do(ctx, http.MethodPost, "/save", map[string]string{
		"vaultName": c.VaultName,
		"calendar":  calendar,
	})
	if err != nil {
		c.Cache.Clear(c.SecretKey)
		return SavedCalendar{}, err
	}
	return decodeCalendar(env)
}

func (c *APIClient) Publish(ctx context.Context, calendar string) error {
	saved, err := c.Save(ctx, calendar)
	if err != nil {
		return err
	}
	c.Log.WithField("url", saved.URL).Info("calendar saved")
	return nil
}

// Calendar looks up the published calendar of the vault. A missing calendar
// is not an error; Found is false.
func (c *APIClient) Calendar(ctx context.Context) (SavedCalendar, error) {
	env, err := c.do(ctx, http.MethodGet, "/calendar/"+url.PathEscape(c.VaultName), nil)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return SavedCalendar{Message: "Calendar not found for this vault"}, nil
		}
		return SavedCalendar{}, err
	}
	return decodeCalendar(env)
}

func decodeCalendar(env envelope) (SavedCalendar, error) {
	out := SavedCalendar{Message: env.Message}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return out, nil
	}
	var data calendarData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return SavedCalendar{}, fmt.Errorf("failed to decode calendar: %w", err)
	}
	if data.Calendar != nil {
		out.URL = data.Calendar.URL
		out.UpdatedAt = data.Calendar.UpdatedAt
		out.VaultName = data.Calendar.VaultName
		out.Found = true
	}
	return out, nil
}

func (c *APIClient) do(ctx context.Context, method, path string, payload any) (envelope, error) {
	if c.SecretKey == "" {
		return envelope{}, ErrAPIKeyMissing
	}
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return envelope{}, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return envelope{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return envelope{}, fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return envelope{}, fmt.Errorf("failed to read response body: %w", err)
	}
	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode == http.StatusBadRequest && decodeErr == nil {
		if mapped := apiError(env.Message); mapped != nil {
			return envelope{}, mapped
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return envelope{}, &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if decodeErr != nil {
		return envelope{}, fmt.Errorf("failed to decode response: %w", decodeErr)
	}
	return env, nil
}

func apiError(message string) error {
	switch message {
	case "Secret Key is required":
		return ErrAPIKeyMissing
	case "Invalid user":
		return ErrInvalidUser
	case "No active subscription":
		return ErrNoActiveSubscription
	}
	return nil
}
