package publish

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

const calendar = "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"

func TestFileWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	w := &FileWriter{Dir: dir, Base: "tasks", Ext: ".ics"}
	if err := w.Publish(context.Background(), calendar); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if err := w.Publish(context.Background(), calendar+"x"); err != nil {
		t.Fatalf("second Publish failed: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dir, "tasks.ics"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(got) != calendar+"x" {
		t.Errorf("unexpected content %q", got)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected only the calendar file, found %d entries", len(entries))
	}
}

func TestFileWriterRejectsBadSettings(t *testing.T) {
	dir := t.TempDir()
	if err := (&FileWriter{Dir: dir, Ext: ".ics"}).Publish(context.Background(), calendar); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
	if err := (&FileWriter{Dir: dir, Base: "x", Ext: ".txt"}).Publish(context.Background(), calendar); err == nil {
		t.Error("expected an error for an unsupported extension")
	}
	for _, ext := range []string{".ics", ".ICAL", ".ifb", ".icalendar"} {
		if !ValidExtension(ext) {
			t.Errorf("expected %q to be valid", ext)
		}
	}
}

func TestGistClient(t *testing.T) {
	var got struct {
		Files map[string]struct {
			Content string `json:"content"`
		} `json:"files"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/gists/abc123" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer tok" {
			t.Errorf("unexpected authorization %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	g := NewGistClient(context.Background(), "tok", "abc123", "")
	g.BaseURL = srv.URL
	if err := g.Publish(context.Background(), calendar); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if got.Files[DefaultGistFilename].Content != calendar {
		t.Errorf("unexpected gist payload %+v", got)
	}
}

func TestGistClientErrors(t *testing.T) {
	if err := NewGistClient(context.Background(), "", "id", "").Publish(context.Background(), calendar); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured without a token, got %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()
	g := NewGistClient(context.Background(), "tok", "missing", "cal.ics")
	g.BaseURL = srv.URL
	var se *StatusError
	if err := g.Publish(context.Background(), calendar); !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
		t.Errorf("expected a 404 StatusError, got %v", err)
	}
}

type fakeAPI struct {
	validations atomic.Int32
	saves       atomic.Int32
	status      string
	saveStatus  int
	saveMessage string
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/validate", func(w http.ResponseWriter, r *http.Request) {
		f.validations.Add(1)
		io.WriteString(w, `{"data":{"subscription":{"status":"`+f.status+`","expiresAt":"2030-01-01T00:00:00Z"}},"message":"ok"}`)
	})
	mux.HandleFunc("/save", func(w http.ResponseWriter, r *http.Request) {
		f.saves.Add(1)
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode save body: %v", err)
		}
		if body["vaultName"] != "My Vault" || body["calendar"] != calendar {
			t.Errorf("unexpected save body %v", body)
		}
		if f.saveStatus != 0 {
			w.WriteHeader(f.saveStatus)
			io.WriteString(w, `{"error":true,"message":"`+f.saveMessage+`","code":400}`)
			return
		}
		io.WriteString(w, `{"data":{"calendar":{"url":"https://cal.example/x.ics","updatedAt":"2024-03-15"}},"message":"saved"}`)
	})
	mux.HandleFunc("/calendar/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/calendar/My Vault" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, `{"data":{"calendar":{"url":"https://cal.example/x.ics","updatedAt":"2024-03-15","vaultName":"My Vault"}},"message":"found"}`)
	})
	return mux
}

func newTestAPI(t *testing.T, f *fakeAPI, vault string) *APIClient {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return NewAPIClient(srv.URL, vault, "secret", nil, nil)
}

func TestAPIClientValidationIsCached(t *testing.T) {
	f := &fakeAPI{status: "active"}
	c := newTestAPI(t, f, "My Vault")

	for i := 0; i < 3; i++ {
		e, err := c.IsActive(context.Background(), false)
		if err != nil {
			t.Fatalf("IsActive failed: %v", err)
		}
		if !e.Active() || e.ExpiresAt == nil || e.ExpiresAt.Year() != 2030 {
			t.Fatalf("unexpected entry %+v", e)
		}
	}
	if n := f.validations.Load(); n != 1 {
		t.Errorf("expected 1 validation request, got %d", n)
	}

	if _, err := c.IsActive(context.Background(), true); err != nil {
		t.Fatalf("forced IsActive failed: %v", err)
	}
	if n := f.validations.Load(); n != 2 {
		t.Errorf("expected a forced refresh, got %d requests", n)
	}
}

func TestAPIClientSave(t *testing.T) {
	f := &fakeAPI{status: "active"}
	c := newTestAPI(t, f, "My Vault")
	saved, err := c.Save(context.Background(), calendar)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if saved.URL != "https://cal.example/x.ics" || saved.Message != "saved" || !saved.Found {
		t.Errorf("unexpected save response %+v", saved)
	}
}

func TestAPIClientSaveRefusedWhenCachedInactive(t *testing.T) {
	f := &fakeAPI{status: "past_due"}
	c := newTestAPI(t, f, "My Vault")
	e, err := c.IsActive(context.Background(), false)
	if err != nil || e.Active() {
		t.Fatalf("expected an inactive subscription, got %+v, %v", e, err)
	}
	if _, err := c.Save(context.Background(), calendar); !errors.Is(err, ErrNoActiveSubscription) {
		t.Fatalf("expected ErrNoActiveSubscription, got %v", err)
	}
	if n := f.saves.Load(); n != 0 {
		t.Errorf("expected no save request, got %d", n)
	}
}

func TestAPIClientErrorMapping(t *testing.T) {
	cases := map[string]error{
		"Secret Key is required": ErrAPIKeyMissing,
		"Invalid user":           ErrInvalidUser,
		"No active subscription": ErrNoActiveSubscription,
	}
	for message, want := range cases {
		f := &fakeAPI{status: "active", saveStatus: http.StatusBadRequest, saveMessage: message}
		c := newTestAPI(t, f, "My Vault")
		if _, err := c.IsActive(context.Background(), false); err != nil {
			t.Fatalf("IsActive failed: %v", err)
		}
		_, err := c.Save(context.Background(), calendar)
		if !errors.Is(err, want) {
			t.Errorf("%q: expected %v, got %v", message, want, err)
		}
		if _, ok := c.Cache.Get("secret"); ok {
			t.Errorf("%q: expected the cache to be cleared after a failed save", message)
		}
	}

	f := &fakeAPI{status: "active", saveStatus: http.StatusBadRequest, saveMessage: "something else"}
	var se *StatusError
	if _, err := newTestAPI(t, f, "My Vault").Save(context.Background(), calendar); !errors.As(err, &se) {
		t.Errorf("expected a StatusError for an unknown message, got %v", err)
	}
}

func TestAPIClientMissingKey(t *testing.T) {
	c := NewAPIClient("http://127.0.0.1:1", "v", "", nil, nil)
	if _, err := c.IsActive(context.Background(), false); !errors.Is(err, ErrAPIKeyMissing) {
		t.Errorf("expected ErrAPIKeyMissing, got %v", err)
	}
}

func TestAPIClientCalendar(t *testing.T) {
	f := &fakeAPI{status: "active"}
	found, err := newTestAPI(t, f, "My Vault").Calendar(context.Background())
	if err != nil {
		t.Fatalf("Calendar failed: %v", err)
	}
	if !found.Found || found.VaultName != "My Vault" {
		t.Errorf("unexpected calendar %+v", found)
	}

	missing, err := newTestAPI(t, f, "Other").Calendar(context.Background())
	if err != nil {
		t.Fatalf("Calendar for missing vault failed: %v", err)
	}
	if missing.Found || !strings.Contains(missing.Message, "not found") {
		t.Errorf("unexpected missing calendar %+v", missing)
	}
}

func TestAll(t *testing.T) {
	dir := t.TempDir()
	good := &FileWriter{Dir: dir, Base: "a", Ext: ".ics"}
	bad := &FileWriter{Dir: dir, Ext: ".ics"}
	err := All(context.Background(), calendar, bad, good)
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected joined ErrNotConfigured, got %v", err)
	}
	if _, err := os.Stat(good.Path()); err != nil {
		t.Errorf("expected the good target to be written: %v", err)
	}
	if err := All(context.Background(), calendar, good); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}
