package validation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestCache(t *testing.T, path string) (*Cache, *clock) {
	t.Helper()
	c, err := NewCache(path)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	clk := &clock{t: time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)}
	c.Now = clk.now
	return c, clk
}

func TestParseStatus(t *testing.T) {
	cases := map[string]Status{
		"active":   Active,
		"ACTIVE":   Active,
		"past_due": PastDue,
		"trialing": Trialing,
		"bogus":    Canceled,
		"":         Canceled,
	}
	for in, want := range cases {
		if got := ParseStatus(in); got != want {
			t.Errorf("ParseStatus(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCacheExpiry(t *testing.T) {
	c, clk := newTestCache(t, "")
	c.Set("secret", Entry{Status: Active})

	e, ok := c.Get("secret")
	if !ok || !e.Active() {
		t.Fatalf("expected active entry, got %+v, %v", e, ok)
	}
	if got := c.TimeUntilExpiry("secret"); got != DefaultTTL {
		t.Errorf("expected %v until expiry, got %v", DefaultTTL, got)
	}

	clk.t = clk.t.Add(DefaultTTL)
	if _, ok := c.Get("secret"); !ok {
		t.Fatal("expected entry to survive exactly one TTL")
	}

	clk.t = clk.t.Add(time.Second)
	if _, ok := c.Get("secret"); ok {
		t.Fatal("expected entry to expire after the TTL")
	}
	if got := c.TimeUntilExpiry("secret"); got != 0 {
		t.Errorf("expected zero time until expiry, got %v", got)
	}
}

func TestCacheClear(t *testing.T) {
	c, _ := newTestCache(t, "")
	c.Set("a", Entry{Status: Active})
	c.Set("b", Entry{Status: Unpaid})

	c.Clear("a")
	if _, ok := c.Get("a"); ok {
		t.Error("expected a to be cleared")
	}
	if e, ok := c.Get("b"); !ok || e.Active() {
		t.Errorf("expected inactive b, got %+v, %v", e, ok)
	}

	c.ClearAll()
	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be cleared")
	}
}

func TestCacheSweep(t *testing.T) {
	c, clk := newTestCache(t, "")
	c.Set("old", Entry{Status: Active})
	clk.t = clk.t.Add(4 * time.Minute)
	c.Set("new", Entry{Status: Active})
	clk.t = clk.t.Add(2 * time.Minute)

	if n := c.Sweep(); n != 1 {
		t.Fatalf("expected 1 swept entry, got %d", n)
	}
	if _, ok := c.Get("new"); !ok {
		t.Error("expected fresh entry to survive the sweep")
	}
}

func TestKeyHidesSecret(t *testing.T) {
	k := Key("super-secret")
	if strings.Contains(k, "super-secret") || !strings.HasPrefix(k, "validation_") {
		t.Errorf("unexpected key %q", k)
	}
	if k != Key("super-secret") || k == Key("other") {
		t.Error("expected keys to be stable and distinct")
	}
}

func TestCachePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "validation.json")
	c, _ := newTestCache(t, path)

	if err := c.Save(); err != nil {
		t.Fatalf("Save of clean cache failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected clean cache not to be written, stat err %v", err)
	}

	c.Set("secret", Entry{Status: PastDue, Message: "ok"})
	if err := c.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if strings.Contains(string(raw), "secret\"") {
		t.Errorf("secret leaked into %s", raw)
	}

	loaded, clk := newTestCache(t, path)
	clk.t = clk.t.Add(time.Minute)
	e, ok := loaded.Get("secret")
	if !ok || e.Status != PastDue || e.Message != "ok" {
		t.Fatalf("unexpected loaded entry %+v, %v", e, ok)
	}
}

func TestResetPersistsAndReportsErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "validation.json")
	c, err := NewCache(path)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	c.Set("secret", Entry{Status: Active})
	if err := c.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := c.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	reloaded, err := NewCache(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if _, ok := reloaded.Get("secret"); ok {
		t.Error("expected the reset cache to be empty on disk")
	}

	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	bad, _ := NewCache(filepath.Join(blocker, "validation.json"))
	bad.Set("secret", Entry{Status: Active})
	if err := bad.Reset(); err == nil {
		t.Error("expected Reset to report the failed write")
	}
}
