// Package validation caches subscription checks made against the calendar API.
package validation

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
)

// DefaultTTL is how long a validation response is trusted.
const DefaultTTL = 5 * time.Minute

// Status is a subscription state as reported by the API.
type Status string

const (
	Active            Status = "active"
	Canceled          Status = "canceled"
	Incomplete        Status = "incomplete"
	IncompleteExpired Status = "incomplete_expired"
	PastDue           Status = "past_due"
	Paused            Status = "paused"
	Trialing          Status = "trialing"
	Unpaid            Status = "unpaid"
)

var knownStatuses = map[Status]bool{
	Active: true, Canceled: true, Incomplete: true, IncompleteExpired: true,
	PastDue: true, Paused: true, Trialing: true, Unpaid: true,
}

// ParseStatus maps an API status string to a Status. Unknown values are
// treated as canceled.
func ParseStatus(s string) Status {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if knownStatuses[st] {
		return st
	}
	return Canceled
}

// Entry is one cached validation response.
type Entry struct {
	Status    Status     `json:"status"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Message   string     `json:"message"`
	CachedAt  time.Time  `json:"cached_at"`
}

// Active reports whether the subscription is usable.
func (e Entry) Active() bool {
	return e.Status == Active
}

// Cache holds validation responses keyed by a hash of the secret key.
type Cache struct {
	Entries map[string]Entry `json:"entries"`
	Path    string           `json:"-"`
	TTL     time.Duration    `json:"-"`
	Now     func() time.Time `json:"-"`

	mu    sync.RWMutex
	dirty bool
}

// DefaultPath is where the CLI persists the cache between runs.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "mdical", "validation.json"), nil
}

// NewCache returns a cache backed by path, loading it when the file exists.
// An empty path keeps the cache in memory only.
func NewCache(path string) (*Cache, error) {
	c := &Cache{
		Entries: make(map[string]Entry),
		Path:    path,
		TTL:     DefaultTTL,
	}
	if path == "" {
		return c, nil
	}
	if _, err := os.Stat(path); err == nil {
		if err := c.Load(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Key hashes a secret so it is never stored in the clear.
func Key(secret string) string {
	sum := blake2b.Sum256([]byte(secret))
	return "validation_" + hex.EncodeToString(sum[:8])
}

func (c *Cache) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Cache) ttl() time.Duration {
	if c.TTL <= 0 {
		return DefaultTTL
	}
	return c.TTL
}

func (c *Cache) expired(e Entry) bool {
	return c.now().Sub(e.CachedAt) > c.ttl()
}

// Get returns the cached entry for secret. Expired entries are dropped.
func (c *Cache) Get(secret string) (Entry, bool) {
	key := Key(secret)
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.Entries[key]
	if !ok {
		return Entry{}, false
	}
	if c.expired(e) {
		delete(c.Entries, key)
		c.dirty = true
		return Entry{}, false
	}
	return e, true
}

// Set stores e for secret, stamped with the current time.
func (c *Cache) Set(secret string, e Entry) {
	e.CachedAt = c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Entries[Key(secret)] = e
	c.dirty = true
}

// Clear forgets the entry for secret.
func (c *Cache) Clear(secret string) {
	key := Key(secret)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.Entries[key]; ok {
		delete(c.Entries, key)
		c.dirty = true
	}
}

// ClearAll forgets every entry.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Entries) > 0 {
		c.Entries = make(map[string]Entry)
		c.dirty = true
	}
}

// Reset drops every entry and writes the empty cache, used when the secret
// key changes.
func (c *Cache) Reset() error {
	c.ClearAll()
	return c.Save()
}

// TimeUntilExpiry is how long the entry for secret stays valid; zero when
// there is none.
func (c *Cache) TimeUntilExpiry(secret string) time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.Entries[Key(secret)]
	if !ok {
		return 0
	}
	left := e.CachedAt.Add(c.ttl()).Sub(c.now())
	if left < 0 {
		return 0
	}
	return left
}

// Sweep removes expired entries and returns how many were dropped.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for key, e := range c.Entries {
		if c.expired(e) {
			delete(c.Entries, key)
			n++
		}
	}
	if n > 0 {
		c.dirty = true
	}
	return n
}

func (c *Cache) Load() error {
	f, err := os.Open(c.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := json.NewDecoder(f).Decode(c); err != nil {
		return err
	}
	if c.Entries == nil {
		c.Entries = make(map[string]Entry)
	}
	return nil
}

// Save writes the cache when it changed since the last load or save.
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty || c.Path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.Path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(c.Path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(c); err != nil {
		return err
	}
	c.dirty = false
	return nil
}
