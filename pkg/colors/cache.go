// Package colors assigns Google Calendar color ids to the documents tasks
// come from, recycling the least recently used color when all are taken.
package colors

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

const (
	// NoDocumentColor is Graphite, used for tasks without a source document.
	NoDocumentColor = "8"
	paletteSize     = 11
)

type DocumentState struct {
	ColorID  string    `json:"color_id"`
	LastUsed time.Time `json:"last_used"`
}

type ColorCache struct {
	Path      string                    `json:"-"`
	Documents map[string]*DocumentState `json:"documents"`
	Now       func() time.Time          `json:"-"`

	mu    sync.Mutex
	dirty bool
}

// DefaultPath is ~/.config/mdical/document_colors.json.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "mdical", "document_colors.json"), nil
}

// NewColorCache loads the cache at path when it exists. An empty path keeps
// the cache in memory.
func NewColorCache(path string) (*ColorCache, error) {
	cache := &ColorCache{
		Path:      path,
		Documents: make(map[string]*DocumentState),
	}
	if path == "" {
		return cache, nil
	}
	if _, err := os.Stat(path); err == nil {
		if err := cache.Load(); err != nil {
			return nil, err
		}
	}
	return cache, nil
}

func (c *ColorCache) Load() error {
	f, err := os.Open(c.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := json.NewDecoder(f).Decode(&c.Documents); err != nil {
		return err
	}
	if c.Documents == nil {
		c.Documents = make(map[string]*DocumentState)
	}
	return nil
}

func (c *ColorCache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty || c.Path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.Path), 0700); err != nil {
		return err
	}
	f, err := os.Create(c.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(c.Documents); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

func (c *ColorCache) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// ColorID returns the color of document, assigning one on first use.
func (c *ColorCache) ColorID(document string) string {
	if document == "" {
		return NoDocumentColor
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if state, ok := c.Documents[document]; ok {
		state.LastUsed = c.now()
		c.dirty = true
		return state.ColorID
	}
	return c.assign(document)
}

func (c *ColorCache) assign(document string) string {
	used := make(map[string]bool)
	for _, s := range c.Documents {
		used[s.ColorID] = true
	}
	for i := 1; i <= paletteSize; i++ {
		id := strconv.Itoa(i)
		if !used[id] {
			c.Documents[document] = &DocumentState{ColorID: id, LastUsed: c.now()}
			c.dirty = true
			return id
		}
	}

	// Palette exhausted: take over the least recently used color.
	var oldest string
	var oldestTime time.Time
	for d, s := range c.Documents {
		if oldest == "" || s.LastUsed.Before(oldestTime) || (s.LastUsed.Equal(oldestTime) && d < oldest) {
			oldest, oldestTime = d, s.LastUsed
		}
	}
	id := c.Documents[oldest].ColorID
	delete(c.Documents, oldest)
	c.Documents[document] = &DocumentState{ColorID: id, LastUsed: c.now()}
	c.dirty = true
	return id
}
