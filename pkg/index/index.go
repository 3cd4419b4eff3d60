// Package index remembers which Google Calendar event each task occurrence
// was published as.
package index

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// EventIndex maps occurrence keys to Google event ids, and remembers the
// document location each key came from.
type EventIndex struct {
	Mappings  map[string]string `json:"mappings"`
	Locations map[string]string `json:"locations"`
	Path      string            `json:"-"`
	mu        sync.RWMutex
	dirty     bool
}

type indexFile struct {
	Mappings  map[string]string `json:"mappings"`
	Locations map[string]string `json:"locations,omitempty"`
}

// DefaultPath is ~/.config/mdical/events.json.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "mdical", "events.json"), nil
}

// NewEventIndex loads the index at path, or starts an empty one when the
// file does not exist yet. An empty path keeps the index in memory.
func NewEventIndex(path string) (*EventIndex, error) {
	idx := &EventIndex{
		Mappings:  make(map[string]string),
		Locations: make(map[string]string),
		Path:      path,
	}
	if path == "" {
		return idx, nil
	}
	if _, err := os.Stat(path); err == nil {
		if err := idx.Load(); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

func (idx *EventIndex) Load() error {
	f, err := os.Open(idx.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	idx.mu.Lock()
	defer idx.mu.Unlock()
	var file indexFile
	if err := json.NewDecoder(f).Decode(&file); err != nil {
		return err
	}
	idx.Mappings, idx.Locations = file.Mappings, file.Locations
	if idx.Mappings == nil {
		idx.Mappings = make(map[string]string)
	}
	if idx.Locations == nil {
		idx.Locations = make(map[string]string)
	}
	return nil
}

func (idx *EventIndex) Save() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if !idx.dirty || idx.Path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(idx.Path), 0700); err != nil {
		return err
	}
	f, err := os.Create(idx.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(indexFile{Mappings: idx.Mappings, Locations: idx.Locations}); err != nil {
		return err
	}
	idx.dirty = false
	return nil
}

func (idx *EventIndex) Get(key string) string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.Mappings[key]
}

func (idx *EventIndex) Set(key, eventID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.Mappings[key] != eventID {
		idx.Mappings[key] = eventID
		idx.dirty = true
	}
}

func (idx *EventIndex) Remove(key string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, exists := idx.Mappings[key]; exists {
		delete(idx.Mappings, key)
		idx.dirty = true
	}
	if _, exists := idx.Locations[key]; exists {
		delete(idx.Locations, key)
		idx.dirty = true
	}
}

// Location is the document location recorded for key, or "".
func (idx *EventIndex) Location(key string) string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.Locations[key]
}

func (idx *EventIndex) SetLocation(key, location string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.Locations[key] != location {
		idx.Locations[key] = location
		idx.dirty = true
	}
}

// Keys returns every indexed key, sorted.
func (idx *EventIndex) Keys() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	keys := make([]string, 0, len(idx.Mappings))
	for k := range idx.Mappings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
