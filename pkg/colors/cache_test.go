package colors

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func TestColorIDStable(t *testing.T) {
	c, _ := NewColorCache("")
	a := c.ColorID("a.md")
	if a != "1" {
		t.Fatalf("expected first document to get color 1, got %q", a)
	}
	if c.ColorID("b.md") != "2" {
		t.Errorf("expected second document to get color 2")
	}
	if c.ColorID("a.md") != a {
		t.Errorf("expected a stable color for a.md")
	}
	if c.ColorID("") != NoDocumentColor {
		t.Errorf("expected the default color for no document")
	}
}

func TestColorIDRecyclesLeastRecentlyUsed(t *testing.T) {
	c, _ := NewColorCache("")
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.Now = func() time.Time { return now }

	for i := 1; i <= paletteSize; i++ {
		now = now.Add(time.Minute)
		c.ColorID(fmt.Sprintf("doc%d.md", i))
	}
	// Touch doc1 so doc2 becomes the oldest.
	now = now.Add(time.Minute)
	c.ColorID("doc1.md")

	now = now.Add(time.Minute)
	if got := c.ColorID("new.md"); got != "2" {
		t.Fatalf("expected doc2's color to be recycled, got %q", got)
	}
	if _, ok := c.Documents["doc2.md"]; ok {
		t.Errorf("expected doc2 to be evicted")
	}
}

func TestColorCachePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "colors.json")
	c, err := NewColorCache(path)
	if err != nil {
		t.Fatalf("NewColorCache failed: %v", err)
	}
	c.ColorID("a.md")
	c.ColorID("b.md")
	if err := c.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := NewColorCache(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if loaded.ColorID("b.md") != "2" {
		t.Errorf("expected persisted color for b.md")
	}
}
