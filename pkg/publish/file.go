package publish

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Extensions a calendar file may be saved with.
var Extensions = []string{".ics", ".ical", ".ifb", ".icalendar"}

// ValidExtension reports whether ext is one of Extensions.
func ValidExtension(ext string) bool {
	for _, e := range Extensions {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

// FileWriter saves the calendar as Dir/Base+Ext.
type FileWriter struct {
	Dir  string
	Base string
	Ext  string
}

func (w *FileWriter) Name() string { return "file" }

// Path is the file the calendar is written to.
func (w *FileWriter) Path() string {
	return filepath.Join(w.Dir, w.Base+w.Ext)
}

func (w *FileWriter) Publish(ctx context.Context, calendar string) error {
	if w.Base == "" {
		return fmt.Errorf("file name: %w", ErrNotConfigured)
	}
	if !ValidExtension(w.Ext) {
		return fmt.Errorf("file extension %q must be one of %v", w.Ext, Extensions)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if w.Dir != "" {
		if err := os.MkdirAll(w.Dir, 0o755); err != nil {
			return err
		}
	}
	return writeFileAtomic(w.Path(), []byte(calendar), 0o644)
}

// writeFileAtomic writes through a temporary sibling and renames it into
// place so readers never see a partial calendar.
func writeFileAtomic(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
