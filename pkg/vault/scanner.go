// Package vault finds task lines in a directory of Markdown notes.
package vault

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/harrisonrobin/mdical/pkg/dates"
	"github.com/harrisonrobin/mdical/pkg/model"
	"github.com/harrisonrobin/mdical/pkg/tasks"
)

// quoteRe matches the blockquote markers in front of a list item inside a
// quote or callout.
var quoteRe = regexp.MustCompile(`^(?:\s*>)+`)

// Scanner turns Markdown documents into tasks.
type Scanner struct {
	Root      string
	VaultName string
	Options   model.Options
	Log       log.FieldLogger
	Workers   int

	recognizer *tasks.Recognizer
	md         goldmark.Markdown
}

// NewScanner returns a scanner for the vault rooted at root. An empty
// vaultName falls back to the root directory's base name.
func NewScanner(root, vaultName string, opts model.Options, logger log.FieldLogger) *Scanner {
	if logger == nil {
		l := log.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	if vaultName == "" {
		vaultName = filepath.Base(filepath.Clean(root))
	}
	return &Scanner{
		Root:       root,
		VaultName:  vaultName,
		Options:    opts,
		Log:        logger,
		Workers:    runtime.NumCPU(),
		recognizer: tasks.NewRecognizer(opts, logger),
		md:         goldmark.New(),
	}
}

// Location is the URI a task in the document at rel points back to.
func (s *Scanner) Location(rel string) string {
	return "obsidian://open?vault=" + s.VaultName + "&file=" + filepath.ToSlash(rel)
}

// IsConflict reports whether name looks like a sync conflict copy.
func IsConflict(name string) bool {
	return strings.Contains(strings.ToLower(name), "conflict")
}

// ScanDocument returns the tasks found on the list items of one document, in
// line order. Lines with malformed dates are logged and skipped.
func (s *Scanner) ScanDocument(rel string, content []byte) []*model.Task {
	doc := s.md.Parser().Parse(text.NewReader(content))
	lines := strings.Split(string(content), "\n")
	starts := lineStarts(content)

	var headings model.Headings
	if s.Options.DayPlanner {
		headings = findHeadings(doc, lines, starts, s.Options.Loc())
	}

	location := s.Location(rel)
	var out []*model.Task
	for _, n := range listItemLines(doc, starts) {
		line := quoteRe.ReplaceAllString(strings.TrimRight(lines[n], "\r"), "")
		if !s.tagsAllow(line) {
			continue
		}
		task, err := s.recognizer.FromLine(line, location, s.override(line, n, &headings))
		if err != nil {
			s.Log.WithError(err).WithFields(log.Fields{"file": rel, "line": n + 1}).Debug("skip task line")
			continue
		}
		if task != nil {
			out = append(out, task)
		}
	}
	return out
}

// override picks the heading date a day-planner line is anchored on.
func (s *Scanner) override(line string, n int, headings *model.Headings) *time.Time {
	if !s.Options.DayPlanner || headings.Len() == 0 {
		return nil
	}
	if dates.HasDate(line) || !dates.HasTime(line) {
		return nil
	}
	h, ok := headings.ForLine(n)
	if !ok {
		return nil
	}
	return &h.Date
}

// Result is the outcome of scanning a vault.
type Result struct {
	Tasks []*model.Task
	// Unread holds the locations of documents that could not be read. Their
	// tasks are missing from Tasks.
	Unread []string
}

// ScanDir scans every Markdown document under the root and returns the tasks.
func (s *Scanner) ScanDir(ctx context.Context) ([]*model.Task, error) {
	res, err := s.Scan(ctx)
	if err != nil {
		return nil, err
	}
	return res.Tasks, nil
}

// Scan scans every Markdown document under the root. Documents are parsed
// concurrently; tasks come back in path order, then line order.
func (s *Scanner) Scan(ctx context.Context) (Result, error) {
	paths, err := s.documents()
	if err != nil {
		return Result{}, err
	}

	workers := s.Workers
	if workers < 1 {
		workers = 1
	}
	results := make([][]*model.Task, len(paths))
	unread := make([]bool, len(paths))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				rel := paths[idx]
				content, err := os.ReadFile(filepath.Join(s.Root, rel))
				if err != nil {
					s.Log.WithError(err).WithField("file", rel).Warn("could not read document")
					unread[idx] = true
					continue
				}
				results[idx] = s.ScanDocument(rel, content)
			}
		}()
	}

feed:
	for idx := range paths {
		select {
		case jobs <- idx:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	var res Result
	for i, r := range results {
		res.Tasks = append(res.Tasks, r...)
		if unread[i] {
			res.Unread = append(res.Unread, s.Location(paths[i]))
		}
	}
	s.Log.WithFields(log.Fields{
		"documents": len(paths),
		"tasks":     len(res.Tasks),
		"unread":    len(res.Unread),
	}).Debug("scanned vault")
	return res, nil
}

// documents lists Markdown files relative to the root, sorted. Hidden
// directories and conflict copies are skipped.
func (s *Scanner) documents() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != s.Root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}
		if IsConflict(d.Name()) {
			s.Log.WithField("file", path).Debug("skip conflict file")
			return nil
		}
		rel, err := filepath.Rel(s.Root, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", s.Root, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// FindHeadings returns the date-bearing headings of a Markdown document.
func FindHeadings(content []byte, loc *time.Location) model.Headings {
	doc := goldmark.New().Parser().Parse(text.NewReader(content))
	return findHeadings(doc, strings.Split(string(content), "\n"), lineStarts(content), loc)
}

func findHeadings(doc ast.Node, lines []string, starts []int, loc *time.Location) model.Headings {
	var hs model.Headings
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Kind() != ast.KindHeading || n.Lines().Len() == 0 {
			return ast.WalkContinue, nil
		}
		idx := lineOf(starts, n.Lines().At(0).Start)
		if date, ok := dates.ParseHeadingDate(lines[idx], loc); ok {
			hs.Add(model.Heading{Date: date, Line: idx})
		}
		return ast.WalkSkipChildren, nil
	})
	return hs
}

// listItemLines returns the zero-based line each list item starts on.
func listItemLines(doc ast.Node, starts []int) []int {
	var out []int
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Kind() != ast.KindListItem {
			return ast.WalkContinue, nil
		}
		first := n.FirstChild()
		if first == nil || first.Lines().Len() == 0 {
			return ast.WalkContinue, nil
		}
		out = append(out, lineOf(starts, first.Lines().At(0).Start))
		return ast.WalkContinue, nil
	})
	return out
}

func lineStarts(content []byte) []int {
	starts := []int{0}
	for i, c := range content {
		if c == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

func lineOf(starts []int, offset int) int {
	return sort.Search(len(starts), func(i int) bool { return starts[i] > offset }) - 1
}
