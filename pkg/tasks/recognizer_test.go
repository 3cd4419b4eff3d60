package tasks

import (
	"errors"
	"testing"
	"time"

	"github.com/harrisonrobin/mdical/pkg/dates"
	"github.com/harrisonrobin/mdical/pkg/model"
)

func newTestRecognizer(mutate func(*model.Options)) *Recognizer {
	opts := model.DefaultOptions()
	opts.Location = time.UTC
	if mutate != nil {
		mutate(&opts)
	}
	r := NewRecognizer(opts, nil)
	r.Now = func() time.Time { return time.Date(2024, 3, 20, 15, 0, 0, 0, time.UTC) }
	return r
}

func TestParseStatus(t *testing.T) {
	cases := map[string]model.Status{
		"[-]": model.Cancelled,
		"[/]": model.InProgress,
		"[d]": model.InProgress,
		"[x]": model.Done,
		"[X]": model.Done,
		"[ ]": model.ToDo,
		"[]":  model.ToDo,
		"[?]": model.ToDo,
		"[>]": model.ToDo,
	}
	for token, want := range cases {
		if got := ParseStatus(token); got != want {
			t.Errorf("ParseStatus(%q) = %v, want %v", token, got, want)
		}
	}
}

func TestFromLine(t *testing.T) {
	r := newTestRecognizer(nil)
	task, err := r.FromLine("- [ ] Pay rent 📅 2024-03-15", "obsidian://open?vault=v&file=a.md", nil)
	if err != nil {
		t.Fatalf("FromLine failed: %v", err)
	}
	if task == nil {
		t.Fatal("expected a task")
	}
	if task.Status != model.ToDo {
		t.Errorf("expected ToDo, got %v", task.Status)
	}
	if task.Summary != "Pay rent" {
		t.Errorf("expected summary %q, got %q", "Pay rent", task.Summary)
	}
	if task.Location != "obsidian://open?vault=v&file=a.md" {
		t.Errorf("unexpected location %q", task.Location)
	}
	due, ok := task.Date(model.Due)
	if !ok || !due.Date.Equal(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expected due 2024-03-15, got %v (%v)", due.Date, ok)
	}
}

func TestFromLineNotATask(t *testing.T) {
	r := newTestRecognizer(func(o *model.Options) { o.IncludeTodos = true })
	for _, line := range []string{
		"Just some text 2024-03-15",
		"# Heading 2024-03-15",
		"- a plain bullet",
		"[[Wiki link]] at the start",
		"",
	} {
		task, err := r.FromLine(line, "loc", nil)
		if err != nil {
			t.Fatalf("FromLine(%q) failed: %v", line, err)
		}
		if task != nil {
			t.Errorf("FromLine(%q) expected no task, got %+v", line, task)
		}
	}
}

func TestFromLineBulletVariants(t *testing.T) {
	r := newTestRecognizer(nil)
	for _, line := range []string{
		"* [x] Done thing 📅 2024-03-15",
		"    - [x] Nested done thing 📅 2024-03-15",
		"[x] Bare done thing 📅 2024-03-15",
	} {
		task, err := r.FromLine(line, "loc", nil)
		if err != nil || task == nil {
			t.Fatalf("FromLine(%q) expected task, got %v, %v", line, task, err)
		}
		if task.Status != model.Done {
			t.Errorf("FromLine(%q) expected Done, got %v", line, task.Status)
		}
	}
}

func TestFromLineUndatedNeedsTodos(t *testing.T) {
	r := newTestRecognizer(nil)
	task, err := r.FromLine("- [ ] Buy milk", "loc", nil)
	if err != nil || task != nil {
		t.Fatalf("expected undated line to be dropped, got %v, %v", task, err)
	}

	r = newTestRecognizer(func(o *model.Options) { o.IncludeTodos = true })
	task, err = r.FromLine("- [ ] Buy milk", "loc", nil)
	if err != nil || task == nil {
		t.Fatalf("expected undated task with todos enabled, got %v, %v", task, err)
	}
	if task.HasAnyDate() {
		t.Errorf("expected no dates, got %v", task.Dates)
	}
}

func TestFromLineIgnoreCompleted(t *testing.T) {
	r := newTestRecognizer(func(o *model.Options) { o.IgnoreCompleted = true })
	task, err := r.FromLine("- [x] Pay rent 📅 2024-03-15", "loc", nil)
	if err != nil || task != nil {
		t.Fatalf("expected completed task to be dropped, got %v, %v", task, err)
	}
	task, err = r.FromLine("- [-] Pay rent 📅 2024-03-15", "loc", nil)
	if err != nil || task == nil {
		t.Fatalf("expected cancelled task to be kept, got %v, %v", task, err)
	}
}

func TestFromLineAgeCutoff(t *testing.T) {
	// Now is 2024-03-20, so a ten day cutoff lands on 2024-03-10.
	r := newTestRecognizer(func(o *model.Options) {
		o.IgnoreOld = true
		o.OldTaskDays = 10
	})
	cases := []struct {
		line string
		kept bool
	}{
		{"- [ ] On the cutoff 📅 2024-03-10", true},
		{"- [ ] A day older 📅 2024-03-09", false},
		{"- [ ] Old start, fresh due 🛫 2024-01-01 📅 2024-03-25", true},
		{"- [ ] All old ➕ 2023-01-01 📅 2024-01-01", false},
	}
	for _, tc := range cases {
		task, err := r.FromLine(tc.line, "loc", nil)
		if err != nil {
			t.Fatalf("FromLine(%q) failed: %v", tc.line, err)
		}
		if (task != nil) != tc.kept {
			t.Errorf("FromLine(%q) kept=%v, want %v", tc.line, task != nil, tc.kept)
		}
	}
}

func TestFromLineAgeCutoffKeepsUndated(t *testing.T) {
	r := newTestRecognizer(func(o *model.Options) {
		o.IgnoreOld = true
		o.OldTaskDays = 1
		o.IncludeTodos = true
	})
	task, err := r.FromLine("- [ ] Someday", "loc", nil)
	if err != nil || task == nil {
		t.Fatalf("expected undated task to survive age filter, got %v, %v", task, err)
	}
}

func TestFromLineOverride(t *testing.T) {
	r := newTestRecognizer(nil)
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	task, err := r.FromLine("- [ ] 10:00 - 11:30 Planning", "loc", &day)
	if err != nil || task == nil {
		t.Fatalf("expected task, got %v, %v", task, err)
	}
	start, ok := task.Date(model.TimeStart)
	if !ok || !start.Date.Equal(time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected start %v", start.Date)
	}
	end, ok := task.Date(model.TimeEnd)
	if !ok || !end.Date.Equal(time.Date(2024, 3, 15, 11, 30, 0, 0, time.UTC)) {
		t.Errorf("unexpected end %v", end.Date)
	}
}

func TestFromLineOverrideMalformedTime(t *testing.T) {
	r := newTestRecognizer(nil)
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	task, err := r.FromLine("- [ ] 42:00 Broken", "loc", &day)
	if task != nil {
		t.Fatalf("expected no task, got %+v", task)
	}
	if !errors.Is(err, dates.ErrInvalidTime) {
		t.Fatalf("expected ErrInvalidTime, got %v", err)
	}
}

func TestFromLineStructuredFields(t *testing.T) {
	r := newTestRecognizer(nil)
	a, err := r.FromLine("- [ ] Pay [due:: 2024-01-02]", "loc", nil)
	if err != nil || a == nil {
		t.Fatalf("expected task, got %v, %v", a, err)
	}
	b, err := r.FromLine("- [ ] Pay 📅 2024-01-02", "loc", nil)
	if err != nil || b == nil {
		t.Fatalf("expected task, got %v, %v", b, err)
	}
	if len(a.Dates) != 1 || len(b.Dates) != 1 || a.Dates[0] != b.Dates[0] {
		t.Errorf("expected identical dates, got %v and %v", a.Dates, b.Dates)
	}
	if a.Summary != "Pay" || b.Summary != "Pay" {
		t.Errorf("expected summary Pay, got %q and %q", a.Summary, b.Summary)
	}
}
