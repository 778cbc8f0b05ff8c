package job

import (
	"testing"
	"time"

	"github.com/maauso/audimeta-splitter/internal/export"
	"github.com/maauso/audimeta-splitter/internal/plan"
)

func TestNew(t *testing.T) {
	job := New()

	if job.ID == "" {
		t.Error("expected job to have an ID")
	}
	if job.Status != StatusPending {
		t.Errorf("expected status %s, got %s", StatusPending, job.Status)
	}
	if job.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
	if job.UpdatedAt.IsZero() {
		t.Error("expected UpdatedAt to be set")
	}
}

func TestNewWithID(t *testing.T) {
	id := "run-test123"
	job := NewWithID(id)

	if job.ID != id {
		t.Errorf("expected ID %s, got %s", id, job.ID)
	}
	if job.Status != StatusPending {
		t.Errorf("expected status %s, got %s", StatusPending, job.Status)
	}
}

func TestJob_ValidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		wantErr bool
	}{
		{"PENDING to RESOLVING", StatusPending, StatusResolving, false},
		{"PENDING to FAILED", StatusPending, StatusFailed, false},
		{"RESOLVING to PLANNING", StatusResolving, StatusPlanning, false},
		{"RESOLVING to CANCELLED", StatusResolving, StatusCancelled, false},
		{"PLANNING to EXPORTING", StatusPlanning, StatusExporting, false},
		{"PLANNING to COMPLETED (dry run)", StatusPlanning, StatusCompleted, false},
		{"EXPORTING to PUBLISHING", StatusExporting, StatusPublishing, false},
		{"EXPORTING to PARTIAL", StatusExporting, StatusPartial, false},
		{"EXPORTING to COMPLETED", StatusExporting, StatusCompleted, false},
		{"PUBLISHING to COMPLETED", StatusPublishing, StatusCompleted, false},
		{"PUBLISHING to FAILED", StatusPublishing, StatusFailed, false},
		// Invalid transitions
		{"PENDING to PLANNING", StatusPending, StatusPlanning, true},
		{"PENDING to COMPLETED", StatusPending, StatusCompleted, true},
		{"RESOLVING to EXPORTING", StatusResolving, StatusExporting, true},
		{"PLANNING to PARTIAL", StatusPlanning, StatusPartial, true},
		{"PLANNING to PUBLISHING", StatusPlanning, StatusPublishing, true},
		{"EXPORTING to RESOLVING", StatusExporting, StatusResolving, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewWithID("test")
			job.Status = tt.from

			err := job.TransitionTo(tt.to)

			if tt.wantErr && err == nil {
				t.Errorf("expected error for transition %s -> %s", tt.from, tt.to)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error for transition %s -> %s: %v", tt.from, tt.to, err)
			}
		})
	}
}

func TestJob_Start(t *testing.T) {
	job := New()
	beforeStart := time.Now()

	if err := job.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if job.Status != StatusResolving {
		t.Errorf("expected status %s, got %s", StatusResolving, job.Status)
	}
	if job.StartedAt.Before(beforeStart) {
		t.Error("expected StartedAt to be set after test start")
	}
}

func TestJob_Fail(t *testing.T) {
	job := New()
	_ = job.Start()

	errMsg := "not_found [book B000000001]: no such book"
	if err := job.Fail(errMsg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if job.Status != StatusFailed {
		t.Errorf("expected status %s, got %s", StatusFailed, job.Status)
	}
	if job.Error != errMsg {
		t.Errorf("expected error %q, got %q", errMsg, job.Error)
	}
	if job.CompletedAt.IsZero() {
		t.Error("expected CompletedAt to be set")
	}
}

func TestJob_Cancel(t *testing.T) {
	job := New()

	if err := job.Cancel(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Status != StatusCancelled {
		t.Errorf("expected status %s, got %s", StatusCancelled, job.Status)
	}
}

func TestJob_Finish(t *testing.T) {
	p, err := plan.Build([]plan.RawChapter{{Title: "A"}, {Title: "B", StartSeconds: 10}}, 20, plan.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}

	report := func(statuses ...export.Status) export.Report {
		r := export.Report{}
		for i, s := range statuses {
			r.Results = append(r.Results, export.SegmentResult{Segment: p.Segments[i], Status: s})
		}
		return r
	}

	tests := []struct {
		name   string
		report export.Report
		want   Status
	}{
		{"all written", report(export.StatusWritten, export.StatusWritten), StatusCompleted},
		{"one failed", report(export.StatusWritten, export.StatusFailed), StatusPartial},
		{"one skipped", report(export.StatusWritten, export.StatusSkipped), StatusPartial},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewWithID("test")
			job.Status = StatusExporting
			job.RecordReport(tt.report)

			if err := job.Finish(); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if job.Status != tt.want {
				t.Errorf("expected status %s, got %s", tt.want, job.Status)
			}
		})
	}
}

func TestJob_CannotTransitionFromTerminalState(t *testing.T) {
	terminalStates := []Status{StatusCompleted, StatusPartial, StatusFailed, StatusCancelled}
	allStates := []Status{
		StatusPending, StatusResolving, StatusPlanning, StatusExporting, StatusPublishing,
		StatusCompleted, StatusPartial, StatusFailed, StatusCancelled,
	}

	for _, terminal := range terminalStates {
		for _, target := range allStates {
			t.Run(string(terminal)+"_to_"+string(target), func(t *testing.T) {
				job := NewWithID("test")
				job.Status = terminal

				err := job.TransitionTo(target)
				if err != ErrInvalidTransition {
					t.Errorf("expected ErrInvalidTransition, got %v", err)
				}
			})
		}
	}
}

func TestJob_IsTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
	}{
		{StatusPending, false},
		{StatusResolving, false},
		{StatusPlanning, false},
		{StatusExporting, false},
		{StatusPublishing, false},
		{StatusCompleted, true},
		{StatusPartial, true},
		{StatusFailed, true},
		{StatusCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			job := NewWithID("test")
			job.Status = tt.status

			if got := job.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.terminal)
			}
		})
	}
}

func TestJob_Elapsed(t *testing.T) {
	job := New()
	if job.Elapsed() != 0 {
		t.Error("expected zero elapsed before start")
	}

	_ = job.Start()
	job.StartedAt = time.Now().Add(-time.Minute)
	if job.Elapsed() < time.Minute {
		t.Errorf("expected at least a minute, got %s", job.Elapsed())
	}

	_ = job.Fail("boom")
	job.CompletedAt = job.StartedAt.Add(90 * time.Second)
	if job.Elapsed() != 90*time.Second {
		t.Errorf("expected 90s, got %s", job.Elapsed())
	}
}

func TestJob_Clone(t *testing.T) {
	job := New()
	job.SetBook("B000000001", "The Hobbit")
	job.SetSource([]string{"a.mp3", "b.mp3"}, "/tmp/combined.mp3", 1834)
	job.SetPlanned(2, "/out")
	job.AddURL("https://example.com/a")

	clone := job.Clone()

	if clone.ID != job.ID {
		t.Errorf("expected ID %s, got %s", job.ID, clone.ID)
	}
	if clone.BookID != "B000000001" || clone.BookTitle != "The Hobbit" {
		t.Errorf("unexpected book %s %s", clone.BookID, clone.BookTitle)
	}
	if clone.DurationSeconds != 1834 || clone.Segments != 2 || clone.OutputDir != "/out" {
		t.Errorf("unexpected clone %+v", clone)
	}

	// Modifying clone should not affect original
	clone.Inputs[0] = "changed.mp3"
	clone.URLs[0] = "changed"
	if job.Inputs[0] != "a.mp3" {
		t.Error("modifying clone inputs affected original")
	}
	if job.URLs[0] != "https://example.com/a" {
		t.Error("modifying clone URLs affected original")
	}
}

func TestJob_ConcurrentAccess(t *testing.T) {
	job := New()
	_ = job.Start()

	done := make(chan bool)

	for i := 0; i < 10; i++ {
		go func() {
			_ = job.GetStatus()
			_ = job.IsTerminal()
			_ = job.Clone()
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		go func(i int) {
			job.AddURL("u")
			job.SetPlanned(i, "/out")
			done <- true
		}(i)
	}

	for i := 0; i < 20; i++ {
		<-done
	}

	if len(job.URLs) != 10 {
		t.Errorf("expected 10 URLs, got %d", len(job.URLs))
	}
}
