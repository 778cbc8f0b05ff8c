// Package job provides the Job aggregate for a split run and the
// SplitService use case that drives it. A Job moves through the run's stages
// (resolve, plan, export, publish) and records what each stage produced.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/maauso/audimeta-splitter/internal/export"
	"github.com/maauso/audimeta-splitter/internal/job/id"
)

// Status represents the current stage of a Job.
type Status string

const (
	// StatusPending indicates the run has not started.
	StatusPending Status = "PENDING"
	// StatusResolving indicates the book and its chapters are being looked up.
	StatusResolving Status = "RESOLVING"
	// StatusPlanning indicates the inputs are being joined, probed and planned.
	StatusPlanning Status = "PLANNING"
	// StatusExporting indicates segments are being written.
	StatusExporting Status = "EXPORTING"
	// StatusPublishing indicates written segments are being uploaded.
	StatusPublishing Status = "PUBLISHING"
	// StatusCompleted indicates every segment was written.
	StatusCompleted Status = "COMPLETED"
	// StatusPartial indicates some segments were written and some failed.
	StatusPartial Status = "PARTIAL"
	// StatusFailed indicates the run stopped on an error.
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the run was interrupted.
	StatusCancelled Status = "CANCELLED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

var terminal = []Status{StatusFailed, StatusCancelled}

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusPending:    append([]Status{StatusResolving}, terminal...),
	StatusResolving:  append([]Status{StatusPlanning}, terminal...),
	StatusPlanning:   append([]Status{StatusExporting, StatusCompleted}, terminal...),
	StatusExporting:  append([]Status{StatusPublishing, StatusCompleted, StatusPartial}, terminal...),
	StatusPublishing: append([]Status{StatusCompleted, StatusPartial}, terminal...),
	StatusCompleted:  {},
	StatusPartial:    {},
	StatusFailed:     {},
	StatusCancelled:  {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Job represents one split run.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this run. It names the work directory.
	ID string
	// Status is the current stage.
	Status Status
	// BookID is the resolved ASIN.
	BookID string
	// BookTitle is the resolved book title.
	BookTitle string
	// Inputs are the input files in concatenation order.
	Inputs []string
	// SourcePath is the file segments are cut from.
	SourcePath string
	// OutputDir is where segments are written.
	OutputDir string
	// DurationSeconds is the measured length of the source.
	DurationSeconds float64
	// Segments is the number of planned segments.
	Segments int
	// Written, Failed and Skipped count segment outcomes.
	Written int
	Failed  int
	Skipped int
	// URLs are the published locations of written segments.
	URLs []string
	// Error contains the error message if the run failed.
	Error string
	// CreatedAt is when the run was created.
	CreatedAt time.Time
	// UpdatedAt is when the run was last updated.
	UpdatedAt time.Time
	// StartedAt is when resolution started.
	StartedAt time.Time
	// CompletedAt is when the run reached a terminal state.
	CompletedAt time.Time
}

// New creates a new Job with a generated ID and PENDING status.
func New() *Job {
	return NewWithID(id.Generate())
}

// NewWithID creates a new Job with the specified ID and PENDING status.
func NewWithID(jobID string) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusResolving:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusPartial, StatusFailed, StatusCancelled:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from PENDING to RESOLVING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusResolving)
}

// Fail transitions the job to FAILED state with an error message.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	j.Error = errMsg
	j.mu.Unlock()
	return j.TransitionTo(StatusFailed)
}

// Cancel transitions the job to CANCELLED state.
func (j *Job) Cancel() error {
	return j.TransitionTo(StatusCancelled)
}

// Finish moves an exporting or publishing job to COMPLETED when every
// segment was written and to PARTIAL otherwise.
func (j *Job) Finish() error {
	j.mu.RLock()
	complete := j.Failed == 0 && j.Skipped == 0
	j.mu.RUnlock()

	if complete {
		return j.TransitionTo(StatusCompleted)
	}
	return j.TransitionTo(StatusPartial)
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// SetBook records the resolved book.
func (j *Job) SetBook(bookID, title string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.BookID = bookID
	j.BookTitle = title
	j.UpdatedAt = time.Now()
}

// SetSource records the inputs, the file they were joined into and its
// measured duration.
func (j *Job) SetSource(inputs []string, sourcePath string, duration float64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Inputs = append([]string(nil), inputs...)
	j.SourcePath = sourcePath
	j.DurationSeconds = duration
	j.UpdatedAt = time.Now()
}

// SetPlanned records the number of planned segments and the output directory.
func (j *Job) SetPlanned(segments int, outputDir string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Segments = segments
	j.OutputDir = outputDir
	j.UpdatedAt = time.Now()
}

// RecordReport copies the segment outcome counts from an export report.
func (j *Job) RecordReport(r export.Report) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Written = len(r.Written())
	j.Failed = len(r.Failed())
	j.Skipped = len(r.Skipped())
	j.UpdatedAt = time.Now()
}

// AddURL records a published segment location.
func (j *Job) AddURL(url string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.URLs = append(j.URLs, url)
	j.UpdatedAt = time.Now()
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(validTransitions[j.Status]) == 0
}

// Elapsed returns the run time so far, or the total run time once terminal.
func (j *Job) Elapsed() time.Duration {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.StartedAt.IsZero() {
		return 0
	}
	if j.CompletedAt.IsZero() {
		return time.Since(j.StartedAt)
	}
	return j.CompletedAt.Sub(j.StartedAt)
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return &Job{
		ID:              j.ID,
		Status:          j.Status,
		BookID:          j.BookID,
		BookTitle:       j.BookTitle,
		Inputs:          append([]string(nil), j.Inputs...),
		SourcePath:      j.SourcePath,
		OutputDir:       j.OutputDir,
		DurationSeconds: j.DurationSeconds,
		Segments:        j.Segments,
		Written:         j.Written,
		Failed:          j.Failed,
		Skipped:         j.Skipped,
		URLs:            append([]string(nil), j.URLs...),
		Error:           j.Error,
		CreatedAt:       j.CreatedAt,
		UpdatedAt:       j.UpdatedAt,
		StartedAt:       j.StartedAt,
		CompletedAt:     j.CompletedAt,
	}
}
