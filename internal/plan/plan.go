// Package plan turns a remote chapter list and the measured duration of the
// combined audio into an ordered, gap-free list of segments to export.
//
// The planner does no I/O. Remote metadata is treated as untrusted: chapters
// past the end of the audio are dropped, negative starts are clamped and
// near-duplicate boundaries are merged, and every adjustment is recorded as
// a Note so callers can log it.
package plan

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	apperrors "github.com/maauso/audimeta-splitter/internal/errors"
)

// DefaultEpsilon is the dedup threshold in seconds.
const DefaultEpsilon = 1.0

// DefaultFallbackTitle names the single segment of a book without chapters.
const DefaultFallbackTitle = "Full Audiobook"

// Static errors for plan construction.
var (
	// ErrInvalidDuration is returned when the audio duration is not a positive finite number.
	ErrInvalidDuration = errors.New("audio duration must be positive and finite")
	// ErrInvalidEpsilon is returned when the dedup threshold is negative or not finite.
	ErrInvalidEpsilon = errors.New("epsilon must be a non-negative finite number")
	// ErrInvalidStart is returned when a chapter start is NaN or infinite.
	ErrInvalidStart = errors.New("chapter start is not a finite number")
	// ErrEmptySegment is returned when a segment would have zero or negative length.
	ErrEmptySegment = errors.New("segment has zero or negative length")
	// ErrNotContiguous is returned by Validate when segments leave a gap or overlap.
	ErrNotContiguous = errors.New("segments are not contiguous")
)

// RawChapter is a chapter as reported by the metadata service.
type RawChapter struct {
	Title        string  `json:"title"`
	StartSeconds float64 `json:"start_seconds"`
}

// Segment is one planned output file covering [StartSeconds, EndSeconds).
type Segment struct {
	Index        int     `json:"index"`
	Title        string  `json:"title"`
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 {
	return s.EndSeconds - s.StartSeconds
}

// NoteKind classifies a reconciliation note.
type NoteKind string

// Reconciliation note kinds.
const (
	NoteDropped NoteKind = "dropped"
	NoteClamped NoteKind = "clamped"
	NoteMerged  NoteKind = "merged"
)

// Note records one adjustment made to the remote chapter list.
type Note struct {
	Kind NoteKind `json:"kind"`
	// Title and StartSeconds describe the chapter as it was received.
	Title        string  `json:"title"`
	StartSeconds float64 `json:"start_seconds"`
	// Into is the title of the chapter a merged chapter was folded into.
	Into string `json:"into,omitempty"`
}

// String formats the note for logs and CLI output.
func (n Note) String() string {
	switch n.Kind {
	case NoteDropped:
		return fmt.Sprintf("dropped %q at %.3fs: starts at or after the end of the audio", n.Title, n.StartSeconds)
	case NoteClamped:
		return fmt.Sprintf("clamped %q from %.3fs to 0s", n.Title, n.StartSeconds)
	case NoteMerged:
		return fmt.Sprintf("merged %q at %.3fs into %q", n.Title, n.StartSeconds, n.Into)
	default:
		return fmt.Sprintf("%s %q at %.3fs", n.Kind, n.Title, n.StartSeconds)
	}
}

// Plan is the validated split plan for one run. Treat it as read-only.
type Plan struct {
	Segments []Segment `json:"segments"`
	Duration float64   `json:"duration"`
	Notes    []Note    `json:"notes,omitempty"`
}

// Len returns the number of segments.
func (p Plan) Len() int {
	return len(p.Segments)
}

// NotesOf returns the notes of the given kind.
func (p Plan) NotesOf(kind NoteKind) []Note {
	var out []Note
	for _, n := range p.Notes {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// Options configures Build.
type Options struct {
	// Epsilon is the dedup threshold in seconds. Chapters starting less than
	// Epsilon after the previously retained chapter are merged into it.
	Epsilon float64
	// FallbackTitle names the single segment produced when no chapter survives.
	// Blank means DefaultFallbackTitle.
	FallbackTitle string
}

// DefaultOptions returns Options with DefaultEpsilon and DefaultFallbackTitle.
func DefaultOptions() Options {
	return Options{
		Epsilon:       DefaultEpsilon,
		FallbackTitle: DefaultFallbackTitle,
	}
}

// Build reconciles raw chapters against the measured audio duration.
//
// Chapters are stable-sorted by start, chapters starting at or past the end
// of the audio are dropped, negative starts are clamped to zero and the first
// retained chapter always starts at zero. Chapters within opts.Epsilon of the
// previously retained start are merged into it, keeping the earlier title.
// Each segment ends where the next one starts and the last ends at
// audioDuration.
//
// Every failure is an INVALID_METADATA error.
func Build(raw []RawChapter, audioDuration float64, opts Options) (Plan, error) {
	if audioDuration <= 0 || math.IsNaN(audioDuration) || math.IsInf(audioDuration, 0) {
		return Plan{}, apperrors.InvalidMetadata(ErrInvalidDuration, "cannot plan against %v seconds of audio", audioDuration)
	}
	if opts.Epsilon < 0 || math.IsNaN(opts.Epsilon) || math.IsInf(opts.Epsilon, 0) {
		return Plan{}, apperrors.InvalidMetadata(ErrInvalidEpsilon, "epsilon %v", opts.Epsilon)
	}
	for i, ch := range raw {
		if math.IsNaN(ch.StartSeconds) || math.IsInf(ch.StartSeconds, 0) {
			return Plan{}, apperrors.InvalidMetadata(ErrInvalidStart, "chapter %d %q", i+1, ch.Title)
		}
	}

	chapters := make([]RawChapter, len(raw))
	copy(chapters, raw)
	sort.SliceStable(chapters, func(i, j int) bool {
		return chapters[i].StartSeconds < chapters[j].StartSeconds
	})

	p := Plan{Duration: audioDuration}

	retained := make([]RawChapter, 0, len(chapters))
	for _, ch := range chapters {
		if ch.StartSeconds >= audioDuration {
			p.Notes = append(p.Notes, Note{Kind: NoteDropped, Title: ch.Title, StartSeconds: ch.StartSeconds})
			continue
		}

		start := ch.StartSeconds
		if start < 0 || len(retained) == 0 {
			if start != 0 {
				p.Notes = append(p.Notes, Note{Kind: NoteClamped, Title: ch.Title, StartSeconds: ch.StartSeconds})
			}
			start = 0
		}

		if n := len(retained); n > 0 && start-retained[n-1].StartSeconds < opts.Epsilon {
			p.Notes = append(p.Notes, Note{
				Kind:         NoteMerged,
				Title:        ch.Title,
				StartSeconds: ch.StartSeconds,
				Into:         retained[n-1].Title,
			})
			continue
		}

		retained = append(retained, RawChapter{Title: ch.Title, StartSeconds: start})
	}

	if len(retained) == 0 {
		title := strings.TrimSpace(opts.FallbackTitle)
		if title == "" {
			title = DefaultFallbackTitle
		}
		retained = append(retained, RawChapter{Title: title})
	}

	p.Segments = make([]Segment, len(retained))
	for i, ch := range retained {
		end := audioDuration
		if i+1 < len(retained) {
			end = retained[i+1].StartSeconds
		}
		p.Segments[i] = Segment{
			Index:        i + 1,
			Title:        ch.Title,
			StartSeconds: ch.StartSeconds,
			EndSeconds:   end,
		}
	}

	if err := p.Validate(); err != nil {
		return Plan{}, err
	}

	return p, nil
}

// Validate checks the plan invariants: at least one segment, 1-based
// consecutive indexes, first start at zero, last end at Duration, each
// segment non-empty and each segment ending where the next one starts.
func (p Plan) Validate() error {
	if p.Duration <= 0 || math.IsNaN(p.Duration) || math.IsInf(p.Duration, 0) {
		return apperrors.InvalidMetadata(ErrInvalidDuration, "plan duration %v", p.Duration)
	}
	if len(p.Segments) == 0 {
		return apperrors.InvalidMetadata(ErrNotContiguous, "plan has no segments")
	}
	if first := p.Segments[0]; first.StartSeconds != 0 {
		return apperrors.InvalidMetadata(ErrNotContiguous, "first segment starts at %v", first.StartSeconds).WithSegment(first.Index)
	}
	if last := p.Segments[len(p.Segments)-1]; last.EndSeconds != p.Duration {
		return apperrors.InvalidMetadata(ErrNotContiguous, "last segment ends at %v, audio is %v", last.EndSeconds, p.Duration).WithSegment(last.Index)
	}

	for i, seg := range p.Segments {
		if seg.Index != i+1 {
			return apperrors.InvalidMetadata(ErrNotContiguous, "segment at position %d has index %d", i+1, seg.Index)
		}
		if seg.EndSeconds <= seg.StartSeconds {
			return apperrors.InvalidMetadata(ErrEmptySegment, "%q spans [%v, %v)", seg.Title, seg.StartSeconds, seg.EndSeconds).WithSegment(seg.Index)
		}
		if i+1 < len(p.Segments) && p.Segments[i+1].StartSeconds != seg.EndSeconds {
			return apperrors.InvalidMetadata(ErrNotContiguous, "%q ends at %v, next starts at %v", seg.Title, seg.EndSeconds, p.Segments[i+1].StartSeconds).WithSegment(seg.Index)
		}
	}

	return nil
}
