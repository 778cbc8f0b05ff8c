// Package export writes one tagged audio file per planned segment.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/maauso/audimeta-splitter/internal/audio"
	apperrors "github.com/maauso/audimeta-splitter/internal/errors"
	"github.com/maauso/audimeta-splitter/internal/plan"
)

// ErrEmptyOutput is returned when the engine reports success but the output
// file is missing or empty.
var ErrEmptyOutput = errors.New("output file missing or empty")

// AudioEngine cuts a segment out of a source file.
type AudioEngine interface {
	ExtractSegment(ctx context.Context, req audio.SegmentRequest) error
}

// Status is the outcome of one segment.
type Status string

// Segment outcomes.
const (
	StatusWritten Status = "written"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// SegmentResult is the outcome of exporting one segment.
type SegmentResult struct {
	Segment plan.Segment
	Path    string
	Status  Status
	Err     error
	Elapsed time.Duration
}

// Report lists the outcome of every segment in plan order.
type Report struct {
	Results []SegmentResult
}

// Written returns the results that produced a file.
func (r Report) Written() []SegmentResult {
	return r.filter(StatusWritten)
}

// Failed returns the results whose export failed.
func (r Report) Failed() []SegmentResult {
	return r.filter(StatusFailed)
}

// Skipped returns the results that never started.
func (r Report) Skipped() []SegmentResult {
	return r.filter(StatusSkipped)
}

// OK reports whether every segment was written.
func (r Report) OK() bool {
	return len(r.Results) > 0 && len(r.Written()) == len(r.Results)
}

// FirstError returns the error of the first failed segment, or nil.
func (r Report) FirstError() error {
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			return res.Err
		}
	}
	return nil
}

// Paths returns the output paths of all written segments.
func (r Report) Paths() []string {
	written := r.Written()
	paths := make([]string, len(written))
	for i, res := range written {
		paths[i] = res.Path
	}
	return paths
}

func (r Report) filter(status Status) []SegmentResult {
	var out []SegmentResult
	for _, res := range r.Results {
		if res.Status == status {
			out = append(out, res)
		}
	}
	return out
}

// Exporter runs the engine once per segment with bounded concurrency.
type Exporter struct {
	engine      AudioEngine
	concurrency int
	logger      *slog.Logger
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithConcurrency sets how many segments may be extracted at once.
// Values below 1 mean sequential.
func WithConcurrency(n int) Option {
	return func(e *Exporter) {
		e.concurrency = max(1, n)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Exporter) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an Exporter over engine.
func New(engine AudioEngine, opts ...Option) *Exporter {
	e := &Exporter{
		engine:      engine,
		concurrency: 1,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export writes every segment of p from source into outputDir.
//
// Segment failures are recorded in the report and do not stop the run.
// Cancelling ctx stops new segments from starting; segments already running
// finish and the rest are reported as skipped. The returned error is set
// only when the run could not start or was cancelled.
func (e *Exporter) Export(ctx context.Context, source string, p plan.Plan, outputDir string, tmpl audio.Tags) (Report, error) {
	if err := os.MkdirAll(outputDir, 0750); err != nil {
		return Report{}, apperrors.Filesystem(err, "create output directory %s", outputDir)
	}

	total := p.Len()
	ext := filepath.Ext(source)
	report := Report{Results: make([]SegmentResult, total)}
	for i, seg := range p.Segments {
		report.Results[i] = SegmentResult{
			Segment: seg,
			Path:    OutputPath(outputDir, seg, total, ext),
			Status:  StatusSkipped,
		}
	}

	// Running segments are not interrupted by a parent cancel; each tool
	// call still has its own timeout.
	runCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(e.concurrency)

	for i := range report.Results {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			res := &report.Results[i]
			e.exportOne(runCtx, source, total, tmpl, res)
			return nil
		})
	}
	_ = g.Wait()

	// A cancel that lands after the last segment was started leaves nothing
	// skipped and the report complete.
	if err := ctx.Err(); err != nil && len(report.Skipped()) > 0 {
		e.logger.Warn("export cancelled",
			slog.Int("written", len(report.Written())),
			slog.Int("skipped", len(report.Skipped())),
		)
		return report, fmt.Errorf("export cancelled: %w", err)
	}

	return report, nil
}

func (e *Exporter) exportOne(ctx context.Context, source string, total int, tmpl audio.Tags, res *SegmentResult) {
	seg := res.Segment
	start := time.Now()

	req := audio.SegmentRequest{
		Source:       source,
		Output:       res.Path,
		StartSeconds: seg.StartSeconds,
		EndSeconds:   seg.EndSeconds,
		Tags: tmpl.Merge(audio.Tags{
			"title": seg.Title,
			"track": strconv.Itoa(seg.Index) + "/" + strconv.Itoa(total),
		}),
	}

	e.logger.Debug("extracting segment",
		slog.Int("index", seg.Index),
		slog.String("title", seg.Title),
		slog.Float64("start", seg.StartSeconds),
		slog.Float64("end", seg.EndSeconds),
	)

	err := e.engine.ExtractSegment(ctx, req)
	if err == nil {
		err = checkOutput(res.Path)
	}
	res.Elapsed = time.Since(start)

	if err != nil {
		res.Status = StatusFailed
		res.Err = segmentError(err, seg.Index)
		e.logger.Error("segment failed",
			slog.Int("index", seg.Index),
			slog.String("title", seg.Title),
			slog.String("error", err.Error()),
		)
		return
	}

	res.Status = StatusWritten
	e.logger.Info("segment written",
		slog.Int("index", seg.Index),
		slog.String("path", res.Path),
		slog.Duration("elapsed", res.Elapsed),
	)
}

func checkOutput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return apperrors.Filesystem(err, "stat output %s", path)
	}
	if info.IsDir() || info.Size() == 0 {
		return apperrors.Filesystem(ErrEmptyOutput, "%s", path)
	}
	return nil
}

// segmentError scopes err to a segment, classifying unknown errors as
// encoding failures.
func segmentError(err error, index int) error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return appErr.WithSegment(index)
	}
	return apperrors.Encoding(err, "extract segment").WithSegment(index)
}
