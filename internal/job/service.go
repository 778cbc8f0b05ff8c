package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/audimeta-splitter/internal/audimeta"
	"github.com/maauso/audimeta-splitter/internal/audio"
	apperrors "github.com/maauso/audimeta-splitter/internal/errors"
	"github.com/maauso/audimeta-splitter/internal/export"
	"github.com/maauso/audimeta-splitter/internal/plan"
	"github.com/maauso/audimeta-splitter/internal/storage"
)

// Static errors for split runs.
var (
	// ErrInvalidInput is returned when SplitInput fails validation.
	ErrInvalidInput = errors.New("invalid split input")
	// ErrNoSearchTerms is returned when no ASIN is known and there is
	// nothing to search for.
	ErrNoSearchTerms = errors.New("no ASIN given and no title to search for")
	// ErrPickOutOfRange is returned when --pick exceeds the search results.
	ErrPickOutOfRange = errors.New("pick is out of range")
)

// Metadata is the book and chapter source a run resolves against.
type Metadata interface {
	Fetch(ctx context.Context, asin string) ([]plan.RawChapter, error)
	GetBook(ctx context.Context, asin string) (*audimeta.Book, error)
	Search(ctx context.Context, q audimeta.SearchQuery) ([]audimeta.Book, error)
}

// AudioTool is the ffmpeg capability a run needs.
type AudioTool interface {
	export.AudioEngine
	Check(ctx context.Context) error
	Concat(ctx context.Context, inputs []string, output string) error
	Duration(ctx context.Context, path string) (float64, error)
	ReadHints(ctx context.Context, path string) (audio.Hints, error)
}

// SplitInput contains the parameters of a split run.
type SplitInput struct {
	// Inputs are files in concatenation order, or a single directory.
	Inputs []string `validate:"required,min=1,dive,required"`
	// ASIN selects the book directly.
	ASIN string `validate:"omitempty,len=10,alphanum"`
	// Title and Author override the search terms read from input tags.
	Title  string
	Author string
	// Pick is the 1-based search result to use. Zero means the first.
	Pick int `validate:"gte=0"`
	// OutputDir defaults to the directory of the first input.
	OutputDir string
	// Epsilon is the chapter merge threshold in seconds.
	Epsilon float64 `validate:"gte=0"`
	// RemoveOriginals deletes the inputs after a fully successful export.
	RemoveOriginals bool
	// Publish uploads written segments to the configured remote.
	Publish bool
	// DryRun stops after planning.
	DryRun bool
}

// SplitOutput contains the result of a split run.
type SplitOutput struct {
	// Job is a snapshot of the run.
	Job *Job
	// Book is the resolved book, nil if resolution failed.
	Book *audimeta.Book
	// Plan is the split plan, empty if planning did not happen.
	Plan plan.Plan
	// Report lists segment outcomes, empty for dry runs.
	Report export.Report
}

// SplitService orchestrates a split run: it resolves the book, joins and
// measures the inputs, plans the segments and exports them.
type SplitService struct {
	meta     Metadata
	tool     AudioTool
	storage  storage.Storage
	validate *validator.Validate
	logger   *slog.Logger

	// concurrency limits parallel segment extraction.
	concurrency   int
	publishPrefix string
}

// NewSplitService creates a new SplitService.
func NewSplitService(meta Metadata, tool AudioTool, store storage.Storage, logger *slog.Logger) *SplitService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SplitService{
		meta:        meta,
		tool:        tool,
		storage:     store,
		validate:    validator.New(),
		logger:      logger,
		concurrency: 1,
	}
}

// SetConcurrency configures how many segments may be extracted in parallel.
func (s *SplitService) SetConcurrency(n int) {
	if n > 0 {
		s.concurrency = n
	}
}

// SetPublishPrefix sets the key prefix used when publishing segments.
func (s *SplitService) SetPublishPrefix(prefix string) {
	s.publishPrefix = prefix
}

// Split runs the whole pipeline for in.
//
// The returned output is never nil. A partial export returns the output
// together with the error of the first failed segment.
func (s *SplitService) Split(ctx context.Context, in SplitInput) (*SplitOutput, error) {
	job := New()
	out := &SplitOutput{}

	err := s.run(ctx, job, in, out)
	s.finish(job, err)
	out.Job = job.Clone()

	return out, err
}

func (s *SplitService) run(ctx context.Context, job *Job, in SplitInput, out *SplitOutput) error {
	if err := s.validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if in.Publish && !s.storage.RemoteEnabled() {
		return storage.ErrRemoteNotConfigured
	}

	if err := job.Start(); err != nil {
		return err
	}

	s.logger.Info("split run started",
		slog.String("job_id", job.ID),
		slog.Int("inputs", len(in.Inputs)),
		slog.Bool("dry_run", in.DryRun),
	)

	if err := s.tool.Check(ctx); err != nil {
		return err
	}

	inputs, err := audio.CollectInputs(in.Inputs)
	if err != nil {
		return err
	}

	book, err := s.ResolveBook(ctx, inputs[0], in)
	if err != nil {
		return err
	}
	out.Book = book
	job.SetBook(book.ASIN, book.Title)

	raw, err := s.meta.Fetch(ctx, book.ASIN)
	if err != nil {
		return err
	}

	if err := job.TransitionTo(StatusPlanning); err != nil {
		return err
	}

	workDir, err := s.storage.NewWorkDir(ctx, job.ID)
	if err != nil {
		return err
	}
	defer s.cleanup(context.WithoutCancel(ctx), workDir)

	source, err := s.prepareSource(ctx, inputs, workDir)
	if err != nil {
		return withBook(err, book.ASIN)
	}

	duration, err := s.tool.Duration(ctx, source)
	if err != nil {
		return withBook(err, book.ASIN)
	}
	job.SetSource(inputs, source, duration)

	p, err := plan.Build(raw, duration, plan.Options{Epsilon: in.Epsilon, FallbackTitle: book.Title})
	if err != nil {
		return withBook(err, book.ASIN)
	}
	out.Plan = p
	s.logNotes(job, p)

	outputDir := in.OutputDir
	if outputDir == "" {
		outputDir = filepath.Dir(inputs[0])
	}
	job.SetPlanned(p.Len(), outputDir)

	s.logger.Info("split plan ready",
		slog.String("job_id", job.ID),
		slog.String("book_id", book.ASIN),
		slog.Int("segments", p.Len()),
		slog.Float64("duration", duration),
	)

	if in.DryRun {
		return job.TransitionTo(StatusCompleted)
	}

	if err := job.TransitionTo(StatusExporting); err != nil {
		return err
	}

	exporter := export.New(s.tool,
		export.WithConcurrency(s.concurrency),
		export.WithLogger(s.logger.With(slog.String("job_id", job.ID))),
	)
	report, exportErr := exporter.Export(ctx, source, p, outputDir, BookTags(book))
	out.Report = report
	job.RecordReport(report)
	if exportErr != nil {
		return withBook(exportErr, book.ASIN)
	}

	if in.Publish {
		if err := job.TransitionTo(StatusPublishing); err != nil {
			return err
		}
		if err := s.publish(ctx, job, book.ASIN, report); err != nil {
			return err
		}
	}

	if err := job.Finish(); err != nil {
		return err
	}

	if err := report.FirstError(); err != nil {
		return withBook(err, book.ASIN)
	}

	if in.RemoveOriginals {
		s.removeOriginals(ctx, inputs, report)
	}

	return nil
}

// ResolveBook finds the book a run is about. An explicit ASIN wins, then an
// ASIN tag on the first input, then a search by title and author.
func (s *SplitService) ResolveBook(ctx context.Context, firstInput string, in SplitInput) (*audimeta.Book, error) {
	if in.ASIN != "" {
		return s.meta.GetBook(ctx, in.ASIN)
	}

	hints, err := s.tool.ReadHints(ctx, firstInput)
	if err != nil {
		s.logger.Warn("could not read input tags",
			slog.String("path", firstInput),
			slog.String("error", err.Error()),
		)
	}

	if hints.ASIN != "" && audimeta.ValidateASIN(hints.ASIN) {
		s.logger.Info("using ASIN from input tags", slog.String("book_id", hints.ASIN))
		return s.meta.GetBook(ctx, hints.ASIN)
	}

	q := audimeta.SearchQuery{
		Title:  firstNonEmpty(in.Title, hints.SearchTitle()),
		Author: firstNonEmpty(in.Author, hints.Artist),
	}
	if q.Title == "" {
		return nil, apperrors.InvalidMetadata(ErrNoSearchTerms, "cannot resolve book for %s", filepath.Base(firstInput))
	}

	results, err := s.meta.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	pick := max(in.Pick, 1)
	if pick > len(results) {
		return nil, apperrors.NotFound(ErrPickOutOfRange, "pick %d of %d results", pick, len(results))
	}

	chosen := results[pick-1]
	s.logger.Info("resolved book by search",
		slog.String("title", q.Title),
		slog.String("author", q.Author),
		slog.Int("results", len(results)),
		slog.Int("pick", pick),
		slog.String("book_id", chosen.ASIN),
	)

	// Search records may be partial; the book endpoint has the full record.
	return s.meta.GetBook(ctx, chosen.ASIN)
}

// prepareSource returns the single input as-is or joins several inputs into
// the work directory.
func (s *SplitService) prepareSource(ctx context.Context, inputs []string, workDir string) (string, error) {
	if len(inputs) == 1 {
		return inputs[0], nil
	}

	combined := filepath.Join(workDir, "combined"+filepath.Ext(inputs[0]))
	s.logger.Info("joining inputs",
		slog.Int("count", len(inputs)),
		slog.String("output", combined),
	)
	if err := s.tool.Concat(ctx, inputs, combined); err != nil {
		return "", err
	}
	return combined, nil
}

func (s *SplitService) publish(ctx context.Context, job *Job, bookID string, report export.Report) error {
	var firstErr error
	for _, res := range report.Written() {
		key := storage.ObjectKey(s.publishPrefix, bookID, filepath.Base(res.Path))
		url, err := s.storage.Publish(ctx, key, res.Path)
		if err != nil {
			s.logger.Error("publish failed",
				slog.String("path", res.Path),
				slog.String("error", err.Error()),
			)
			if firstErr == nil {
				firstErr = withBook(err, bookID)
			}
			continue
		}
		job.AddURL(url)
		s.logger.Info("segment published", slog.String("url", url))
	}
	return firstErr
}

// removeOriginals deletes the inputs unless one of them was overwritten by
// an output. Failures are logged only.
func (s *SplitService) removeOriginals(ctx context.Context, inputs []string, report export.Report) {
	outputs := make(map[string]bool)
	for _, p := range report.Paths() {
		if abs, err := filepath.Abs(p); err == nil {
			outputs[abs] = true
		}
	}
	for _, in := range inputs {
		if abs, err := filepath.Abs(in); err == nil && outputs[abs] {
			s.logger.Warn("keeping originals: an input is also an output", slog.String("path", in))
			return
		}
	}

	if err := s.storage.RemoveFiles(ctx, inputs); err != nil {
		s.logger.Warn("could not remove originals", slog.String("error", err.Error()))
		return
	}
	s.logger.Info("removed originals", slog.Int("count", len(inputs)))
}

func (s *SplitService) cleanup(ctx context.Context, workDir string) {
	if err := s.storage.CleanupWorkDir(ctx, workDir); err != nil {
		s.logger.Warn("failed to clean up work directory",
			slog.String("path", workDir),
			slog.String("error", err.Error()),
		)
	}
}

func (s *SplitService) logNotes(job *Job, p plan.Plan) {
	for _, n := range p.Notes {
		s.logger.Warn("chapter adjusted",
			slog.String("job_id", job.ID),
			slog.String("note", n.String()),
		)
	}
}

// finish moves the job to its terminal state for err.
func (s *SplitService) finish(job *Job, err error) {
	if job.IsTerminal() {
		s.logger.Info("split run finished",
			slog.String("job_id", job.ID),
			slog.String("status", string(job.GetStatus())),
			slog.Duration("elapsed", job.Elapsed()),
		)
		return
	}

	switch {
	case err == nil:
		_ = job.TransitionTo(StatusCompleted)
	case errors.Is(err, context.Canceled):
		_ = job.Cancel()
	default:
		_ = job.Fail(err.Error())
	}

	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelError
	}
	attrs := []slog.Attr{
		slog.String("job_id", job.ID),
		slog.String("status", string(job.GetStatus())),
		slog.Duration("elapsed", job.Elapsed()),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	s.logger.LogAttrs(context.Background(), level, "split run finished", attrs...)
}

// BookTags builds the tag template shared by every segment of a book.
// Every segment belongs to disc 1.
func BookTags(book *audimeta.Book) audio.Tags {
	genre := book.Genre()
	if genre == "" {
		genre = "Audiobook"
	}
	return audio.Tags{
		"album":        book.Title,
		"artist":       book.Author(),
		"album_artist": book.Author(),
		"composer":     strings.Join(book.Narrators, ", "),
		"date":         book.Year(),
		"genre":        genre,
		"publisher":    book.Publisher,
		"disc":         "1",
	}
}

// withBook scopes an *apperrors.Error to bookID and leaves other errors as is.
func withBook(err error, bookID string) error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) && appErr.BookID == "" {
		return appErr.WithBook(bookID)
	}
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
