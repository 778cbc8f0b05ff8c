package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/audimeta-splitter/internal/audio"
	apperrors "github.com/maauso/audimeta-splitter/internal/errors"
	"github.com/maauso/audimeta-splitter/internal/plan"
)

// fakeEngine writes a small file per request and records what it was asked.
type fakeEngine struct {
	mu       sync.Mutex
	requests []audio.SegmentRequest
	failOn   map[int]error // keyed by call order, 1-based
	skipFile bool
	onCall   func(n int)
	calls    int
}

func (f *fakeEngine) ExtractSegment(_ context.Context, req audio.SegmentRequest) error {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.requests = append(f.requests, req)
	hook := f.onCall
	failErr := f.failOn[n]
	f.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	if failErr != nil {
		return failErr
	}
	if f.skipFile {
		return nil
	}
	return os.WriteFile(req.Output, []byte(req.Tags["title"]), 0600)
}

func b1Plan(t *testing.T) plan.Plan {
	t.Helper()
	p, err := plan.Build([]plan.RawChapter{
		{Title: "Ch1", StartSeconds: 0},
		{Title: "Ch2", StartSeconds: 612.3},
	}, 1834, plan.DefaultOptions())
	require.NoError(t, err)
	return p
}

func TestExport_WritesTaggedSegments(t *testing.T) {
	engine := &fakeEngine{}
	outDir := filepath.Join(t.TempDir(), "out")
	tmpl := audio.Tags{"album": "Book", "artist": "Author", "title": "ignored"}

	report, err := New(engine).Export(context.Background(), "/in/combined.m4b", b1Plan(t), outDir, tmpl)
	require.NoError(t, err)

	require.True(t, report.OK())
	require.Len(t, engine.requests, 2)

	first, second := engine.requests[0], engine.requests[1]
	assert.Equal(t, filepath.Join(outDir, "01 - Ch1.m4b"), first.Output)
	assert.Equal(t, filepath.Join(outDir, "02 - Ch2.m4b"), second.Output)

	assert.Equal(t, 0.0, first.StartSeconds)
	assert.Equal(t, 612.3, first.EndSeconds)
	assert.Equal(t, 612.3, second.StartSeconds)
	assert.Equal(t, 1834.0, second.EndSeconds)

	assert.Equal(t, "Ch1", first.Tags["title"])
	assert.Equal(t, "1/2", first.Tags["track"])
	assert.Equal(t, "2/2", second.Tags["track"])
	assert.Equal(t, "Book", second.Tags["album"])
	assert.Equal(t, "/in/combined.m4b", first.Source)

	// Template is not mutated by the merge.
	assert.Equal(t, "ignored", tmpl["title"])

	assert.Equal(t, []string{first.Output, second.Output}, report.Paths())
	assert.NoError(t, report.FirstError())
}

func TestExport_RerunIsIdempotent(t *testing.T) {
	outDir := t.TempDir()
	p := b1Plan(t)

	for run := 0; run < 2; run++ {
		report, err := New(&fakeEngine{}).Export(context.Background(), "book.mp3", p, outDir, nil)
		require.NoError(t, err)
		require.True(t, report.OK())
	}

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	assert.Equal(t, []string{"01 - Ch1.mp3", "02 - Ch2.mp3"}, names)
}

func TestExport_PartialFailureContinues(t *testing.T) {
	p, err := plan.Build([]plan.RawChapter{
		{Title: "One", StartSeconds: 0},
		{Title: "Two", StartSeconds: 10},
		{Title: "Three", StartSeconds: 20},
	}, 30, plan.DefaultOptions())
	require.NoError(t, err)

	toolErr := apperrors.Encoding(errors.New("exit status 1"), "ffmpeg failed").WithDetail("moov atom not found")
	engine := &fakeEngine{failOn: map[int]error{2: toolErr}}

	report, err := New(engine).Export(context.Background(), "a.m4a", p, t.TempDir(), nil)
	require.NoError(t, err)

	assert.False(t, report.OK())
	assert.Len(t, report.Written(), 2)
	require.Len(t, report.Failed(), 1)

	failed := report.Failed()[0]
	assert.Equal(t, 2, failed.Segment.Index)

	var appErr *apperrors.Error
	require.ErrorAs(t, report.FirstError(), &appErr)
	assert.Equal(t, apperrors.CodeEncoding, appErr.Code)
	assert.Equal(t, 2, appErr.Segment)
	assert.Equal(t, "moov atom not found", appErr.Detail)

	// Earlier and later outputs stay on disk.
	for _, res := range report.Written() {
		_, statErr := os.Stat(res.Path)
		assert.NoError(t, statErr)
	}
}

func TestExport_UnclassifiedEngineErrorIsEncoding(t *testing.T) {
	engine := &fakeEngine{failOn: map[int]error{1: errors.New("boom")}}

	report, err := New(engine).Export(context.Background(), "a.m4a", b1Plan(t), t.TempDir(), nil)
	require.NoError(t, err)

	assert.ErrorIs(t, report.FirstError(), apperrors.ErrEncoding)
}

func TestExport_MissingOutputIsFilesystemError(t *testing.T) {
	engine := &fakeEngine{skipFile: true}

	report, err := New(engine).Export(context.Background(), "a.m4a", b1Plan(t), t.TempDir(), nil)
	require.NoError(t, err)

	require.Len(t, report.Failed(), 2)
	assert.ErrorIs(t, report.FirstError(), apperrors.ErrFilesystem)
}

func TestExport_OutputDirFailure(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0600))

	engine := &fakeEngine{}
	_, err := New(engine).Export(context.Background(), "a.m4a", b1Plan(t), filepath.Join(file, "out"), nil)

	assert.ErrorIs(t, err, apperrors.ErrFilesystem)
	assert.Empty(t, engine.requests)
}

func TestExport_CancelSkipsUnstartedSegments(t *testing.T) {
	p, err := plan.Build([]plan.RawChapter{
		{Title: "A", StartSeconds: 0},
		{Title: "B", StartSeconds: 10},
		{Title: "C", StartSeconds: 20},
		{Title: "D", StartSeconds: 30},
	}, 40, plan.DefaultOptions())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine := &fakeEngine{onCall: func(n int) {
		if n == 2 {
			cancel()
		}
	}}

	report, err := New(engine).Export(ctx, "a.m4a", p, t.TempDir(), nil)
	require.ErrorIs(t, err, context.Canceled)

	// The segment running when the cancel arrived still finishes.
	assert.Len(t, report.Written(), 2)
	assert.Len(t, report.Skipped(), 2)
	assert.Equal(t, StatusSkipped, report.Results[2].Status)
	assert.Equal(t, StatusSkipped, report.Results[3].Status)
	assert.Len(t, engine.requests, 2)
}

func TestExport_CancelDuringLastSegmentCompletes(t *testing.T) {
	p := b1Plan(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine := &fakeEngine{onCall: func(n int) {
		if n == p.Len() {
			cancel()
		}
	}}

	report, err := New(engine).Export(ctx, "a.m4a", p, t.TempDir(), nil)
	require.NoError(t, err)

	assert.True(t, report.OK())
	assert.Len(t, report.Written(), 2)
	assert.Empty(t, report.Skipped())
	assert.Len(t, engine.requests, 2)
}

func TestExport_Concurrent(t *testing.T) {
	raw := make([]plan.RawChapter, 12)
	for i := range raw {
		raw[i] = plan.RawChapter{Title: "Part", StartSeconds: float64(i * 5)}
	}
	p, err := plan.Build(raw, 60, plan.DefaultOptions())
	require.NoError(t, err)

	engine := &fakeEngine{}
	report, err := New(engine, WithConcurrency(4)).Export(context.Background(), "a.mp3", p, t.TempDir(), nil)
	require.NoError(t, err)

	assert.True(t, report.OK())
	assert.Len(t, engine.requests, 12)
	for i, res := range report.Results {
		assert.Equal(t, i+1, res.Segment.Index)
		assert.True(t, strings.HasSuffix(res.Path, ".mp3"))
	}
	assert.Equal(t, "01 - Part.mp3", filepath.Base(report.Results[0].Path))
	assert.Equal(t, "12 - Part.mp3", filepath.Base(report.Results[11].Path))
}

func TestWithConcurrency(t *testing.T) {
	assert.Equal(t, 1, New(nil).concurrency)
	assert.Equal(t, 1, New(nil, WithConcurrency(0)).concurrency)
	assert.Equal(t, 3, New(nil, WithConcurrency(3)).concurrency)
}
