package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/maauso/audimeta-splitter/internal/errors"
)

// stderrTail is how much tool stderr is kept in error details.
const stderrTail = 2048

// FFmpegTool runs ffmpeg and ffprobe binaries.
type FFmpegTool struct {
	ffmpegPath  string
	ffprobePath string
	// timeout bounds every single tool invocation. Zero means no limit.
	timeout time.Duration
	logger  *slog.Logger
}

// ToolOption configures an FFmpegTool.
type ToolOption func(*FFmpegTool)

// WithFFmpegPath sets the ffmpeg binary path.
func WithFFmpegPath(path string) ToolOption {
	return func(t *FFmpegTool) {
		if path != "" {
			t.ffmpegPath = path
		}
	}
}

// WithFFprobePath sets the ffprobe binary path.
func WithFFprobePath(path string) ToolOption {
	return func(t *FFmpegTool) {
		if path != "" {
			t.ffprobePath = path
		}
	}
}

// WithTimeout bounds each tool invocation.
func WithTimeout(d time.Duration) ToolOption {
	return func(t *FFmpegTool) {
		t.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ToolOption {
	return func(t *FFmpegTool) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewFFmpegTool creates a new FFmpegTool.
// Binaries default to "ffmpeg" and "ffprobe" found via PATH.
func NewFFmpegTool(opts ...ToolOption) *FFmpegTool {
	t := &FFmpegTool{
		ffmpegPath:  "ffmpeg",
		ffprobePath: "ffprobe",
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Check verifies that ffmpeg and ffprobe can be executed.
func (t *FFmpegTool) Check(ctx context.Context) error {
	for _, bin := range []string{t.ffmpegPath, t.ffprobePath} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("%w: %w", ErrToolMissing, err)
		}
		if _, err := t.run(ctx, bin, []string{"-version"}); err != nil {
			return fmt.Errorf("%w: %s -version: %w", ErrToolMissing, bin, err)
		}
	}
	return nil
}

// ExtractSegment cuts [StartSeconds, EndSeconds) of the source into Output
// with stream copy, writing the request tags. An existing output is overwritten.
func (t *FFmpegTool) ExtractSegment(ctx context.Context, req SegmentRequest) error {
	if req.EndSeconds <= req.StartSeconds {
		return fmt.Errorf("%w: [%.3f, %.3f)", ErrInvalidRange, req.StartSeconds, req.EndSeconds)
	}

	args := []string{
		"-y", // Overwrite output
		"-hide_banner",
		"-loglevel", "error",
		"-ss", fmt.Sprintf("%.3f", req.StartSeconds),
		"-t", fmt.Sprintf("%.3f", req.Duration()),
		"-i", req.Source,
		"-map", "0:a", // Audio only
		"-map_chapters", "-1",
		"-c", "copy", // Copy without re-encoding
	}
	for _, k := range req.Tags.Keys() {
		args = append(args, "-metadata", k+"="+req.Tags[k])
	}
	if strings.EqualFold(filepath.Ext(req.Output), ".mp3") {
		args = append(args, "-id3v2_version", "3")
	}
	args = append(args, req.Output)

	t.logger.Debug("extracting segment",
		slog.String("output", req.Output),
		slog.Float64("start", req.StartSeconds),
		slog.Float64("end", req.EndSeconds),
	)

	_, err := t.run(ctx, t.ffmpegPath, args)
	return err
}

// Concat joins inputs in order into output using the concat demuxer with
// stream copy. The list file is written next to output and removed after.
func (t *FFmpegTool) Concat(ctx context.Context, inputs []string, output string) error {
	if len(inputs) == 0 {
		return ErrNoInputs
	}

	listFile, err := createConcatList(inputs, filepath.Dir(output))
	if err != nil {
		return apperrors.Filesystem(err, "create concat list")
	}
	defer func() { _ = os.Remove(listFile) }()

	args := []string{
		"-y",           // Overwrite output file
		"-hide_banner", // Quieter stderr
		"-loglevel", "error",
		"-f", "concat", // Use concat demuxer
		"-safe", "0", // Allow absolute paths
		"-i", listFile, // Input file list
		"-map", "0:a",
		"-c", "copy", // Copy streams without re-encoding
		output,
	}

	t.logger.Debug("concatenating inputs",
		slog.Int("inputs", len(inputs)),
		slog.String("output", output),
	)

	_, err = t.run(ctx, t.ffmpegPath, args)
	return err
}

// createConcatList writes the concat demuxer list for paths into dir.
func createConcatList(paths []string, dir string) (string, error) {
	f, err := os.CreateTemp(dir, "concat-*.txt")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = f.Close() }()

	for _, path := range paths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("get absolute path for %s: %w", path, err)
		}
		// Escape single quotes in path
		escapedPath := strings.ReplaceAll(absPath, "'", "'\\''")
		if _, err := fmt.Fprintf(f, "file '%s'\n", escapedPath); err != nil {
			return "", fmt.Errorf("write to concat list: %w", err)
		}
	}

	return f.Name(), nil
}

// run executes bin with args under the tool timeout and maps failures onto
// the error taxonomy: deadline to TIMEOUT, non-zero exit to ENCODING.
func (t *FFmpegTool) run(ctx context.Context, bin string, args []string) ([]byte, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	// #nosec G204 - binary paths are set by the application, not user input
	cmd := exec.CommandContext(ctx, bin, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, apperrors.Timeout(ctx.Err(), "%s exceeded %s", filepath.Base(bin), t.timeout)
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s cancelled: %w", filepath.Base(bin), ctx.Err())
		}
		toolErr := &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
		return nil, apperrors.Encoding(toolErr, "%s failed", filepath.Base(bin)).WithDetail(tail(stderr.String(), stderrTail))
	}

	return stdout.Bytes(), nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
