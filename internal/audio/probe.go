package audio

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	apperrors "github.com/maauso/audimeta-splitter/internal/errors"
)

// ffprobeOutput is the subset of `ffprobe -print_format json -show_format`.
type ffprobeOutput struct {
	Format ffprobeFormat `json:"format"`
}

type ffprobeFormat struct {
	Filename   string            `json:"filename"`
	FormatName string            `json:"format_name"`
	Duration   string            `json:"duration"`
	Tags       map[string]string `json:"tags"`
}

// Probe runs ffprobe on path and returns its format, duration and tags.
func (t *FFmpegTool) Probe(ctx context.Context, path string) (Info, error) {
	out, err := t.run(ctx, t.ffprobePath, []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		path,
	})
	if err != nil {
		return Info{}, fmt.Errorf("%w: %w", ErrFFprobeExecution, err)
	}

	return parseProbeOutput(out)
}

// Duration returns the duration in seconds of an audio file.
func (t *FFmpegTool) Duration(ctx context.Context, path string) (float64, error) {
	info, err := t.Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	return info.Duration, nil
}

func parseProbeOutput(out []byte) (Info, error) {
	var data ffprobeOutput
	if err := json.Unmarshal(out, &data); err != nil {
		return Info{}, apperrors.Encoding(err, "parse ffprobe output")
	}

	info := Info{Tags: make(map[string]string, len(data.Format.Tags))}

	// Get first format (e.g., "mp3" from "mp3,mp2").
	if data.Format.FormatName != "" {
		info.Format = strings.Split(data.Format.FormatName, ",")[0]
	}

	for k, v := range data.Format.Tags {
		info.Tags[strings.ToLower(k)] = strings.TrimSpace(v)
	}

	dur, err := strconv.ParseFloat(strings.TrimSpace(data.Format.Duration), 64)
	if err != nil || dur <= 0 || math.IsNaN(dur) || math.IsInf(dur, 0) {
		return Info{}, apperrors.InvalidMetadata(ErrNoDuration, "duration %q", data.Format.Duration)
	}
	info.Duration = dur

	return info, nil
}
