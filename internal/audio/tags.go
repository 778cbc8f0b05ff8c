package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/simonhull/audiometa"
)

// asinTagKeys are the tag keys, lower-cased, that may carry an Audible ASIN.
var asinTagKeys = []string{"asin", "audible_asin", "txxx:asin"}

// ReadHints reads book identification hints from an input file. Common tags
// come from audiometa; the ASIN comes from the container tags reported by
// ffprobe, which exposes user-defined frames such as TXXX:ASIN. Formats
// audiometa cannot parse fall back to the ffprobe tags alone.
func (t *FFmpegTool) ReadHints(ctx context.Context, path string) (Hints, error) {
	var hints Hints
	format := "unknown"

	file, metaErr := audiometa.OpenContext(ctx, path)
	if metaErr != nil {
		t.logger.Warn("could not read input tags",
			slog.String("path", path),
			slog.String("error", metaErr.Error()),
		)
	} else {
		defer file.Close() //nolint:errcheck // read-only handle
		format = file.Format.String()
		hints = Hints{
			Title:  strings.TrimSpace(file.Tags.Title),
			Album:  strings.TrimSpace(file.Tags.Album),
			Artist: strings.TrimSpace(file.Tags.Artist),
			Series: strings.TrimSpace(file.Tags.Series),
		}
	}

	info, err := t.Probe(ctx, path)
	if err != nil {
		if metaErr != nil {
			return Hints{}, fmt.Errorf("read tags of %s: %w", path, errors.Join(metaErr, err))
		}
		t.logger.Warn("could not probe input tags",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return hints, nil
	}

	hints.ASIN = asinFromTags(info.Tags)
	if hints.Title == "" {
		hints.Title = info.Tags["title"]
	}
	if hints.Album == "" {
		hints.Album = info.Tags["album"]
	}
	if hints.Artist == "" {
		hints.Artist = info.Tags["artist"]
	}

	t.logger.Debug("read input hints",
		slog.String("path", path),
		slog.String("format", format),
		slog.String("title", hints.SearchTitle()),
		slog.String("artist", hints.Artist),
		slog.String("asin", hints.ASIN),
	)

	return hints, nil
}

func asinFromTags(tags map[string]string) string {
	for _, k := range asinTagKeys {
		if v := strings.TrimSpace(tags[k]); v != "" {
			return strings.ToUpper(v)
		}
	}
	return ""
}
