// Package audio drives ffmpeg and ffprobe: it joins input files, measures
// their duration, cuts segments with tags and reads hints from input tags.
package audio

import (
	"errors"
	"path/filepath"
	"sort"
	"strings"
)

// Static errors for audio operations.
var (
	// ErrNoInputs is returned when no input paths are provided.
	ErrNoInputs = errors.New("no input files provided")
	// ErrInvalidRange is returned when a segment range is empty or negative.
	ErrInvalidRange = errors.New("invalid segment range: end must be after start")
	// ErrFFprobeExecution is returned when the ffprobe command fails.
	ErrFFprobeExecution = errors.New("ffprobe execution failed")
	// ErrNoDuration is returned when ffprobe reports no usable duration.
	ErrNoDuration = errors.New("ffprobe reported no duration")
	// ErrToolMissing is returned when ffmpeg or ffprobe cannot be run.
	ErrToolMissing = errors.New("ffmpeg tools not available")
)

// Tags holds metadata key/value pairs written to an output file.
type Tags map[string]string

// Merge returns a new Tags with t's values overridden by override's
// non-empty values.
func (t Tags) Merge(override Tags) Tags {
	out := make(Tags, len(t)+len(override))
	for k, v := range t {
		if v != "" {
			out[k] = v
		}
	}
	for k, v := range override {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// Keys returns the tag keys in sorted order.
func (t Tags) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SegmentRequest describes one [Start, End) cut of a source file.
type SegmentRequest struct {
	Source       string
	Output       string
	StartSeconds float64
	EndSeconds   float64
	Tags         Tags
}

// Duration returns the requested segment length in seconds.
func (r SegmentRequest) Duration() float64 {
	return r.EndSeconds - r.StartSeconds
}

// Info is what ffprobe reports about a file.
type Info struct {
	Format   string
	Duration float64
	// Tags are the container tags with lower-cased keys.
	Tags map[string]string
}

// Hints are the book identification hints found in an input file's tags.
type Hints struct {
	Title  string
	Album  string
	Artist string
	ASIN   string
	Series string
}

// SearchTitle returns the tag value best suited as a title search query.
func (h Hints) SearchTitle() string {
	if h.Album != "" {
		return h.Album
	}
	return h.Title
}

// supportedExtensions are the input formats accepted from a folder.
var supportedExtensions = map[string]bool{
	".mp3":  true,
	".m4a":  true,
	".m4b":  true,
	".aac":  true,
	".flac": true,
	".ogg":  true,
	".opus": true,
	".wav":  true,
}

// IsSupported reports whether path has an accepted audio extension.
func IsSupported(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}
