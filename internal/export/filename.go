package export

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/maauso/audimeta-splitter/internal/plan"
)

// MaxFilenameBytes caps the sanitized title part of an output filename.
const MaxFilenameBytes = 200

const forbiddenChars = `<>:"/\|?*`

// SanitizeFilename turns a chapter title into a filename-safe string.
// It returns "Chapter {index}" when nothing usable is left.
func SanitizeFilename(title string, index int) string {
	s := norm.NFC.String(title)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || strings.ContainsRune(forbiddenChars, r) {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)

	if len(s) > MaxFilenameBytes {
		s = truncateBytes(s, MaxFilenameBytes)
		s = strings.TrimSpace(s)
	}

	if s == "" {
		return fmt.Sprintf("Chapter %d", index)
	}
	return s
}

// truncateBytes cuts s to at most n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// IndexWidth is the zero-padding width for a plan of n segments.
func IndexWidth(n int) int {
	return max(2, len(strconv.Itoa(n)))
}

// OutputName returns "{index} - {title}{ext}" for a segment of a plan with
// total segments.
func OutputName(seg plan.Segment, total int, ext string) string {
	return fmt.Sprintf("%0*d - %s%s", IndexWidth(total), seg.Index, SanitizeFilename(seg.Title, seg.Index), ext)
}

// OutputPath joins dir with OutputName.
func OutputPath(dir string, seg plan.Segment, total int, ext string) string {
	return filepath.Join(dir, OutputName(seg, total, ext))
}
