package export

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/maauso/audimeta-splitter/internal/plan"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name  string
		title string
		index int
		want  string
	}{
		{"plain", "Chapter One", 1, "Chapter One"},
		{"forbidden characters", `A<b>c:d"e/f\g|h?i*j`, 1, "Abcdefghij"},
		{"control characters", "Tab\there\nnewline", 1, "Tabherenewline"},
		{"trims whitespace", "  Prologue  ", 1, "Prologue"},
		{"empty falls back", "", 7, "Chapter 7"},
		{"only forbidden falls back", `?*:`, 3, "Chapter 3"},
		{"nfc normalization", "Cafe\u0301", 1, "Caf\u00e9"},
		{"keeps unicode", "Глава 1", 1, "Глава 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.title, tt.index))
		})
	}
}

func TestSanitizeFilename_CapsLength(t *testing.T) {
	got := SanitizeFilename(strings.Repeat("a", 300), 1)
	assert.Len(t, got, MaxFilenameBytes)

	// Multi-byte runes are never split.
	got = SanitizeFilename(strings.Repeat("é", 150), 1)
	assert.LessOrEqual(t, len(got), MaxFilenameBytes)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 100, utf8.RuneCountInString(got))
}

func TestIndexWidth(t *testing.T) {
	assert.Equal(t, 2, IndexWidth(1))
	assert.Equal(t, 2, IndexWidth(99))
	assert.Equal(t, 3, IndexWidth(100))
	assert.Equal(t, 4, IndexWidth(1200))
}

func TestOutputName(t *testing.T) {
	seg := plan.Segment{Index: 3, Title: "The End?"}
	assert.Equal(t, "03 - The End.m4b", OutputName(seg, 12, ".m4b"))
	assert.Equal(t, "003 - The End.mp3", OutputName(seg, 120, ".mp3"))

	untitled := plan.Segment{Index: 5, Title: "  "}
	assert.Equal(t, "05 - Chapter 5.m4a", OutputName(untitled, 5, ".m4a"))
}
