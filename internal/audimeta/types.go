package audimeta

import (
	"strings"
)

// Book is the AudiMeta record of an audiobook.
type Book struct {
	ASIN          string   `json:"asin"`
	Title         string   `json:"title"`
	Subtitle      string   `json:"subtitle,omitempty"`
	Authors       []string `json:"authors,omitempty"`
	Narrators     []string `json:"narrators,omitempty"`
	Publisher     string   `json:"publisher,omitempty"`
	ReleaseDate   string   `json:"release_date,omitempty"`
	Genres        []string `json:"genres,omitempty"`
	Series        string   `json:"series,omitempty"`
	SeriesPart    string   `json:"series_part,omitempty"`
	LengthMinutes int      `json:"length_minutes,omitempty"`
	Region        string   `json:"region,omitempty"`
}

// Author returns the first author or "".
func (b Book) Author() string {
	if len(b.Authors) == 0 {
		return ""
	}
	return b.Authors[0]
}

// Year returns the release year, taken from the leading digits of ReleaseDate.
func (b Book) Year() string {
	if len(b.ReleaseDate) >= 4 {
		y := b.ReleaseDate[:4]
		if strings.Trim(y, "0123456789") == "" {
			return y
		}
	}
	return ""
}

// Genre returns the first genre or "".
func (b Book) Genre() string {
	if len(b.Genres) == 0 {
		return ""
	}
	return b.Genres[0]
}

// Chapter is one chapter entry as reported by AudiMeta.
type Chapter struct {
	Title        string  `json:"title"`
	StartSeconds float64 `json:"start_seconds"`
	// LengthSeconds is informational; the planner derives lengths itself.
	LengthSeconds float64 `json:"length_seconds,omitempty"`
}

// ChapterList is the chapter payload of a book.
type ChapterList struct {
	ASIN     string    `json:"asin"`
	Chapters []Chapter `json:"chapters"`
	// RuntimeSeconds is the runtime AudiMeta reports, zero when absent.
	RuntimeSeconds float64 `json:"runtime_seconds,omitempty"`
	// Accurate mirrors AudiMeta's isAccurate flag, nil when absent.
	Accurate *bool `json:"accurate,omitempty"`
}

// SearchQuery holds book search parameters.
type SearchQuery struct {
	Title  string
	Author string
}

// Raw API response types (internal)

type rawChapter struct {
	Title          *string  `json:"title" validate:"required"`
	StartOffsetMs  *float64 `json:"startOffsetMs" validate:"required_without=StartOffsetSec"`
	StartOffsetSec *float64 `json:"startOffsetSec" validate:"required_without=StartOffsetMs"`
	LengthMs       *float64 `json:"lengthMs" validate:"omitempty,gte=0"`
}

// startSeconds prefers the millisecond offset, which is exact.
func (r rawChapter) startSeconds() float64 {
	if r.StartOffsetMs != nil {
		return *r.StartOffsetMs / 1000
	}
	return *r.StartOffsetSec
}

type rawChapterList struct {
	ASIN            string       `json:"asin"`
	Chapters        []rawChapter `json:"chapters" validate:"required,dive"`
	RuntimeLengthMs *float64     `json:"runtimeLengthMs" validate:"omitempty,gte=0"`
	IsAccurate      *bool        `json:"isAccurate"`
}

type rawPerson struct {
	ASIN string `json:"asin"`
	Name string `json:"name"`
}

type rawGenre struct {
	ASIN string `json:"asin"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type rawSeries struct {
	ASIN     string `json:"asin"`
	Name     string `json:"name"`
	Position string `json:"position"`
}

type rawBook struct {
	ASIN          string      `json:"asin" validate:"required"`
	Title         string      `json:"title" validate:"required"`
	Subtitle      string      `json:"subtitle"`
	Authors       []rawPerson `json:"authors"`
	Narrators     []rawPerson `json:"narrators"`
	Publisher     string      `json:"publisher"`
	ReleaseDate   string      `json:"releaseDate"`
	Genres        []rawGenre  `json:"genres"`
	Series        []rawSeries `json:"series"`
	LengthMinutes int         `json:"lengthMinutes" validate:"gte=0"`
	Region        string      `json:"region"`
}

func (r rawBook) toBook() Book {
	b := Book{
		ASIN:          strings.ToUpper(r.ASIN),
		Title:         strings.TrimSpace(r.Title),
		Subtitle:      strings.TrimSpace(r.Subtitle),
		Publisher:     r.Publisher,
		ReleaseDate:   r.ReleaseDate,
		LengthMinutes: r.LengthMinutes,
		Region:        r.Region,
	}
	b.Authors = names(r.Authors)
	b.Narrators = names(r.Narrators)
	for _, g := range r.Genres {
		// AudiMeta lists free-form tags next to genres.
		if g.Name != "" && g.Type != "tag" {
			b.Genres = append(b.Genres, g.Name)
		}
	}
	if len(r.Series) > 0 {
		b.Series = r.Series[0].Name
		b.SeriesPart = r.Series[0].Position
	}
	return b
}

func names(people []rawPerson) []string {
	var out []string
	for _, p := range people {
		if n := strings.TrimSpace(p.Name); n != "" {
			out = append(out, n)
		}
	}
	return out
}
