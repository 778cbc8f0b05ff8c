package main

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/maauso/audimeta-splitter/internal/audimeta"
	"github.com/maauso/audimeta-splitter/internal/export"
	"github.com/maauso/audimeta-splitter/internal/job"
	"github.com/maauso/audimeta-splitter/internal/plan"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().
			Padding(0, 1)

	borderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	titleStyle = lipgloss.NewStyle().
			Bold(true)

	noteStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFAA00"))

	okStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00AA00")).
			Bold(true)

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

// formatTimestamp renders seconds as HH:MM:SS.mmm.
func formatTimestamp(seconds float64) string {
	ms := int64(math.Round(seconds * 1000))
	h := ms / 3_600_000
	ms -= h * 3_600_000
	m := ms / 60_000
	ms -= m * 60_000
	s := ms / 1000
	ms -= s * 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

func renderChapters(w io.Writer, chapters []plan.RawChapter) {
	t := newTable("#", "Start", "Title")
	for i, c := range chapters {
		t.Row(strconv.Itoa(i+1), formatTimestamp(c.StartSeconds), c.Title)
	}
	fmt.Fprintln(w, t.Render())
	fmt.Fprintf(w, "%d chapters\n", len(chapters))
}

func renderBooks(w io.Writer, books []audimeta.Book) {
	t := newTable("#", "ASIN", "Title", "Author", "Narrator", "Length", "Year")
	for i, b := range books {
		title := b.Title
		if b.Series != "" {
			title = fmt.Sprintf("%s (%s %s)", title, b.Series, b.SeriesPart)
		}
		length := ""
		if b.LengthMinutes > 0 {
			length = (time.Duration(b.LengthMinutes) * time.Minute).String()
		}
		narrator := ""
		if len(b.Narrators) > 0 {
			narrator = b.Narrators[0]
		}
		t.Row(strconv.Itoa(i+1), b.ASIN, strings.TrimSpace(title), b.Author(), narrator, length, b.Year())
	}
	fmt.Fprintln(w, t.Render())
}

func renderPlan(w io.Writer, p plan.Plan) {
	t := newTable("#", "Start", "End", "Length", "Title")
	for _, s := range p.Segments {
		t.Row(
			strconv.Itoa(s.Index),
			formatTimestamp(s.StartSeconds),
			formatTimestamp(s.EndSeconds),
			formatTimestamp(s.Duration()),
			s.Title,
		)
	}
	fmt.Fprintln(w, t.Render())

	for _, n := range p.Notes {
		fmt.Fprintln(w, noteStyle.Render("note: "+n.String()))
	}
}

func renderReport(w io.Writer, r export.Report) {
	t := newTable("#", "Status", "File")
	for _, res := range r.Results {
		status := string(res.Status)
		switch res.Status {
		case export.StatusWritten:
			status = okStyle.Render(status)
		case export.StatusFailed:
			status = failStyle.Render(status)
		}
		t.Row(strconv.Itoa(res.Segment.Index), status, res.Path)
	}
	fmt.Fprintln(w, t.Render())
}

// renderRun prints everything a split or plan run produced.
func renderRun(w io.Writer, out *job.SplitOutput) {
	if out == nil || out.Job == nil {
		return
	}

	if out.Book != nil {
		fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s [%s]", out.Book.Title, out.Book.ASIN)))
		if a := out.Book.Author(); a != "" {
			fmt.Fprintf(w, "by %s\n", a)
		}
	}

	if out.Plan.Len() > 0 {
		renderPlan(w, out.Plan)
	}
	if len(out.Report.Results) > 0 {
		renderReport(w, out.Report)
	}

	renderSummary(w, out.Job)
}

func renderSummary(w io.Writer, j *job.Job) {
	status := string(j.Status)
	switch j.Status {
	case job.StatusCompleted:
		status = okStyle.Render(status)
	case job.StatusFailed, job.StatusPartial, job.StatusCancelled:
		status = failStyle.Render(status)
	}

	fmt.Fprintf(w, "run %s: %s\n", j.ID, status)
	if j.Segments > 0 && j.Written+j.Failed+j.Skipped > 0 {
		fmt.Fprintf(w, "segments: %d written, %d failed, %d skipped of %d\n", j.Written, j.Failed, j.Skipped, j.Segments)
	}
	for _, u := range j.URLs {
		fmt.Fprintf(w, "published: %s\n", u)
	}
	if !j.StartedAt.IsZero() {
		fmt.Fprintf(w, "started %s, finished %s, elapsed %s\n",
			j.StartedAt.Format(time.TimeOnly),
			j.CompletedAt.Format(time.TimeOnly),
			j.Elapsed().Round(time.Millisecond),
		)
	}
}
