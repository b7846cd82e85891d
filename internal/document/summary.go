package document

import (
	"fmt"

	"github.com/kozaktomas/photo-report/internal/layout"
	"github.com/kozaktomas/photo-report/internal/pipeline"
)

// Summary describes a rendered report for the UI and the CLI.
type Summary struct {
	Title      string        `json:"title"`
	Layout     string        `json:"layout"`
	PageCount  int           `json:"page_count"`
	PhotoCount int           `json:"photo_count"`
	Pages      []SummaryPage `json:"pages"`
	Warnings   []string      `json:"warnings"`
}

// SummaryPage lists the photo codes placed on one page.
type SummaryPage struct {
	PageNumber int      `json:"page_number"`
	Codes      []string `json:"codes"`
	EmptyCells int      `json:"empty_cells"`
}

// Summarize builds the export summary: per-page codes, photos that fell back
// to their original URL and any layout validation issues.
func Summarize(doc Document, degraded []pipeline.Degradation) *Summary {
	g := doc.Geometry
	if g.PageWidthMM == 0 {
		g = layout.DefaultGeometry(layout.Portrait)
	}

	s := &Summary{
		Title:     doc.Header.TypeTitle,
		Layout:    doc.Spec.String(),
		PageCount: len(doc.Pages),
		Pages:     make([]SummaryPage, 0, len(doc.Pages)),
		Warnings:  []string{},
	}
	for _, p := range doc.Pages {
		sp := SummaryPage{
			PageNumber: p.Number,
			Codes:      make([]string, 0, len(p.Entries)),
			EmptyCells: doc.Spec.Capacity() - len(p.Entries),
		}
		for _, e := range p.Entries {
			sp.Codes = append(sp.Codes, e.Code)
		}
		s.PhotoCount += len(p.Entries)
		s.Pages = append(s.Pages, sp)

		for _, w := range g.ValidatePage(p, doc.Spec) {
			s.Warnings = append(s.Warnings, fmt.Sprintf("Page %d: %s", w.PageNumber, w.Message))
		}
	}

	for _, d := range degraded {
		s.Warnings = append(s.Warnings,
			fmt.Sprintf("%s (record %s): image embedded by URL (%s)", d.Code, d.RecordID, d.Reason))
	}
	return s
}
