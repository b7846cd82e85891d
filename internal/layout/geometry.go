package layout

import (
	"fmt"
	"strings"
)

// A4 page dimensions in mm.
const (
	A4Short = 210.0
	A4Long  = 297.0
)

// Orientation of the printed page.
type Orientation string

const (
	Portrait  Orientation = "portrait"
	Landscape Orientation = "landscape"
)

// ParseOrientation accepts "portrait" or "landscape"; anything else is portrait.
func ParseOrientation(s string) Orientation {
	if strings.EqualFold(strings.TrimSpace(s), string(Landscape)) {
		return Landscape
	}
	return Portrait
}

// Geometry holds the 3-zone page layout: a header band, the photo canvas
// and a footer band, inside the page margins.
type Geometry struct {
	Orientation    Orientation `json:"orientation"`
	PageWidthMM    float64     `json:"page_width_mm"`
	PageHeightMM   float64     `json:"page_height_mm"`
	MarginMM       float64     `json:"margin_mm"`        // all four sides
	HeaderHeightMM float64     `json:"header_height_mm"` // project/type header band
	FooterHeightMM float64     `json:"footer_height_mm"` // page counter band
	ZoneGapMM      float64     `json:"zone_gap_mm"`      // between bands and canvas
	CellPaddingMM  float64     `json:"cell_padding_mm"`  // inside each cell
	CaptionMM      float64     `json:"caption_mm"`       // caption block under the photo
}

// DefaultGeometry returns the print layout for an A4 page.
func DefaultGeometry(o Orientation) Geometry {
	g := Geometry{
		Orientation:    Portrait,
		PageWidthMM:    A4Short,
		PageHeightMM:   A4Long,
		MarginMM:       10.0,
		HeaderHeightMM: 22.0,
		FooterHeightMM: 8.0,
		ZoneGapMM:      4.0,
		CellPaddingMM:  2.0,
		CaptionMM:      10.0,
	}
	if o == Landscape {
		g.Orientation = Landscape
		g.PageWidthMM, g.PageHeightMM = A4Long, A4Short
	}
	return g
}

// Rect is an axis-aligned rectangle in mm, origin at the page top-left.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Header returns the header band.
func (g Geometry) Header() Rect {
	return Rect{X: g.MarginMM, Y: g.MarginMM, W: g.ContentWidth(), H: g.HeaderHeightMM}
}

// Canvas returns the photo zone between header and footer.
func (g Geometry) Canvas() Rect {
	return Rect{
		X: g.MarginMM,
		Y: g.MarginMM + g.HeaderHeightMM + g.ZoneGapMM,
		W: g.ContentWidth(),
		H: g.PageHeightMM - 2*g.MarginMM - g.HeaderHeightMM - g.FooterHeightMM - 2*g.ZoneGapMM,
	}
}

// Footer returns the footer band.
func (g Geometry) Footer() Rect {
	return Rect{
		X: g.MarginMM,
		Y: g.PageHeightMM - g.MarginMM - g.FooterHeightMM,
		W: g.ContentWidth(),
		H: g.FooterHeightMM,
	}
}

// ContentWidth is the page width minus both side margins.
func (g Geometry) ContentWidth() float64 {
	return g.PageWidthMM - 2*g.MarginMM
}

// CellWidthPercent is the share of the canvas width per column.
func CellWidthPercent(spec Spec) float64 {
	return 100.0 / float64(spec.Columns)
}

// CellHeightPercent is the share of the canvas height per row.
func CellHeightPercent(spec Spec) float64 {
	return 100.0 / float64(spec.Rows)
}

// CellRects returns the cell rectangles of a spec in row-major order. Cells
// tile the canvas exactly: each is canvas/columns wide and canvas/rows high.
// An invalid spec has no cells.
func (g Geometry) CellRects(spec Spec) []Rect {
	if spec.Validate() != nil {
		return nil
	}
	canvas := g.Canvas()
	w := canvas.W / float64(spec.Columns)
	h := canvas.H / float64(spec.Rows)
	rects := make([]Rect, 0, spec.Capacity())
	for row := range spec.Rows {
		for col := range spec.Columns {
			rects = append(rects, Rect{
				X: canvas.X + float64(col)*w,
				Y: canvas.Y + float64(row)*h,
				W: w,
				H: h,
			})
		}
	}
	return rects
}

// PhotoRect is the image area of a cell: the cell minus padding and the
// caption block.
func (g Geometry) PhotoRect(cell Rect) Rect {
	p := g.CellPaddingMM
	return Rect{
		X: cell.X + p,
		Y: cell.Y + p,
		W: max(0, cell.W-2*p),
		H: max(0, cell.H-2*p-g.CaptionMM),
	}
}

// ValidationWarning describes a layout issue found during validation.
type ValidationWarning struct {
	PageNumber int    `json:"page_number"`
	CellIndex  int    `json:"cell_index"`
	Message    string `json:"message"`
	Severity   string `json:"severity"` // "error" or "warning"
}

// ValidatePage checks that every cell of a page stays inside the canvas,
// that no two cells overlap and that the page holds no more entries than
// the grid has cells.
func (g Geometry) ValidatePage(page Page, spec Spec) []ValidationWarning {
	var warnings []ValidationWarning
	const eps = 0.01

	if len(page.Entries) > spec.Capacity() {
		warnings = append(warnings, ValidationWarning{
			PageNumber: page.Number,
			CellIndex:  -1,
			Message:    fmt.Sprintf("page holds %d entries but layout %s has %d cells", len(page.Entries), spec, spec.Capacity()),
			Severity:   "error",
		})
	}

	canvas := g.Canvas()
	rects := g.CellRects(spec)
	for i, r := range rects {
		if r.X < canvas.X-eps || r.Y < canvas.Y-eps ||
			r.X+r.W > canvas.X+canvas.W+eps || r.Y+r.H > canvas.Y+canvas.H+eps {
			warnings = append(warnings, ValidationWarning{
				PageNumber: page.Number,
				CellIndex:  i,
				Message:    fmt.Sprintf("cell (%.2f, %.2f, %.2f, %.2f) extends past the canvas", r.X, r.Y, r.W, r.H),
				Severity:   "error",
			})
		}
		if photo := g.PhotoRect(r); i < len(page.Entries) && (photo.W <= 0 || photo.H <= 0) {
			warnings = append(warnings, ValidationWarning{
				PageNumber: page.Number,
				CellIndex:  i,
				Message:    "cell too small to hold a photo and its caption",
				Severity:   "warning",
			})
		}
	}

	for i := 0; i < len(rects); i++ {
		for j := i + 1; j < len(rects); j++ {
			if rectsOverlap(rects[i], rects[j], eps) {
				warnings = append(warnings, ValidationWarning{
					PageNumber: page.Number,
					CellIndex:  i,
					Message:    fmt.Sprintf("cell %d overlaps with cell %d", i, j),
					Severity:   "error",
				})
			}
		}
	}

	header, footer := g.Header(), g.Footer()
	if canvas.H <= 0 || header.Y+header.H > canvas.Y+eps || canvas.Y+canvas.H > footer.Y+eps {
		warnings = append(warnings, ValidationWarning{
			PageNumber: page.Number,
			CellIndex:  -1,
			Message:    "header, canvas and footer zones overlap",
			Severity:   "error",
		})
	}

	return warnings
}

// rectsOverlap checks if two axis-aligned rectangles overlap with tolerance.
func rectsOverlap(a, b Rect, eps float64) bool {
	if a.X+a.W <= b.X+eps || b.X+b.W <= a.X+eps {
		return false
	}
	if a.Y+a.H <= b.Y+eps || b.Y+b.H <= a.Y+eps {
		return false
	}
	return true
}
