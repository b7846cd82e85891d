// Package document renders paginated report photos as a print-ready HTML
// document, one A4 sheet per page.
package document

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/kozaktomas/photo-report/internal/layout"
	"github.com/kozaktomas/photo-report/internal/pipeline"
)

//go:embed templates/report.html
var templateFS embed.FS

var reportTemplate = template.Must(
	template.New("report.html").Funcs(template.FuncMap{
		"mm":     mm,
		"rect":   rect,
		"imgsrc": imgsrc,
	}).ParseFS(templateFS, "templates/report.html"),
)

// Header is printed in the header band of every page.
type Header struct {
	ProjectName string
	Client      string
	Location    string
	TypeTitle   string
	GeneratedAt time.Time
}

// Document is everything needed to render a report.
type Document struct {
	Header   Header
	Spec     layout.Spec
	Geometry layout.Geometry
	Pages    []layout.Page
}

type cellView struct {
	Index int
	Cell  layout.Rect
	Entry *pipeline.PhotoEntry
}

type pageView struct {
	Number int
	Cells  []cellView
}

type headerView struct {
	Header
	Generated string
}

type templateData struct {
	Header        headerView
	Layout        string
	Orientation   layout.Orientation
	PageW, PageH  float64
	TotalPages    int
	HeaderRect    layout.Rect
	FooterRect    layout.Rect
	PhotoOffset   layout.Rect // relative to the cell
	CaptionOffset layout.Rect // relative to the cell
	Pages         []pageView
}

// Render writes the HTML document for doc to w.
func Render(w io.Writer, doc Document) error {
	if err := doc.Spec.Validate(); err != nil {
		return err
	}
	data := buildTemplateData(doc)

	// Execute into a buffer so a template error never leaves half a page.
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}

func buildTemplateData(doc Document) templateData {
	g := doc.Geometry
	if g.PageWidthMM == 0 {
		g = layout.DefaultGeometry(layout.Portrait)
	}
	cellRects := g.CellRects(doc.Spec)

	var photoOffset, captionOffset layout.Rect
	if len(cellRects) > 0 {
		c := cellRects[0]
		photo := g.PhotoRect(c)
		photoOffset = layout.Rect{X: photo.X - c.X, Y: photo.Y - c.Y, W: photo.W, H: photo.H}
		captionOffset = layout.Rect{
			X: photoOffset.X,
			Y: photoOffset.Y + photo.H,
			W: photo.W,
			H: g.CaptionMM,
		}
	}

	generated := ""
	if !doc.Header.GeneratedAt.IsZero() {
		generated = doc.Header.GeneratedAt.Format("02/01/2006")
	}

	data := templateData{
		Header:        headerView{Header: doc.Header, Generated: generated},
		Layout:        doc.Spec.String(),
		Orientation:   g.Orientation,
		PageW:         g.PageWidthMM,
		PageH:         g.PageHeightMM,
		TotalPages:    len(doc.Pages),
		HeaderRect:    g.Header(),
		FooterRect:    g.Footer(),
		PhotoOffset:   photoOffset,
		CaptionOffset: captionOffset,
		Pages:         make([]pageView, 0, len(doc.Pages)),
	}
	for _, p := range doc.Pages {
		pv := pageView{Number: p.Number}
		for _, c := range p.Cells(doc.Spec) {
			pv.Cells = append(pv.Cells, cellView{Index: c.Index, Cell: cellRects[c.Index], Entry: c.Entry})
		}
		data.Pages = append(data.Pages, pv)
	}
	return data
}

func mm(v float64) template.CSS {
	return template.CSS(fmt.Sprintf("%.2fmm", v))
}

func rect(r layout.Rect) template.CSS {
	return template.CSS(fmt.Sprintf("left:%.2fmm;top:%.2fmm;width:%.2fmm;height:%.2fmm", r.X, r.Y, r.W, r.H))
}

// imgsrc marks encoded JPEGs and http(s) URLs as safe image sources.
// Anything else goes through the normal URL sanitizer.
func imgsrc(src string) any {
	lower := strings.ToLower(src)
	if strings.HasPrefix(lower, "data:image/") ||
		strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return template.URL(src) //nolint:gosec // sources are transcoder output or stored record URLs
	}
	return src
}
