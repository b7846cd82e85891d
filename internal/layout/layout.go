// Package layout paginates report photos into fixed rows x columns grids.
package layout

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kozaktomas/photo-report/internal/pipeline"
)

// ErrInvalidSpec is returned for layout tokens that are not "<cols>x<rows>".
var ErrInvalidSpec = errors.New("invalid layout")

// Grid bounds. A cell narrower than a tenth of an A4 canvas is no longer a
// readable photo.
const (
	MaxColumns = 10
	MaxRows    = 10
)

// Spec is a grid of Columns x Rows photo cells per page.
type Spec struct {
	Columns int `json:"columns"`
	Rows    int `json:"rows"`
}

// Presets are the layouts offered in the report dialog.
var Presets = []Spec{
	{Columns: 1, Rows: 1},
	{Columns: 2, Rows: 2},
	{Columns: 2, Rows: 3},
	{Columns: 2, Rows: 4},
	{Columns: 3, Rows: 3},
	{Columns: 3, Rows: 4},
}

// ParseSpec parses "2x4" (columns x rows). Surrounding whitespace and an
// upper-case X are accepted.
func ParseSpec(token string) (Spec, error) {
	cols, rows, ok := strings.Cut(strings.ToLower(strings.TrimSpace(token)), "x")
	if !ok {
		return Spec{}, fmt.Errorf("%w %q: expected <columns>x<rows>", ErrInvalidSpec, token)
	}
	c, err := strconv.Atoi(cols)
	if err != nil {
		return Spec{}, fmt.Errorf("%w %q: bad column count", ErrInvalidSpec, token)
	}
	r, err := strconv.Atoi(rows)
	if err != nil {
		return Spec{}, fmt.Errorf("%w %q: bad row count", ErrInvalidSpec, token)
	}
	s := Spec{Columns: c, Rows: r}
	if err := s.Validate(); err != nil {
		return Spec{}, err
	}
	return s, nil
}

// MustParseSpec is ParseSpec for constants; it panics on error.
func MustParseSpec(token string) Spec {
	s, err := ParseSpec(token)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks that both dimensions are between 1 and their maximum.
func (s Spec) Validate() error {
	if s.Columns < 1 || s.Rows < 1 {
		return fmt.Errorf("%w %dx%d: columns and rows must be at least 1", ErrInvalidSpec, s.Columns, s.Rows)
	}
	if s.Columns > MaxColumns || s.Rows > MaxRows {
		return fmt.Errorf("%w %dx%d: at most %dx%d", ErrInvalidSpec, s.Columns, s.Rows, MaxColumns, MaxRows)
	}
	return nil
}

// Capacity is the number of photos per page.
func (s Spec) Capacity() int {
	return s.Columns * s.Rows
}

func (s Spec) String() string {
	return fmt.Sprintf("%dx%d", s.Columns, s.Rows)
}

// Page is one page of the report. Number starts at 1.
type Page struct {
	Number  int                   `json:"number"`
	Entries []pipeline.PhotoEntry `json:"entries"`
}

// Paginate splits entries into consecutive pages of spec.Capacity() photos.
// Only the last page can be partial. No entries means no pages.
func Paginate(entries []pipeline.PhotoEntry, spec Spec) ([]Page, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	capacity := spec.Capacity()
	pages := make([]Page, 0, TotalPages(len(entries), spec))
	for start := 0; start < len(entries); start += capacity {
		end := min(start+capacity, len(entries))
		pages = append(pages, Page{
			Number:  len(pages) + 1,
			Entries: entries[start:end],
		})
	}
	return pages, nil
}

// TotalPages returns ceil(n / capacity), or 0 for an invalid spec.
func TotalPages(n int, spec Spec) int {
	if n <= 0 || spec.Validate() != nil {
		return 0
	}
	capacity := spec.Capacity()
	return (n + capacity - 1) / capacity
}

// Cell is one grid position on a page. Entry is nil for empty cells.
type Cell struct {
	Index  int                  `json:"index"`
	Row    int                  `json:"row"`
	Column int                  `json:"column"`
	Entry  *pipeline.PhotoEntry `json:"entry,omitempty"`
}

// Cells returns spec.Capacity() cells in row-major order, filled with the
// page entries in order and empty afterwards. An invalid spec has no cells.
func (p Page) Cells(spec Spec) []Cell {
	if spec.Validate() != nil {
		return nil
	}
	cells := make([]Cell, spec.Capacity())
	for i := range cells {
		cells[i] = Cell{Index: i, Row: i / spec.Columns, Column: i % spec.Columns}
		if i < len(p.Entries) {
			cells[i].Entry = &p.Entries[i]
		}
	}
	return cells
}
