package layout

import (
	"errors"
	"fmt"
	"testing"

	"github.com/kozaktomas/photo-report/internal/pipeline"
)

func makeEntries(n int) []pipeline.PhotoEntry {
	entries := make([]pipeline.PhotoEntry, n)
	for i := range n {
		entries[i] = pipeline.PhotoEntry{Code: pipeline.Code("CAL", i+1)}
	}
	return entries
}

func mustPaginate(t *testing.T, entries []pipeline.PhotoEntry, spec Spec) []Page {
	t.Helper()
	pages, err := Paginate(entries, spec)
	if err != nil {
		t.Fatalf("Paginate(%s) failed: %v", spec, err)
	}
	return pages
}

func TestParseSpec(t *testing.T) {
	tests := []struct {
		token string
		want  Spec
	}{
		{"2x4", Spec{Columns: 2, Rows: 4}},
		{"1x1", Spec{Columns: 1, Rows: 1}},
		{" 3X3 ", Spec{Columns: 3, Rows: 3}},
		{"10x2", Spec{Columns: 10, Rows: 2}},
		{"10x10", Spec{Columns: 10, Rows: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, err := ParseSpec(tt.token)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestParseSpec_Invalid(t *testing.T) {
	for _, token := range []string{"", "2", "2x", "x4", "0x4", "2x0", "-1x3", "axb", "2x4x1", "2*4",
		"11x1", "1x11", "100000x100000", "3037000500x3037000500", "99999999999999999999x1"} {
		t.Run(fmt.Sprintf("%q", token), func(t *testing.T) {
			_, err := ParseSpec(token)
			if !errors.Is(err, ErrInvalidSpec) {
				t.Errorf("expected ErrInvalidSpec, got %v", err)
			}
		})
	}
}

func TestPaginate_RejectsInvalidSpec(t *testing.T) {
	for _, spec := range []Spec{
		{Columns: 0, Rows: 4},
		{Columns: 2, Rows: -1},
		{Columns: 3037000500, Rows: 3037000500},
		{Columns: 100000, Rows: 100000},
	} {
		t.Run(spec.String(), func(t *testing.T) {
			pages, err := Paginate(makeEntries(3), spec)
			if !errors.Is(err, ErrInvalidSpec) {
				t.Errorf("expected ErrInvalidSpec, got %v", err)
			}
			if pages != nil {
				t.Errorf("expected no pages, got %d", len(pages))
			}
			if n := TotalPages(3, spec); n != 0 {
				t.Errorf("expected TotalPages 0, got %d", n)
			}
			if cells := (Page{Number: 1, Entries: makeEntries(1)}).Cells(spec); cells != nil {
				t.Errorf("expected no cells, got %d", len(cells))
			}
		})
	}
}

func TestSpecString(t *testing.T) {
	if got := (Spec{Columns: 2, Rows: 4}).String(); got != "2x4" {
		t.Errorf("expected 2x4, got %s", got)
	}
}

func TestPaginate_PartialLastPage(t *testing.T) {
	spec := MustParseSpec("2x4")
	entries := makeEntries(10)

	pages := mustPaginate(t, entries, spec)

	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(pages))
	}
	if pages[0].Number != 1 || pages[1].Number != 2 {
		t.Errorf("unexpected page numbers %d, %d", pages[0].Number, pages[1].Number)
	}
	if len(pages[0].Entries) != 8 || len(pages[1].Entries) != 2 {
		t.Errorf("expected 8+2 entries, got %d+%d", len(pages[0].Entries), len(pages[1].Entries))
	}
	if pages[1].Entries[0].Code != "CAL-09" {
		t.Errorf("expected page 2 to start with CAL-09, got %s", pages[1].Entries[0].Code)
	}

	cells := pages[1].Cells(spec)
	if len(cells) != 8 {
		t.Fatalf("expected 8 cells, got %d", len(cells))
	}
	empty := 0
	for _, c := range cells {
		if c.Entry == nil {
			empty++
		}
	}
	if empty != 6 {
		t.Errorf("expected 6 empty cells on page 2, got %d", empty)
	}
	if cells[0].Entry == nil || cells[1].Entry == nil {
		t.Error("expected the first two cells to be filled")
	}
}

func TestPaginate_SingleCellLayout(t *testing.T) {
	spec := MustParseSpec("1x1")

	pages := mustPaginate(t, makeEntries(7), spec)

	if len(pages) != 7 {
		t.Fatalf("expected 7 pages, got %d", len(pages))
	}
	for i, p := range pages {
		if len(p.Entries) != 1 {
			t.Errorf("page %d: expected 1 entry, got %d", i+1, len(p.Entries))
		}
		if want := pipeline.Code("CAL", i+1); p.Entries[0].Code != want {
			t.Errorf("page %d: expected %s, got %s", i+1, want, p.Entries[0].Code)
		}
	}
}

func TestPaginate_EmptyInputYieldsNoPages(t *testing.T) {
	for _, spec := range Presets {
		t.Run(spec.String(), func(t *testing.T) {
			pages := mustPaginate(t, nil, spec)
			if len(pages) != 0 {
				t.Errorf("expected zero pages, got %d", len(pages))
			}
		})
	}
}

func TestPaginate_ExactMultiple(t *testing.T) {
	pages := mustPaginate(t, makeEntries(9), MustParseSpec("3x3"))

	if len(pages) != 1 || len(pages[0].Entries) != 9 {
		t.Errorf("expected one full page, got %+v", pages)
	}
}

func TestPaginate_PreservesOrderAcrossPages(t *testing.T) {
	entries := makeEntries(23)
	pages := mustPaginate(t, entries, MustParseSpec("2x3"))

	var flat []pipeline.PhotoEntry
	for _, p := range pages {
		flat = append(flat, p.Entries...)
	}
	if len(flat) != len(entries) {
		t.Fatalf("expected %d entries after flattening, got %d", len(entries), len(flat))
	}
	for i := range entries {
		if flat[i] != entries[i] {
			t.Errorf("position %d: expected %s, got %s", i, entries[i].Code, flat[i].Code)
		}
	}
}

func TestTotalPages(t *testing.T) {
	tests := []struct {
		n     int
		spec  string
		pages int
	}{
		{0, "2x4", 0},
		{1, "2x4", 1},
		{8, "2x4", 1},
		{9, "2x4", 2},
		{10, "2x4", 2},
		{5, "1x1", 5},
		{12, "3x4", 1},
		{13, "3x4", 2},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_%s", tt.n, tt.spec), func(t *testing.T) {
			spec := MustParseSpec(tt.spec)
			if got := TotalPages(tt.n, spec); got != tt.pages {
				t.Errorf("expected %d pages, got %d", tt.pages, got)
			}
			if got := len(mustPaginate(t, makeEntries(tt.n), spec)); got != tt.pages {
				t.Errorf("Paginate disagrees with TotalPages: %d vs %d", got, tt.pages)
			}
		})
	}
}

func TestCells_RowMajor(t *testing.T) {
	spec := MustParseSpec("3x2")
	page := Page{Number: 1, Entries: makeEntries(4)}

	cells := page.Cells(spec)

	expected := []struct{ row, col int }{{0, 0}, {0, 1}, {0, 2}, {1, 0}, {1, 1}, {1, 2}}
	for i, e := range expected {
		if cells[i].Row != e.row || cells[i].Column != e.col {
			t.Errorf("cell %d: expected (%d,%d), got (%d,%d)", i, e.row, e.col, cells[i].Row, cells[i].Column)
		}
	}
	if cells[3].Entry.Code != "CAL-04" {
		t.Errorf("expected cell 3 to hold CAL-04, got %s", cells[3].Entry.Code)
	}
}

func TestMustParseSpec_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	MustParseSpec("nope")
}
