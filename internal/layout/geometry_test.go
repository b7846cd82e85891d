package layout

import (
	"math"
	"testing"
)

func TestDefaultGeometry_ZonesFillPage(t *testing.T) {
	for _, o := range []Orientation{Portrait, Landscape} {
		t.Run(string(o), func(t *testing.T) {
			g := DefaultGeometry(o)
			total := 2*g.MarginMM + g.HeaderHeightMM + g.FooterHeightMM + 2*g.ZoneGapMM + g.Canvas().H
			if math.Abs(total-g.PageHeightMM) > 0.01 {
				t.Errorf("zones should sum to page height: got %.2f, expected %.2f", total, g.PageHeightMM)
			}
		})
	}
}

func TestDefaultGeometry_Orientation(t *testing.T) {
	p := DefaultGeometry(Portrait)
	if p.PageWidthMM != A4Short || p.PageHeightMM != A4Long {
		t.Errorf("portrait should be 210x297, got %.0fx%.0f", p.PageWidthMM, p.PageHeightMM)
	}
	l := DefaultGeometry(Landscape)
	if l.PageWidthMM != A4Long || l.PageHeightMM != A4Short {
		t.Errorf("landscape should be 297x210, got %.0fx%.0f", l.PageWidthMM, l.PageHeightMM)
	}
}

func TestParseOrientation(t *testing.T) {
	tests := map[string]Orientation{
		"landscape":  Landscape,
		" LANDSCAPE": Landscape,
		"portrait":   Portrait,
		"":           Portrait,
		"sideways":   Portrait,
	}
	for in, want := range tests {
		if got := ParseOrientation(in); got != want {
			t.Errorf("ParseOrientation(%q) = %s, expected %s", in, got, want)
		}
	}
}

func TestCellRects_InvalidSpec(t *testing.T) {
	g := DefaultGeometry(Portrait)
	for _, spec := range []Spec{{Columns: 0, Rows: 1}, {Columns: 100000, Rows: 100000}} {
		if rects := g.CellRects(spec); rects != nil {
			t.Errorf("%s: expected no cells, got %d", spec, len(rects))
		}
	}
}

func TestCellRects_TileCanvas(t *testing.T) {
	g := DefaultGeometry(Portrait)
	canvas := g.Canvas()

	for _, spec := range Presets {
		t.Run(spec.String(), func(t *testing.T) {
			rects := g.CellRects(spec)
			if len(rects) != spec.Capacity() {
				t.Fatalf("expected %d cells, got %d", spec.Capacity(), len(rects))
			}

			var area float64
			for _, r := range rects {
				area += r.W * r.H
				if math.Abs(r.W/canvas.W*100-CellWidthPercent(spec)) > 0.01 {
					t.Errorf("cell width %.2f%% does not match %.2f%%", r.W/canvas.W*100, CellWidthPercent(spec))
				}
				if math.Abs(r.H/canvas.H*100-CellHeightPercent(spec)) > 0.01 {
					t.Errorf("cell height %.2f%% does not match %.2f%%", r.H/canvas.H*100, CellHeightPercent(spec))
				}
			}
			if math.Abs(area-canvas.W*canvas.H) > 0.1 {
				t.Errorf("cells cover %.2f mm², canvas is %.2f mm²", area, canvas.W*canvas.H)
			}

			// second cell of the first row sits one column to the right
			if spec.Columns > 1 && math.Abs(rects[1].X-(canvas.X+rects[0].W)) > 0.01 {
				t.Errorf("expected row-major order, cell 1 at x=%.2f", rects[1].X)
			}
		})
	}
}

func TestValidatePage_DefaultLayoutsAreClean(t *testing.T) {
	for _, o := range []Orientation{Portrait, Landscape} {
		g := DefaultGeometry(o)
		for _, spec := range Presets {
			page := Page{Number: 1, Entries: makeEntries(spec.Capacity())}
			if w := g.ValidatePage(page, spec); len(w) != 0 {
				t.Errorf("%s %s: unexpected warnings %+v", o, spec, w)
			}
		}
	}
}

func TestValidatePage_TooManyEntries(t *testing.T) {
	g := DefaultGeometry(Portrait)
	spec := MustParseSpec("2x2")

	warnings := g.ValidatePage(Page{Number: 3, Entries: makeEntries(5)}, spec)

	found := false
	for _, w := range warnings {
		if w.CellIndex == -1 && w.Severity == "error" && w.PageNumber == 3 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected overflow error, got %+v", warnings)
	}
}

func TestValidatePage_TinyCells(t *testing.T) {
	g := DefaultGeometry(Portrait)
	spec := Spec{Columns: 2, Rows: 40}

	warnings := g.ValidatePage(Page{Number: 1, Entries: makeEntries(1)}, spec)

	if len(warnings) == 0 {
		t.Fatal("expected a warning for cells too small for a caption")
	}
	if warnings[0].Severity != "warning" {
		t.Errorf("expected warning severity, got %s", warnings[0].Severity)
	}
}

func TestValidatePage_ZonesOverlap(t *testing.T) {
	g := DefaultGeometry(Landscape)
	g.HeaderHeightMM = 150
	g.FooterHeightMM = 60

	warnings := g.ValidatePage(Page{Number: 1}, MustParseSpec("1x1"))

	found := false
	for _, w := range warnings {
		if w.Message == "header, canvas and footer zones overlap" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected zone overlap error, got %+v", warnings)
	}
}

func TestRectsOverlap(t *testing.T) {
	tests := []struct {
		name string
		a, b Rect
		want bool
	}{
		{"disjoint", Rect{0, 0, 10, 10}, Rect{20, 0, 10, 10}, false},
		{"touching edges", Rect{0, 0, 10, 10}, Rect{10, 0, 10, 10}, false},
		{"overlapping", Rect{0, 0, 10, 10}, Rect{5, 5, 10, 10}, true},
		{"contained", Rect{0, 0, 10, 10}, Rect{2, 2, 2, 2}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rectsOverlap(tt.a, tt.b, 0.01); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestPhotoRect(t *testing.T) {
	g := DefaultGeometry(Portrait)
	cell := Rect{X: 10, Y: 40, W: 95, H: 60}

	photo := g.PhotoRect(cell)

	if photo.X != 12 || photo.Y != 42 {
		t.Errorf("unexpected origin (%.2f, %.2f)", photo.X, photo.Y)
	}
	if photo.W != 91 || photo.H != 46 {
		t.Errorf("unexpected size %.2fx%.2f", photo.W, photo.H)
	}
}
