package imagepkg

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/youruser/instagrid/internal/grid"
)

func abcImages() []grid.Image {
	return []grid.Image{{ID: "A", URL: "a"}, {ID: "B", URL: "b"}, {ID: "C", URL: "c"}}
}

func TestBuildGridLayout(t *testing.T) {
	tests := []struct {
		name       string
		n          int
		ratio      grid.AspectRatio
		cellHeight int
		height     int
	}{
		{name: "one row portrait", n: 3, ratio: grid.Portrait, cellHeight: 275, height: 32 + 275},
		{name: "two rows square", n: 4, ratio: grid.Square, cellHeight: 220, height: 32 + 2*220 + 16},
		{name: "landscape partial row", n: 1, ratio: grid.Landscape, cellHeight: 115, height: 32 + 115},
		{name: "empty", n: 0, ratio: grid.Square, cellHeight: 220, height: 32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var imgs []grid.Image
			for i := 0; i < tt.n; i++ {
				imgs = append(imgs, grid.Image{ID: string(rune('A' + i)), URL: "u"})
			}
			g, err := BuildGrid(imgs, tt.ratio, DefaultLayout(), "", false)
			if err != nil {
				t.Fatalf("BuildGrid: %v", err)
			}
			if g.Width != 724 {
				t.Errorf("Expected width 724, got %d", g.Width)
			}
			if g.CellHeight != tt.cellHeight {
				t.Errorf("Expected cell height %d, got %d", tt.cellHeight, g.CellHeight)
			}
			if g.Height != tt.height {
				t.Errorf("Expected height %d, got %d", tt.height, g.Height)
			}
			for _, c := range g.Cells {
				if c.Rect.Dx() != 220 || c.Rect.Dy() != tt.cellHeight {
					t.Errorf("cell %s has size %v", c.ID, c.Rect.Size())
				}
			}
		})
	}
}

func TestBuildGridReversesOrder(t *testing.T) {
	g, err := BuildGrid(abcImages(), grid.Portrait, DefaultLayout(), "#18181b", false)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"C", "B", "A"}
	for i, c := range g.Cells {
		if c.ID != want[i] {
			t.Errorf("cell %d: Expected %s, got %s", i, want[i], c.ID)
		}
	}
	if g.Cells[0].Rect.Min != image.Pt(16, 16) || g.Cells[2].Rect.Min != image.Pt(16+2*236, 16) {
		t.Errorf("unexpected cell positions %v, %v", g.Cells[0].Rect, g.Cells[2].Rect)
	}
}

func TestBuildGridRejectsBadColor(t *testing.T) {
	if _, err := BuildGrid(abcImages(), grid.Square, DefaultLayout(), "not-a-color", false); !errors.Is(err, ErrInvalidColor) {
		t.Errorf("Expected ErrInvalidColor, got %v", err)
	}
}

func TestPaintAtThreeTimes(t *testing.T) {
	g, err := BuildGrid(abcImages(), grid.Portrait, DefaultLayout(), "#18181b", false)
	if err != nil {
		t.Fatal(err)
	}
	colors := map[string]color.NRGBA{"A": red, "B": green, "C": blue}
	for _, c := range g.Cells {
		c.Image = solid(660, 825, colors[c.ID])
	}

	out := g.Paint(3)
	if out.Bounds().Size() != image.Pt(2172, 921) {
		t.Fatalf("Expected 2172x921, got %v", out.Bounds().Size())
	}
	for i, c := range g.Cells {
		r := g.CellRect(i, 3)
		if r.Dx() != 660 || r.Dy() != 825 {
			t.Errorf("cell %s region %v", c.ID, r.Size())
		}
		mid := image.Pt((r.Min.X+r.Max.X)/2, (r.Min.Y+r.Max.Y)/2)
		if got := out.At(mid.X, mid.Y); !near(got, colors[c.ID], 0) {
			t.Errorf("cell %s center = %v", c.ID, got)
		}
		if got := out.At(r.Min.X, r.Min.Y); !near(got, DefaultBackground, 0) {
			t.Errorf("cell %s corner should be rounded off, got %v", c.ID, got)
		}
	}
	if got := out.At(0, 0); !near(got, DefaultBackground, 0) {
		t.Errorf("background = %v", got)
	}
}

func TestPaintTransparentAndPlaceholders(t *testing.T) {
	g, err := BuildGrid(abcImages(), grid.Square, DefaultLayout(), "#ffffff", true)
	if err != nil {
		t.Fatal(err)
	}
	g.Cells[0].Image = solid(50, 80, green)
	g.Cells[1].Err = errors.New("decode failed")

	out := g.Paint(1)
	if _, _, _, a := out.At(0, 0).RGBA(); a != 0 {
		t.Errorf("Expected transparent background, alpha %d", a)
	}
	center := func(i int) image.Point {
		r := g.CellRect(i, 1)
		return image.Pt((r.Min.X+r.Max.X)/2, (r.Min.Y+r.Max.Y)/2)
	}
	if p := center(0); !near(out.At(p.X, p.Y), green, 2) {
		t.Errorf("cover-fitted cell = %v", out.At(p.X, p.Y))
	}
	for _, i := range []int{1, 2} {
		if p := center(i); !near(out.At(p.X, p.Y), MutedCell, 0) {
			t.Errorf("cell %d placeholder = %v", i, out.At(p.X, p.Y))
		}
	}
}

func TestRoundedMask(t *testing.T) {
	m := roundedMask(40, 30, 8)
	if m.AlphaAt(0, 0).A != 0 {
		t.Errorf("corner should be empty, got %d", m.AlphaAt(0, 0).A)
	}
	if m.AlphaAt(20, 15).A != 0xff {
		t.Errorf("center should be covered, got %d", m.AlphaAt(20, 15).A)
	}
	if m.AlphaAt(20, 0).A < 0xf0 {
		t.Errorf("top edge should be covered, got %d", m.AlphaAt(20, 0).A)
	}
	if square := roundedMask(4, 4, 0); square.AlphaAt(0, 0).A != 0xff {
		t.Error("radius 0 should cover every pixel")
	}
}
