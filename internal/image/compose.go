package imagepkg

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/youruser/instagrid/internal/grid"
	xdraw "golang.org/x/image/draw"
)

// Layout is the geometry of a profile grid in logical pixels.
type Layout struct {
	Columns    int
	CellWidth  int
	Padding    int
	Gap        int
	CellRadius int
}

// DefaultLayout matches the exported profile grid: three 220px columns
// with 16px padding and gaps and 8px rounded cells.
func DefaultLayout() Layout {
	return Layout{Columns: 3, CellWidth: 220, Padding: 16, Gap: 16, CellRadius: 8}
}

func (l Layout) normalized() Layout {
	d := DefaultLayout()
	if l.Columns <= 0 {
		l.Columns = d.Columns
	}
	if l.CellWidth <= 0 {
		l.CellWidth = d.CellWidth
	}
	if l.Padding < 0 {
		l.Padding = 0
	}
	if l.Gap < 0 {
		l.Gap = 0
	}
	if l.CellRadius < 0 {
		l.CellRadius = 0
	}
	return l
}

// Cell is one tile of a grid. Image stays nil until the cell's decode
// completes, and also when it failed (Err is then set).
type Cell struct {
	ID    string
	URL   string
	Rect  image.Rectangle
	Image image.Image
	Err   error
}

// Grid is a profile grid laid out off-screen, ready to be painted at any
// scale. Cells are in display order.
type Grid struct {
	Ratio       grid.AspectRatio
	Layout      Layout
	CellHeight  int
	Width       int
	Height      int
	Background  color.NRGBA
	Transparent bool
	Cells       []*Cell
}

// BuildGrid lays images (storage order) out in display order, newest
// first, with every cell sized by ratio. background may be blank for the
// default; it is ignored when transparent is set.
func BuildGrid(images []grid.Image, ratio grid.AspectRatio, layout Layout, background string, transparent bool) (*Grid, error) {
	bg, err := ColorOrDefault(background, DefaultBackground)
	if err != nil {
		return nil, err
	}
	layout = layout.normalized()

	g := &Grid{
		Ratio:       ratio,
		Layout:      layout,
		CellHeight:  ratio.CellHeight(layout.CellWidth),
		Background:  bg,
		Transparent: transparent,
	}

	cols := layout.Columns
	rows := (len(images) + cols - 1) / cols
	g.Width = 2*layout.Padding + cols*layout.CellWidth + (cols-1)*layout.Gap
	g.Height = 2 * layout.Padding
	if rows > 0 {
		g.Height += rows*g.CellHeight + (rows-1)*layout.Gap
	}

	for i, img := range grid.Reversed(images) {
		x := layout.Padding + (i%cols)*(layout.CellWidth+layout.Gap)
		y := layout.Padding + (i/cols)*(g.CellHeight+layout.Gap)
		g.Cells = append(g.Cells, &Cell{
			ID:   img.ID,
			URL:  img.URL,
			Rect: image.Rect(x, y, x+layout.CellWidth, y+g.CellHeight),
		})
	}
	return g, nil
}

// Size returns the pixel size of the grid painted at scale.
func (g *Grid) Size(scale int) image.Point {
	return image.Pt(g.Width*scale, g.Height*scale)
}

// CellRect returns the pixel rectangle of cell i painted at scale.
func (g *Grid) CellRect(i, scale int) image.Rectangle {
	r := g.Cells[i].Rect
	return image.Rect(r.Min.X*scale, r.Min.Y*scale, r.Max.X*scale, r.Max.Y*scale)
}

// Paint renders the grid at scale times its logical size. Cell images are
// cover-fitted into their cells; an image that already has the cell's
// pixel size is drawn as is.
func (g *Grid) Paint(scale int) *image.NRGBA {
	if scale < 1 {
		scale = 1
	}
	size := g.Size(scale)
	dst := image.NewNRGBA(image.Rect(0, 0, size.X, size.Y))
	if !g.Transparent {
		xdraw.Draw(dst, dst.Bounds(), image.NewUniform(g.Background), image.Point{}, xdraw.Src)
	}
	if len(g.Cells) == 0 {
		return dst
	}

	cw, ch := g.Layout.CellWidth*scale, g.CellHeight*scale
	mask := roundedMask(cw, ch, g.Layout.CellRadius*scale)
	placeholder := image.NewUniform(MutedCell)

	for i, c := range g.Cells {
		r := g.CellRect(i, scale)
		var tile image.Image = placeholder
		if c.Image != nil {
			tile = fitCover(c.Image, cw, ch)
		}
		sp := tile.Bounds().Min
		xdraw.DrawMask(dst, r, tile, sp, mask, image.Point{}, xdraw.Over)
	}
	return dst
}

func fitCover(img image.Image, w, h int) image.Image {
	if img.Bounds().Dx() == w && img.Bounds().Dy() == h {
		return img
	}
	return imaging.Fill(img, w, h, imaging.Center, imaging.Lanczos)
}
