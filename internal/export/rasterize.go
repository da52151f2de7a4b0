package export

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	imagepkg "github.com/youruser/instagrid/internal/image"
)

// DefaultJPEGQuality matches the quality browsers use for canvas exports.
const DefaultJPEGQuality = 92

// Format is an export file format.
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
)

var (
	ErrUnknownFormat = errors.New("unknown export format")
	ErrRasterize     = errors.New("rasterize failed")
)

// ParseFormat accepts png, jpeg and jpg; blank means png.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png":
		return PNG, nil
	case "jpeg", "jpg":
		return JPEG, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

func (f Format) Ext() string {
	return string(f)
}

func (f Format) ContentType() string {
	if f == JPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// FileName names an export: instagrid-preview-<UTC ISO-8601 time with ':'
// and '.' as '-'>.<ext>.
func FileName(f Format, t time.Time) string {
	ts := t.UTC().Format("2006-01-02T15:04:05.000Z")
	ts = strings.NewReplacer(":", "-", ".", "-").Replace(ts)
	return "instagrid-preview-" + ts + "." + f.Ext()
}

// File is one finished export.
type File struct {
	Name        string
	ContentType string
	Width       int
	Height      int
	Data        []byte
}

// RasterOptions control a single capture.
type RasterOptions struct {
	Format      Format
	Background  color.NRGBA
	Transparent bool
	Scale       int
	JPEGQuality int
	// JPEGFill replaces a transparent background for JPEG, which has no
	// alpha channel. Unset means white.
	JPEGFill color.NRGBA
	Now      time.Time
}

// Rasterize paints g at opts.Scale and encodes it. Cells must already hold
// images cropped to the cell shape; Rasterize does not crop. Nothing is
// returned unless encoding fully succeeds.
func Rasterize(g *imagepkg.Grid, opts RasterOptions) (f *File, err error) {
	defer func() {
		if r := recover(); r != nil {
			f, err = nil, fmt.Errorf("%w: %v", ErrRasterize, r)
		}
	}()

	if opts.Scale < 1 {
		opts.Scale = 1
	}
	if opts.JPEGQuality <= 0 {
		opts.JPEGQuality = DefaultJPEGQuality
	}
	if opts.JPEGFill.A == 0 {
		opts.JPEGFill = imagepkg.White
	}
	g.Background, g.Transparent = opts.Background, opts.Transparent
	if opts.Format == JPEG {
		fill := flatten(opts.JPEGFill, imagepkg.White)
		g.Background, g.Transparent = flatten(opts.Background, fill), false
		if opts.Transparent {
			g.Background = fill
		}
	}

	img := g.Paint(opts.Scale)

	var buf bytes.Buffer
	switch opts.Format {
	case PNG:
		err = imaging.Encode(&buf, img, imaging.PNG)
	case JPEG:
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(opts.JPEGQuality))
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownFormat, opts.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRasterize, err)
	}

	return &File{
		Name:        FileName(opts.Format, opts.Now),
		ContentType: opts.Format.ContentType(),
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		Data:        buf.Bytes(),
	}, nil
}

// flatten composites c over the opaque color onto, since JPEG has no alpha.
func flatten(c, onto color.NRGBA) color.NRGBA {
	if c.A == 0xff {
		return c
	}
	a, na := uint32(c.A), uint32(0xff-c.A)
	mix := func(x, y uint8) uint8 {
		return uint8((uint32(x)*a + uint32(y)*na + 0x7f) / 0xff)
	}
	return color.NRGBA{R: mix(c.R, onto.R), G: mix(c.G, onto.G), B: mix(c.B, onto.B), A: 0xff}
}
