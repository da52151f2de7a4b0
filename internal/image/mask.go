package imagepkg

import (
	"image"

	"golang.org/x/image/vector"
)

// kappa places cubic control points for a quarter circle.
const kappa = 0.5522847498

// roundedMask returns an anti-aliased coverage mask of a w x h rectangle
// with corners of radius r.
func roundedMask(w, h, r int) *image.Alpha {
	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	r = min(r, w/2, h/2)
	if r <= 0 {
		for i := range mask.Pix {
			mask.Pix[i] = 0xff
		}
		return mask
	}

	fw, fh, fr := float32(w), float32(h), float32(r)
	k := fr * kappa

	z := vector.NewRasterizer(w, h)
	z.MoveTo(fr, 0)
	z.LineTo(fw-fr, 0)
	z.CubeTo(fw-fr+k, 0, fw, fr-k, fw, fr)
	z.LineTo(fw, fh-fr)
	z.CubeTo(fw, fh-fr+k, fw-fr+k, fh, fw-fr, fh)
	z.LineTo(fr, fh)
	z.CubeTo(fr-k, fh, 0, fh-fr+k, 0, fh-fr)
	z.LineTo(0, fr)
	z.CubeTo(0, fr-k, fr-k, 0, fr, 0)
	z.ClosePath()
	z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})
	return mask
}
