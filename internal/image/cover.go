package imagepkg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"k8s.io/klog/v2"
)

// CropQuality is the JPEG quality of every cropped data URI.
const CropQuality = 92

var ErrEmptyCrop = errors.New("crop rectangle does not intersect the image")

// coverRect is the largest rectangle of the given width/height ratio
// centered inside b.
func coverRect(b image.Rectangle, ratio float64) image.Rectangle {
	w, h := float64(b.Dx()), float64(b.Dy())
	sx, sy, sw, sh := 0.0, 0.0, w, h
	if w/h > ratio {
		sw = h * ratio
		sx = (w - sw) / 2
	} else {
		sh = w / ratio
		sy = (h - sh) / 2
	}
	r := image.Rect(
		int(math.Round(sx)), int(math.Round(sy)),
		int(math.Round(sx+sw)), int(math.Round(sy+sh)),
	)
	if r.Dx() < 1 {
		r.Max.X = r.Min.X + 1
	}
	if r.Dy() < 1 {
		r.Max.Y = r.Min.Y + 1
	}
	return r.Add(b.Min)
}

// CoverCropImage crops src to ratio, trimming equal margins off the longer
// side, and scales the result to exactly w x h.
func CoverCropImage(src image.Image, ratio float64, w, h int) *image.NRGBA {
	cropped := imaging.Crop(src, coverRect(src.Bounds(), ratio))
	if cropped.Bounds().Dx() == w && cropped.Bounds().Dy() == h {
		return cropped
	}
	return imaging.Resize(cropped, w, h, imaging.Lanczos)
}

// EncodeJPEGDataURI encodes img as a self-contained JPEG data URI.
func EncodeJPEGDataURI(img image.Image, quality int) (string, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return "", err
	}
	return EncodeDataURI("image/jpeg", buf.Bytes()), nil
}

// CoverCrop returns a JPEG data URI of sourceURL cover-cropped to ratio and
// sized w x h. If the source cannot be loaded or encoded, sourceURL is
// returned unchanged.
func CoverCrop(ctx context.Context, l Loader, sourceURL string, ratio float64, w, h int) string {
	if ratio <= 0 || w <= 0 || h <= 0 {
		klog.Warningf("cover crop %s: bad target %dx%d @ %v", ShortURL(sourceURL), w, h, ratio)
		return sourceURL
	}
	src, err := l.Load(ctx, sourceURL)
	if err != nil {
		klog.Warningf("cover crop %s: %v", ShortURL(sourceURL), err)
		return sourceURL
	}
	out, err := EncodeJPEGDataURI(CoverCropImage(src, ratio, w, h), CropQuality)
	if err != nil {
		klog.Warningf("cover crop %s: encode: %v", ShortURL(sourceURL), err)
		return sourceURL
	}
	return out
}

// CropRect cuts rect (source pixel coordinates, origin at the top-left of
// the decoded image) out of sourceURL and returns it as a JPEG data URI.
func CropRect(ctx context.Context, l Loader, sourceURL string, rect image.Rectangle) (string, error) {
	src, err := l.Load(ctx, sourceURL)
	if err != nil {
		return "", err
	}
	b := src.Bounds()
	r := rect.Add(b.Min).Intersect(b)
	if r.Empty() {
		return "", fmt.Errorf("%w: %v within %v", ErrEmptyCrop, rect, b.Size())
	}
	return EncodeJPEGDataURI(imaging.Crop(src, r), CropQuality)
}
