package imagepkg

import (
	"errors"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	minQRSize = 64
	maxQRSize = 1024
)

var ErrEmptyQRText = errors.New("qr text is empty")

// ShareCode returns PNG bytes of a QR code pointing at link, so the grid can
// be opened on a phone. size is clamped to a sane range.
func ShareCode(link string, size int) ([]byte, error) {
	if link == "" {
		return nil, ErrEmptyQRText
	}
	size = max(minQRSize, min(size, maxQRSize))
	return qrcode.Encode(link, qrcode.Medium, size)
}
