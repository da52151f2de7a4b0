package imagepkg

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

var ErrInvalidColor = errors.New("invalid color")

var (
	// DefaultBackground is the dark neutral behind the grid.
	DefaultBackground = color.NRGBA{R: 0x18, G: 0x18, B: 0x1b, A: 0xff}
	// MutedCell fills cells whose image never decoded.
	MutedCell = color.NRGBA{R: 0x27, G: 0x27, B: 0x2a, A: 0xff}
	White     = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

// ParseColor accepts #rgb, #rrggbb and #rrggbbaa.
func ParseColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	switch len(hex) {
	case 3:
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]}) + "ff"
	case 6:
		hex += "ff"
	case 8:
	default:
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// ColorOrDefault parses s, or returns def when s is blank.
func ColorOrDefault(s string, def color.NRGBA) (color.NRGBA, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	return ParseColor(s)
}

// HexColor formats c as #rrggbb, or #rrggbbaa when not opaque.
func HexColor(c color.NRGBA) string {
	if c.A == 0xff {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}
