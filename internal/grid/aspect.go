package grid

import (
	"errors"
	"fmt"
	"math"
)

// AspectRatio is one of the fixed cell shapes a profile grid supports.
type AspectRatio string

const (
	Square    AspectRatio = "1:1"
	Portrait  AspectRatio = "4:5"
	Landscape AspectRatio = "1.91:1"
)

var ErrUnknownAspectRatio = errors.New("unknown aspect ratio")

var ratios = map[AspectRatio]float64{
	Square:    1,
	Portrait:  4.0 / 5.0,
	Landscape: 1.91,
}

// AspectRatios lists the supported ratios in selector order.
func AspectRatios() []AspectRatio {
	return []AspectRatio{Square, Portrait, Landscape}
}

func ParseAspectRatio(s string) (AspectRatio, error) {
	r := AspectRatio(s)
	if _, ok := ratios[r]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAspectRatio, s)
	}
	return r, nil
}

// Value returns width/height. Unknown ratios fall back to square.
func (r AspectRatio) Value() float64 {
	if v, ok := ratios[r]; ok {
		return v
	}
	return 1
}

func (r AspectRatio) Valid() bool {
	_, ok := ratios[r]
	return ok
}

// CellHeight is the height of a cell of the given width at this ratio.
func (r AspectRatio) CellHeight(width int) int {
	return int(math.Round(float64(width) / r.Value()))
}

func (r AspectRatio) String() string {
	return string(r)
}
