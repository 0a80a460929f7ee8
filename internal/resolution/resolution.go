// Package resolution maps arbitrary canvas dimensions onto the fixed set of
// output sizes supported by the Fooocus SDXL pipeline.
package resolution

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidDimensions is returned when a width or height is not a positive
// finite number.
var ErrInvalidDimensions = errors.New("resolution: width and height must be positive finite numbers")

// Resolution is one supported output size together with its reduced aspect
// ratio. Aspect holds the tabulated ratio AW/AH and is not recomputed from W/H.
type Resolution struct {
	W      int     `json:"w"`
	H      int     `json:"h"`
	AW     int     `json:"aw"`
	AH     int     `json:"ah"`
	Aspect float64 `json:"aspect"`
}

var catalog = [...]Resolution{
	{W: 704, H: 1408, AW: 1, AH: 2, Aspect: 1.0 / 2},
	{W: 704, H: 1344, AW: 11, AH: 21, Aspect: 11.0 / 21},
	{W: 768, H: 1344, AW: 4, AH: 7, Aspect: 4.0 / 7},
	{W: 768, H: 1280, AW: 3, AH: 5, Aspect: 3.0 / 5},
	{W: 832, H: 1216, AW: 13, AH: 19, Aspect: 13.0 / 19},
	{W: 832, H: 1152, AW: 13, AH: 18, Aspect: 13.0 / 18},
	{W: 896, H: 1152, AW: 7, AH: 9, Aspect: 7.0 / 9},
	{W: 896, H: 1088, AW: 14, AH: 17, Aspect: 14.0 / 17},
	{W: 960, H: 1088, AW: 15, AH: 17, Aspect: 15.0 / 17},
	{W: 960, H: 1024, AW: 15, AH: 16, Aspect: 15.0 / 16},
	{W: 1024, H: 1024, AW: 1, AH: 1, Aspect: 1.0 / 1},
	{W: 1024, H: 960, AW: 16, AH: 15, Aspect: 16.0 / 15},
	{W: 1088, H: 960, AW: 17, AH: 15, Aspect: 17.0 / 15},
	{W: 1088, H: 896, AW: 17, AH: 14, Aspect: 17.0 / 14},
	{W: 1152, H: 896, AW: 9, AH: 7, Aspect: 9.0 / 7},
	{W: 1152, H: 832, AW: 18, AH: 13, Aspect: 18.0 / 13},
	{W: 1216, H: 832, AW: 19, AH: 13, Aspect: 19.0 / 13},
	{W: 1280, H: 768, AW: 5, AH: 3, Aspect: 5.0 / 3},
	{W: 1344, H: 768, AW: 7, AH: 4, Aspect: 7.0 / 4},
	{W: 1344, H: 704, AW: 21, AH: 11, Aspect: 21.0 / 11},
	{W: 1408, H: 704, AW: 2, AH: 1, Aspect: 2.0 / 1},
	{W: 1472, H: 704, AW: 23, AH: 11, Aspect: 23.0 / 11},
	{W: 1536, H: 640, AW: 12, AH: 5, Aspect: 12.0 / 5},
	{W: 1600, H: 640, AW: 5, AH: 2, Aspect: 5.0 / 2},
	{W: 1664, H: 576, AW: 26, AH: 9, Aspect: 26.0 / 9},
	{W: 1728, H: 576, AW: 3, AH: 1, Aspect: 3.0 / 1},
}

// Catalog returns a copy of the supported resolutions in catalog order.
func Catalog() []Resolution {
	out := make([]Resolution, len(catalog))
	copy(out, catalog[:])
	return out
}

// Best returns the catalog entry whose aspect ratio is closest to
// width/height. When two entries are equally close the earlier one wins.
func Best(width, height float64) (Resolution, error) {
	if !validDimension(width) || !validDimension(height) {
		return Resolution{}, fmt.Errorf("%w: got %vx%v", ErrInvalidDimensions, width, height)
	}
	selectionAspect := width / height

	best := catalog[0]
	bestDA := math.Abs(best.Aspect - selectionAspect)
	for _, r := range catalog[1:] {
		da := math.Abs(r.Aspect - selectionAspect)
		if da < bestDA {
			best = r
			bestDA = da
		}
	}
	return best, nil
}

// MustBest is like Best but panics on invalid dimensions.
func MustBest(width, height float64) Resolution {
	r, err := Best(width, height)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the catalog entry with exactly the given pixel size.
func Lookup(w, h int) (Resolution, bool) {
	for _, r := range catalog {
		if r.W == w && r.H == h {
			return r, true
		}
	}
	return Resolution{}, false
}

func validDimension(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Label renders the resolution the way the Fooocus aspect ratio radio
// expects it, markup included.
func (r Resolution) Label() string {
	return fmt.Sprintf("%d×%d <span style=\"color: grey;\"> ∣ %d:%d</span>", r.W, r.H, r.AW, r.AH)
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d (%d:%d)", r.W, r.H, r.AW, r.AH)
}
