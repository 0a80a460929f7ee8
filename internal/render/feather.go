package render

import (
	"image"
)

// FeatherMask softens the edges of an inpaint mask with a separable box blur
// of the given radius. The result has the same bounds as mask. A radius of
// zero or less returns an unblurred copy.
func FeatherMask(mask *image.Gray, radius int) *image.Gray {
	if mask == nil {
		return nil
	}
	if mask.Bounds().Empty() {
		return image.NewGray(mask.Bounds())
	}
	origin := mask.Bounds().Min
	zeroed := image.NewGray(mask.Bounds().Sub(origin))
	for y := 0; y < zeroed.Rect.Dy(); y++ {
		srcRow := mask.PixOffset(origin.X, origin.Y+y)
		copy(zeroed.Pix[y*zeroed.Stride:y*zeroed.Stride+zeroed.Rect.Dx()], mask.Pix[srcRow:srcRow+zeroed.Rect.Dx()])
	}
	blurred := blurGray(zeroed, radius)
	blurred.Rect = blurred.Rect.Add(origin)
	return blurred
}

// blurGray expects a zero-origin image.
func blurGray(src *image.Gray, radius int) *image.Gray {
	if radius <= 0 {
		out := image.NewGray(src.Bounds())
		copy(out.Pix, src.Pix)
		return out
	}
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	tmp := image.NewGray(bounds)
	dst := image.NewGray(bounds)

	prefix := make([]int, max(w, h)+1)
	for y := 0; y < h; y++ {
		rowStart := y * src.Stride
		tmpStart := y * tmp.Stride
		for x := 0; x < w; x++ {
			prefix[x+1] = prefix[x] + int(src.Pix[rowStart+x])
		}
		for x := 0; x < w; x++ {
			x0 := max(x-radius, 0)
			x1 := min(x+radius, w-1)
			tmp.Pix[tmpStart+x] = uint8((prefix[x1+1] - prefix[x0]) / (x1 - x0 + 1))
		}
	}

	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			prefix[y+1] = prefix[y] + int(tmp.Pix[y*tmp.Stride+x])
		}
		for y := 0; y < h; y++ {
			y0 := max(y-radius, 0)
			y1 := min(y+radius, h-1)
			dst.Pix[y*dst.Stride+x] = uint8((prefix[y1+1] - prefix[y0]) / (y1 - y0 + 1))
		}
	}

	return dst
}
