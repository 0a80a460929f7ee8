package canvas

import (
	"image"
	"image/color"
	"image/draw"
)

// cropImage returns a copy of rect from img with a zero origin. Parts of rect
// outside img are left transparent.
func cropImage(img *image.RGBA, rect image.Rectangle) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	src := rect.Intersect(img.Bounds())
	if !src.Empty() {
		draw.Draw(out, src.Sub(rect.Min), img, src.Min, draw.Src)
	}
	return out
}

// lerp8 blends a towards b by m/255.
func lerp8(a, b, m uint8) uint8 {
	return uint8((uint32(a)*(255-uint32(m)) + uint32(b)*uint32(m) + 127) / 255)
}

func recolorPixels(img *image.RGBA, r image.Rectangle, mask *image.Alpha, col color.NRGBA) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m := mask.AlphaAt(x-r.Min.X, y-r.Min.Y).A
			if m == 0 {
				continue
			}
			i := img.PixOffset(x, y)
			p := img.Pix[i : i+4 : i+4]
			a := uint32(p[3])
			if a == 0 {
				continue
			}
			nr := uint8((uint32(col.R)*a + 127) / 255)
			ng := uint8((uint32(col.G)*a + 127) / 255)
			nb := uint8((uint32(col.B)*a + 127) / 255)
			p[0] = lerp8(p[0], nr, m)
			p[1] = lerp8(p[1], ng, m)
			p[2] = lerp8(p[2], nb, m)
		}
	}
}

// grayscalePixels uses Rec. 601 luma. Premultiplied channels stay valid
// because luma of premultiplied values never exceeds alpha.
func grayscalePixels(img *image.RGBA, r image.Rectangle, mask *image.Alpha) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m := mask.AlphaAt(x-r.Min.X, y-r.Min.Y).A
			if m == 0 {
				continue
			}
			i := img.PixOffset(x, y)
			p := img.Pix[i : i+4 : i+4]
			lum := uint8((299*uint32(p[0]) + 587*uint32(p[1]) + 114*uint32(p[2]) + 500) / 1000)
			p[0] = lerp8(p[0], lum, m)
			p[1] = lerp8(p[1], lum, m)
			p[2] = lerp8(p[2], lum, m)
		}
	}
}
