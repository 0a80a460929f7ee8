// Package canvas implements a single drawable layer surface with a linear
// undo/redo history.
package canvas

import (
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// edit is one undoable mutation: the pixels of rect before and after it ran.
type edit struct {
	rect   image.Rectangle
	before *image.RGBA
	after  *image.RGBA
}

// Canvas is a raster surface plus its undo and redo stacks. It is not safe
// for concurrent use.
type Canvas struct {
	surface *image.RGBA
	undo    []edit
	redo    []edit
	limit   int // zero keeps every step
}

// Option modifies a Canvas during creation.
type Option func(*Canvas)

// WithHistoryLimit bounds the undo stack to n steps, dropping the oldest.
// Values below one keep every step, which is the default.
func WithHistoryLimit(n int) Option {
	return func(c *Canvas) {
		if n > 0 {
			c.limit = n
		}
	}
}

// WithImage seeds the surface with a copy of img scaled to the canvas size.
// The seeded pixels are the initial state and are not part of the history.
func WithImage(img image.Image) Option {
	return func(c *Canvas) {
		if img == nil {
			return
		}
		xdraw.CatmullRom.Scale(c.surface, c.surface.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	}
}

// New creates a transparent canvas of w×h pixels.
func New(w, h int, opts ...Option) *Canvas {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	c := &Canvas{
		surface: image.NewRGBA(image.Rect(0, 0, w, h)),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Bounds returns the surface bounds. The origin is always (0, 0).
func (c *Canvas) Bounds() image.Rectangle { return c.surface.Bounds() }

// CanUndo reports whether Undo would change the surface.
func (c *Canvas) CanUndo() bool { return len(c.undo) > 0 }

// CanRedo reports whether Redo would change the surface.
func (c *Canvas) CanRedo() bool { return len(c.redo) > 0 }

// Image returns a copy of the whole surface.
func (c *Canvas) Image() *image.RGBA {
	return cropImage(c.surface, c.surface.Bounds())
}

// ImageData returns a copy of the w×h rectangle at (x, y). Areas outside the
// surface are transparent.
func (c *Canvas) ImageData(x, y, w, h int) *image.RGBA {
	if w <= 0 || h <= 0 {
		return image.NewRGBA(image.Rectangle{})
	}
	return cropImage(c.surface, image.Rect(x, y, x+w, y+h))
}

// Draw composites col over the area covered by path.
func (c *Canvas) Draw(path Path, col color.Color) {
	mask, r := path.coverage(c.surface.Bounds())
	if mask == nil {
		return
	}
	c.apply(r, func() {
		draw.DrawMask(c.surface, r, image.NewUniform(col), image.Point{}, mask, image.Point{}, draw.Over)
	})
}

// Erase clears the area covered by path to transparent.
func (c *Canvas) Erase(path Path) {
	mask, r := path.coverage(c.surface.Bounds())
	if mask == nil {
		return
	}
	c.apply(r, func() {
		draw.DrawMask(c.surface, r, image.Transparent, image.Point{}, mask, image.Point{}, draw.Src)
	})
}

// Recolor replaces the colour of covered pixels with col while keeping each
// pixel's alpha, so painted shapes keep their outline.
func (c *Canvas) Recolor(path Path, col color.Color) {
	mask, r := path.coverage(c.surface.Bounds())
	if mask == nil {
		return
	}
	target := color.NRGBAModel.Convert(col).(color.NRGBA)
	c.apply(r, func() {
		recolorPixels(c.surface, r, mask, target)
	})
}

// Grayscale desaturates covered pixels in place.
func (c *Canvas) Grayscale(path Path) {
	mask, r := path.coverage(c.surface.Bounds())
	if mask == nil {
		return
	}
	c.apply(r, func() {
		grayscalePixels(c.surface, r, mask)
	})
}

// DrawImage scales img to w×h and composites it with its top-left corner at
// (x, y). Nothing happens when w or h is not positive.
func (c *Canvas) DrawImage(img image.Image, x, y, w, h int) {
	if img == nil || w <= 0 || h <= 0 {
		return
	}
	target := image.Rect(x, y, x+w, y+h)
	r := target.Intersect(c.surface.Bounds())
	if r.Empty() {
		return
	}
	scaled := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	c.apply(r, func() {
		draw.Draw(c.surface, r, scaled, r.Min.Sub(target.Min), draw.Over)
	})
}

// Label renders text with its top-left corner at (x, y) using the built-in
// 7x13 face.
func (c *Canvas) Label(x, y int, text string, col color.Color) {
	if text == "" {
		return
	}
	face := basicfont.Face7x13
	d := &font.Drawer{Face: face}
	width := d.MeasureString(text).Ceil()
	metrics := face.Metrics()
	height := metrics.Ascent.Ceil() + metrics.Descent.Ceil()
	r := image.Rect(x, y, x+width, y+height).Intersect(c.surface.Bounds())
	if r.Empty() {
		return
	}
	c.apply(r, func() {
		d.Dst = c.surface
		d.Src = image.NewUniform(col)
		d.Dot = fixed.P(x, y+metrics.Ascent.Ceil())
		d.DrawString(text)
	})
}

// Undo reverts the most recent operation. It reports whether anything
// changed.
func (c *Canvas) Undo() bool {
	if len(c.undo) == 0 {
		return false
	}
	e := c.undo[len(c.undo)-1]
	c.undo = c.undo[:len(c.undo)-1]
	draw.Draw(c.surface, e.rect, e.before, image.Point{}, draw.Src)
	c.redo = append(c.redo, e)
	return true
}

// Redo reapplies the most recently undone operation. It reports whether
// anything changed.
func (c *Canvas) Redo() bool {
	if len(c.redo) == 0 {
		return false
	}
	e := c.redo[len(c.redo)-1]
	c.redo = c.redo[:len(c.redo)-1]
	draw.Draw(c.surface, e.rect, e.after, image.Point{}, draw.Src)
	c.undo = append(c.undo, e)
	return true
}

// Reset clears the surface and drops both history stacks.
func (c *Canvas) Reset() {
	clear(c.surface.Pix)
	c.undo = nil
	c.redo = nil
}

// apply runs fn as a single history entry covering r.
func (c *Canvas) apply(r image.Rectangle, fn func()) {
	before := cropImage(c.surface, r)
	fn()
	after := cropImage(c.surface, r)
	c.undo = append(c.undo, edit{rect: r, before: before, after: after})
	if over := len(c.undo) - c.limit; c.limit > 0 && over > 0 {
		c.undo = append(c.undo[:0], c.undo[over:]...)
	}
	c.redo = nil
}
