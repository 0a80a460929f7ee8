// Package page composes several canvas layers into one visible page and owns
// the page-level selection.
package page

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/example/fooocanvas/internal/canvas"
	"github.com/example/fooocanvas/internal/render"
)

var (
	// ErrLayerIndex is returned for a layer index outside the stack.
	ErrLayerIndex = errors.New("page: layer index out of range")
	// ErrLayerLocked is returned when drawing on a locked layer.
	ErrLayerLocked = errors.New("page: layer is locked")
	// ErrBackgroundLayer is returned when removing the background layer.
	ErrBackgroundLayer = errors.New("page: the background layer cannot be removed")
	// ErrNoSelection is returned when an operation needs a usable selection.
	ErrNoSelection = errors.New("page: no usable selection")
)

// Layer is one independently undoable surface within a Page.
type Layer struct {
	Name    string
	Visible bool
	Locked  bool
	Opacity float64
	Canvas  *canvas.Canvas
}

// Page is an ordered stack of layers, the active layer index, the current
// selection and the composited raster. Index 0 is the background.
type Page struct {
	width, height int
	layers        []*Layer
	active        int
	selection     Selection
	raster        *image.RGBA
	canvasOpts    []canvas.Option
}

// New creates a w×h page with a background layer and one drawing layer. The
// drawing layer is active.
func New(w, h int, opts ...canvas.Option) *Page {
	p := &Page{
		width:      w,
		height:     h,
		raster:     image.NewRGBA(image.Rect(0, 0, w, h)),
		canvasOpts: opts,
	}
	p.layers = append(p.layers, p.newLayer("Background"))
	p.AddLayer("Layer 1")
	return p
}

func (p *Page) newLayer(name string, extra ...canvas.Option) *Layer {
	opts := append(append([]canvas.Option{}, p.canvasOpts...), extra...)
	return &Layer{
		Name:    name,
		Visible: true,
		Opacity: 1,
		Canvas:  canvas.New(p.width, p.height, opts...),
	}
}

// Bounds returns the page rectangle.
func (p *Page) Bounds() image.Rectangle { return image.Rect(0, 0, p.width, p.height) }

// Layers returns the layer stack from bottom to top.
func (p *Page) Layers() []*Layer {
	out := make([]*Layer, len(p.layers))
	copy(out, p.layers)
	return out
}

// Layer returns the layer at i.
func (p *Page) Layer(i int) (*Layer, error) {
	if i < 0 || i >= len(p.layers) {
		return nil, fmt.Errorf("%w: %d", ErrLayerIndex, i)
	}
	return p.layers[i], nil
}

// AddLayer appends a transparent layer and makes it active.
func (p *Page) AddLayer(name string) *Layer {
	l := p.newLayer(name)
	p.layers = append(p.layers, l)
	p.active = len(p.layers) - 1
	return l
}

// AddImageLayer appends a layer seeded with img scaled to the page size and
// makes it active. The seeded pixels are the layer's initial state.
func (p *Page) AddImageLayer(name string, img image.Image) *Layer {
	l := p.newLayer(name, canvas.WithImage(img))
	p.layers = append(p.layers, l)
	p.active = len(p.layers) - 1
	return l
}

// RemoveLayer deletes layer i. The background layer stays.
func (p *Page) RemoveLayer(i int) error {
	if i < 0 || i >= len(p.layers) {
		return fmt.Errorf("%w: %d", ErrLayerIndex, i)
	}
	if i == 0 {
		return ErrBackgroundLayer
	}
	p.layers = append(p.layers[:i], p.layers[i+1:]...)
	if p.active > i {
		p.active--
	} else if p.active >= len(p.layers) {
		p.active = len(p.layers) - 1
	}
	return nil
}

// SetActive selects the layer receiving drawing operations.
func (p *Page) SetActive(i int) error {
	if i < 0 || i >= len(p.layers) {
		return fmt.Errorf("%w: %d", ErrLayerIndex, i)
	}
	p.active = i
	return nil
}

// ActiveIndex returns the index of the active layer.
func (p *Page) ActiveIndex() int { return p.active }

// ActiveLayer returns the layer receiving drawing operations.
func (p *Page) ActiveLayer() *Layer { return p.layers[p.active] }

// ActiveCanvas returns the canvas of the active layer.
func (p *Page) ActiveCanvas() *canvas.Canvas { return p.layers[p.active].Canvas }

func (p *Page) writable() (*canvas.Canvas, error) {
	l := p.layers[p.active]
	if l.Locked {
		return nil, fmt.Errorf("%w: %q", ErrLayerLocked, l.Name)
	}
	return l.Canvas, nil
}

// Draw paints path on the active layer.
func (p *Page) Draw(path canvas.Path, col color.Color) error {
	c, err := p.writable()
	if err != nil {
		return err
	}
	c.Draw(path, col)
	return nil
}

// Erase clears path on the active layer.
func (p *Page) Erase(path canvas.Path) error {
	c, err := p.writable()
	if err != nil {
		return err
	}
	c.Erase(path)
	return nil
}

// Recolor recolours path on the active layer.
func (p *Page) Recolor(path canvas.Path, col color.Color) error {
	c, err := p.writable()
	if err != nil {
		return err
	}
	c.Recolor(path, col)
	return nil
}

// Grayscale desaturates path on the active layer.
func (p *Page) Grayscale(path canvas.Path) error {
	c, err := p.writable()
	if err != nil {
		return err
	}
	c.Grayscale(path)
	return nil
}

// Label writes text on the active layer.
func (p *Page) Label(x, y int, text string, col color.Color) error {
	c, err := p.writable()
	if err != nil {
		return err
	}
	c.Label(x, y, text, col)
	return nil
}

// Undo reverts the active layer's most recent operation.
func (p *Page) Undo() (bool, error) {
	c, err := p.writable()
	if err != nil {
		return false, err
	}
	return c.Undo(), nil
}

// Redo reapplies the active layer's most recently undone operation.
func (p *Page) Redo() (bool, error) {
	c, err := p.writable()
	if err != nil {
		return false, err
	}
	return c.Redo(), nil
}

// Reset clears the active layer and its history.
func (p *Page) Reset() error {
	c, err := p.writable()
	if err != nil {
		return err
	}
	c.Reset()
	return nil
}

// DrawImageOnLayer composites img scaled to w×h at (x, y) on layer i. The
// operation is part of that layer's history.
func (p *Page) DrawImageOnLayer(i int, img image.Image, x, y, w, h int) error {
	l, err := p.Layer(i)
	if err != nil {
		return err
	}
	if l.Locked {
		return fmt.Errorf("%w: %q", ErrLayerLocked, l.Name)
	}
	l.Canvas.DrawImage(img, x, y, w, h)
	return nil
}

// Selection returns the current selection, or nil.
func (p *Page) Selection() Selection { return p.selection }

// SetSelection replaces the selection. Passing nil clears it.
func (p *Page) SetSelection(sel Selection) { p.selection = sel }

// PointerDown anchors a new selection at (x, y).
func (p *Page) PointerDown(x, y int) {
	p.selection = SelectionStart{SX: x, SY: y}
}

// PointerDrag moves the end of an in-progress selection to (x, y). It does
// nothing when no selection has been anchored.
func (p *Page) PointerDrag(x, y int) {
	switch s := p.selection.(type) {
	case SelectionStart:
		p.selection = SelectionProgress{SX: s.SX, SY: s.SY, EX: x, EY: y}
	case SelectionProgress:
		s.EX, s.EY = x, y
		p.selection = s
	}
}

// PointerUp ends a drag. A dragged selection is kept; an anchor that never
// moved is dropped.
func (p *Page) PointerUp() {
	if _, ok := p.selection.(SelectionStart); ok {
		p.selection = nil
	}
}

// SelectionRect returns the usable selection rectangle clipped to the page.
func (p *Page) SelectionRect() (image.Rectangle, bool) {
	r, ok := SelectionRect(p.selection)
	if !ok {
		return r, false
	}
	r = r.Intersect(p.Bounds())
	return r, !r.Empty()
}

// Composite flattens the visible layers into the page raster and returns it.
// Anything drawn directly on the raster since the last call is replaced.
func (p *Page) Composite() *image.RGBA {
	clear(p.raster.Pix)
	for _, l := range p.layers {
		// !(x > 0) also skips a NaN opacity
		if !l.Visible || !(l.Opacity > 0) {
			continue
		}
		src := l.Canvas.Image()
		if l.Opacity >= 1 {
			draw.Draw(p.raster, p.raster.Bounds(), src, image.Point{}, draw.Over)
			continue
		}
		alpha := uint8(l.Opacity*255 + 0.5)
		draw.DrawMask(p.raster, p.raster.Bounds(), src, image.Point{}, image.NewUniform(color.Alpha{A: alpha}), image.Point{}, draw.Over)
	}
	return p.raster
}

// Raster returns the page raster as last composited or edited.
func (p *Page) Raster() *image.RGBA { return p.raster }

// DrawRect fills rect on the page raster. It bypasses layer history.
func (p *Page) DrawRect(rect image.Rectangle, col color.Color) {
	draw.Draw(p.raster, rect.Canon().Intersect(p.raster.Bounds()), image.NewUniform(col), image.Point{}, draw.Src)
}

// ClearRect clears rect on the page raster to transparent. It bypasses layer
// history.
func (p *Page) ClearRect(rect image.Rectangle) {
	draw.Draw(p.raster, rect.Canon().Intersect(p.raster.Bounds()), image.Transparent, image.Point{}, draw.Src)
}

// DrawImage composites img scaled to w×h at (x, y) on the page raster. It
// bypasses layer history.
func (p *Page) DrawImage(img image.Image, x, y, w, h int) {
	if img == nil || w <= 0 || h <= 0 {
		return
	}
	target := image.Rect(x, y, x+w, y+h)
	r := target.Intersect(p.raster.Bounds())
	if r.Empty() {
		return
	}
	tmp := canvas.New(w, h)
	tmp.DrawImage(img, 0, 0, w, h)
	draw.Draw(p.raster, r, tmp.Image(), r.Min.Sub(target.Min), draw.Over)
}

// Inpaint returns the composited page and a mask that is white inside the
// selection and black elsewhere, feathered by the given radius. The page
// raster is recomposited before returning.
func (p *Page) Inpaint(feather int) (*image.RGBA, *image.Gray, error) {
	sel, ok := p.SelectionRect()
	if !ok {
		return nil, nil, ErrNoSelection
	}
	base := p.Composite()
	img := image.NewRGBA(base.Bounds())
	copy(img.Pix, base.Pix)

	p.DrawRect(p.Bounds(), color.Black)
	p.DrawRect(sel, color.White)
	mask := image.NewGray(p.Bounds())
	draw.Draw(mask, mask.Bounds(), p.raster, image.Point{}, draw.Src)
	p.Composite()

	return img, render.FeatherMask(mask, feather), nil
}
