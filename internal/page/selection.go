package page

import "image"

// Selection is the page-level rectangle used to scope masked operations. A
// nil Selection means nothing is selected. The concrete variants are
// SelectionStart and SelectionProgress.
type Selection interface {
	isSelection()
}

// SelectionStart is an anchored drag that has not moved yet. It has no area.
type SelectionStart struct {
	SX, SY int
}

// SelectionProgress is an anchor plus the current end point. The end may lie
// on any side of the anchor.
type SelectionProgress struct {
	SX, SY int
	EX, EY int
}

func (SelectionStart) isSelection()    {}
func (SelectionProgress) isSelection() {}

// Rect returns the normalised rectangle spanned by the selection.
func (s SelectionProgress) Rect() image.Rectangle {
	return orderedRect(s.SX, s.SY, s.EX, s.EY)
}

// SelectionRect returns the usable rectangle for sel. Only a
// SelectionProgress with non-zero area is usable.
func SelectionRect(sel Selection) (image.Rectangle, bool) {
	p, ok := sel.(SelectionProgress)
	if !ok {
		return image.Rectangle{}, false
	}
	r := p.Rect()
	if r.Empty() {
		return r, false
	}
	return r, true
}

func orderedRect(x0, y0, x1, y1 int) image.Rectangle {
	return image.Rect(min(x0, x1), min(y0, y1), max(x0, x1), max(y0, y1))
}
