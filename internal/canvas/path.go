package canvas

import (
	"image"
	"math"

	"golang.org/x/image/vector"
)

// Point is a position in canvas pixel space.
type Point struct {
	X, Y float64
}

// Pt is shorthand for Point{x, y}.
func Pt(x, y float64) Point { return Point{X: x, Y: y} }

// Path is an ordered polyline. Closed paths are filled; open paths are
// stroked with round joins and caps at Width.
type Path struct {
	Points []Point
	Width  float64
	Closed bool
}

// Stroke returns an open path through pts with the given stroke width.
func Stroke(width float64, pts ...Point) Path {
	return Path{Points: pts, Width: width}
}

// Polygon returns a closed path through pts.
func Polygon(pts ...Point) Path {
	return Path{Points: pts, Closed: true}
}

// RectPath returns a closed path covering r.
func RectPath(r image.Rectangle) Path {
	return Polygon(
		Pt(float64(r.Min.X), float64(r.Min.Y)),
		Pt(float64(r.Max.X), float64(r.Min.Y)),
		Pt(float64(r.Max.X), float64(r.Max.Y)),
		Pt(float64(r.Min.X), float64(r.Max.Y)),
	)
}

// maxCoord keeps pixel coordinates well inside int and float32 range.
const maxCoord = 1 << 24

// maxDiscSteps caps the vertices of a round cap or join.
const maxDiscSteps = 256

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// valid reports whether every point and the width are finite and within
// maxCoord. Invalid paths cover nothing.
func (p Path) valid() bool {
	if !finite(p.Width) || math.Abs(p.Width) > maxCoord {
		return false
	}
	for _, pt := range p.Points {
		if !finite(pt.X) || !finite(pt.Y) || math.Abs(pt.X) > maxCoord || math.Abs(pt.Y) > maxCoord {
			return false
		}
	}
	return true
}

func (p Path) halfWidth() float64 {
	if p.Width <= 1 {
		return 0.5
	}
	return p.Width / 2
}

// Bounds returns the integer rectangle that can receive coverage from p. It
// is empty for paths with non-finite or out of range values.
func (p Path) Bounds() image.Rectangle {
	if len(p.Points) == 0 || !p.valid() {
		return image.Rectangle{}
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, pt := range p.Points {
		minX = math.Min(minX, pt.X)
		minY = math.Min(minY, pt.Y)
		maxX = math.Max(maxX, pt.X)
		maxY = math.Max(maxY, pt.Y)
	}
	pad := 0.0
	if !p.Closed {
		pad = p.halfWidth()
	}
	return image.Rect(
		int(math.Floor(minX-pad)),
		int(math.Floor(minY-pad)),
		int(math.Ceil(maxX+pad)),
		int(math.Ceil(maxY+pad)),
	)
}

// coverage rasterises p into an alpha mask covering the intersection of the
// path bounds with clip. The mask origin is the returned rectangle's Min.
func (p Path) coverage(clip image.Rectangle) (*image.Alpha, image.Rectangle) {
	r := p.Bounds().Intersect(clip)
	if r.Empty() {
		return nil, image.Rectangle{}
	}
	z := vector.NewRasterizer(r.Dx(), r.Dy())
	origin := Pt(float64(r.Min.X), float64(r.Min.Y))
	if p.Closed {
		if len(p.Points) < 3 {
			return nil, image.Rectangle{}
		}
		addPolygon(z, p.Points, origin)
	} else {
		p.addStroke(z, origin)
	}
	mask := image.NewAlpha(image.Rect(0, 0, r.Dx(), r.Dy()))
	z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})
	for _, a := range mask.Pix {
		if a != 0 {
			return mask, r
		}
	}
	return nil, image.Rectangle{}
}

// addStroke emits one quad per segment and one disc per vertex. Every
// polygon is wound the same way so overlaps accumulate instead of cancelling.
func (p Path) addStroke(z *vector.Rasterizer, origin Point) {
	hw := p.halfWidth()
	for i, pt := range p.Points {
		addPolygon(z, disc(pt, hw), origin)
		if i == 0 {
			continue
		}
		prev := p.Points[i-1]
		dx, dy := pt.X-prev.X, pt.Y-prev.Y
		length := math.Hypot(dx, dy)
		if length == 0 {
			continue
		}
		nx, ny := -dy/length*hw, dx/length*hw
		addPolygon(z, []Point{
			{prev.X + nx, prev.Y + ny},
			{pt.X + nx, pt.Y + ny},
			{pt.X - nx, pt.Y - ny},
			{prev.X - nx, prev.Y - ny},
		}, origin)
	}
}

func disc(c Point, r float64) []Point {
	steps := int(math.Ceil(math.Pi * r))
	steps = min(max(steps, 8), maxDiscSteps)
	pts := make([]Point, steps)
	for i := range pts {
		angle := 2 * math.Pi * float64(i) / float64(steps)
		pts[i] = Point{c.X + math.Cos(angle)*r, c.Y + math.Sin(angle)*r}
	}
	return pts
}

func addPolygon(z *vector.Rasterizer, pts []Point, origin Point) {
	if signedArea(pts) < 0 {
		rev := make([]Point, len(pts))
		for i, pt := range pts {
			rev[len(pts)-1-i] = pt
		}
		pts = rev
	}
	z.MoveTo(float32(pts[0].X-origin.X), float32(pts[0].Y-origin.Y))
	for _, pt := range pts[1:] {
		z.LineTo(float32(pt.X-origin.X), float32(pt.Y-origin.Y))
	}
	z.ClosePath()
}

func signedArea(pts []Point) float64 {
	var sum float64
	for i, a := range pts {
		b := pts[(i+1)%len(pts)]
		sum += a.X*b.Y - b.X*a.Y
	}
	return sum / 2
}
