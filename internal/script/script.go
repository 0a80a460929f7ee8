// Package script runs line-oriented edit scripts against a page. Each line is
// one command; blank lines and lines starting with # are skipped.
//
//	size 640 480
//	draw red 4 10 10 200 120
//	select 0 0 320 240
package script

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // load accepts jpeg
	_ "image/png"  // load accepts png
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "golang.org/x/image/webp" // load accepts webp

	"github.com/example/fooocanvas/internal/canvas"
	"github.com/example/fooocanvas/internal/page"
)

// ErrNoPage is returned by drawing commands before size or load.
var ErrNoPage = errors.New("no page: start the script with size or load")

// LineError locates a failing command.
type LineError struct {
	Line int
	Text string
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %q: %v", e.Line, e.Text, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// Interpreter applies commands to a page. size replaces the page.
type Interpreter struct {
	page *page.Page
	// Dir resolves relative load paths.
	Dir string
}

// New returns an interpreter for p. p may be nil when the script creates
// its own page.
func New(p *page.Page) *Interpreter {
	return &Interpreter{page: p}
}

// Page returns the current page.
func (in *Interpreter) Page() *page.Page { return in.page }

// Run executes r against p and returns the resulting page.
func Run(p *page.Page, r io.Reader) (*page.Page, error) {
	in := New(p)
	err := in.Run(r)
	return in.page, err
}

// Run executes every line of r and stops at the first failure.
func (in *Interpreter) Run(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	n := 0
	for scanner.Scan() {
		n++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := in.Exec(line); err != nil {
			return &LineError{Line: n, Text: line, Err: err}
		}
	}
	return scanner.Err()
}

// Exec runs a single command line.
func (in *Interpreter) Exec(line string) error {
	args := strings.Fields(line)
	if len(args) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(args[0]), args[1:]
	switch cmd {
	case "size":
		v, err := expectInts(args, 2, "size")
		if err != nil {
			return err
		}
		if v[0] <= 0 || v[1] <= 0 {
			return fmt.Errorf("size must be positive, got %dx%d", v[0], v[1])
		}
		in.page = page.New(v[0], v[1])
		return nil
	case "load":
		return in.load(args)
	}

	if in.page == nil {
		return ErrNoPage
	}
	p := in.page
	switch cmd {
	case "layer":
		return in.layer(args)
	case "draw":
		if len(args) < 2 {
			return errors.New("draw requires COLOR WIDTH x y ...")
		}
		col, err := ParseColor(args[0])
		if err != nil {
			return err
		}
		path, err := strokeArgs(args[1:])
		if err != nil {
			return err
		}
		return p.Draw(path, col)
	case "fill":
		if len(args) < 1 {
			return errors.New("fill requires COLOR x y ...")
		}
		col, err := ParseColor(args[0])
		if err != nil {
			return err
		}
		pts, err := points(args[1:])
		if err != nil {
			return err
		}
		if len(pts) < 3 {
			return errors.New("fill requires at least 3 points")
		}
		return p.Draw(canvas.Polygon(pts...), col)
	case "erase":
		path, err := strokeArgs(args)
		if err != nil {
			return err
		}
		return p.Erase(path)
	case "recolor":
		if len(args) < 2 {
			return errors.New("recolor requires COLOR WIDTH x y ...")
		}
		col, err := ParseColor(args[0])
		if err != nil {
			return err
		}
		path, err := strokeArgs(args[1:])
		if err != nil {
			return err
		}
		return p.Recolor(path, col)
	case "grayscale", "greyscale":
		path, err := strokeArgs(args)
		if err != nil {
			return err
		}
		return p.Grayscale(path)
	case "label":
		if len(args) < 4 {
			return errors.New("label requires COLOR x y TEXT")
		}
		col, err := ParseColor(args[0])
		if err != nil {
			return err
		}
		v, err := expectInts(args[1:3], 2, "label")
		if err != nil {
			return err
		}
		return p.Label(v[0], v[1], strings.Join(args[3:], " "), col)
	case "undo":
		_, err := p.Undo()
		return err
	case "redo":
		_, err := p.Redo()
		return err
	case "reset":
		return p.Reset()
	case "select":
		return in.selection(args)
	case "rect":
		if len(args) != 5 {
			return errors.New("rect requires COLOR x0 y0 x1 y1")
		}
		col, err := ParseColor(args[0])
		if err != nil {
			return err
		}
		v, err := expectInts(args[1:], 4, "rect")
		if err != nil {
			return err
		}
		p.DrawRect(image.Rect(v[0], v[1], v[2], v[3]), col)
		return nil
	case "clear":
		v, err := expectInts(args, 4, "clear")
		if err != nil {
			return err
		}
		p.ClearRect(image.Rect(v[0], v[1], v[2], v[3]))
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (in *Interpreter) load(args []string) error {
	if len(args) != 1 && len(args) != 5 {
		return errors.New("load requires PATH [x y w h]")
	}
	path := args[0]
	if in.Dir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(in.Dir, path)
	}
	img, err := LoadImage(path)
	if err != nil {
		return err
	}
	b := img.Bounds()
	x, y, w, h := 0, 0, b.Dx(), b.Dy()
	if len(args) == 5 {
		v, err := expectInts(args[1:], 4, "load")
		if err != nil {
			return err
		}
		x, y, w, h = v[0], v[1], v[2], v[3]
	}
	if in.page == nil {
		in.page = page.New(b.Dx(), b.Dy())
	}
	return in.page.DrawImageOnLayer(in.page.ActiveIndex(), img, x, y, w, h)
}

func (in *Interpreter) layer(args []string) error {
	if len(args) < 2 {
		return errors.New("layer requires an operation and an argument")
	}
	p := in.page
	op := strings.ToLower(args[0])
	if op == "add" {
		p.AddLayer(strings.Join(args[1:], " "))
		return nil
	}
	idx, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid layer index %q", args[1])
	}
	switch op {
	case "select":
		return p.SetActive(idx)
	case "remove":
		return p.RemoveLayer(idx)
	}
	l, err := p.Layer(idx)
	if err != nil {
		return err
	}
	switch op {
	case "hide":
		l.Visible = false
	case "show":
		l.Visible = true
	case "lock":
		l.Locked = true
	case "unlock":
		l.Locked = false
	case "opacity":
		if len(args) != 3 {
			return errors.New("layer opacity requires INDEX VALUE")
		}
		v, err := parseFinite(args[2])
		if err != nil || v < 0 || v > 1 {
			return fmt.Errorf("opacity must be between 0 and 1, got %q", args[2])
		}
		l.Opacity = v
	default:
		return fmt.Errorf("unknown layer operation %q", op)
	}
	return nil
}

func (in *Interpreter) selection(args []string) error {
	p := in.page
	if len(args) == 0 {
		return errors.New("select requires down, drag, up, clear or x0 y0 x1 y1")
	}
	switch strings.ToLower(args[0]) {
	case "down":
		v, err := expectInts(args[1:], 2, "select down")
		if err != nil {
			return err
		}
		p.PointerDown(v[0], v[1])
	case "drag":
		v, err := expectInts(args[1:], 2, "select drag")
		if err != nil {
			return err
		}
		p.PointerDrag(v[0], v[1])
	case "up":
		p.PointerUp()
	case "clear":
		p.SetSelection(nil)
	default:
		v, err := expectInts(args, 4, "select")
		if err != nil {
			return err
		}
		p.SetSelection(page.SelectionProgress{SX: v[0], SY: v[1], EX: v[2], EY: v[3]})
	}
	return nil
}

// LoadImage decodes a png, jpeg or webp file.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(f)
	if cerr := f.Close(); cerr != nil {
		log.Printf("error closing %q: %v", path, cerr)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

func expectInts(args []string, n int, what string) ([]int, error) {
	if len(args) != n {
		return nil, fmt.Errorf("%s requires %d integer arguments", what, n)
	}
	vals := make([]int, n)
	for i, raw := range args {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", raw)
		}
		vals[i] = v
	}
	return vals, nil
}

func points(args []string) ([]canvas.Point, error) {
	if len(args)%2 != 0 {
		return nil, fmt.Errorf("coordinates come in x y pairs, got %d values", len(args))
	}
	pts := make([]canvas.Point, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		x, err := parseFinite(args[i])
		if err != nil {
			return nil, fmt.Errorf("invalid coordinate %q", args[i])
		}
		y, err := parseFinite(args[i+1])
		if err != nil {
			return nil, fmt.Errorf("invalid coordinate %q", args[i+1])
		}
		pts = append(pts, canvas.Pt(x, y))
	}
	return pts, nil
}

// parseFinite is strconv.ParseFloat without Inf and NaN.
func parseFinite(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q is not a finite number", s)
	}
	return v, nil
}

// strokeArgs parses WIDTH x y [x y ...].
func strokeArgs(args []string) (canvas.Path, error) {
	if len(args) < 3 {
		return canvas.Path{}, errors.New("a stroke needs WIDTH and at least one point")
	}
	width, err := parseFinite(args[0])
	if err != nil || width <= 0 {
		return canvas.Path{}, fmt.Errorf("invalid width %q", args[0])
	}
	pts, err := points(args[1:])
	if err != nil {
		return canvas.Path{}, err
	}
	return canvas.Stroke(width, pts...), nil
}
