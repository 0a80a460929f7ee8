package main

import (
	"fmt"
	"image"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/example/fooocanvas/internal/clipboard"
	"github.com/example/fooocanvas/internal/page"
	"github.com/example/fooocanvas/internal/script"
)

// pageSource says where a command's page comes from.
type pageSource struct {
	input         string
	script        string
	fromClipboard bool
}

var readClipboardFn = clipboard.ReadImage
var writeClipboardFn = clipboard.WriteImage

func (s pageSource) empty() bool {
	return s.input == "" && s.script == "" && !s.fromClipboard
}

// build loads the input image as the background and then runs the script.
func (s pageSource) build() (*page.Page, error) {
	if s.input != "" && s.fromClipboard {
		return nil, fmt.Errorf("-input and -from-clipboard cannot be combined")
	}
	var p *page.Page
	var base image.Image
	switch {
	case s.input != "":
		img, err := script.LoadImage(s.input)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", s.input, err)
		}
		base = img
	case s.fromClipboard:
		img, err := readClipboardFn()
		if err != nil {
			return nil, fmt.Errorf("read clipboard: %w", err)
		}
		base = img
	}
	if base != nil {
		b := base.Bounds()
		p = page.New(b.Dx(), b.Dy())
		if err := p.DrawImageOnLayer(0, base, 0, 0, b.Dx(), b.Dy()); err != nil {
			return nil, err
		}
	}
	if s.script == "" {
		if p == nil {
			return nil, fmt.Errorf("nothing to edit: pass -input, -from-clipboard or -script")
		}
		return p, nil
	}
	f, err := os.Open(s.script)
	if err != nil {
		return nil, fmt.Errorf("open script: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("error closing %q: %v", s.script, err)
		}
	}()
	in := script.New(p)
	in.Dir = filepath.Dir(s.script)
	if err := in.Run(f); err != nil {
		return nil, fmt.Errorf("%s: %w", s.script, err)
	}
	if in.Page() == nil {
		return nil, fmt.Errorf("%s: %w", s.script, script.ErrNoPage)
	}
	return in.Page(), nil
}

func savePNG(path string, img image.Image) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// outputPath picks the explicit path or a timestamped file in dir.
func outputPath(explicit, dir, prefix string) string {
	if explicit != "" {
		return explicit
	}
	name := fmt.Sprintf("%s-%s.png", prefix, time.Now().Format("20060102-150405"))
	if dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}

// parseRect reads "x0,y0,x1,y1".
func parseRect(s string) (image.Rectangle, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return image.Rectangle{}, fmt.Errorf("selection must be x0,y0,x1,y1, got %q", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return image.Rectangle{}, fmt.Errorf("invalid integer %q", p)
		}
		v[i] = n
	}
	r := image.Rect(v[0], v[1], v[2], v[3])
	if r.Empty() {
		return image.Rectangle{}, fmt.Errorf("selection %q is empty", s)
	}
	return r, nil
}
