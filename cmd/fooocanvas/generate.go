package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"os"
	"os/signal"
	"strings"

	"github.com/example/fooocanvas/internal/bridge"
	"github.com/example/fooocanvas/internal/fooocus"
	"github.com/example/fooocanvas/internal/page"
)

// newGeneratorFn is swapped out in tests.
var newGeneratorFn = func(opts fooocus.Options) bridge.Generator {
	return fooocus.NewClient(opts)
}

type generateCmd struct {
	*root
	fs          *flag.FlagSet
	src         pageSource
	prompt      string
	selection   string
	output      string
	feather     int
	seed        int64
	performance string
	preset      string
	toClipboard bool
}

func (g *generateCmd) FlagSet() *flag.FlagSet {
	return g.fs
}

func parseGenerateCmd(args []string, r *root) (*generateCmd, error) {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	cmd := &generateCmd{root: r, fs: fs}
	fs.Usage = usageFunc(cmd)
	defaults := r.config.Params()
	fs.StringVar(&cmd.prompt, "prompt", "", "text prompt for the inpainted region")
	fs.StringVar(&cmd.src.input, "input", "", "image loaded as the background layer")
	fs.StringVar(&cmd.src.script, "script", "", "edit script run before generating")
	fs.BoolVar(&cmd.src.fromClipboard, "from-clipboard", false, "load the background image from the clipboard")
	fs.StringVar(&cmd.selection, "select", "", "region to inpaint as x0,y0,x1,y1 (default: the script's selection)")
	fs.StringVar(&cmd.output, "output", "", "where to write the composite PNG (default: timestamped file in save_dir)")
	fs.IntVar(&cmd.feather, "feather", r.config.Generate.Feather, "mask feather radius in pixels")
	fs.Int64Var(&cmd.seed, "seed", defaults.Seed, "seed, -1 for random")
	fs.StringVar(&cmd.performance, "performance", defaults.Performance, "Quality, Speed, Extreme Speed, Lightning or Hyper-SD")
	fs.StringVar(&cmd.preset, "preset", r.config.Generate.Preset, "TOML file of generation parameter overrides")
	fs.BoolVar(&cmd.toClipboard, "to-clipboard", false, "copy the composite to the clipboard")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 0 || strings.TrimSpace(cmd.prompt) == "" {
		return nil, &UsageError{of: cmd}
	}
	if cmd.feather < 0 {
		return nil, fmt.Errorf("-feather must not be negative")
	}
	return cmd, nil
}

// params layers the preset and then any explicit flags over the config.
func (g *generateCmd) params() (fooocus.Params, error) {
	p, err := g.baseParams(g.preset)
	if err != nil {
		return p, err
	}
	g.fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "seed":
			p.Seed = g.seed
		case "performance":
			p.Performance = g.performance
		}
	})
	return p, p.Validate()
}

func (g *generateCmd) Run() error {
	params, err := g.params()
	if err != nil {
		return err
	}
	p, target, req, err := g.prepare()
	if err != nil {
		return err
	}
	req.Params = &params

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if t := g.config.Generate.Timeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	host := g.fooocusHost()
	fmt.Fprintf(os.Stderr, "generating %s on %s\n", req.Resolution, host)
	gen := newGeneratorFn(fooocus.Options{BaseURL: host, Defaults: &params})

	var result image.Image
	for u, err := range gen.Generate(ctx, req) {
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("generate: timed out after %s", g.config.Generate.Timeout)
			}
			return fmt.Errorf("generate: %w", err)
		}
		if !u.Final() {
			fmt.Fprintf(os.Stderr, "  %s\n", u.Status)
			continue
		}
		if result, err = u.Decode(); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	if result == nil {
		return fmt.Errorf("generate: %w", fooocus.ErrNoImage)
	}
	g.notifyGenerate(g.prompt, result)

	// inpaint results come back at page size; anything else fills the target
	if result.Bounds().Size() == p.Bounds().Size() {
		target = p.Bounds()
	}
	p.AddLayer("Generated")
	if err := p.DrawImageOnLayer(p.ActiveIndex(), result, target.Min.X, target.Min.Y, target.Dx(), target.Dy()); err != nil {
		return err
	}
	img := p.Composite()

	out := outputPath(g.output, g.config.SaveDir, "fooocanvas")
	if err := savePNG(out, img); err != nil {
		return fmt.Errorf("save %s: %w", out, err)
	}
	fmt.Fprintf(os.Stderr, "saved %s\n", out)
	g.notifySave(out)

	if g.toClipboard {
		if err := writeClipboardFn(img); err != nil {
			return fmt.Errorf("copy to clipboard: %w", err)
		}
		g.notifyCopy("result")
	}
	return nil
}

// prepare builds the page and the request. The target is where the result
// lands: the selection when there is one, the whole page otherwise.
func (g *generateCmd) prepare() (*page.Page, image.Rectangle, fooocus.Request, error) {
	if g.src.empty() {
		return nil, image.Rectangle{}, fooocus.Request{}, fmt.Errorf("generate needs -input, -from-clipboard or -script")
	}
	p, err := g.src.build()
	if err != nil {
		return nil, image.Rectangle{}, fooocus.Request{}, err
	}
	if g.selection != "" {
		r, err := parseRect(g.selection)
		if err != nil {
			return nil, image.Rectangle{}, fooocus.Request{}, err
		}
		p.SetSelection(page.SelectionProgress{SX: r.Min.X, SY: r.Min.Y, EX: r.Max.X, EY: r.Max.Y})
	}

	target := p.Bounds()
	var inpaint *fooocus.InpaintInput
	if sel, ok := p.SelectionRect(); ok {
		target = sel
		img, mask, err := p.Inpaint(g.feather)
		if err != nil {
			return nil, image.Rectangle{}, fooocus.Request{}, err
		}
		if inpaint, err = fooocus.NewInpaint(img, mask); err != nil {
			return nil, image.Rectangle{}, fooocus.Request{}, err
		}
	}
	req, err := fooocus.NewRequest(g.prompt, target.Dx(), target.Dy(), inpaint)
	if err != nil {
		return nil, image.Rectangle{}, fooocus.Request{}, err
	}
	return p, target, req, nil
}
