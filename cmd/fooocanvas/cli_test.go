package main

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/fooocanvas/internal/bridge"
	"github.com/example/fooocanvas/internal/config"
	"github.com/example/fooocanvas/internal/datauri"
	"github.com/example/fooocanvas/internal/fooocus"
	"github.com/example/fooocanvas/internal/gradio"
	"github.com/example/fooocanvas/internal/script"
)

func testRoot() *root {
	return &root{program: "fooocanvas", config: config.New()}
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "edit.txt")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestParseResolutionCmd(t *testing.T) {
	cmd, err := parseResolutionCmd([]string{"1920", "1080"}, testRoot())
	require.NoError(t, err)
	var out bytes.Buffer
	cmd.out = &out
	require.NoError(t, cmd.Run())
	assert.Equal(t, "1344x768 (7:4)\n", out.String())

	_, err = parseResolutionCmd([]string{"wide", "1080"}, testRoot())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be numbers")

	_, err = parseResolutionCmd(nil, testRoot())
	var uerr *UsageError
	assert.ErrorAs(t, err, &uerr)
}

func TestResolutionRejectsZero(t *testing.T) {
	cmd, err := parseResolutionCmd([]string{"0", "10"}, testRoot())
	require.NoError(t, err)
	cmd.out = &bytes.Buffer{}
	assert.Error(t, cmd.Run())
}

func TestResolutionList(t *testing.T) {
	cmd, err := parseResolutionCmd([]string{"list"}, testRoot())
	require.NoError(t, err)
	var out bytes.Buffer
	cmd.out = &out
	require.NoError(t, cmd.Run())
	assert.Contains(t, out.String(), "1024 x 1024")
	assert.Contains(t, out.String(), "1344 x 768")
}

func TestParseEditRequiresDestination(t *testing.T) {
	_, err := parseEditCmd([]string{"-script", "edit.txt"}, testRoot())
	if err == nil {
		t.Fatalf("expected error")
	}
	if want := "-output or -to-clipboard"; !strings.Contains(err.Error(), want) {
		t.Fatalf("expected error to mention %q, got %v", want, err)
	}
}

func TestParseEditRequiresSource(t *testing.T) {
	_, err := parseEditCmd([]string{"-output", "out.png"}, testRoot())
	var uerr *UsageError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestEditWritesComposite(t *testing.T) {
	path := writeScript(t, "size 8 8\nfill red 0 0 8 0 8 8 0 8\nlayer add top\nfill blue 0 0 4 0 4 4 0 4\n")
	out := filepath.Join(t.TempDir(), "out.png")
	cmd, err := parseEditCmd([]string{"-script", path, "-output", out}, testRoot())
	require.NoError(t, err)
	require.NoError(t, cmd.Run())

	img, err := script.LoadImage(out)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 8), img.Bounds())
	assertRGBA(t, color.RGBA{0, 0, 255, 255}, img.At(1, 1))
	assertRGBA(t, color.RGBA{255, 0, 0, 255}, img.At(6, 6))
}

func TestEditScriptErrorCarriesLine(t *testing.T) {
	path := writeScript(t, "size 8 8\nbogus\n")
	cmd, err := parseEditCmd([]string{"-script", path, "-output", filepath.Join(t.TempDir(), "x.png")}, testRoot())
	require.NoError(t, err)
	err = cmd.Run()
	var lerr *script.LineError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, 2, lerr.Line)
}

func TestEditFromClipboardError(t *testing.T) {
	original := readClipboardFn
	sentinel := errors.New("no display")
	readClipboardFn = func() (image.Image, error) { return nil, sentinel }
	t.Cleanup(func() { readClipboardFn = original })

	cmd, err := parseEditCmd([]string{"-from-clipboard", "-output", "unused.png"}, testRoot())
	require.NoError(t, err)
	err = cmd.Run()
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if want := "read clipboard"; !strings.Contains(err.Error(), want) {
		t.Fatalf("expected error to contain %q, got %v", want, err)
	}
}

func TestParseGenerateRequiresPrompt(t *testing.T) {
	_, err := parseGenerateCmd([]string{"-input", "in.png"}, testRoot())
	var uerr *UsageError
	assert.ErrorAs(t, err, &uerr)

	_, err = parseGenerateCmd([]string{"-prompt", "fox", "-feather", "-1"}, testRoot())
	assert.ErrorContains(t, err, "-feather")
}

func TestGenerateRejectsBadPerformance(t *testing.T) {
	cmd, err := parseGenerateCmd([]string{"-prompt", "fox", "-script", "x", "-performance", "Turbo"}, testRoot())
	require.NoError(t, err)
	assert.ErrorIs(t, cmd.Run(), fooocus.ErrInvalidParams)
}

func TestParseRect(t *testing.T) {
	r, err := parseRect("30, 15,10,5")
	require.NoError(t, err)
	assert.Equal(t, image.Rect(10, 5, 30, 15), r)

	for _, s := range []string{"1,2,3", "a,b,c,d", "5,5,5,9"} {
		_, err := parseRect(s)
		assert.Error(t, err, s)
	}
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, "x.png", outputPath("x.png", "/tmp", "p"))
	got := outputPath("", "/tmp/shots", "p")
	assert.True(t, strings.HasPrefix(got, "/tmp/shots/p-"), got)
	assert.True(t, strings.HasSuffix(got, ".png"), got)
}

type stubGenerator struct {
	req    fooocus.Request
	result image.Image
	err    error
}

func (s *stubGenerator) Generate(_ context.Context, req fooocus.Request) iter.Seq2[fooocus.Update, error] {
	s.req = req
	return func(yield func(fooocus.Update, error) bool) {
		if s.err != nil {
			yield(fooocus.Update{}, s.err)
			return
		}
		if !yield(fooocus.Update{Status: "Sampling step 1/30"}, nil) {
			return
		}
		uri, err := datauri.EncodePNG(s.result)
		if err != nil {
			yield(fooocus.Update{}, err)
			return
		}
		yield(fooocus.Update{Image: uri}, nil)
	}
}

func stubGenerate(t *testing.T, g *stubGenerator) {
	t.Helper()
	original := newGeneratorFn
	newGeneratorFn = func(fooocus.Options) bridge.Generator { return g }
	t.Cleanup(func() { newGeneratorFn = original })
}

func uniform(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
	return img
}

func TestGenerateInpaintsSelection(t *testing.T) {
	g := &stubGenerator{result: uniform(8, 4, color.RGBA{0, 0, 255, 255})}
	stubGenerate(t, g)

	path := writeScript(t, "size 40 20\nfill red 0 0 40 0 40 20 0 20\nselect 10 5 30 15\n")
	out := filepath.Join(t.TempDir(), "gen.png")
	cmd, err := parseGenerateCmd([]string{"-prompt", "blue sky", "-script", path, "-output", out, "-seed", "7"}, testRoot())
	require.NoError(t, err)
	require.NoError(t, cmd.Run())

	assert.Equal(t, "blue sky", g.req.Prompt)
	require.NotNil(t, g.req.Inpaint)
	require.NotNil(t, g.req.Params)
	assert.EqualValues(t, 7, g.req.Params.Seed)
	assert.Equal(t, 1408, g.req.Resolution.W)
	assert.Equal(t, 704, g.req.Resolution.H)

	img, err := script.LoadImage(out)
	require.NoError(t, err)
	assertRGBA(t, color.RGBA{0, 0, 255, 255}, img.At(20, 10))
	assertRGBA(t, color.RGBA{255, 0, 0, 255}, img.At(2, 2))
	assertRGBA(t, color.RGBA{255, 0, 0, 255}, img.At(35, 18))
}

func TestGenerateWholePageWithoutSelection(t *testing.T) {
	g := &stubGenerator{result: uniform(16, 16, color.RGBA{0, 255, 0, 255})}
	stubGenerate(t, g)

	path := writeScript(t, "size 16 16\n")
	out := filepath.Join(t.TempDir(), "gen.png")
	cmd, err := parseGenerateCmd([]string{"-prompt", "grass", "-script", path, "-output", out}, testRoot())
	require.NoError(t, err)
	require.NoError(t, cmd.Run())

	assert.Nil(t, g.req.Inpaint)
	assert.Equal(t, 1024, g.req.Resolution.W)
	img, err := script.LoadImage(out)
	require.NoError(t, err)
	assertRGBA(t, color.RGBA{0, 255, 0, 255}, img.At(8, 8))
}

func TestGenerateWrapsError(t *testing.T) {
	sentinel := &gradio.AppError{Message: "CUDA out of memory"}
	stubGenerate(t, &stubGenerator{err: sentinel})

	path := writeScript(t, "size 16 16\n")
	cmd, err := parseGenerateCmd([]string{"-prompt", "fox", "-script", path, "-output", filepath.Join(t.TempDir(), "x.png")}, testRoot())
	require.NoError(t, err)
	err = cmd.Run()
	var appErr *gradio.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, err.Error(), "generate:")
}

func TestGenerateNeedsSource(t *testing.T) {
	cmd, err := parseGenerateCmd([]string{"-prompt", "fox"}, testRoot())
	require.NoError(t, err)
	assert.ErrorContains(t, cmd.Run(), "needs -input")
}

func TestGenerateCopiesToClipboard(t *testing.T) {
	stubGenerate(t, &stubGenerator{result: uniform(4, 4, color.RGBA{0, 0, 0, 255})})
	original := writeClipboardFn
	var copied image.Image
	writeClipboardFn = func(img image.Image) error { copied = img; return nil }
	t.Cleanup(func() { writeClipboardFn = original })

	path := writeScript(t, "size 4 4\n")
	cmd, err := parseGenerateCmd([]string{"-prompt", "night", "-script", path, "-output", filepath.Join(t.TempDir(), "x.png"), "-to-clipboard"}, testRoot())
	require.NoError(t, err)
	require.NoError(t, cmd.Run())
	require.NotNil(t, copied)
	assert.Equal(t, image.Rect(0, 0, 4, 4), copied.Bounds())
}

func TestServeBuildsRouter(t *testing.T) {
	stubGenerate(t, &stubGenerator{})
	cmd, err := parseServeCmd([]string{"-addr", "127.0.0.1:0"}, testRoot())
	require.NoError(t, err)
	srv, err := cmd.server()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:0", srv.Addr)
	assert.NotNil(t, srv.Handler)
}

func TestUsageRendersFlags(t *testing.T) {
	cmd, err := parseGenerateCmd([]string{"-prompt", "x"}, testRoot())
	require.NoError(t, err)
	help := (&UsageError{of: cmd}).Error()
	assert.Contains(t, help, "fooocanvas -prompt TEXT")
	assert.Contains(t, help, "-feather")
}

func assertRGBA(t *testing.T, want color.RGBA, got color.Color) {
	t.Helper()
	r, g, b, a := got.RGBA()
	assert.Equal(t, want, color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), uint8(a >> 8)})
}

func TestGeneratePresetThenFlags(t *testing.T) {
	g := &stubGenerator{result: uniform(4, 4, color.RGBA{0, 0, 0, 255})}
	stubGenerate(t, g)

	dir := t.TempDir()
	preset := filepath.Join(dir, "fast.toml")
	require.NoError(t, os.WriteFile(preset, []byte("performance = \"Speed\"\nseed = 5\nsharpness = 3.5\n"), 0o644))
	path := writeScript(t, "size 4 4\n")
	args := []string{"-prompt", "x", "-script", path, "-output", filepath.Join(dir, "out.png"), "-preset", preset, "-seed", "9"}
	cmd, err := parseGenerateCmd(args, testRoot())
	require.NoError(t, err)
	require.NoError(t, cmd.Run())

	require.NotNil(t, g.req.Params)
	assert.Equal(t, fooocus.PerformanceSpeed, g.req.Params.Performance)
	assert.Equal(t, 3.5, g.req.Params.Sharpness)
	assert.EqualValues(t, 9, g.req.Params.Seed)
}

func TestServeRejectsBadPreset(t *testing.T) {
	preset := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(preset, []byte("performance = \"Turbo\"\n"), 0o644))
	cmd, err := parseServeCmd([]string{"-preset", preset}, testRoot())
	require.NoError(t, err)
	_, err = cmd.server()
	assert.ErrorIs(t, err, fooocus.ErrInvalidParams)
}
