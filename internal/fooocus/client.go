// Package fooocus drives the Fooocus web app's inpaint pipeline over its
// Gradio API and streams progress back to the caller.
package fooocus

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"iter"
	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/shouni/go-http-kit/pkg/httpkit"

	"github.com/example/fooocanvas/internal/datauri"
	"github.com/example/fooocanvas/internal/gradio"
	"github.com/example/fooocanvas/internal/resolution"
)

// Endpoint indexes of the stock Fooocus 2.5 UI.
const (
	DefaultFnGetTask  = 67
	DefaultFnGenerate = 68
)

// Output slots of the generate endpoint.
const (
	statusSlot  = 1
	gallerySlot = 3
)

// DefaultHost is where Fooocus listens out of the box.
const DefaultHost = "http://127.0.0.1:7865"

// ErrNoImage is yielded when the queue finishes without a result image.
var ErrNoImage = errors.New("generation finished without an image")

// InpaintInput is the masked-image value of the inpaint tab. Both fields
// are PNG data URIs.
type InpaintInput struct {
	Image string `json:"image"`
	Mask  string `json:"mask"`
}

// NewInpaint encodes img and mask for a request.
func NewInpaint(img image.Image, mask *image.Gray) (*InpaintInput, error) {
	if img == nil || mask == nil {
		return nil, errors.New("inpaint needs both an image and a mask")
	}
	imgURI, err := datauri.EncodePNG(img)
	if err != nil {
		return nil, fmt.Errorf("inpaint image: %w", err)
	}
	maskURI, err := datauri.EncodePNG(mask)
	if err != nil {
		return nil, fmt.Errorf("inpaint mask: %w", err)
	}
	return &InpaintInput{Image: imgURI, Mask: maskURI}, nil
}

// Request is one generate action.
type Request struct {
	Prompt     string
	Resolution resolution.Resolution
	Inpaint    *InpaintInput
	// Params overrides the client defaults when set. Prompt still wins.
	Params *Params
}

// NewRequest picks the catalog resolution closest to width x height.
func NewRequest(prompt string, width, height int, inpaint *InpaintInput) (Request, error) {
	res, err := resolution.Best(float64(width), float64(height))
	if err != nil {
		return Request{}, err
	}
	return Request{Prompt: prompt, Resolution: res, Inpaint: inpaint}, nil
}

// Update is one step of a generation. Exactly one of Status or Image is set.
type Update struct {
	Status string
	// Image is a data:image/png;base64 URI of the result.
	Image string
}

// Final reports whether u carries the result image.
func (u Update) Final() bool { return u.Image != "" }

// Decode returns the result image.
func (u Update) Decode() (image.Image, error) {
	if u.Image == "" {
		return nil, errors.New("update carries no image")
	}
	return datauri.Decode(u.Image)
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	HTTPClient httpkit.ClientInterface
	Dialer     *websocket.Dialer
	FnGetTask  int
	FnGenerate int
	// Defaults seeds every request. DefaultParams is used when nil.
	Defaults *Params
	Logger   *slog.Logger
}

// Client generates images on one Fooocus host.
type Client struct {
	opts     Options
	defaults Params
	log      *slog.Logger
}

// NewClient fills in defaults for zero option fields.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultHost
	}
	if opts.FnGetTask == 0 {
		opts.FnGetTask = DefaultFnGetTask
	}
	if opts.FnGenerate == 0 {
		opts.FnGenerate = DefaultFnGenerate
	}
	c := &Client{opts: opts, defaults: DefaultParams(), log: opts.Logger}
	if opts.Defaults != nil {
		c.defaults = *opts.Defaults
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c
}

// Defaults returns a copy of the client's base parameters.
func (c *Client) Defaults() Params { return c.defaults }

// Generate runs one inpaint job. It yields a status update for every
// visible progress text and finishes with the result image. Only the first
// gallery image is returned; the stream is abandoned after it. Any error is
// yielded once and ends the sequence.
func (c *Client) Generate(ctx context.Context, req Request) iter.Seq2[Update, error] {
	return func(yield func(Update, error) bool) {
		if err := c.generate(ctx, req, yield); err != nil {
			yield(Update{}, err)
		}
	}
}

func (c *Client) generate(ctx context.Context, req Request, yield func(Update, error) bool) error {
	p := c.defaults
	if req.Params != nil {
		p = *req.Params
	}
	p.Prompt = req.Prompt
	if err := p.Validate(); err != nil {
		return err
	}

	gc, err := gradio.New(gradio.Options{
		BaseURL:    c.opts.BaseURL,
		HTTPClient: c.opts.HTTPClient,
		Dialer:     c.opts.Dialer,
		Logger:     c.log,
	})
	if err != nil {
		return err
	}
	log := c.log.With("session", gc.SessionHash())
	log.Info("fooocus generate", "resolution", req.Resolution.String(), "inpaint", req.Inpaint != nil, "performance", p.Performance)

	if _, err := gc.Predict(ctx, c.opts.FnGetTask, p.Args(req.Resolution, req.Inpaint)); err != nil {
		return fmt.Errorf("get task: %w", err)
	}
	stream, err := gc.Submit(ctx, c.opts.FnGenerate, nil)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	defer func() {
		if err := stream.Close(); err != nil {
			log.Debug("close queue stream", "error", err)
		}
	}()

	for {
		msg, err := stream.Next()
		if errors.Is(err, io.EOF) {
			return ErrNoImage
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("generate: %w", err)
		}
		dm, ok := msg.(gradio.DataMessage)
		if !ok {
			if st, ok := msg.(gradio.StatusMessage); ok {
				log.Debug("queue status", "stage", st.Stage, "rank", st.Rank)
			}
			continue
		}
		if text, ok := statusText(dm); ok {
			if !yield(Update{Status: text}, nil) {
				return nil
			}
		}
		name, ok, err := galleryFile(dm)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		data, err := gc.FetchFile(ctx, name)
		if err != nil {
			return fmt.Errorf("fetch result: %w", err)
		}
		log.Info("fooocus result", "file", name, "bytes", len(data))
		yield(Update{Image: datauri.FromBytes(data, "image/png")}, nil)
		return nil
	}
}

func statusText(dm gradio.DataMessage) (string, bool) {
	if len(dm.Data) <= statusSlot {
		return "", false
	}
	slot, err := gradio.DecodeSlot(dm.Data[statusSlot])
	if err != nil || !slot.Visible {
		return "", false
	}
	text, ok := slot.Text()
	return text, ok && text != ""
}

func galleryFile(dm gradio.DataMessage) (string, bool, error) {
	if len(dm.Data) <= gallerySlot {
		return "", false, nil
	}
	slot, err := gradio.DecodeSlot(dm.Data[gallerySlot])
	if err != nil {
		return "", false, fmt.Errorf("gallery: %w", err)
	}
	if !slot.Visible {
		return "", false, nil
	}
	files, err := slot.Files()
	if err != nil {
		return "", false, fmt.Errorf("gallery: %w", err)
	}
	if len(files) == 0 || files[0].Name == "" {
		return "", false, fmt.Errorf("%w: gallery is empty", ErrNoImage)
	}
	return files[0].Name, true, nil
}
