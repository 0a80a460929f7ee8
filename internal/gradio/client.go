// Package gradio is a minimal client for Gradio 3.x apps. It covers the
// predict endpoint, the websocket queue and file downloads.
package gradio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shouni/go-http-kit/pkg/httpkit"
)

// DefaultTimeout bounds one predict call or file download.
const DefaultTimeout = time.Minute

// Options configures a Client.
type Options struct {
	// BaseURL is the app root, for example http://127.0.0.1:7865.
	BaseURL string
	// HTTPClient defaults to an httpkit client with retries off and network
	// validation skipped, since the app usually listens on loopback.
	HTTPClient httpkit.ClientInterface
	// Timeout applies to the default HTTPClient. Zero means DefaultTimeout.
	Timeout time.Duration
	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer
	// SessionHash is generated when empty.
	SessionHash string
	Logger      *slog.Logger
}

// Client talks to one Gradio app under a single session hash.
type Client struct {
	base    *url.URL
	http    httpkit.ClientInterface
	dialer  *websocket.Dialer
	session string
	log     *slog.Logger
}

// HTTPError reports a response the app refused. Server errors (5xx) come
// back as the transport's own error.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
	// Err is the underlying failure, if any.
	Err error
}

func (e *HTTPError) Unwrap() error { return e.Err }

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// New validates opts and returns a Client.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("gradio: base url is required")
	}
	u, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("gradio: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("gradio: unsupported scheme %q", u.Scheme)
	}
	c := &Client{
		base:    u,
		http:    opts.HTTPClient,
		dialer:  opts.Dialer,
		session: opts.SessionHash,
		log:     opts.Logger,
	}
	if c.http == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		// one attempt per call; a failed generation is reported, never replayed
		c.http = httpkit.New(timeout,
			httpkit.WithMaxRetries(0),
			httpkit.WithSkipNetworkValidation(true),
		)
	}
	if c.dialer == nil {
		c.dialer = websocket.DefaultDialer
	}
	if c.session == "" {
		c.session = strings.ReplaceAll(uuid.NewString(), "-", "")[:11]
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	c.log = c.log.With("session", c.session)
	return c, nil
}

// SessionHash returns the hash sent with every call.
func (c *Client) SessionHash() string { return c.session }

func (c *Client) endpoint(path string) string {
	return c.base.String() + path
}

type predictRequest struct {
	Data        []any  `json:"data"`
	FnIndex     int    `json:"fn_index"`
	SessionHash string `json:"session_hash"`
	EventData   any    `json:"event_data"`
}

// PredictResult is the body returned by /run/predict.
type PredictResult struct {
	Data         []json.RawMessage `json:"data"`
	IsGenerating bool              `json:"is_generating"`
	Duration     float64           `json:"duration"`
}

// Predict calls fnIndex synchronously.
func (c *Client) Predict(ctx context.Context, fnIndex int, data []any) (*PredictResult, error) {
	if data == nil {
		data = []any{}
	}
	endpoint := c.endpoint("/run/predict")
	c.log.Debug("gradio predict", "fn_index", fnIndex, "args", len(data))
	raw, err := c.http.PostJSONAndFetchBytes(ctx, endpoint, predictRequest{Data: data, FnIndex: fnIndex, SessionHash: c.session})
	if err != nil {
		return nil, httpError(http.MethodPost, endpoint, fmt.Sprintf("predict fn %d", fnIndex), err)
	}
	var out PredictResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode predict response: %w", err)
	}
	return &out, nil
}

// FileURL is where the app serves a file it produced.
func (c *Client) FileURL(name string) string {
	return c.endpoint("/file=" + name)
}

// FetchFile downloads a file referenced by a gallery or file component.
func (c *Client) FetchFile(ctx context.Context, name string) ([]byte, error) {
	endpoint := c.FileURL(name)
	data, err := c.http.FetchBytes(ctx, endpoint)
	if err != nil {
		return nil, httpError(http.MethodGet, endpoint, "fetch "+name, err)
	}
	c.log.Debug("gradio file fetched", "name", name, "bytes", len(data))
	return data, nil
}

// httpError turns a refused request into *HTTPError and wraps anything else.
func httpError(method, endpoint, op string, err error) error {
	var refused *httpkit.NonRetryableHTTPError
	if errors.As(err, &refused) {
		return &HTTPError{Method: method, URL: endpoint, StatusCode: refused.StatusCode, Body: truncate(strings.TrimSpace(string(refused.Body)), 512)}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
