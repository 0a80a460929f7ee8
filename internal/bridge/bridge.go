// Package bridge serves the editor's HTTP surface: resolution lookups, a
// streaming generate endpoint and a reverse proxy to the Fooocus app.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"

	"github.com/example/fooocanvas/internal/fooocus"
	"github.com/example/fooocanvas/internal/resolution"
)

// ProxyPrefix is stripped before requests are forwarded upstream.
const ProxyPrefix = "/fooocus"

// Generator runs a generation. *fooocus.Client satisfies it.
type Generator interface {
	Generate(ctx context.Context, req fooocus.Request) iter.Seq2[fooocus.Update, error]
}

// Options configures a Server.
type Options struct {
	Generator Generator
	// Upstream is the Fooocus base URL for the proxy.
	Upstream string
	// Timeout bounds one generate request. Zero means no limit.
	Timeout time.Duration
	// OnImage runs after a result image has been streamed.
	OnImage func(prompt string, update fooocus.Update)
	// ReportErrors sends panics and failed generations to Sentry. The
	// caller initialises the Sentry client.
	ReportErrors bool
	Logger       *slog.Logger
}

const sentryFlushTimeout = 2 * time.Second

// Server holds the bridge's handlers.
type Server struct {
	opts  Options
	proxy *httputil.ReverseProxy
	log   *slog.Logger
}

// GenerateRequest is the body of POST /api/generate.
type GenerateRequest struct {
	Prompt  string                `json:"prompt" binding:"required"`
	Width   int                   `json:"width" binding:"required,gt=0"`
	Height  int                   `json:"height" binding:"required,gt=0"`
	Inpaint *fooocus.InpaintInput `json:"inpaint"`
}

// New builds a Server. Upstream must be an http(s) URL.
func New(opts Options) (*Server, error) {
	if opts.Generator == nil {
		return nil, errors.New("bridge: a generator is required")
	}
	upstream, err := url.Parse(strings.TrimRight(opts.Upstream, "/"))
	if err != nil {
		return nil, fmt.Errorf("bridge: parse upstream: %w", err)
	}
	if upstream.Scheme != "http" && upstream.Scheme != "https" {
		return nil, fmt.Errorf("bridge: unsupported upstream %q", opts.Upstream)
	}
	s := &Server{opts: opts, log: opts.Logger}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.proxy = newProxy(upstream, s.log)
	return s, nil
}

func newProxy(upstream *url.URL, log *slog.Logger) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(r *httputil.ProxyRequest) {
			r.SetURL(upstream)
			r.Out.URL.Path = upstream.Path + strings.TrimPrefix(r.In.URL.Path, ProxyPrefix)
			r.Out.URL.RawPath = ""
			r.Out.Host = upstream.Host
			r.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Warn("proxy upstream failed", "path", r.URL.Path, "error", err)
			w.WriteHeader(http.StatusBadGateway)
		},
	}
}

// Router wires every route onto a fresh gin engine.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if s.opts.ReportErrors {
		router.Use(sentrygin.New(sentrygin.Options{
			Repanic: true,
			Timeout: sentryFlushTimeout,
		}))
	}
	router.Use(s.requestLogger())

	api := router.Group("/api")
	api.GET("/resolution", s.handleResolution)
	api.GET("/resolutions", s.handleResolutions)
	api.POST("/generate", s.handleGenerate)

	router.Any(ProxyPrefix+"/*path", func(c *gin.Context) {
		s.proxy.ServeHTTP(c.Writer, c.Request)
	})
	return router
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func (s *Server) handleResolution(c *gin.Context) {
	w, errW := strconv.ParseFloat(c.Query("w"), 64)
	h, errH := strconv.ParseFloat(c.Query("h"), 64)
	if errW != nil || errH != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "w and h must be numbers"})
		return
	}
	res, err := resolution.Best(w, h)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleResolutions(c *gin.Context) {
	c.JSON(http.StatusOK, resolution.Catalog())
}

func (s *Server) handleGenerate(c *gin.Context) {
	var body GenerateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req, err := fooocus.NewRequest(body.Prompt, body.Width, body.Height, body.Inpaint)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	s.log.Info("bridge generate", "resolution", req.Resolution.String(), "inpaint", req.Inpaint != nil)
	for u, err := range s.opts.Generator.Generate(ctx, req) {
		switch {
		case err != nil:
			s.log.Warn("generate failed", "error", err)
			s.report(c, req, err)
			c.SSEvent("error", gin.H{"error": err.Error()})
		case u.Final():
			c.SSEvent("image", gin.H{"image": u.Image, "resolution": req.Resolution})
			if s.opts.OnImage != nil {
				s.opts.OnImage(body.Prompt, u)
			}
		default:
			c.SSEvent("status", gin.H{"status": u.Status})
		}
		c.Writer.Flush()
	}
}

func (s *Server) report(c *gin.Context, req fooocus.Request, err error) {
	if !s.opts.ReportErrors || errors.Is(err, context.Canceled) {
		return
	}
	hub := sentrygin.GetHubFromContext(c)
	if hub == nil {
		return
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("resolution", req.Resolution.String())
		scope.SetTag("inpaint", strconv.FormatBool(req.Inpaint != nil))
		hub.CaptureException(err)
	})
}
