package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"

	"github.com/example/fooocanvas/internal/bridge"
	"github.com/example/fooocanvas/internal/fooocus"
)

type serveCmd struct {
	*root
	fs     *flag.FlagSet
	addr   string
	preset string
}

func (s *serveCmd) FlagSet() *flag.FlagSet {
	return s.fs
}

func parseServeCmd(args []string, r *root) (*serveCmd, error) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cmd := &serveCmd{root: r, fs: fs}
	fs.Usage = usageFunc(cmd)
	fs.StringVar(&cmd.addr, "addr", ":8080", "listen address")
	fs.StringVar(&cmd.preset, "preset", r.config.Generate.Preset, "TOML file of generation parameter overrides")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 0 {
		return nil, &UsageError{of: cmd}
	}
	return cmd, nil
}

func (s *serveCmd) server() (*http.Server, error) {
	host := s.fooocusHost()
	params, err := s.baseParams(s.preset)
	if err != nil {
		return nil, err
	}
	b, err := bridge.New(bridge.Options{
		Generator:    newGeneratorFn(fooocus.Options{BaseURL: host, Defaults: &params}),
		Upstream:     host,
		Timeout:      s.config.Generate.Timeout,
		ReportErrors: sentry.CurrentHub().Client() != nil,
		OnImage: func(prompt string, u fooocus.Update) {
			img, err := u.Decode()
			if err != nil {
				slog.Debug("notification preview", "error", err)
				img = nil
			}
			s.notifyGenerate(prompt, img)
		},
	})
	if err != nil {
		return nil, err
	}
	if !s.verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	return &http.Server{
		Addr:              s.addr,
		Handler:           b.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

func (s *serveCmd) initSentry() {
	dsn := s.config.SentryDSN
	if dsn == "" {
		return
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:     dsn,
		Release: "fooocanvas@" + version,
	}); err != nil {
		log.Printf("failed to initialise Sentry: %v", err)
		return
	}
	slog.Info("sentry enabled", "release", version)
}

func (s *serveCmd) Run() error {
	s.initSentry()
	defer sentry.Flush(2 * time.Second)
	srv, err := s.server()
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "listening on %s, proxying %s to %s\n", s.addr, bridge.ProxyPrefix, s.fooocusHost())
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("error shutting down: %v", err)
	}
	return nil
}
