package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"log/slog"
	"os"
	"strings"

	"github.com/example/fooocanvas/internal/config"
	"github.com/example/fooocanvas/internal/fooocus"
	"github.com/example/fooocanvas/internal/notify"
)

var (
	version            = "dev"
	commit             = ""
	date               = ""
	configPathOverride = ""
)

type runnable interface{ Run() error }

type root struct {
	fs             *flag.FlagSet
	program        string
	notifier       *notify.Notifier
	config         *config.Config
	host           string
	verbose        bool
	generateAlerts bool
	saveAlerts     bool
	copyAlerts     bool
}

func (r *root) Program() string {
	return r.program
}

func (r *root) FlagSet() *flag.FlagSet {
	return r.fs
}

func (r *root) subcommand(name string) *root {
	program := strings.TrimSpace(strings.Join([]string{r.program, name}, " "))
	child := *r
	child.program = program
	child.fs = nil
	return &child
}

func newRoot() *root {
	prefs := notify.LoadPreferences()
	loader := config.NewLoader(version, configPathOverride)
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to load config: %v\n", err)
		if cfg, err = loader.Defaults(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load env files: %v\n", err)
		}
	}

	r := &root{
		fs:       flag.NewFlagSet("fooocanvas", flag.ExitOnError),
		program:  "fooocanvas",
		notifier: notify.New(prefs),
		config:   cfg,
	}
	r.fs.BoolVar(&r.generateAlerts, "notify-generate", cfg.Notify.Generate, "show a desktop notification when a generation finishes")
	r.fs.BoolVar(&r.saveAlerts, "notify-save", cfg.Notify.Save, "show a desktop notification after saving an image")
	r.fs.BoolVar(&r.copyAlerts, "notify-copy", cfg.Notify.Copy, "show a desktop notification after copying to the clipboard")

	// Precedence: CLI > Env > Config > Default. The loader already folded
	// FOOOCUS_HOST into cfg.Host.
	r.fs.StringVar(&r.host, "host", "", "Fooocus base URL (default from FOOOCUS_HOST or config)")
	r.fs.BoolVar(&r.verbose, "v", false, "verbose logging")
	r.fs.Usage = usageFunc(r)
	return r
}

// baseParams is the configured parameter set with the preset file, if any,
// decoded over it.
func (r *root) baseParams(preset string) (fooocus.Params, error) {
	p := r.config.Params()
	if preset == "" {
		return p, p.Validate()
	}
	return fooocus.LoadPresetFile(preset, p)
}

// fooocusHost resolves the Fooocus URL.
func (r *root) fooocusHost() string {
	if r.host != "" {
		return strings.TrimRight(r.host, "/")
	}
	if r.config != nil && r.config.Host != "" {
		return r.config.Host
	}
	return config.New().Host
}

func (r *root) Run(args []string) error {
	if err := r.fs.Parse(args); err != nil {
		return err
	}
	if r.fs.NArg() < 1 {
		return &UsageError{of: r}
	}
	if r.verbose {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}
	if r.notifier != nil {
		r.notifier.Enable(notify.EventGenerate, r.generateAlerts)
		r.notifier.Enable(notify.EventSave, r.saveAlerts)
		r.notifier.Enable(notify.EventCopy, r.copyAlerts)
	}

	cmdName := r.fs.Arg(0)
	subArgs := r.fs.Args()[1:]

	var (
		cmd runnable
		err error
	)
	switch cmdName {
	case "resolution":
		cmd, err = parseResolutionCmd(subArgs, r.subcommand(cmdName))
	case "edit":
		cmd, err = parseEditCmd(subArgs, r.subcommand(cmdName))
	case "generate":
		cmd, err = parseGenerateCmd(subArgs, r.subcommand(cmdName))
	case "serve":
		cmd, err = parseServeCmd(subArgs, r.subcommand(cmdName))
	case "config":
		cmd, err = parseConfigCmd(subArgs, r.subcommand(cmdName))
	case "version":
		cmd = &versionCmd{root: r}
	default:
		err = &UsageError{of: r}
	}
	if err != nil {
		return err
	}
	return cmd.Run()
}

func main() {
	r := newRoot()
	if err := r.Run(os.Args[1:]); err != nil {
		var uerr *UsageError
		if errors.As(err, &uerr) {
			fmt.Fprintln(os.Stderr, uerr.Error())
		} else {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
}

func (r *root) notifyGenerate(prompt string, img image.Image) {
	if r == nil || r.notifier == nil {
		return
	}
	r.notifier.Generate(prompt, img)
}

func (r *root) notifySave(path string) {
	if r == nil || r.notifier == nil {
		return
	}
	r.notifier.Save(path)
}

func (r *root) notifyCopy(detail string) {
	if r == nil || r.notifier == nil {
		return
	}
	r.notifier.Copy(detail)
}
