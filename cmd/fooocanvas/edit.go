package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
)

type editCmd struct {
	*root
	fs          *flag.FlagSet
	src         pageSource
	output      string
	toClipboard bool
	watch       bool
}

func (e *editCmd) FlagSet() *flag.FlagSet {
	return e.fs
}

func parseEditCmd(args []string, r *root) (*editCmd, error) {
	fs := flag.NewFlagSet("edit", flag.ExitOnError)
	cmd := &editCmd{root: r, fs: fs}
	fs.Usage = usageFunc(cmd)
	fs.StringVar(&cmd.src.script, "script", "", "edit script to run")
	fs.StringVar(&cmd.src.input, "input", "", "image loaded as the background layer")
	fs.BoolVar(&cmd.src.fromClipboard, "from-clipboard", false, "load the background image from the clipboard")
	fs.StringVar(&cmd.output, "output", "", "where to write the composite PNG")
	fs.BoolVar(&cmd.toClipboard, "to-clipboard", false, "copy the composite to the clipboard")
	fs.BoolVar(&cmd.watch, "watch", false, "re-run the script and rewrite the output whenever the script changes")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 0 || cmd.src.empty() {
		return nil, &UsageError{of: cmd}
	}
	if cmd.output == "" && !cmd.toClipboard {
		return nil, fmt.Errorf("edit needs -output or -to-clipboard")
	}
	if cmd.watch && (cmd.src.script == "" || cmd.output == "") {
		return nil, fmt.Errorf("-watch needs -script and -output")
	}
	return cmd, nil
}

func (e *editCmd) Run() error {
	if err := e.render(); err != nil {
		return err
	}
	if !e.watch {
		return nil
	}

	fw, err := newFileWatcher(e.src.script)
	if err != nil {
		return fmt.Errorf("watch %s: %w", e.src.script, err)
	}
	defer func() {
		if err := fw.Close(); err != nil {
			log.Printf("error closing watcher: %v", err)
		}
	}()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	fmt.Fprintf(os.Stderr, "watching %s, interrupt to stop\n", e.src.script)
	return fw.Run(ctx, func() {
		// a broken script is reported and the last good output kept
		if err := e.render(); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	})
}

func (e *editCmd) render() error {
	p, err := e.src.build()
	if err != nil {
		return fmt.Errorf("edit: %w", err)
	}
	img := p.Composite()
	if e.output != "" {
		if err := savePNG(e.output, img); err != nil {
			return fmt.Errorf("save %s: %w", e.output, err)
		}
		fmt.Fprintf(os.Stderr, "saved %s\n", e.output)
		e.notifySave(e.output)
	}
	if e.toClipboard {
		if err := writeClipboardFn(img); err != nil {
			return fmt.Errorf("copy to clipboard: %w", err)
		}
		fmt.Fprintln(os.Stderr, "copied composite to clipboard")
		e.notifyCopy("composite")
	}
	return nil
}
