package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/example/fooocanvas/internal/resolution"
)

type resolutionCmd struct {
	*root
	fs     *flag.FlagSet
	list   bool
	width  float64
	height float64
	out    io.Writer
}

func (c *resolutionCmd) FlagSet() *flag.FlagSet {
	return c.fs
}

func parseResolutionCmd(args []string, r *root) (*resolutionCmd, error) {
	fs := flag.NewFlagSet("resolution", flag.ExitOnError)
	cmd := &resolutionCmd{root: r, fs: fs, out: os.Stdout}
	fs.Usage = usageFunc(cmd)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	switch {
	case fs.NArg() == 1 && fs.Arg(0) == "list":
		cmd.list = true
	case fs.NArg() == 2:
		w, errW := strconv.ParseFloat(fs.Arg(0), 64)
		h, errH := strconv.ParseFloat(fs.Arg(1), 64)
		if errW != nil || errH != nil {
			return nil, fmt.Errorf("width and height must be numbers, got %q %q", fs.Arg(0), fs.Arg(1))
		}
		cmd.width, cmd.height = w, h
	default:
		return nil, &UsageError{of: cmd}
	}
	return cmd, nil
}

func (c *resolutionCmd) Run() error {
	if c.list {
		fmt.Fprintln(c.out, "supported resolutions (width x height, aspect):")
		for _, res := range resolution.Catalog() {
			fmt.Fprintf(c.out, "  %4d x %-4d  %2d:%-2d  %.3f\n", res.W, res.H, res.AW, res.AH, res.Aspect)
		}
		return nil
	}
	res, err := resolution.Best(c.width, c.height)
	if err != nil {
		return fmt.Errorf("resolution %gx%g: %w", c.width, c.height, err)
	}
	fmt.Fprintln(c.out, res.String())
	return nil
}
