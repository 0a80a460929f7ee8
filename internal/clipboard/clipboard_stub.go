//go:build !(linux || freebsd || openbsd || netbsd || dragonfly)

// Package clipboard moves page images to and from the system clipboard.
package clipboard

import (
	"errors"
	"fmt"
	"image"
)

// ErrUnavailable is returned when no clipboard can be reached.
var ErrUnavailable = errors.New("clipboard unavailable")

var errUnsupported = fmt.Errorf("%w: not supported on this platform", ErrUnavailable)

// WriteImage is not supported on this platform.
func WriteImage(image.Image) error {
	return errUnsupported
}

// ReadImage is not supported on this platform.
func ReadImage() (image.Image, error) {
	return nil, errUnsupported
}
