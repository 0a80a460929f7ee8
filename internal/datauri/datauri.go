// Package datauri converts between images and base64 data URIs.
package datauri

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // decode support for jpeg results
	"image/png"
	"net/http"
	"strings"

	_ "golang.org/x/image/webp" // decode support for webp results
)

// PNGPrefix starts every PNG data URI produced by this package.
const PNGPrefix = "data:image/png;base64,"

// ErrNotDataURI is returned when a string is not a base64 data URI.
var ErrNotDataURI = errors.New("datauri: not a base64 data URI")

// FromBytes wraps raw file bytes in a data URI. An empty mimeType is sniffed
// from the content.
func FromBytes(data []byte, mimeType string) string {
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// EncodePNG encodes img as PNG and wraps it in a data URI.
func EncodePNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}
	return PNGPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Parse splits a data URI into its MIME type and decoded payload.
func Parse(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, ErrNotDataURI
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrNotDataURI
	}
	mimeType, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, ErrNotDataURI
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data uri: %w", err)
	}
	return mimeType, data, nil
}

// Decode parses a data URI and decodes the image it carries.
func Decode(uri string) (image.Image, error) {
	_, data, err := Parse(uri)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}
