package datauri

import (
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodePNG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.Set(1, 1, color.RGBA{R: 9, G: 8, B: 7, A: 255})

	uri, err := EncodePNG(img)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, PNGPrefix))

	out, err := Decode(uri)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), out.Bounds())
	r, g, b, a := out.At(1, 1).RGBA()
	assert.Equal(t, []uint32{9, 8, 7, 255}, []uint32{r >> 8, g >> 8, b >> 8, a >> 8})
}

func TestFromBytesSniffsType(t *testing.T) {
	pngSig := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	uri := FromBytes(pngSig, "")
	assert.True(t, strings.HasPrefix(uri, PNGPrefix))

	mimeType, data, err := Parse(uri)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mimeType)
	assert.Equal(t, pngSig, data)
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "hello", "data:image/png,abc", "data:image/png;base64"} {
		_, _, err := Parse(in)
		assert.ErrorIs(t, err, ErrNotDataURI, "input %q", in)
	}
	_, _, err := Parse("data:image/png;base64,!!!")
	assert.Error(t, err)
	_, err = Decode("data:text/plain;base64,aGVsbG8=")
	assert.Error(t, err)
}
