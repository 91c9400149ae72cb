package worker

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blankPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodeLoginQRRejectsNonImage(t *testing.T) {
	_, err := DecodeLoginQR([]byte("not an image"))
	assert.ErrorIs(t, err, ErrNoLoginQR)
}

func TestDecodeLoginQRRejectsImageWithoutCode(t *testing.T) {
	_, err := DecodeLoginQR(blankPNG(t))
	assert.ErrorIs(t, err, ErrNoLoginQR)
}
