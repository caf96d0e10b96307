package proctor

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 10), G: uint8(y * 10), B: 50, A: 255})
		}
	}
	return img
}

func TestDecodeFrame(t *testing.T) {
	raw := encodePNG(t, testImage(12, 8))
	std := base64.StdEncoding.EncodeToString(raw)

	var jpg bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpg, testImage(16, 16), nil))

	tests := []struct {
		name    string
		payload string
		w, h    int
	}{
		{name: "plain base64", payload: std, w: 12, h: 8},
		{name: "data url", payload: "data:image/png;base64," + std, w: 12, h: 8},
		{name: "unpadded", payload: strings.TrimRight(std, "="), w: 12, h: 8},
		{name: "jpeg", payload: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpg.Bytes()), w: 16, h: 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := DecodeFrame(tt.payload)
			require.NoError(t, err)
			require.Equal(t, tt.w, img.Bounds().Dx())
			require.Equal(t, tt.h, img.Bounds().Dy())
		})
	}
}

func TestDecodeFrame_Malformed(t *testing.T) {
	for _, payload := range []string{
		"",
		"   ",
		"data:image/png;base64,",
		"!!!not base64!!!",
		base64.StdEncoding.EncodeToString([]byte("plain text, not an image")),
	} {
		_, err := DecodeFrame(payload)
		require.ErrorIs(t, err, ErrMalformedFrame, "payload %q", payload)
	}
}

func TestGrayscale_AnchorsAtOrigin(t *testing.T) {
	src := testImage(20, 20)
	sub := src.SubImage(image.Rect(5, 5, 15, 12))

	gray := Grayscale(sub)
	require.Equal(t, image.Rect(0, 0, 10, 7), gray.Bounds())

	want := color.GrayModel.Convert(src.At(5, 5)).(color.Gray)
	require.Equal(t, want, gray.GrayAt(0, 0))
}

func TestEqualizeHist_StretchesRange(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 4, 1))
	g.Pix = []uint8{100, 100, 110, 120}

	out := EqualizeHist(g)
	require.Equal(t, []uint8{0, 0, 127, 255}, out.Pix)
	require.Equal(t, []uint8{100, 100, 110, 120}, g.Pix)
}

func TestEqualizeHist_UniformImageUnchanged(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 3, 3))
	for i := range g.Pix {
		g.Pix[i] = 77
	}

	out := EqualizeHist(g)
	require.Equal(t, g.Pix, out.Pix)
}
