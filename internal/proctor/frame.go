package proctor

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/webp"
)

// ErrMalformedFrame is returned for payloads that are not a decodable image.
var ErrMalformedFrame = errors.New("malformed frame")

// DecodeFrame decodes a base64 image, with or without a data URL prefix.
func DecodeFrame(payload string) (image.Image, error) {
	payload = strings.TrimSpace(payload)
	if i := strings.Index(payload, ","); i >= 0 && strings.HasPrefix(payload, "data:") {
		payload = payload[i+1:]
	}
	if payload == "" {
		return nil, ErrMalformedFrame
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if img.Bounds().Empty() {
		return nil, ErrMalformedFrame
	}
	return img, nil
}

// Grayscale converts img to an 8-bit gray image anchored at the origin.
func Grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}

// EqualizeHist spreads the intensity histogram of g over the full 0..255
// range and returns a new image.
func EqualizeHist(g *image.Gray) *image.Gray {
	b := g.Bounds()
	out := image.NewGray(b)

	var hist [256]int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := g.Pix[(y-b.Min.Y)*g.Stride : (y-b.Min.Y)*g.Stride+b.Dx()]
		for _, v := range row {
			hist[v]++
		}
	}

	total := b.Dx() * b.Dy()
	cdfMin, cdf := 0, 0
	for _, n := range hist {
		if n > 0 {
			cdfMin = n
			break
		}
	}
	if total == cdfMin {
		copy(out.Pix, g.Pix)
		return out
	}

	var lut [256]uint8
	for i, n := range hist {
		cdf += n
		if cdf <= cdfMin {
			continue
		}
		lut[i] = uint8((cdf - cdfMin) * 255 / (total - cdfMin))
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		src := g.Pix[(y-b.Min.Y)*g.Stride : (y-b.Min.Y)*g.Stride+b.Dx()]
		dst := out.Pix[(y-b.Min.Y)*out.Stride : (y-b.Min.Y)*out.Stride+b.Dx()]
		for x, v := range src {
			dst[x] = lut[v]
		}
	}
	return out
}
