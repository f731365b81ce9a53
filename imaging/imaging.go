// Package imaging holds the pixel work of the analysis pipeline: decoding,
// padded crops, dominant colour and the annotated preview.
package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	// Decoders for uploads.
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

const jpegQuality = 90

func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// PaddedBox converts a normalized box to pixels, grows it by pad on every
// side and clamps it to bounds. ok is false when nothing is left.
func PaddedBox(bounds image.Rectangle, xMin, yMin, xMax, yMax float64, pad int) (image.Rectangle, bool) {
	w, h := bounds.Dx(), bounds.Dy()
	r := image.Rect(
		int(xMin*float64(w))-pad,
		int(yMin*float64(h))-pad,
		int(xMax*float64(w))+pad,
		int(yMax*float64(h))+pad,
	)
	r = clamp(r, w, h)
	if r.Min.X >= r.Max.X || r.Min.Y >= r.Max.Y {
		return image.Rectangle{}, false
	}
	return r.Add(bounds.Min), true
}

func clamp(r image.Rectangle, w, h int) image.Rectangle {
	r.Min.X = max(0, r.Min.X)
	r.Min.Y = max(0, r.Min.Y)
	r.Max.X = min(w, r.Max.X)
	r.Max.Y = min(h, r.Max.Y)
	return r
}

// Crop copies r out of img into a fresh RGBA image whose origin is (0,0).
func Crop(img image.Image, r image.Rectangle) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), img, r.Min, draw.Src)
	return out
}

func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func EncodeBase64JPEG(img image.Image) (string, error) {
	data, err := EncodeJPEG(img)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DominantColor is the mean RGB of every pixel, i.e. the single-cluster
// k-means centre.
func DominantColor(img image.Image) [3]uint8 {
	b := img.Bounds()
	var sr, sg, sb, n uint64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			sr += uint64(c.R)
			sg += uint64(c.G)
			sb += uint64(c.B)
			n++
		}
	}
	if n == 0 {
		return [3]uint8{}
	}
	return [3]uint8{uint8(sr / n), uint8(sg / n), uint8(sb / n)}
}

func ColorName(rgb [3]uint8) string {
	r, g, b := rgb[0], rgb[1], rgb[2]
	switch {
	case r > 200 && g > 200 && b > 200:
		return "white"
	case r < 50 && g < 50 && b < 50:
		return "black"
	case r > g && r > b:
		return "red"
	case g > r && g > b:
		return "green"
	case b > r && b > g:
		return "blue"
	}
	return "multicolor"
}
