// Package legend extracts bead colour requirements from a photographed
// pattern legend: preprocessing, two OCR passes, parsing and merging.
package legend

import (
	"bytes"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/zombor/bead-tracker/internal/scanning"
)

// UpscaleFactor enlarges small legend text before recognition.
const UpscaleFactor = 2.5

// BT.709 luma weights
const (
	lumaR = 0.2126
	lumaG = 0.7152
	lumaB = 0.0722
)

// Variants are the two images sent to the OCR engine.
type Variants struct {
	Normal   *image.NRGBA
	Inverted *image.NRGBA
}

// Decode reads uploaded bytes into an image. Any failure is an ErrInvalidImage.
func Decode(data []byte, contentType string) (image.Image, error) {
	img, err := scanning.DecodeImage(data, contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return img, nil
}

// Crop cuts rect out of img. The rectangle is clipped to the image bounds.
func Crop(img image.Image, rect image.Rectangle) (image.Image, error) {
	if img == nil {
		return nil, ErrInvalidImage
	}
	clipped := rect.Intersect(img.Bounds())
	if clipped.Empty() {
		return nil, fmt.Errorf("%w: crop %v outside image %v", ErrInvalidImage, rect, img.Bounds())
	}
	return imaging.Crop(img, clipped), nil
}

// Preprocess upscales the legend, converts it to contrast-stretched gray
// and derives the inverted variant.
func Preprocess(img image.Image) (*Variants, error) {
	if img == nil {
		return nil, ErrInvalidImage
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: empty bounds %v", ErrInvalidImage, b)
	}

	width := max(1, int(math.Floor(float64(b.Dx())*UpscaleFactor)))
	height := max(1, int(math.Floor(float64(b.Dy())*UpscaleFactor)))
	scaled := imaging.Resize(img, width, height, imaging.Lanczos)

	normal := stretchLuminance(scaled)
	return &Variants{
		Normal:   normal,
		Inverted: imaging.Invert(normal),
	}, nil
}

// Encode returns both variants as PNG.
func (v *Variants) Encode() (normal []byte, inverted []byte, err error) {
	if normal, err = encodePNG(v.Normal); err != nil {
		return nil, nil, fmt.Errorf("encoding normal variant: %w", err)
	}
	if inverted, err = encodePNG(v.Inverted); err != nil {
		return nil, nil, fmt.Errorf("encoding inverted variant: %w", err)
	}
	return normal, inverted, nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// stretchLuminance converts img to gray and rescales the luminance range to
// [0,255]. Gray levels are stored rounded but the range is measured on the
// unrounded luminance, so the extremes can land a level inside [0,255]. A
// flat image (max == min) is left unstretched.
func stretchLuminance(img image.Image) *image.NRGBA {
	src := imaging.Clone(img)
	w, h := src.Rect.Dx(), src.Rect.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))

	gray := make([]uint8, w*h)
	lo, hi := 255.0, 0.0
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride:]
		for x := 0; x < w; x++ {
			p := row[x*4 : x*4+3]
			l := lumaR*float64(p[0]) + lumaG*float64(p[1]) + lumaB*float64(p[2])
			gray[y*w+x] = toByte(l)
			lo = min(lo, l)
			hi = max(hi, l)
		}
	}

	for i, g := range gray {
		v := g
		if hi > lo {
			v = toByte((float64(g) - lo) * 255 / (hi - lo))
		}
		o := out.Pix[i*4 : i*4+4]
		o[0], o[1], o[2], o[3] = v, v, v, 255
	}
	return out
}

func toByte(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(math.RoundToEven(v))
}
