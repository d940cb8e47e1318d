package extraction

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/zombor/bead-tracker/internal/crop"
)

// ErrInvalidCrop is returned for a crop that cannot be applied to the image
var ErrInvalidCrop = errors.New("invalid crop")

// Selection says which part of an uploaded image holds the legend. The zero
// value and a nil *Selection both mean the whole image.
type Selection struct {
	// Auto picks the initial selection a user would be offered: the image
	// with a 10% margin trimmed off, plus the usual padding.
	Auto bool
	// Rect is in image pixels, or in display pixels when the display size is set.
	Rect crop.Rect
	// DisplayWidth and DisplayHeight are the preview box Rect was drawn in.
	// The image is taken to be fitted inside it without distortion and
	// centered, so a box with a different aspect ratio is letterboxed.
	DisplayWidth  float64
	DisplayHeight float64
}

// resolve maps the selection onto an image with the given bounds. ok is false
// when the whole image should be used.
func (s *Selection) resolve(bounds image.Rectangle) (rect image.Rectangle, ok bool, err error) {
	if s == nil || (!s.Auto && s.Rect == (crop.Rect{})) {
		return image.Rectangle{}, false, nil
	}

	w, h := bounds.Dx(), bounds.Dy()
	switch {
	case s.Auto:
		full := crop.Rect{Width: float64(w), Height: float64(h)}
		rect, err = crop.ToNatural(crop.Initial(full), full, w, h)
	case s.Rect.Empty():
		return image.Rectangle{}, false, fmt.Errorf("%w: %vx%v selection", ErrInvalidCrop, s.Rect.Width, s.Rect.Height)
	case s.DisplayWidth > 0 || s.DisplayHeight > 0:
		box := crop.Rect{Width: s.DisplayWidth, Height: s.DisplayHeight}
		rect, err = crop.ToNatural(s.Rect, crop.FitContain(box, w, h), w, h)
	default:
		rect = image.Rect(
			int(math.Floor(s.Rect.X)),
			int(math.Floor(s.Rect.Y)),
			int(math.Ceil(s.Rect.Right())),
			int(math.Ceil(s.Rect.Bottom())),
		)
	}
	if err != nil {
		return image.Rectangle{}, false, fmt.Errorf("%w: %w", ErrInvalidCrop, err)
	}

	rect = rect.Add(bounds.Min)
	if !rect.Overlaps(bounds) {
		return image.Rectangle{}, false, fmt.Errorf("%w: %v outside image %v", ErrInvalidCrop, rect, bounds)
	}
	return rect.Intersect(bounds), true, nil
}
