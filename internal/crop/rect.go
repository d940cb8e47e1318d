// Package crop maps a legend selection drawn over a scaled-down preview
// onto the pixels of the original image.
package crop

import (
	"errors"
	"fmt"
	"image"
	"math"
)

// MinSize is the smallest selection side, in display pixels.
const MinSize = 8

// Padding is added around the selection, in display pixels, before cropping
// so that glyphs touching the edge survive.
const Padding = 8

var (
	// ErrNoDisplaySize is returned when the preview has no area to scale from.
	ErrNoDisplaySize = errors.New("display size must be positive")
	// ErrOutsideImage is returned for a selection that does not touch the image.
	ErrOutsideImage = errors.New("selection is outside the image")
)

// Rect is an axis-aligned box in display coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Point is a position in display coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (r Rect) Right() float64  { return r.X + r.Width }
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Empty reports whether r has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Overlaps reports whether r and o share some area.
func (r Rect) Overlaps(o Rect) bool {
	return !r.Empty() && !o.Empty() &&
		r.X < o.Right() && o.X < r.Right() &&
		r.Y < o.Bottom() && o.Y < r.Bottom()
}

// FitContain returns where an image of naturalW x naturalH is drawn inside
// box when scaled to fit without distortion and centered. Unknown natural
// dimensions leave the box as is.
func FitContain(box Rect, naturalW, naturalH int) Rect {
	if naturalW <= 0 || naturalH <= 0 || box.Empty() {
		return box
	}

	naturalRatio := float64(naturalW) / float64(naturalH)
	boxRatio := box.Width / box.Height
	if naturalRatio > boxRatio {
		h := box.Width / naturalRatio
		return Rect{X: box.X, Y: box.Y + (box.Height-h)/2, Width: box.Width, Height: h}
	}
	w := box.Height * naturalRatio
	return Rect{X: box.X + (box.Width-w)/2, Y: box.Y, Width: w, Height: box.Height}
}

// Initial is the selection offered when an image is loaded: the image bounds
// shrunk by a 10% margin on every side.
func Initial(bounds Rect) Rect {
	marginX := bounds.Width * 0.1
	marginY := bounds.Height * 0.1
	return Rect{
		X:      bounds.X + marginX,
		Y:      bounds.Y + marginY,
		Width:  math.Max(MinSize, bounds.Width-marginX*2),
		Height: math.Max(MinSize, bounds.Height-marginY*2),
	}
}

// ToNatural converts sel, drawn over an image rendered at bounds, to a pixel
// rectangle in an image of naturalW x naturalH. The result is padded, grown
// outward to whole pixels, clamped to the image and never smaller than 1x1.
// A selection that misses bounds is ErrOutsideImage, whatever the padding.
func ToNatural(sel, bounds Rect, naturalW, naturalH int) (image.Rectangle, error) {
	if bounds.Empty() {
		return image.Rectangle{}, ErrNoDisplaySize
	}
	if naturalW <= 0 || naturalH <= 0 {
		return image.Rectangle{}, fmt.Errorf("natural size %dx%d must be positive", naturalW, naturalH)
	}
	if !sel.Overlaps(bounds) {
		return image.Rectangle{}, ErrOutsideImage
	}

	scaleX := float64(naturalW) / bounds.Width
	scaleY := float64(naturalH) / bounds.Height
	padX := Padding * scaleX
	padY := Padding * scaleY

	x := (sel.X - bounds.X) * scaleX
	y := (sel.Y - bounds.Y) * scaleY
	w := sel.Width * scaleX
	h := sel.Height * scaleY

	sx := clampInt(int(math.Floor(x-padX)), 0, naturalW-1)
	sy := clampInt(int(math.Floor(y-padY)), 0, naturalH-1)
	ex := min(naturalW, int(math.Ceil(x+w+padX)))
	ey := min(naturalH, int(math.Ceil(y+h+padY)))

	return image.Rect(sx, sy, sx+max(1, ex-sx), sy+max(1, ey-sy)), nil
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
