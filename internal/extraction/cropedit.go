package extraction

import (
	"fmt"
	"image"

	"github.com/zombor/bead-tracker/internal/crop"
)

// CropEdit is one step of editing a legend selection over a preview. Clients
// that keep no geometry of their own send the last CropState back with a drag
// or a nudge and get the next one.
type CropEdit struct {
	// Box is the preview element the image is fitted into.
	Box           crop.Rect `json:"box"`
	NaturalWidth  int       `json:"natural_width"`
	NaturalHeight int       `json:"natural_height"`
	// Selection is the current selection; nil starts from the initial one.
	Selection *crop.Rect `json:"selection,omitempty"`
	// Corner is the handle to drag or nudge: TL, TR, BL or BR.
	Corner string      `json:"corner,omitempty"`
	Drag   *crop.Point `json:"drag,omitempty"`
	Nudge  *crop.Point `json:"nudge,omitempty"`
}

// CropState is a selection after an edit, with the image pixels it covers.
type CropState struct {
	Bounds    crop.Rect       `json:"bounds"`
	Selection crop.Rect       `json:"selection"`
	Corner    string          `json:"corner"`
	Pixels    image.Rectangle `json:"pixels"`
}

// AdjustCrop applies edit to a crop session and returns the result. Invalid
// input is ErrInvalidCrop.
func AdjustCrop(edit CropEdit) (*CropState, error) {
	w, h := edit.NaturalWidth, edit.NaturalHeight
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: natural size %dx%d", ErrInvalidCrop, w, h)
	}
	bounds := crop.FitContain(edit.Box, w, h)
	if bounds.Empty() {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCrop, crop.ErrNoDisplaySize)
	}

	session := crop.NewSession(bounds)
	if edit.Selection != nil {
		session.Select(*edit.Selection)
	}
	if edit.Corner != "" {
		corner, err := crop.ParseCorner(edit.Corner)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCrop, err)
		}
		if err := session.Choose(corner); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCrop, err)
		}
	}

	if edit.Drag != nil {
		if err := session.Begin(session.Selected()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCrop, err)
		}
		session.Move(*edit.Drag)
		session.End()
	}
	if edit.Nudge != nil {
		session.Nudge(edit.Nudge.X, edit.Nudge.Y)
	}

	pixels, err := crop.ToNatural(session.Selection(), bounds, w, h)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCrop, err)
	}
	return &CropState{
		Bounds:    bounds,
		Selection: session.Selection(),
		Corner:    session.Selected().String(),
		Pixels:    pixels,
	}, nil
}
