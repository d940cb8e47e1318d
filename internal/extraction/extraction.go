package extraction

import (
	"image"
	"time"

	"github.com/zombor/bead-tracker/internal/colorcode"
)

// Extraction is one processed legend image and the colours read from it
type Extraction struct {
	ID          string                  `json:"id"`
	Filename    string                  `json:"filename"`
	ContentType string                  `json:"content_type"`
	Crop        *image.Rectangle        `json:"crop,omitempty"` // pixel region of the original file that was read
	Colors      []colorcode.Requirement `json:"colors"`
	BeadID      int64                   `json:"bead_id,omitempty"` // project the colours were last applied to
	AppliedAt   *time.Time              `json:"applied_at,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

// Color is a requirement decorated with its palette swatch
type Color struct {
	colorcode.Requirement
	Hex       string `json:"hex,omitempty"`
	TextColor string `json:"text_color,omitempty"`
}

// Swatch looks up the palette colour for code. Unknown codes get no hex.
func Swatch(req colorcode.Requirement) Color {
	c := Color{Requirement: req}
	if hex := colorcode.Hex(req.Code); hex != "" {
		c.Hex = hex
		c.TextColor = colorcode.ContrastColor(hex)
	}
	return c
}

// Swatches decorates every requirement
func Swatches(reqs []colorcode.Requirement) []Color {
	out := make([]Color, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, Swatch(r))
	}
	return out
}
