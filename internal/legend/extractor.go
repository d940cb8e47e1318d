package legend

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zombor/bead-tracker/internal/colorcode"
	"github.com/zombor/bead-tracker/internal/scanning"
)

// Pass names
const (
	PassNormal   = "normal"
	PassInverted = "inverted"
)

// Pass is the outcome of one recognition: the raw OCR text and what the parser made of it.
type Pass struct {
	RawText string                  `json:"raw_text"`
	Colors  []colorcode.Requirement `json:"colors"`
}

// Result is a finished extraction. Normal and Inverted are kept for debugging only.
type Result struct {
	Colors   []colorcode.Requirement `json:"colors"`
	Normal   Pass                    `json:"normal"`
	Inverted Pass                    `json:"inverted"`
}

// Extractor runs the legend pipeline against an OCR engine.
type Extractor struct {
	open        scanning.Opener
	passTimeout time.Duration
}

// NewExtractor creates an Extractor. A zero passTimeout means each pass is
// bounded only by the caller's context.
func NewExtractor(open scanning.Opener, passTimeout time.Duration) *Extractor {
	return &Extractor{
		open:        open,
		passTimeout: passTimeout,
	}
}

// Extract preprocesses img, recognizes both variants and merges the parsed
// results. The engine is acquired for this call only and always released.
// Passes run concurrently unless the engine is a scanning.Serializer.
func (e *Extractor) Extract(ctx context.Context, img image.Image) (*Result, error) {
	variants, err := Preprocess(img)
	if err != nil {
		return nil, err
	}
	normalPNG, invertedPNG, err := variants.Encode()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	var normalText, invertedText string
	err = e.withEngine(ctx, func(rec scanning.Recognizer) error {
		// A serialized engine would queue the second pass behind the first
		// and charge the wait against its timeout.
		if serial, ok := rec.(scanning.Serializer); ok && serial.Serialized() {
			var err error
			if normalText, err = e.recognize(ctx, rec, PassNormal, normalPNG); err != nil {
				return err
			}
			invertedText, err = e.recognize(ctx, rec, PassInverted, invertedPNG)
			return err
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			normalText, err = e.recognize(gctx, rec, PassNormal, normalPNG)
			return err
		})
		g.Go(func() (err error) {
			invertedText, err = e.recognize(gctx, rec, PassInverted, invertedPNG)
			return err
		})
		return g.Wait()
	})
	if err != nil {
		return nil, err
	}

	result := &Result{
		Normal:   Pass{RawText: normalText, Colors: ParseText(normalText)},
		Inverted: Pass{RawText: invertedText, Colors: ParseText(invertedText)},
	}
	result.Colors = Merge(result.Normal.Colors, result.Inverted.Colors)

	slog.Debug("Legend extracted",
		"normal_codes", len(result.Normal.Colors),
		"inverted_codes", len(result.Inverted.Colors),
		"merged_codes", len(result.Colors),
	)
	return result, nil
}

// withEngine opens a recognizer, runs fn and closes the recognizer on every path.
func (e *Extractor) withEngine(ctx context.Context, fn func(scanning.Recognizer) error) error {
	rec, err := e.open(ctx)
	if err != nil {
		return &EngineError{Pass: "open", Err: err}
	}
	defer func() {
		if cerr := rec.Close(); cerr != nil {
			slog.Warn("Failed to close OCR engine", "error", cerr)
		}
	}()
	return fn(rec)
}

func (e *Extractor) recognize(ctx context.Context, rec scanning.Recognizer, pass string, data []byte) (string, error) {
	if e.passTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.passTimeout)
		defer cancel()
	}

	start := time.Now()
	text, err := rec.Recognize(ctx, data)
	if err != nil {
		return "", &EngineError{Pass: pass, Err: err}
	}
	slog.Debug("OCR pass finished", "pass", pass, "duration", time.Since(start), "chars", len(text))
	return text, nil
}
