package legend

import (
	"errors"
	"fmt"
)

// ErrInvalidImage is returned when the legend image cannot be read or has no pixels.
var ErrInvalidImage = errors.New("invalid image")

// EngineError wraps a failed or timed-out OCR engine call. It is never retried here;
// the caller re-runs the whole extraction.
type EngineError struct {
	Pass string
	Err  error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("ocr engine failed on %s pass: %v", e.Pass, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}
