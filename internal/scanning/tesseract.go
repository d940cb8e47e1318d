package scanning

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// ErrEngineClosed is returned by Recognize once the engine has been closed
var ErrEngineClosed = errors.New("ocr engine closed")

// ocrClient is the part of gosseract.Client used here
type ocrClient interface {
	SetImageFromBytes(data []byte) error
	Text() (string, error)
	Close() error
}

// Tesseract implements the Recognizer interface using a local Tesseract install
type Tesseract struct {
	mu     sync.Mutex
	client ocrClient
	closed bool
}

// NewTesseract creates a Tesseract client tuned for bead colour legends
func NewTesseract(language string) (*Tesseract, error) {
	if language == "" {
		language = "eng"
	}

	client := gosseract.NewClient()
	if err := client.SetLanguage(language); err != nil {
		client.Close()
		return nil, fmt.Errorf("setting tesseract language: %w", err)
	}
	if err := client.SetWhitelist(legendCharset); err != nil {
		client.Close()
		return nil, fmt.Errorf("setting tesseract whitelist: %w", err)
	}
	// Legends are scattered code/count pairs rather than paragraphs
	if err := client.SetPageSegMode(gosseract.PSM_SPARSE_TEXT); err != nil {
		client.Close()
		return nil, fmt.Errorf("setting tesseract page segmentation: %w", err)
	}
	// Codes are not dictionary words
	_ = client.SetVariable("load_system_dawg", "false")
	_ = client.SetVariable("load_freq_dawg", "false")

	return &Tesseract{client: client}, nil
}

// TesseractOpener returns an Opener that creates a fresh client per extraction
func TesseractOpener(language string) Opener {
	return func(ctx context.Context) (Recognizer, error) {
		return NewTesseract(language)
	}
}

type tesseractResult struct {
	text string
	err  error
}

// Recognize runs OCR over the image. The gosseract client is not safe for
// concurrent use, so calls are serialized. A call whose context ends while it
// waits for the client never reaches it.
func (t *Tesseract) Recognize(ctx context.Context, image []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	done := make(chan tesseractResult, 1)
	go func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.closed {
			done <- tesseractResult{err: ErrEngineClosed}
			return
		}
		if err := ctx.Err(); err != nil {
			done <- tesseractResult{err: err}
			return
		}
		if err := t.client.SetImageFromBytes(image); err != nil {
			done <- tesseractResult{err: fmt.Errorf("setting image: %w", err)}
			return
		}
		text, err := t.client.Text()
		if err != nil {
			done <- tesseractResult{err: fmt.Errorf("tesseract OCR failed: %w", err)}
			return
		}
		done <- tesseractResult{text: text}
	}()

	select {
	case <-ctx.Done():
		// the running call finishes in the background and releases the lock
		return "", ctx.Err()
	case res := <-done:
		return res.text, res.err
	}
}

// Serialized reports that recognitions run one at a time
func (t *Tesseract) Serialized() bool {
	return true
}

// Close waits for any in-flight recognition and releases the client.
// Closing twice is a no-op.
func (t *Tesseract) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.client.Close()
}
