package scanning

import "context"

// Recognizer turns an encoded raster image into the text it shows
type Recognizer interface {
	// Recognize runs OCR over a PNG/JPEG image and returns the raw text
	Recognize(ctx context.Context, image []byte) (string, error)
	// Close releases the engine's resources
	Close() error
}

// Serializer is implemented by engines that run one recognition at a time.
// Passes sent to them concurrently queue behind each other.
type Serializer interface {
	Serialized() bool
}

// Opener acquires a Recognizer for one extraction. Callers must Close it.
type Opener func(ctx context.Context) (Recognizer, error)

// legendCharset limits recognition to what a colour legend prints
const legendCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789()x×"

// legendTranscribePrompt is the shared prompt used by the LLM recognizers
const legendTranscribePrompt = `You are reading the colour legend of a fuse-bead (perler bead) pattern.
Transcribe every colour code and the bead count printed next to it, exactly as they appear.

Rules:
- Codes are one or two letters followed by digits, for example A7, H12, M3
- Counts are plain integers, sometimes written as x12 or (12)
- Keep the reading order of the legend, one code per line followed by its count
- Do not add explanations, headings, markdown, or any text that is not printed on the image`
