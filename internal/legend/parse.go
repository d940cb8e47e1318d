package legend

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/zombor/bead-tracker/internal/colorcode"
)

var (
	lineBreaks   = regexp.MustCompile(`[\r\n]+`)
	parentheses  = regexp.MustCompile(`[()]`)
	timesCount   = regexp.MustCompile(`(?i)[x×]\s*(\d+)`)
	bareInteger  = regexp.MustCompile(`^\d+$`)
	ocrConfusion = strings.NewReplacer("O", "0", "o", "0", "l", "1", "I", "1")
)

// ParseText pulls code/quantity pairs out of raw OCR text. Noise is skipped,
// never reported. Pairs come back in reading order; a code read twice is
// returned twice.
func ParseText(raw string) []colorcode.Requirement {
	text := lineBreaks.ReplaceAllString(raw, " ")
	text = parentheses.ReplaceAllString(text, " ")
	text = timesCount.ReplaceAllString(text, " $1")

	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})

	results := make([]colorcode.Requirement, 0)
	for i := 0; i < len(tokens); i++ {
		token := correctToken(tokens[i])
		if !colorcode.IsCode(token) {
			continue
		}

		quantity := 1
		if i+1 < len(tokens) && bareInteger.MatchString(tokens[i+1]) {
			n, err := strconv.Atoi(tokens[i+1])
			if err != nil {
				// overflowing count
				n = 0
			}
			quantity = n
			i++
		}
		if quantity <= 0 {
			continue
		}

		results = append(results, colorcode.Requirement{
			Code:     colorcode.Normalize(token),
			Quantity: quantity,
		})
	}
	return results
}

// correctToken fixes the usual digit/letter confusions after the first
// character of a token that starts with a letter. The first character is the
// series letter and is kept as read.
func correctToken(token string) string {
	if token == "" || !isASCIILetter(token[0]) {
		return token
	}
	return token[:1] + ocrConfusion.Replace(token[1:])
}

func isASCIILetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
