// Package colorcode holds the bead colour code model shared by the
// extraction pipeline, the history store and the backend client.
package colorcode

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// MaxCodeLength bounds an accepted code token (two letters, four digits).
const MaxCodeLength = 6

// Requirement is the number of beads of one colour a pattern needs.
type Requirement struct {
	Code     string `json:"code"`
	Quantity int    `json:"quantity"`
}

var (
	codePattern  = regexp.MustCompile(`^[A-Za-z]{1,2}[0-9]{1,4}$`)
	leadingZeros = regexp.MustCompile(`^([A-Z]+)0+([1-9])`)
)

// Normalize returns the canonical form of a code: uppercased, trimmed and
// with the zeros between the letter prefix and the first significant digit
// removed ("a07" -> "A7"). A code with no significant digit ("B00") keeps
// its zeros.
func Normalize(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	return leadingZeros.ReplaceAllString(code, "$1$2")
}

// IsCode reports whether token looks like a palette code: one or two
// letters followed by one to four digits.
func IsCode(token string) bool {
	return len(token) <= MaxCodeLength && codePattern.MatchString(token)
}

// Compare orders two codes with English collation.
func Compare(a, b string) int {
	return collate.New(language.English).CompareString(a, b)
}

// Sort orders requirements by code with English collation.
func Sort(reqs []Requirement) {
	c := collate.New(language.English)
	sort.SliceStable(reqs, func(i, j int) bool {
		return c.CompareString(reqs[i].Code, reqs[j].Code) < 0
	})
}
