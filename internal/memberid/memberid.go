// Package memberid parses, validates, formats and generates membership
// identifiers. The canonical form is PPDDDDYYYY (two letters, eight
// digits); the display form printed on badges is PP-DDDD-YYYY. The package
// is pure: it never consults a store, so uniqueness of generated
// identifiers must be enforced by the caller before persisting.
package memberid

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// GenerationPrefix is the organisation prefix stamped on newly generated
// identifiers. Validation accepts any two-letter prefix; see IsValid.
const GenerationPrefix = "EA"

const canonicalLength = 10

var canonicalPattern = regexp.MustCompile(`^[A-Z]{2}\d{8}$`)

// Parsed is the decomposition of a valid identifier.
type Parsed struct {
	Prefix string
	Digits string
	Year   int
	Full   string
}

// Normalize strips every character that is not a letter or digit and
// uppercases the remainder. Total function: any input yields a string,
// empty input yields the empty string.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 'a' + 'A')
		case (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsValid reports whether the normalized input has the canonical shape:
// exactly two letters followed by eight digits. Only shape is checked; the
// prefix value is not pinned to GenerationPrefix.
func IsValid(raw string) bool {
	return canonicalPattern.MatchString(Normalize(raw))
}

// FormatForDisplay renders a valid identifier as PP-DDDD-YYYY. Invalid
// input is returned unchanged; callers must not assume the output is
// formatted.
func FormatForDisplay(raw string) string {
	canonical := Normalize(raw)
	if !canonicalPattern.MatchString(canonical) {
		return raw
	}
	return canonical[:2] + "-" + canonical[2:6] + "-" + canonical[6:]
}

// ExtractYear returns the identifier's year segment, or ok=false when the
// input is not a valid identifier.
func ExtractYear(raw string) (int, bool) {
	canonical := Normalize(raw)
	if !canonicalPattern.MatchString(canonical) {
		return 0, false
	}
	year, err := strconv.Atoi(canonical[6:])
	if err != nil {
		return 0, false
	}
	return year, true
}

// Parse decomposes an identifier into its segments, returning nil for
// invalid input.
func Parse(raw string) *Parsed {
	canonical := Normalize(raw)
	if !canonicalPattern.MatchString(canonical) {
		return nil
	}
	year, err := strconv.Atoi(canonical[6:])
	if err != nil {
		return nil
	}
	return &Parsed{
		Prefix: canonical[:2],
		Digits: canonical[2:6],
		Year:   year,
		Full:   canonical,
	}
}

// Equal compares two identifiers by canonical form, so punctuation, case
// and whitespace never affect equality.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// RandomSource supplies the fallback digit segment for Generate. Injecting
// it keeps generation deterministic under test.
type RandomSource interface {
	Intn(n int) int
}

// Generator produces display-formatted membership identifiers.
type Generator struct {
	rand RandomSource
	now  func() time.Time
}

// NewGenerator constructs a Generator. rand must not be nil; now may be nil
// and defaults to time.Now.
func NewGenerator(rand RandomSource, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{rand: rand, now: now}
}

// Generate builds a display-formatted identifier (PP-DDDD-YYYY). The digit
// segment is the last four digits of contactNumber when it carries at least
// four digits after stripping, otherwise a uniformly random zero-padded
// value. year defaults to the current calendar year when <= 0. Uniqueness
// is not checked here.
func (g *Generator) Generate(contactNumber string, year int) string {
	digits := digitsOf(contactNumber)
	var segment string
	if len(digits) >= 4 {
		segment = digits[len(digits)-4:]
	} else {
		segment = fmt.Sprintf("%04d", g.rand.Intn(10000))
	}
	if year <= 0 {
		year = g.now().Year()
	}
	return fmt.Sprintf("%s-%s-%04d", GenerationPrefix, segment, year)
}

func digitsOf(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
