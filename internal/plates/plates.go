// Package plates normalizes raw OCR text into canonical Sri Lankan
// license plate strings.
package plates

import (
	"fmt"
	"regexp"
	"strings"
)

// provinceNames maps the two-letter province codes used on modern
// plates to their full names.
var provinceNames = map[string]string{
	"WP": "Western Province",
	"CP": "Central Province",
	"SP": "Southern Province",
	"NW": "North Western Province",
	"NC": "North Central Province",
	"UP": "Uva Province",
	"SG": "Sabaragamuwa Province",
	"EP": "Eastern Province",
	"NP": "Northern Province",
}

// OCR engines routinely confuse these glyph pairs. The tables are used
// to retry a failed grammar match after coercing characters toward the
// type (letter or digit) the grammar expects at that position.
var charToDigit = map[byte]byte{
	'O': '0', 'Q': '0', 'D': '0',
	'I': '1', 'L': '1',
	'Z': '2',
	'J': '3',
	'A': '4',
	'S': '5',
	'G': '6',
	'T': '7',
	'B': '8',
}

var digitToChar = map[byte]byte{
	'0': 'O',
	'1': 'I',
	'2': 'Z',
	'3': 'J',
	'4': 'A',
	'5': 'S',
	'6': 'G',
	'7': 'T',
	'8': 'B',
}

// grammar is one plate format: a pattern over the cleaned input and a
// canonicalizer applied to its submatches. Grammars are tried in order,
// first match wins, so they must be listed most specific first: the
// province-checked formats shadow the looser special format, which is
// how "WPCA1234" and "CAR1234" end up with different canonical spacing.
type grammar struct {
	name      string
	pattern   *regexp.Regexp
	canonical func(groups []string) (string, bool)
	// layout gives the expected character class per position, used for
	// OCR confusion retry. 'L' letter, 'D' digit.
	layout func(n int) string
}

var grammars = []grammar{
	{
		name:    "modern",
		pattern: regexp.MustCompile(`^([A-Z]{2})([A-Z]{2,3})(\d{4})$`),
		canonical: func(g []string) (string, bool) {
			if _, ok := provinceNames[g[1]]; !ok {
				return "", false
			}
			return fmt.Sprintf("%s %s-%s", g[1], g[2], g[3]), true
		},
		layout: func(n int) string {
			if n != 8 && n != 9 {
				return ""
			}
			return strings.Repeat("L", n-4) + "DDDD"
		},
	},
	{
		name:    "provincial",
		pattern: regexp.MustCompile(`^([A-Z]{2})(\d{4})$`),
		canonical: func(g []string) (string, bool) {
			if _, ok := provinceNames[g[1]]; !ok {
				return "", false
			}
			return fmt.Sprintf("%s %s", g[1], g[2]), true
		},
		layout: func(n int) string {
			if n != 6 {
				return ""
			}
			return "LLDDDD"
		},
	},
	{
		name:    "old",
		pattern: regexp.MustCompile(`^(\d{2,3})(\d{4})$`),
		canonical: func(g []string) (string, bool) {
			return fmt.Sprintf("%s-%s", g[1], g[2]), true
		},
		layout: func(n int) string {
			if n != 6 && n != 7 {
				return ""
			}
			return strings.Repeat("D", n)
		},
	},
	{
		name:    "special",
		pattern: regexp.MustCompile(`^([A-Z]{3})(\d{4})$`),
		canonical: func(g []string) (string, bool) {
			return fmt.Sprintf("%s %s", g[1], g[2]), true
		},
		layout: func(n int) string {
			if n != 7 {
				return ""
			}
			return "LLLDDDD"
		},
	},
}

var nonAlnum = regexp.MustCompile(`[^A-Z0-9]`)

// Clean uppercases the input and strips every non-alphanumeric
// character.
func Clean(raw string) string {
	return nonAlnum.ReplaceAllString(strings.ToUpper(raw), "")
}

// Normalize turns raw OCR text into a canonical plate string. It never
// fails: input that matches no grammar comes back cleaned with
// valid=false. Matching is attempted on the cleaned text first, then
// once more per grammar after correcting common OCR glyph confusions
// toward the grammar's expected letter/digit layout.
func Normalize(raw string) (canonical string, valid bool) {
	cleaned := Clean(raw)
	if len(cleaned) < 4 {
		return cleaned, false
	}

	if c, ok := match(cleaned); ok {
		return c, true
	}

	for i := range grammars {
		layout := grammars[i].layout(len(cleaned))
		if layout == "" {
			continue
		}
		corrected := correct(cleaned, layout)
		if corrected == cleaned {
			continue
		}
		if c, ok := matchOne(&grammars[i], corrected); ok {
			return c, true
		}
	}

	return cleaned, false
}

// Valid reports whether raw resolves to a known plate format.
func Valid(raw string) bool {
	_, ok := Normalize(raw)
	return ok
}

// ProvinceName returns the province a plate is registered in, or ""
// when the plate carries no known province code.
func ProvinceName(plate string) string {
	cleaned := Clean(plate)
	if len(cleaned) < 2 {
		return ""
	}
	return provinceNames[cleaned[:2]]
}

func match(cleaned string) (string, bool) {
	for i := range grammars {
		if c, ok := matchOne(&grammars[i], cleaned); ok {
			return c, true
		}
	}
	return "", false
}

func matchOne(g *grammar, cleaned string) (string, bool) {
	groups := g.pattern.FindStringSubmatch(cleaned)
	if groups == nil {
		return "", false
	}
	return g.canonical(groups)
}

// correct coerces each character toward the class the layout expects at
// its position, using the OCR confusion tables.
func correct(cleaned, layout string) string {
	out := []byte(cleaned)
	for i := 0; i < len(out) && i < len(layout); i++ {
		switch layout[i] {
		case 'D':
			if d, ok := charToDigit[out[i]]; ok {
				out[i] = d
			}
		case 'L':
			if l, ok := digitToChar[out[i]]; ok {
				out[i] = l
			}
		}
	}
	return string(out)
}
