// Package normalize cleans up raw captured text before analysis.
package normalize

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	blankRunRe   = regexp.MustCompile(`\n{4,}`)
	innerSpaceRe = regexp.MustCompile(`[ \t]{2,}`)
	prePunctRe   = regexp.MustCompile(` +([.,!?;:])`)
)

// typoFixes is a small fixed spell-correction table applied word-wise.
var typoFixes = map[string]string{
	"teh":        "the",
	"adn":        "and",
	"recieve":    "receive",
	"seperate":   "separate",
	"definately": "definitely",
	"tommorow":   "tomorrow",
	"tomorow":    "tomorrow",
	"adress":     "address",
	"occured":    "occurred",
	"untill":     "until",
}

// Text normalizes raw captured text: trims trailing whitespace per line,
// collapses runs of 3+ blank lines to 2, collapses repeated interior
// spaces, removes spaces before punctuation, fixes a fixed set of common
// typos, and capitalizes sentence starts. Pure and idempotent:
// Text(Text(x)) == Text(x).
func Text(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	s = strings.Join(lines, "\n")

	s = blankRunRe.ReplaceAllString(s, "\n\n\n")
	s = innerSpaceRe.ReplaceAllString(s, " ")
	s = prePunctRe.ReplaceAllString(s, "$1")
	s = fixTypos(s)
	s = capitalizeSentences(s)

	return strings.TrimSpace(s)
}

// fixTypos replaces whole words found in the typo table, preserving an
// initial capital.
func fixTypos(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	word := make([]rune, 0, 16)

	flush := func() {
		if len(word) == 0 {
			return
		}
		w := string(word)
		if fix, ok := typoFixes[strings.ToLower(w)]; ok {
			if unicode.IsUpper(word[0]) {
				fix = strings.ToUpper(fix[:1]) + fix[1:]
			}
			b.WriteString(fix)
		} else {
			b.WriteString(w)
		}
		word = word[:0]
	}

	for _, r := range s {
		if unicode.IsLetter(r) {
			word = append(word, r)
			continue
		}
		flush()
		b.WriteRune(r)
	}
	flush()
	return b.String()
}

// capitalizeSentences uppercases the first letter of the text and the
// first letter following '.', '!', '?', or a newline. Any other
// intervening non-space character cancels the pending capitalization.
func capitalizeSentences(s string) string {
	runes := []rune(s)
	capNext := true
	for i, r := range runes {
		switch {
		case r == '.' || r == '!' || r == '?' || r == '\n':
			capNext = true
		case r == ' ' || r == '\t':
			// Keep pending state across spaces.
		case unicode.IsLetter(r):
			if capNext {
				runes[i] = unicode.ToUpper(r)
			}
			capNext = false
		default:
			capNext = false
		}
	}
	return string(runes)
}
