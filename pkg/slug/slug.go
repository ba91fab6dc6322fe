// Package slug derives URL-safe identifiers from module titles.
//
// Titles are transliterated from Cyrillic to ASCII rune by rune, lowered,
// and reduced to hyphen-separated word characters. The result is stable for
// a given input; uniqueness against existing slugs is the storage layer's
// concern.
package slug

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strings"
)

// MaxLength caps generated slugs so they stay usable in URLs and indexes.
const MaxLength = 64

// translit maps Cyrillic letters to their conventional Latin spellings.
// Hard and soft signs are dropped entirely.
var translit = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d",
	'е': "e", 'ё': "e", 'ж': "zh", 'з': "z", 'и': "i",
	'й': "y", 'к': "k", 'л': "l", 'м': "m", 'н': "n",
	'о': "o", 'п': "p", 'р': "r", 'с': "s", 'т': "t",
	'у': "u", 'ф': "f", 'х': "h", 'ц': "ts", 'ч': "ch",
	'ш': "sh", 'щ': "sch", 'ъ': "", 'ы': "y", 'ь': "",
	'э': "e", 'ю': "yu", 'я': "ya",
}

var (
	quoteChars    = regexp.MustCompile("['\"“”«»]")
	nonWordChars  = regexp.MustCompile(`[^a-z0-9]+`)
	repeatHyphens = regexp.MustCompile(`-+`)
)

// Make converts a title to a slug candidate. It never fails; callers must
// substitute Random() when the result is empty (for example a title made
// entirely of punctuation).
func Make(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if repl, ok := translit[r]; ok {
			b.WriteString(repl)
			continue
		}
		b.WriteRune(r)
	}

	out := quoteChars.ReplaceAllString(b.String(), "")
	out = nonWordChars.ReplaceAllString(out, "-")
	out = repeatHyphens.ReplaceAllString(out, "-")
	out = strings.Trim(out, "-")
	if len(out) > MaxLength {
		out = out[:MaxLength]
	}
	return out
}

// Random returns a short random fallback identifier, used when Make
// produces an empty candidate.
func Random() string {
	b := make([]byte, 4)
	// crypto/rand.Read does not fail on supported platforms
	rand.Read(b) //nolint:errcheck
	return hex.EncodeToString(b)
}
