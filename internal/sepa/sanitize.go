package sepa

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Schema length limits.
const (
	maxNameLength = 70
	maxIDLength   = 35
	maxTextLength = 140
)

var germanTransliterations = strings.NewReplacer(
	"ä", "ae", "ö", "oe", "ü", "ue",
	"Ä", "Ae", "Ö", "Oe", "Ü", "Ue",
	"ß", "ss", "&", "+",
)

// sanitizeText reduces s to the SEPA Latin character set
// (a-z A-Z 0-9 / - ? : ( ) . , ' + space) and cuts it to limit characters.
//
// German umlauts are transliterated, other accents are stripped, and
// anything still outside the set becomes a space. Runs of spaces collapse.
// A limit of 0 disables the cut.
func sanitizeText(s string, limit int) string {
	s = germanTransliterations.Replace(s)

	// A fresh chain per call; transformers carry state.
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if stripped, _, err := transform.String(stripMarks, s); err == nil {
		s = stripped
	}

	s = strings.Map(func(r rune) rune {
		if allowedRune(r) {
			return r
		}
		return ' '
	}, s)
	s = strings.Join(strings.Fields(s), " ")

	return truncate(s, limit)
}

// sanitizeID is sanitizeText without spaces, for identifiers.
func sanitizeID(s string) string {
	return truncate(strings.ReplaceAll(sanitizeText(s, 0), " ", ""), maxIDLength)
}

func allowedRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	return strings.ContainsRune("/-?:().,'+ ", r)
}

func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return strings.TrimSpace(s[:limit])
}
