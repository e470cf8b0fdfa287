package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FallbackSlug replaces suggestions that sanitize to nothing.
const FallbackSlug = "unnamed-image"

// MaxSlugLength caps the slug in bytes so the final name stays well under
// common filename limits once a collision suffix and extension are added.
const MaxSlugLength = 80

var lowerCaser = cases.Lower(language.Und)

// Slugify converts free text into a filename stem made only of [a-z0-9_-].
// Accented letters are folded to their base letter, whitespace runs become a
// single hyphen, consecutive hyphens collapse, everything else is dropped, and
// leading or trailing separators are trimmed. Empty results yield FallbackSlug.
func Slugify(input string) string {
	folded := foldAccents(strings.TrimSpace(input))
	folded = lowerCaser.String(folded)

	var b strings.Builder
	b.Grow(len(folded))
	lastHyphen := false
	inSpace := false
	for _, r := range folded {
		if unicode.IsSpace(r) {
			inSpace = true
			continue
		}
		if inSpace {
			inSpace = false
			if !lastHyphen && b.Len() > 0 {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
			lastHyphen = false
		case r == '-':
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}

	slug := strings.Trim(b.String(), "-_")
	if len(slug) > MaxSlugLength {
		slug = strings.TrimRight(slug[:MaxSlugLength], "-_")
	}
	if slug == "" {
		return FallbackSlug
	}
	return slug
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
