package match

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// vocabulary of release annotations dropped from titles.
const vocab = `remaster(?:ed)?(?:\s*\d{4})?|mono|stereo|single|album|radio|bonus|lp|version|mix|edit|take|alt|acoustic|live|reissue`

var (
	// " - Remastered 2009", " - Live at Wembley" and everything after.
	dashClause = regexp.MustCompile(`\s+-\s*(?:` + vocab + `)\b.*$`)
	// "(Remastered)", "[Deluxe Edition]", "(2011 Stereo Mix)".
	annotated = regexp.MustCompile(`\s*[\(\[][^\)\]]*\b(?:` + vocab + `|deluxe|remix)[^\)\]]*[\)\]]`)
	// "(From "Some Film")", "(Single Version)".
	fromGroup    = regexp.MustCompile(`\s*[\(\[]from [^\)\]]*[\)\]]`)
	versionGroup = regexp.MustCompile(`\s*[\(\[][^\)\]]*version[\)\]]`)
	brackets     = regexp.MustCompile(`[\(\)\[\]]`)
	spaces       = regexp.MustCompile(`\s+`)
)

var stripMarks = runes.Remove(runes.In(unicode.Mn))

// Normalize canonicalizes a title for comparison.
//
// Diacritics are removed, text is lowercased, release annotations such as remaster, live and
// edition markers are stripped with their brackets, whitespace is collapsed and leading or
// trailing spaces, hyphens, underscores and periods are trimmed. Normalize is idempotent.
func Normalize(s string) string {
	for {
		next := normalizeOnce(s)
		if next == s {
			return next
		}
		s = next
	}
}

func normalizeOnce(s string) string {
	s = norm.NFKD.String(s)
	s = strings.ToLower(s)
	if out, _, err := transform.String(stripMarks, s); err == nil {
		s = out
	}

	s = dashClause.ReplaceAllString(s, "")
	s = annotated.ReplaceAllString(s, "")
	s = fromGroup.ReplaceAllString(s, "")
	s = versionGroup.ReplaceAllString(s, "")
	s = brackets.ReplaceAllString(s, "")
	s = spaces.ReplaceAllString(s, " ")
	return strings.Trim(s, " -_.")
}
