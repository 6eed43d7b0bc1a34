package normalize

import (
	"html"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/pfrederiksen/weekly-events/internal/event"
)

var (
	urlPattern        = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`)
	// "(7pm)", "(Doors 6:30 PM)", "(19:00)", "(noon - 4)"
	parenTimePattern  = regexp.MustCompile(`(?i)\([^()]*(?:\d{1,2}(?::\d{2})?\s*[ap]\.?\s?m\.?|\b\d{1,2}:\d{2}\b|\bnoon\b)[^()]*\)`)
	emptyParenPattern = regexp.MustCompile(`\(\s*\)`)
	freePricePattern  = regexp.MustCompile(`(?i)^(?:free\b.*|\$?\s*0+(?:\.0+)?|no cover|no charge|complimentary)$`)
)

// NormalizeTitle returns the comparison form of a title: NFKC-folded,
// lowercased, punctuation removed and whitespace collapsed. Letters and
// digits of any script are kept.
func NormalizeTitle(title string) string {
	s := strings.ToLower(norm.NFKC.String(title))

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsNumber(r), unicode.IsMark(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// CleanText unescapes HTML entities and collapses whitespace.
func CleanText(s string) string {
	return strings.Join(strings.Fields(html.UnescapeString(s)), " ")
}

// CleanLocationText strips embedded URLs and parenthetical time annotations
// from a location, keeping its display form.
func CleanLocationText(location string) string {
	s := CleanText(location)
	s = urlPattern.ReplaceAllString(s, "")
	s = parenTimePattern.ReplaceAllString(s, "")
	s = emptyParenPattern.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")
	return strings.Trim(s, " ,;|-")
}

// NormalizeLocation returns the comparison form of a location. Two listings
// are at the same place when their normalized locations are equal.
func NormalizeLocation(location string) string {
	return NormalizeTitle(CleanLocationText(location))
}

// NormalizePrice maps every free-like spelling to event.PriceFree. Missing
// prices stay empty; other values are cleaned but otherwise kept.
func NormalizePrice(price string) string {
	s := CleanText(price)
	if s == "" {
		return ""
	}
	if freePricePattern.MatchString(s) {
		return event.PriceFree
	}
	return s
}
