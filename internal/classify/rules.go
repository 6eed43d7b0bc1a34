package classify

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Event types produced by the default rule table.
const (
	TypeMarket   = "market"
	TypeFair     = "fair"
	TypeFestival = "festival"
	TypeFood     = "food"
	TypeMusic    = "music"
	TypeOther    = "other"
)

// Category is one row of the keyword table. Categories are tried in order.
type Category struct {
	Name     string   `yaml:"name"`
	Priority int      `yaml:"priority"`
	Keywords []string `yaml:"keywords"`
}

// Rules is the classifier configuration.
type Rules struct {
	Categories      []Category `yaml:"categories"`
	OtherPriority   int        `yaml:"other_priority"`
	FreeBoost       int        `yaml:"free_boost"`
	ChineseKeywords []string   `yaml:"chinese_keywords"`
	DetectLanguage  bool       `yaml:"detect_language"`
}

// DefaultRules returns the built-in keyword table.
func DefaultRules() Rules {
	return Rules{
		Categories: []Category{
			{Name: TypeMarket, Priority: 10, Keywords: []string{"market", "farmers market", "night market", "flea", "bazaar", "swap meet", "市集", "夜市"}},
			{Name: TypeFair, Priority: 10, Keywords: []string{"fair", "expo", "carnival", "庙会"}},
			{Name: TypeFestival, Priority: 10, Keywords: []string{"festival", "fest", "celebration", "parade", "春节", "中秋节", "元宵节", "端午节", "文化节", "艺术节", "音乐节", "美食节"}},
			{Name: TypeFood, Priority: 7, Keywords: []string{"food", "tasting", "dinner", "brunch", "dim sum", "food truck", "beer", "wine", "美食"}},
			{Name: TypeMusic, Priority: 7, Keywords: []string{"music", "concert", "jazz", "live band", "symphony", "orchestra", "dj", "音乐"}},
		},
		OtherPriority: 3,
		FreeBoost:     1,
		ChineseKeywords: []string{
			"chinese", "chinatown", "lunar new year", "mid-autumn", "moon festival",
			"dragon boat", "lion dance", "dim sum", "mandarin", "cantonese",
			"中文", "中国", "华人", "春节", "中秋",
		},
		DetectLanguage: true,
	}
}

type compiledCategory struct {
	Category
	pattern *regexp.Regexp
}

func compileCategories(categories []Category) ([]compiledCategory, error) {
	out := make([]compiledCategory, 0, len(categories))
	for _, c := range categories {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("category with empty name")
		}
		if len(c.Keywords) == 0 {
			return nil, fmt.Errorf("category %q has no keywords", c.Name)
		}
		re, err := keywordPattern(c.Keywords)
		if err != nil {
			return nil, fmt.Errorf("category %q: %w", c.Name, err)
		}
		out = append(out, compiledCategory{Category: c, pattern: re})
	}
	return out, nil
}

// keywordPattern builds a case-insensitive alternation. Word boundaries are
// only added next to ASCII word characters, so CJK keywords match inside text.
func keywordPattern(keywords []string) (*regexp.Regexp, error) {
	parts := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		p := regexp.QuoteMeta(kw)
		if isASCIIWord(rune(kw[0])) {
			p = `\b` + p
		}
		if isASCIIWord(rune(kw[len(kw)-1])) {
			p += `\b`
		}
		parts = append(parts, p)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("no usable keywords")
	}
	return regexp.Compile(`(?i)(?:` + strings.Join(parts, "|") + `)`)
}

func isASCIIWord(r rune) bool {
	return r < unicode.MaxASCII && (r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r))
}
