package classifier

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"igleads/pkg/config"
	"igleads/pkg/models"
)

// TextFields is the profile text the relevance check looks at
type TextFields struct {
	Bio          string
	DisplayName  string
	ExternalLink string
}

// FieldsOf returns the classifiable text of a profile record
func FieldsOf(p models.ProfileRecord) TextFields {
	return TextFields{Bio: p.Bio, DisplayName: p.DisplayName, ExternalLink: p.ExternalLink}
}

// Combined joins the non-empty fields with newlines
func (f TextFields) Combined() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{f.DisplayName, f.Bio, f.ExternalLink} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

// Classifier decides relevance and assigns a business category
type Classifier interface {
	Relevant(ctx context.Context, fields TextFields) bool
	Categorize(cleanedBio string) models.Category
}

type rule struct {
	category models.Category
	keywords []string
}

// KeywordClassifier matches folded keywords as substrings. Matching ignores
// case and diacritics, so "reparacion" matches "Reparación".
type KeywordClassifier struct {
	relevance []string
	rules     []rule
}

// NewKeywordClassifier builds a classifier from keyword lists. Every category
// keyword also counts toward relevance.
func NewKeywordClassifier(kw config.KeywordsConfig) *KeywordClassifier {
	c := &KeywordClassifier{
		rules: []rule{
			{models.CategoryRepairShop, foldAll(kw.RepairShop)},
			{models.CategoryDistributor, foldAll(kw.Distributor)},
			{models.CategoryReseller, foldAll(kw.Reseller)},
			{models.CategoryRetailer, foldAll(kw.Retailer)},
			// generic phone-business terms resolve to the least specific type
			{models.CategoryRetailer, foldAll(kw.Generic)},
		},
	}

	seen := make(map[string]bool)
	add := func(words []string) {
		for _, w := range words {
			if !seen[w] {
				seen[w] = true
				c.relevance = append(c.relevance, w)
			}
		}
	}
	add(foldAll(kw.Relevance))
	for _, r := range c.rules {
		add(r.keywords)
	}
	return c
}

// Relevant reports whether any relevance keyword occurs in the combined text
func (c *KeywordClassifier) Relevant(_ context.Context, fields TextFields) bool {
	return containsAny(Fold(fields.Combined()), c.relevance)
}

// Categorize returns the highest-priority category with a keyword hit, or
// Unknown when nothing matches
func (c *KeywordClassifier) Categorize(cleanedBio string) models.Category {
	text := Fold(cleanedBio)
	if text == "" {
		return models.CategoryUnknown
	}
	for _, r := range c.rules {
		if containsAny(text, r.keywords) {
			return r.category
		}
	}
	return models.CategoryUnknown
}

// Keywords returns the folded relevance keywords
func (c *KeywordClassifier) Keywords() []string {
	out := make([]string, len(c.relevance))
	copy(out, c.relevance)
	return out
}

func containsAny(text string, keywords []string) bool {
	if text == "" {
		return false
	}
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// Fold lowercases s and strips combining marks
func Fold(s string) string {
	if s == "" {
		return ""
	}
	// transform chains keep state, so each call gets its own
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

func foldAll(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w = Fold(strings.TrimSpace(w)); w != "" {
			out = append(out, w)
		}
	}
	return out
}

var (
	urlPattern        = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// CleanBio prepares a bio for output and categorization. A first line that
// repeats the display name or handle is dropped, URLs are removed and runs of
// whitespace collapse to one space.
func CleanBio(p models.ProfileRecord) string {
	lines := strings.Split(strings.TrimSpace(p.Bio), "\n")
	if len(lines) > 0 {
		first := Fold(strings.TrimSpace(lines[0]))
		if first != "" && (first == Fold(strings.TrimSpace(p.DisplayName)) || first == string(p.Handle)) {
			lines = lines[1:]
		}
	}
	text := strings.Join(lines, " ")
	text = urlPattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
}
