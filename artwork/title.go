package artwork

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var (
	// Provider tags wrapped in bracket pairs, e.g. "[NL]", "【4K】", "〈TAG〉", "┃EN┃", "|DE|".
	tagPattern = regexp.MustCompile(`\[[^\]]*\]|【[^】]*】|〈[^〉]*〉|┃[^┃]*┃|\|[^|]*\|`)
	// Leading two-letter country prefixes, e.g. "NL: ", "EN| ".
	prefixPattern = regexp.MustCompile(`^[A-Z]{2}\s*[:|]\s+`)
	// Parenthetical language/dub/sub markers, e.g. "(NL Gesproken)", "(Dubbed)", "(VOSTFR)".
	languagePattern    = regexp.MustCompile(`(?i)\s*\([^()]*\b(?:dub|dubbed|sub|subs|subbed|subtitled|gesproken|ondertiteld|vostfr|vf|vo|multi|audio|nl|en|de|fr|es|it|pl|tr)\b[^()]*\)`)
	placeholderPattern = regexp.MustCompile(`(?i)(/missing/|placeholder|no[-_]?image|noimage|default[-_]?poster)`)
	spaces             = regexp.MustCompile(`\s+`)
)

// foldKey returns the case-folded form of s. Casers are stateful, so each
// call gets its own.
func foldKey(s string) string { return cases.Fold().String(s) }

// StripTags is the default title cleaner: it removes bracketed provider tags
// and a leading country prefix, collapses whitespace and NFC-normalizes.
func StripTags(raw string) string {
	s := norm.NFC.String(raw)
	s = tagPattern.ReplaceAllString(s, " ")
	s = strings.TrimSpace(spaces.ReplaceAllString(s, " "))
	s = prefixPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// StripLanguage removes parenthetical language markers from name.
func StripLanguage(name string) string {
	s := languagePattern.ReplaceAllString(name, "")
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}

// SearchTerms returns the ordered name-search terms for cleanName: the name
// itself, then the language-stripped variant when it differs. Duplicates are
// removed case-insensitively.
func SearchTerms(cleanName string) []string {
	cleanName = strings.TrimSpace(cleanName)
	if cleanName == "" {
		return nil
	}
	candidates := []string{cleanName}
	if stripped := StripLanguage(cleanName); stripped != "" && stripped != cleanName {
		candidates = append(candidates, stripped)
	}
	seen := make(map[string]struct{}, len(candidates))
	terms := make([]string, 0, len(candidates))
	for _, c := range candidates {
		k := foldKey(c)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		terms = append(terms, c)
	}
	return terms
}

// IsPlaceholder reports whether url points at a provider's "no image" asset.
func IsPlaceholder(url string) bool {
	return placeholderPattern.MatchString(url)
}

func usable(url string) bool {
	return strings.TrimSpace(url) != "" && !IsPlaceholder(url)
}
