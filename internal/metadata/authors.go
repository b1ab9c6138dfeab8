package metadata

import (
	"strings"
	"unicode"
)

// placeholderWords never name a real author. They turn up as dataset
// placeholders ("nan", "None") and as extraction noise ("Unknown Author",
// "Affiliations").
var placeholderWords = map[string]bool{
	"none":         true,
	"nan":          true,
	"null":         true,
	"unknown":      true,
	"author":       true,
	"authors":      true,
	"affiliation":  true,
	"affiliations": true,
}

// DisplayAuthor drops the comma-separated parts of s that carry no name,
// such as "nan", "Unknown Author" or "Unknown et al.", and returns "" when
// nothing but placeholders or a bare "et al." is left.
func DisplayAuthor(s string) string {
	var kept []string
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if words := nameWords(part); len(words) > 0 && allPlaceholders(words) {
			continue
		}
		kept = append(kept, part)
	}
	out := strings.Join(kept, ", ")
	if len(nameWords(out)) == 0 {
		return ""
	}
	return out
}

// IsPlaceholderAuthor reports whether s carries no real author information.
func IsPlaceholderAuthor(s string) bool { return DisplayAuthor(s) == "" }

// nameWords lowercases s and splits it on anything that is not a letter,
// leaving out "et" and "al".
func nameWords(s string) []string {
	var words []string
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool { return !unicode.IsLetter(r) }) {
		if w != "et" && w != "al" {
			words = append(words, w)
		}
	}
	return words
}

func allPlaceholders(words []string) bool {
	for _, w := range words {
		if !placeholderWords[w] {
			return false
		}
	}
	return true
}

// trimTrailingPunct removes list separators and a sentence period left at
// the end of an author line. A period after an initial ("Kim J.") or after
// "et al." is kept.
func trimTrailingPunct(s string) string {
	s = strings.TrimRight(s, ",;: ")
	if !strings.HasSuffix(s, ".") {
		return s
	}
	fields := strings.Fields(strings.TrimSuffix(s, "."))
	if len(fields) == 0 {
		return ""
	}
	last := fields[len(fields)-1]
	if strings.EqualFold(last, "al") || strings.Contains(last, ".") || len([]rune(last)) < 3 {
		return s
	}
	return strings.TrimRight(strings.TrimSuffix(s, "."), ",;: ")
}
