package metadata

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	filenameYear       = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	contentYear        = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
	filenameAuthorEtAl = regexp.MustCompile(`^([a-zA-Z-]+(?:-et-al)?)-\d{4}`)
	filenameAuthorList = regexp.MustCompile(`^([a-zA-Z-]+(?:-[a-zA-Z-]+){1,2}?)-(?:and|et-al|\d{4})`)
)

var filenameStopWords = map[string]bool{
	"a": true, "an": true, "the": true, "in": true, "on": true, "at": true,
	"to": true, "for": true, "of": true, "with": true, "by": true,
}

// FromFilename is the query-time fallback used when a corpus row carries no
// author or year. It reads a year from the filename or, failing that, from
// the first 2000 characters of text (1990-2030), and an author from
// academic filename shapes such as "lee-et-al-2012-anemia.pdf". Missing
// values are returned as 0 and "".
func FromFilename(filename, text string) (year int, author string) {
	name := Stem(filename)

	if m := filenameYear.FindString(name); m != "" {
		year, _ = validYear(m, 1900, 2099)
	}

	if strings.Contains(name, "-") {
		for _, re := range []*regexp.Regexp{filenameAuthorEtAl, filenameAuthorList} {
			m := re.FindStringSubmatch(name)
			if m == nil {
				continue
			}
			raw := m[1]
			lead := strings.ToLower(strings.Split(raw, "-")[0])
			if filenameStopWords[lead] || len(lead) <= 2 {
				continue
			}
			// Longer slugs are title words, not author lists.
			if len(strings.Split(strings.TrimSuffix(raw, "-et-al"), "-")) > 3 {
				continue
			}
			author = authorFromSlug(raw)
			break
		}
	}

	if year == 0 && text != "" {
		sample := text
		if len(sample) > 2000 {
			sample = sample[:2000]
		}
		for _, tok := range contentYear.FindAllString(sample, -1) {
			if y, ok := validYear(tok, 1990, MaxYear); ok {
				year = y
				break
			}
		}
	}
	return year, author
}

// authorFromSlug turns "lee-et-al" into "Lee et al." and "smith-jones"
// into "Smith Jones".
func authorFromSlug(slug string) string {
	etAl := strings.HasSuffix(slug, "-et-al")
	slug = strings.TrimSuffix(slug, "-et-al")

	parts := strings.FieldsFunc(slug, func(r rune) bool { return r == '-' })
	for i, p := range parts {
		r, size := utf8.DecodeRuneInString(p)
		parts[i] = string(unicode.ToUpper(r)) + strings.ToLower(p[size:])
	}
	s := strings.Join(parts, " ")
	if etAl {
		s += " et al."
	}
	return s
}
