package metadata

import (
	"regexp"
	"strconv"
	"strings"
)

var titleMarkerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^title[:\s]+(.+)`),
	regexp.MustCompile(`(?i)^article title[:\s]+(.+)`),
	regexp.MustCompile(`(?i)^paper title[:\s]+(.+)`),
}

var titleMarker = Strategy[string]{
	Name: "marker",
	Find: func(d *Doc) (string, bool) {
		for _, line := range head(d.Lines, 20) {
			for _, re := range titleMarkerPatterns {
				if m := re.FindStringSubmatch(line); m != nil {
					t := strings.TrimSpace(m[1])
					if n := runeLen(t); n >= 10 && n <= 200 {
						return t, true
					}
				}
			}
		}
		return "", false
	},
}

var (
	sectionHeading = regexp.MustCompile(`(?i)^(abstract|introduction|keywords|references|page \d+|vol\.|vol |journal|doi:|pmid:)`)
	allCaps        = regexp.MustCompile(`^[A-Z\s]{5,}$`)
	leadingNumber  = regexp.MustCompile(`^\d+[.\s]`)
)

var titleFirstPage = Strategy[string]{
	Name: "first-page",
	Find: func(d *Doc) (string, bool) {
		for _, line := range head(d.FirstPage, 15) {
			if sectionHeading.MatchString(line) || allCaps.MatchString(line) || leadingNumber.MatchString(line) {
				continue
			}
			n := runeLen(line)
			if n < 20 || n > 200 {
				continue
			}
			if strings.Count(line, " ") < 3 || strings.HasPrefix(line, "=") {
				continue
			}
			if strings.Contains(prefix(line, 20), ":") {
				continue
			}
			return line, true
		}
		return "", false
	},
}

var titleFilename = Strategy[string]{
	Name: "filename",
	Find: func(d *Doc) (string, bool) {
		t := TitleFromFilename(d.Filename)
		return t, t != ""
	},
}

var authorMarkerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^authors?[:\s]+(.+)`),
	regexp.MustCompile(`(?i)^by[:\s]+(.+)`),
	regexp.MustCompile(`(?i)^written by[:\s]+(.+)`),
	regexp.MustCompile(`(?i)^correspondent?[:\s]+(.+)`),
}

var authorMarker = Strategy[string]{
	Name: "marker",
	Find: func(d *Doc) (string, bool) {
		for _, line := range head(d.Lines, 30) {
			for _, re := range authorMarkerPatterns {
				m := re.FindStringSubmatch(line)
				if m == nil {
					continue
				}
				raw := strings.TrimSpace(m[1])
				if runeLen(raw) >= 150 {
					continue
				}
				if a := CleanAuthors(raw); a != "" {
					return a, true
				}
			}
		}
		return "", false
	},
}

var (
	authorSectionStop = regexp.MustCompile(`(?i)^(abstract|introduction|keywords|background)`)
	authorNameShapes  = []*regexp.Regexp{
		regexp.MustCompile(`([A-Z][a-z]+ [A-Z]\. [A-Z][a-z]+)`), // John A. Smith
		regexp.MustCompile(`([A-Z][a-z]+ [A-Z][a-z]+)`),         // John Smith
		regexp.MustCompile(`([A-Z]\. [A-Z][a-z]+)`),             // J. Smith
		regexp.MustCompile(`([A-Z][a-z]+, [A-Z]\.[A-Z]\.)`),     // Smith, J.A.
	}
)

// authorNameShape scans the lines above the abstract, skipping the title
// line so title words are not mistaken for names.
var authorNameShape = Strategy[string]{
	Name: "name-shape",
	Find: func(d *Doc) (string, bool) {
		var found []string
		for _, line := range head(d.FirstPage, 10) {
			if authorSectionStop.MatchString(line) {
				break
			}
			if d.Title != "" && line == d.Title {
				continue
			}
			for _, re := range authorNameShapes {
				for _, m := range re.FindAllString(line, -1) {
					if runeLen(m) >= 4 && !contains(found, m) && !IsPlaceholderAuthor(m) {
						found = append(found, m)
					}
				}
			}
		}
		switch len(found) {
		case 0:
			return "", false
		case 1:
			return found[0], true
		default:
			return found[0] + " et al.", true
		}
	},
}

var authorEtAl = Strategy[string]{
	Name: "et-al",
	Find: func(d *Doc) (string, bool) {
		for _, line := range head(d.FirstPage, 15) {
			if !strings.Contains(strings.ToLower(line), "et al") {
				continue
			}
			words := strings.Fields(line)
			for i := 1; i < len(words); i++ {
				if !strings.EqualFold(words[i], "et") {
					continue
				}
				lead := strings.Trim(words[i-1], ",;:()")
				if runeLen(lead) >= 3 && !IsPlaceholderAuthor(lead) {
					return lead + " et al.", true
				}
			}
		}
		return "", false
	},
}

var (
	emailPattern         = regexp.MustCompile(`\S+@\S+`)
	parentheticalPattern = regexp.MustCompile(`\([^)]+\)`)
)

// CleanAuthors strips emails, parenthetical affiliations and trailing
// punctuation, and shortens author lists over 100 characters to
// "<lead> et al.". Placeholder parts are dropped; an author line with
// nothing else yields "".
func CleanAuthors(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = emailPattern.ReplaceAllString(s, "")
	s = parentheticalPattern.ReplaceAllString(s, "")
	s = trimTrailingPunct(strings.Join(strings.Fields(s), " "))
	s = DisplayAuthor(s)
	if runeLen(s) > 100 {
		lead := strings.Split(s, ",")[0]
		lead = strings.Split(lead, " and ")[0]
		s = strings.TrimSpace(lead) + " et al."
	}
	return s
}

var yearMarkerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)year[:\s]+(\d{4})`),
	regexp.MustCompile(`(?i)published[:\s]+(\d{4})`),
	regexp.MustCompile(`(?i)copyright[:\s]+(\d{4})`),
	regexp.MustCompile(`\((\d{4})\)`),
}

var yearMarker = Strategy[int]{
	Name: "marker",
	Find: func(d *Doc) (int, bool) {
		for _, line := range head(d.Lines, 50) {
			for _, re := range yearMarkerPatterns {
				if m := re.FindStringSubmatch(line); m != nil {
					if y, ok := validYear(m[1], MinYear, MaxYear); ok {
						return y, true
					}
				}
			}
		}
		return 0, false
	},
}

var yearToken = regexp.MustCompile(`\b(19[89]\d|20[0-3]\d)\b`)

// yearFirstPageMax takes the latest plausible year on the first page. ISSNs
// and page ranges can produce false positives.
var yearFirstPageMax = Strategy[int]{
	Name: "first-page-max",
	Find: func(d *Doc) (int, bool) {
		best := 0
		for _, line := range head(d.FirstPage, 20) {
			for _, tok := range yearToken.FindAllString(line, -1) {
				if y, ok := validYear(tok, MinYear, MaxYear); ok && y > best {
					best = y
				}
			}
		}
		return best, best != 0
	},
}

var journalYearPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d{4});`),
	regexp.MustCompile(`(\d{4})\s*[;:]`),
	regexp.MustCompile(`Vol\.\s*\d+.*?(\d{4})`),
	regexp.MustCompile(`Volume\s*\d+.*?(\d{4})`),
}

var yearJournal = Strategy[int]{
	Name: "journal",
	Find: func(d *Doc) (int, bool) {
		for _, line := range d.FirstPage {
			for _, re := range journalYearPatterns {
				if m := re.FindStringSubmatch(line); m != nil {
					if y, ok := validYear(m[1], MinYear, MaxYear); ok {
						return y, true
					}
				}
			}
		}
		return 0, false
	},
}

func validYear(s string, lo, hi int) (int, bool) {
	y, err := strconv.Atoi(s)
	if err != nil || y < lo || y > hi {
		return 0, false
	}
	return y, true
}

func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
