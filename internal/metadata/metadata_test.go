package metadata

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfer_MarkersWin(t *testing.T) {
	src := Source{
		Filename: "some-file.pdf",
		Pages: []string{`
Title: Anemia in General Medical Inpatients
Authors: Jane Kim (Seoul National University), Paul Lee jane@example.org
Published: 2019
A Different Line That Could Be A Title Candidate
`},
	}
	m := Infer(src)

	assert.Equal(t, "Anemia in General Medical Inpatients", m.Title)
	assert.Equal(t, "marker", m.TitleFrom)
	assert.Equal(t, "Jane Kim, Paul Lee", m.Author)
	assert.Equal(t, "marker", m.AuthorFrom)
	assert.Equal(t, 2019, m.Year)
	assert.Equal(t, "marker", m.YearFrom)
}

func TestInfer_FirstPageHeuristics(t *testing.T) {
	page1 := `ORIGINAL ARTICLE
1. Front matter
Volume 12 Issue 3
Duration of length of stay in pneumonia and hospital type
Maria Rodriguez, Carlos Vega
Received 2016 accepted 2018
Abstract
Pneumonia is a leading cause of admission.`
	page2 := "Results from the 2024 follow-up cohort."

	m := Infer(Source{Filename: "x.pdf", Pages: []string{page1, page2}})

	assert.Equal(t, "Duration of length of stay in pneumonia and hospital type", m.Title)
	assert.Equal(t, "first-page", m.TitleFrom)
	assert.Equal(t, "Maria Rodriguez et al.", m.Author)
	assert.Equal(t, "name-shape", m.AuthorFrom)
	assert.Equal(t, 2018, m.Year)
	assert.Equal(t, "first-page-max", m.YearFrom)
}

func TestInfer_TitleLineIsNotAnAuthor(t *testing.T) {
	page1 := `Hospital Acquired Anemia in Internal Medicine Patients
Abstract
Background text.`

	m := Infer(Source{Filename: "hospital-anemia.pdf", Pages: []string{page1}})

	assert.Equal(t, "first-page", m.TitleFrom)
	assert.Equal(t, UnknownAuthor, m.Author)
	assert.Equal(t, "", m.AuthorFrom)
}

func TestInfer_FallbacksToFilename(t *testing.T) {
	m := Infer(Source{Filename: "papers/trends_in-adult-asthma.txt", Pages: []string{"short\nlines\nonly"}})

	assert.Equal(t, "Trends in Adult Asthma", m.Title)
	assert.Equal(t, "filename", m.TitleFrom)
	assert.Equal(t, UnknownAuthor, m.Author)
	assert.Equal(t, 0, m.Year)
	assert.Equal(t, "", m.YearFrom)
}

func TestAuthorEtAl(t *testing.T) {
	d := NewDoc(Source{Pages: []string{"as reported by chen et al. in a cohort"}})
	got, ok := authorEtAl.Find(d)
	assert.True(t, ok)
	assert.Equal(t, "chen et al.", got)
}

func TestYearJournal(t *testing.T) {
	d := NewDoc(Source{Pages: []string{"BMC Med 2017;15:88"}})
	// first-page-max also sees 2017; the journal strategy is checked alone.
	got, ok := yearJournal.Find(d)
	assert.True(t, ok)
	assert.Equal(t, 2017, got)
}

func TestYearMarker_OutOfRangeIgnored(t *testing.T) {
	d := NewDoc(Source{Pages: []string{"Copyright 1875 Society\nPublished: 2021"}})
	got, ok := yearMarker.Find(d)
	assert.True(t, ok)
	assert.Equal(t, 2021, got)
}

func TestCleanAuthors(t *testing.T) {
	assert.Equal(t, "A. Smith", CleanAuthors("A. Smith (Dept. of Medicine) smith@uni.edu"))

	long := "Alexandra Thavendiranathan, Benjamin Okonkwo-Richardson, Christopher Abernathy-Lee and Dorothea Vanderbilt"
	assert.Equal(t, "Alexandra Thavendiranathan et al.", CleanAuthors(long))
}

func TestTitleFromFilename(t *testing.T) {
	assert.Equal(t, "Anemia in Older Adults", TitleFromFilename("anemia-in_older-adults.pdf"))
	assert.Equal(t, "The Burden of COPD", TitleFromFilename("the burden of COPD.txt"))
}

func TestFromFilename(t *testing.T) {
	tests := []struct {
		name       string
		filename   string
		text       string
		wantYear   int
		wantAuthor string
	}{
		{"et al slug", "lee-et-al-2012-anemia.pdf", "", 2012, "Lee et al."},
		{"two authors", "smith-jones-2019.pdf", "", 2019, "Smith Jones"},
		{"title words rejected", "anemia-in-general-medical-2019.pdf", "", 2019, ""},
		{"stopword rejected", "the-anemia-2019.pdf", "", 2019, ""},
		{"year from text", "Trends in adult asthma hospitalization.pdf", "Received 1985. Printed 2017 in Chest.", 2017, ""},
		{"nothing", "notes.txt", "no digits here", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			year, author := FromFilename(tt.filename, tt.text)
			assert.Equal(t, tt.wantYear, year)
			assert.Equal(t, tt.wantAuthor, author)
		})
	}
}

func TestInfer_PlaceholderAuthorMarkerIsNoMatch(t *testing.T) {
	for _, line := range []string{"Authors: None", "Author: Unknown.", "By: nan, nan", "Authors: Unknown et al."} {
		m := Infer(Source{Filename: "x.pdf", Pages: []string{line + "\nplain body text follows here"}})
		assert.Equal(t, UnknownAuthor, m.Author, line)
		assert.Empty(t, m.AuthorFrom, line)
	}

	m := Infer(Source{Filename: "x.pdf", Pages: []string{"Author: Unknown\nMaria Rodriguez\nAbstract\nBody."}})
	assert.Equal(t, "Maria Rodriguez", m.Author)
	assert.Equal(t, "name-shape", m.AuthorFrom)
}

func TestNameShapeAndEtAl_SkipPlaceholders(t *testing.T) {
	d := NewDoc(Source{Pages: []string{"Unknown Author\nAbstract"}})
	_, ok := authorNameShape.Find(d)
	assert.False(t, ok)

	d = NewDoc(Source{Pages: []string{"as noted by unknown et al. earlier"}})
	_, ok = authorEtAl.Find(d)
	assert.False(t, ok)
}

func TestDisplayAuthor(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Kim J", "Kim J"},
		{"Lee et al.", "Lee et al."},
		{"Smith, J.A.", "Smith, J.A."},
		{"Kim J, nan", "Kim J"},
		{"nan, nan", ""},
		{"None.", ""},
		{"Unknown Author", ""},
		{"Unknown et al.", ""},
		{"et al.", ""},
		{" AFFILIATIONS ", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DisplayAuthor(tt.in), tt.in)
	}
}

func TestCleanAuthors_TrailingPunctuation(t *testing.T) {
	assert.Equal(t, "Jane Kim", CleanAuthors("Jane Kim."))
	assert.Equal(t, "Kim J.", CleanAuthors("Kim J."))
	assert.Equal(t, "Lee et al.", CleanAuthors("Lee et al.;"))
	assert.Equal(t, "", CleanAuthors("Unknown."))
}

func TestInfer_OverrideBeatsStrategies(t *testing.T) {
	src := Source{
		Filename: "kim-2019.pdf",
		Pages:    []string{"Title: Anemia in General Medical Inpatients\nAuthor: Unknown\nPublished: 2011"},
		Override: Override{Author: "Kim J", Year: 2019},
	}
	m := Infer(src)

	assert.Equal(t, "Kim J", m.Author)
	assert.Equal(t, OverrideStrategy, m.AuthorFrom)
	assert.Equal(t, 2019, m.Year)
	assert.Equal(t, OverrideStrategy, m.YearFrom)
	assert.Equal(t, "Anemia in General Medical Inpatients", m.Title)
	assert.Equal(t, "marker", m.TitleFrom)
}

func TestDecodeOverrides(t *testing.T) {
	doc := `
kim-2019-anemia.pdf:
  author: Kim J
  year: 2019
reviews/lee-asthma.pdf:
  title: Asthma Readmission
`
	o, err := DecodeOverrides(strings.NewReader(doc))
	require.NoError(t, err)

	ov, ok := o.Lookup("papers/kim-2019-anemia.pdf")
	require.True(t, ok)
	assert.Equal(t, Override{Author: "Kim J", Year: 2019}, ov)

	ov, ok = o.Lookup("reviews/lee-asthma.pdf")
	require.True(t, ok)
	assert.Equal(t, "Asthma Readmission", ov.Title)

	_, ok = o.Lookup("lee-asthma.pdf")
	assert.False(t, ok)

	_, err = DecodeOverrides(strings.NewReader("x.pdf:\n  year: 19\n"))
	assert.Error(t, err)

	o, err = LoadOverrides("")
	assert.NoError(t, err)
	assert.Nil(t, o)
}
