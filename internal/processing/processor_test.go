package processing_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/thesis-advisor/backend/internal/models"
	"github.com/DeafMist/thesis-advisor/backend/internal/processing"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "punctuation", input: "UMKM!!!   digital", want: "UMKM digital"},
		{name: "collapse whitespace", input: "foo\n\nbar\t baz", want: "foo bar baz"},
		{name: "entities", input: "R&amp;D", want: "R D"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := processing.CleanText(tt.input); got != tt.want {
				t.Fatalf("CleanText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCollapseSpaceKeepsPunctuation(t *testing.T) {
	require.Equal(t, "Regresi, SEM-PLS", processing.CollapseSpace("  Regresi,\n SEM-PLS "))
}

func TestExtractKeywords(t *testing.T) {
	text := "Pengaruh digitalisasi digitalisasi terhadap kinerja kinerja kinerja UMKM dan koperasi"
	got := processing.ExtractKeywords(text, 3, 4)
	require.Equal(t, []string{"kinerja", "digitalisasi", "koperasi"}, got)

	require.Nil(t, processing.ExtractKeywords("", 5, 3))
	require.Nil(t, processing.ExtractKeywords("dan di ke", 5, 1))
}

func TestNormalizeRecordDerivesKeywords(t *testing.T) {
	rec := models.ThesisRecord{
		Title:     "  Analisis  Kinerja   UMKM ",
		Variables: "Digitalisasi, Kinerja",
		Program:   "Manajemen\t",
	}
	got := processing.NormalizeRecord(rec, 2, 4)
	require.Equal(t, "Analisis Kinerja UMKM", got.Title)
	require.Equal(t, "Manajemen", got.Program)
	require.Equal(t, "kinerja, digitalisasi", got.DerivedKeywords)
	require.Empty(t, got.Keywords)

	rec.Keywords = " umkm "
	got = processing.NormalizeRecord(rec, 2, 4)
	require.Equal(t, "umkm", got.Keywords)
	require.Equal(t, "kinerja, digitalisasi", got.DerivedKeywords)

	got = processing.NormalizeRecord(rec, 0, 4)
	require.Empty(t, got.DerivedKeywords)
}

func TestBuildRecordID(t *testing.T) {
	year := 2021
	a := models.ThesisRecord{Title: "Judul", Year: &year, Program: "CS", Source: "s"}
	b := models.ThesisRecord{Title: "judul", Year: &year, Program: "cs", Source: "s", Method: "other"}
	c := models.ThesisRecord{Title: "Judul", Program: "CS", Source: "s"}

	require.NotEmpty(t, processing.BuildRecordID(a))
	require.Equal(t, processing.BuildRecordID(a), processing.BuildRecordID(b))
	require.NotEqual(t, processing.BuildRecordID(a), processing.BuildRecordID(c))
}

func TestContentHash(t *testing.T) {
	year := 2021
	a := models.ThesisRecord{ID: "x", Title: "Judul", Year: &year, Method: "Kuantitatif"}
	b := a
	b.DerivedKeywords = "judul"

	require.Equal(t, processing.ContentHash(a), processing.ContentHash(b))

	b.Method = "SEM-PLS"
	require.NotEqual(t, processing.ContentHash(a), processing.ContentHash(b))

	c := a
	c.Year = nil
	require.NotEqual(t, processing.ContentHash(a), processing.ContentHash(c))
}
