package advisor_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/thesis-advisor/backend/internal/advisor"
	"github.com/DeafMist/thesis-advisor/backend/internal/models"
)

func TestRenderDefaultFields(t *testing.T) {
	rec := sampleRecords()[0]
	got := advisor.Renderer{}.Render(rec)
	want := "Judul: Pengaruh Digitalisasi terhadap Kinerja UMKM\n" +
		"Tahun: 2021\n" +
		"Variabel: Digitalisasi\n" +
		"Metode: Kuantitatif\n" +
		"---\n"
	require.Equal(t, want, got)
}

func TestRenderMissingValuesUsePlaceholder(t *testing.T) {
	rec := models.ThesisRecord{Title: "Tanpa Tahun"}
	r := advisor.Renderer{
		Fields:      []models.Field{models.FieldTitle, models.FieldYear, models.FieldLocation},
		Placeholder: "(kosong)",
	}
	got := r.Render(rec)
	require.Equal(t, "Judul: Tanpa Tahun\nTahun: (kosong)\nLokasi: (kosong)\n---\n", got)
}

func TestAssembleHeadTruncation(t *testing.T) {
	recs := sampleRecords()
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{name: "cap below length", limit: 2, want: 2},
		{name: "cap equals length", limit: 5, want: 5},
		{name: "cap above length", limit: 10, want: 5},
		{name: "zero cap", limit: 0, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			block := advisor.Assemble(recs, tt.limit, advisor.Renderer{})
			require.Equal(t, tt.want, block.Len())
			for i, entry := range block.Entries {
				require.True(t, strings.HasPrefix(entry, "Judul: "+recs[i].Title+"\n"))
			}
		})
	}
}

func TestContextBlockString(t *testing.T) {
	block := advisor.Assemble(sampleRecords()[:2], 8, advisor.Renderer{Fields: []models.Field{models.FieldTitle}})
	require.Equal(t,
		"Judul: Pengaruh Digitalisasi terhadap Kinerja UMKM\n---\n"+
			"Judul: Sistem Informasi Berbasis Cloud\n---\n",
		block.String())
}
