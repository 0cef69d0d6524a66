package advisor_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/thesis-advisor/backend/internal/advisor"
	"github.com/DeafMist/thesis-advisor/backend/internal/models"
)

func TestSummarize(t *testing.T) {
	st := advisor.Summarize(sampleRecords(), 0)
	require.Equal(t, 5, st.Count)
	require.True(t, st.HasYears())
	require.Equal(t, 2019, *st.YearMin)
	require.Equal(t, 2023, *st.YearMax)
	require.Equal(t, []advisor.ValueCount{
		{Value: "Cloud", Count: 1},
		{Value: "Digitalisasi", Count: 1},
		{Value: "Literasi", Count: 1},
	}, st.Variables)
	require.Equal(t, []advisor.ValueCount{
		{Value: "Kualitatif", Count: 2},
		{Value: "Kuantitatif", Count: 2},
		{Value: "R&D", Count: 1},
	}, st.Methods)
}

func TestSummarizeNoYears(t *testing.T) {
	st := advisor.Summarize([]models.ThesisRecord{{Title: "A"}}, 3)
	require.Equal(t, 1, st.Count)
	require.False(t, st.HasYears())
	require.Empty(t, st.Methods)
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name string
		text string
		want advisor.Verdict
	}{
		{name: "recommended", text: "**Penilaian:** Direkomendasikan\nAlasan...", want: advisor.VerdictRecommended},
		{name: "not recommended", text: "Penilaian: Tidak Direkomendasikan karena...", want: advisor.VerdictNotRecommended},
		{name: "needs modification", text: "perlu modifikasi pada variabel", want: advisor.VerdictNeedsModification},
		{name: "first label wins", text: "Direkomendasikan. Topik lain tidak direkomendasikan.", want: advisor.VerdictRecommended},
		{name: "none", text: "Tidak ada penilaian.", want: advisor.VerdictNone},
		{
			name: "echoed label list",
			text: "Label: Direkomendasikan / Perlu Modifikasi / Tidak Direkomendasikan\n\n**Penilaian:** Perlu Modifikasi\nAlasan: ...",
			want: advisor.VerdictNeedsModification,
		},
		{
			name: "assessment heading in list",
			text: "Pilihan: Direkomendasikan, Tidak Direkomendasikan\n- Penilaian kelayakan: Tidak Direkomendasikan",
			want: advisor.VerdictNotRecommended,
		},
		{
			name: "heading without label falls back",
			text: "Penilaian:\nPerlu Modifikasi pada variabel",
			want: advisor.VerdictNeedsModification,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, advisor.ParseVerdict(tt.text))
		})
	}
}
