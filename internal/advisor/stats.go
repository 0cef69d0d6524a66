package advisor

import (
	"sort"

	"github.com/DeafMist/thesis-advisor/backend/internal/models"
)

const DefaultTopN = 5

// ValueCount is one entry of a value frequency table.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Stats summarize a filtered view for evaluate mode.
type Stats struct {
	Count     int          `json:"count"`
	YearMin   *int         `json:"year_min,omitempty"`
	YearMax   *int         `json:"year_max,omitempty"`
	Variables []ValueCount `json:"variables"`
	Methods   []ValueCount `json:"methods"`
}

// HasYears reports whether any record carried a year.
func (s Stats) HasYears() bool {
	return s.YearMin != nil && s.YearMax != nil
}

// Summarize computes counts over the whole view, not only the rendered head.
func Summarize(view []models.ThesisRecord, topN int) Stats {
	if topN <= 0 {
		topN = DefaultTopN
	}
	st := Stats{Count: len(view)}
	for _, rec := range view {
		if rec.Year == nil {
			continue
		}
		y := *rec.Year
		if st.YearMin == nil || y < *st.YearMin {
			st.YearMin = &y
		}
		if st.YearMax == nil || y > *st.YearMax {
			st.YearMax = &y
		}
	}
	st.Variables = topValues(view, models.FieldVariables, topN)
	st.Methods = topValues(view, models.FieldMethod, topN)
	return st
}

// topValues counts whole cell values; ties break alphabetically so output is stable.
func topValues(view []models.ThesisRecord, f models.Field, n int) []ValueCount {
	freq := make(map[string]int)
	for _, rec := range view {
		if v, ok := rec.Value(f); ok {
			freq[v]++
		}
	}

	out := make([]ValueCount, 0, len(freq))
	for v, c := range freq {
		out = append(out, ValueCount{Value: v, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Value < out[j].Value
		}
		return out[i].Count > out[j].Count
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
