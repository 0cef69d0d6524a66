package advisor

import (
	"strings"

	"github.com/DeafMist/thesis-advisor/backend/internal/models"
)

// Criteria narrow a dataset. Empty sets and a blank keyword impose no restriction.
type Criteria struct {
	Programs []string `json:"programs,omitempty"`
	Methods  []string `json:"methods,omitempty"`
	Keyword  string   `json:"keyword,omitempty"`
}

// DefaultKeywordFields are searched when no fields are configured.
var DefaultKeywordFields = []models.Field{models.FieldTitle}

// Filter returns the records matching every supplied criterion, in input
// order. Program and method membership is exact and case-sensitive; the
// keyword, taken verbatim apart from case, is a substring of at least one
// keyword field; an all-whitespace keyword counts as blank. The input slice is left untouched.
func Filter(records []models.ThesisRecord, c Criteria, keywordFields []models.Field) []models.ThesisRecord {
	if len(keywordFields) == 0 {
		keywordFields = DefaultKeywordFields
	}
	programs := toSet(c.Programs)
	methods := toSet(c.Methods)
	keyword := strings.ToLower(c.Keyword)
	if strings.TrimSpace(keyword) == "" {
		keyword = ""
	}

	out := make([]models.ThesisRecord, 0, len(records))
	for _, rec := range records {
		if programs != nil {
			if _, ok := programs[rec.Program]; !ok {
				continue
			}
		}
		if methods != nil {
			if _, ok := methods[rec.Method]; !ok {
				continue
			}
		}
		if keyword != "" && !containsKeyword(rec, keyword, keywordFields) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func containsKeyword(rec models.ThesisRecord, keyword string, fields []models.Field) bool {
	for _, f := range fields {
		v, ok := rec.Value(f)
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(v), keyword) {
			return true
		}
	}
	return false
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
