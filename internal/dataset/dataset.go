package dataset

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/DeafMist/thesis-advisor/backend/internal/models"
)

// Dataset is an ordered, read-only collection of thesis records together
// with the set of columns the source provided.
type Dataset struct {
	records []models.ThesisRecord
	columns map[models.Field]struct{}
}

// New builds a dataset. Records keep the given order.
func New(records []models.ThesisRecord, columns []models.Field) *Dataset {
	cols := make(map[models.Field]struct{}, len(columns))
	for _, c := range columns {
		cols[c] = struct{}{}
	}
	return &Dataset{records: slices.Clone(records), columns: cols}
}

// Len reports the number of records.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.records)
}

// Records returns a copy of the records in original order.
func (d *Dataset) Records() []models.ThesisRecord {
	if d == nil {
		return nil
	}
	return slices.Clone(d.records)
}

// Has reports whether the source provided the column.
func (d *Dataset) Has(f models.Field) bool {
	if d == nil {
		return false
	}
	_, ok := d.columns[f]
	return ok
}

// Columns lists the provided columns in canonical order.
func (d *Dataset) Columns() []models.Field {
	out := make([]models.Field, 0, len(models.AllFields))
	for _, f := range models.AllFields {
		if d.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// Missing returns the fields from want that the dataset lacks.
func (d *Dataset) Missing(want ...models.Field) []models.Field {
	var out []models.Field
	for _, f := range want {
		if !d.Has(f) && !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}

// Unique returns the sorted distinct non-empty values of a column.
func (d *Dataset) Unique(f models.Field) []string {
	if d == nil {
		return nil
	}
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, rec := range d.records {
		v, ok := rec.Value(f)
		if !ok {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// MissingColumnsError reports required columns absent from a source.
type MissingColumnsError struct {
	Columns []models.Field
}

func (e *MissingColumnsError) Error() string {
	names := make([]string, 0, len(e.Columns))
	for _, c := range e.Columns {
		names = append(names, string(c))
	}
	return fmt.Sprintf("missing required columns: %s", strings.Join(names, ", "))
}
