package advisor

import (
	"strings"

	"github.com/DeafMist/thesis-advisor/backend/internal/models"
)

const (
	DefaultPlaceholder = "-"
	DefaultSeparator   = "---"
)

// DefaultContextFields is the per-record template used when none is configured.
var DefaultContextFields = []models.Field{
	models.FieldTitle,
	models.FieldYear,
	models.FieldVariables,
	models.FieldMethod,
}

// Renderer turns one record into a fixed multi-line block.
type Renderer struct {
	Fields      []models.Field
	Placeholder string
	Separator   string
}

// Render writes one "Label: value" line per field followed by the separator
// line. Missing values are written as the placeholder.
func (r Renderer) Render(rec models.ThesisRecord) string {
	fields := r.Fields
	if len(fields) == 0 {
		fields = DefaultContextFields
	}
	placeholder := r.Placeholder
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}
	sep := r.Separator
	if sep == "" {
		sep = DefaultSeparator
	}

	var b strings.Builder
	for _, f := range fields {
		v, ok := rec.Value(f)
		if !ok {
			v = placeholder
		}
		b.WriteString(f.Label())
		b.WriteString(": ")
		b.WriteString(v)
		b.WriteByte('\n')
	}
	b.WriteString(sep)
	b.WriteByte('\n')
	return b.String()
}

// ContextBlock is the bounded, rendered excerpt handed to the prompt.
type ContextBlock struct {
	Entries []string
}

// Len reports the number of rendered records.
func (c ContextBlock) Len() int { return len(c.Entries) }

// String concatenates the rendered records.
func (c ContextBlock) String() string {
	return strings.Join(c.Entries, "")
}

// Assemble renders the first min(len(view), limit) records of the view.
// Selection is positional only; no ranking is applied.
func Assemble(view []models.ThesisRecord, limit int, r Renderer) ContextBlock {
	if limit <= 0 {
		return ContextBlock{}
	}
	n := min(len(view), limit)
	entries := make([]string, 0, n)
	for _, rec := range view[:n] {
		entries = append(entries, r.Render(rec))
	}
	return ContextBlock{Entries: entries}
}
