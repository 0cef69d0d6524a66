package models

import (
	"strconv"
	"strings"
)

// Field names one column of a thesis record.
type Field string

const (
	FieldTitle     Field = "title"
	FieldYear      Field = "year"
	FieldProgram   Field = "program"
	FieldVariables Field = "variables"
	FieldMethod    Field = "method"
	FieldObject    Field = "object"
	FieldLocation  Field = "location"
	FieldKeywords  Field = "keywords"
)

// AllFields lists every known column in canonical order.
var AllFields = []Field{
	FieldTitle,
	FieldYear,
	FieldProgram,
	FieldVariables,
	FieldMethod,
	FieldObject,
	FieldLocation,
	FieldKeywords,
}

var labels = map[Field]string{
	FieldTitle:     "Judul",
	FieldYear:      "Tahun",
	FieldProgram:   "Prodi",
	FieldVariables: "Variabel",
	FieldMethod:    "Metode",
	FieldObject:    "Objek",
	FieldLocation:  "Lokasi",
	FieldKeywords:  "Kata Kunci",
}

// Label is the human readable name used in rendered context.
func (f Field) Label() string {
	if l, ok := labels[f]; ok {
		return l
	}
	return string(f)
}

// ParseField resolves a canonical field name, ignoring case and surrounding space.
func ParseField(raw string) (Field, bool) {
	f := Field(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := labels[f]; ok {
		return f, true
	}
	return "", false
}

// ThesisRecord is one prior thesis as loaded from a dataset or stored in Elasticsearch.
// Empty strings and a nil Year mean the value is missing.
type ThesisRecord struct {
	ID        string `json:"id,omitempty"`
	Seq       int64  `json:"seq"`
	Source    string `json:"source,omitempty"`
	Title     string `json:"title"`
	Year      *int   `json:"year,omitempty"`
	Program   string `json:"program,omitempty"`
	Variables string `json:"variables,omitempty"`
	Method    string `json:"method,omitempty"`
	Object    string `json:"object,omitempty"`
	Location  string `json:"location,omitempty"`
	Keywords  string `json:"keywords,omitempty"`

	// DerivedKeywords are tokens extracted at ingest time. They are not a
	// Field, so keyword filtering never reads them.
	DerivedKeywords string `json:"derived_keywords,omitempty"`
}

// Value returns the string form of a field and whether it is present.
func (r ThesisRecord) Value(f Field) (string, bool) {
	var v string
	switch f {
	case FieldTitle:
		v = r.Title
	case FieldYear:
		if r.Year == nil {
			return "", false
		}
		return strconv.Itoa(*r.Year), true
	case FieldProgram:
		v = r.Program
	case FieldVariables:
		v = r.Variables
	case FieldMethod:
		v = r.Method
	case FieldObject:
		v = r.Object
	case FieldLocation:
		v = r.Location
	case FieldKeywords:
		v = r.Keywords
	default:
		return "", false
	}
	if strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// Set assigns a raw string value to a field. Unknown fields are ignored.
// A year that does not parse as an integer is stored as missing.
func (r *ThesisRecord) Set(f Field, raw string) {
	raw = strings.TrimSpace(raw)
	switch f {
	case FieldTitle:
		r.Title = raw
	case FieldYear:
		r.Year = ParseYear(raw)
	case FieldProgram:
		r.Program = raw
	case FieldVariables:
		r.Variables = raw
	case FieldMethod:
		r.Method = raw
	case FieldObject:
		r.Object = raw
	case FieldLocation:
		r.Location = raw
	case FieldKeywords:
		r.Keywords = raw
	}
}

// ParseYear accepts "2021" and spreadsheet floats such as "2021.0".
func ParseYear(raw string) *int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if y, err := strconv.Atoi(raw); err == nil {
		return &y
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && f == float64(int(f)) {
		y := int(f)
		return &y
	}
	return nil
}
