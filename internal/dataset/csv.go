package dataset

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/DeafMist/thesis-advisor/backend/internal/models"
)

// DefaultRequired is the column set every thesis export must carry.
var DefaultRequired = []models.Field{
	models.FieldTitle,
	models.FieldYear,
	models.FieldProgram,
	models.FieldVariables,
	models.FieldMethod,
}

var headerAliases = map[string]models.Field{
	"judul":         models.FieldTitle,
	"judul skripsi": models.FieldTitle,
	"title":         models.FieldTitle,
	"tahun":         models.FieldYear,
	"year":          models.FieldYear,
	"prodi":         models.FieldProgram,
	"program studi": models.FieldProgram,
	"program":       models.FieldProgram,
	"variabel":      models.FieldVariables,
	"variables":     models.FieldVariables,
	"metode":        models.FieldMethod,
	"method":        models.FieldMethod,
	"objek":         models.FieldObject,
	"object":        models.FieldObject,
	"lokasi":        models.FieldLocation,
	"location":      models.FieldLocation,
	"keywords":      models.FieldKeywords,
	"keyword":       models.FieldKeywords,
	"kata kunci":    models.FieldKeywords,
}

// CSVOptions tune LoadCSV.
type CSVOptions struct {
	// Source labels every loaded record.
	Source string
	// Required overrides DefaultRequired when non-nil.
	Required []models.Field
}

// LoadCSVFile opens path and loads it with LoadCSV.
func LoadCSVFile(path string, opts CSVOptions) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return LoadCSV(f, opts)
}

// LoadCSV reads a delimited thesis export. The delimiter (comma or
// semicolon) is detected from the header line. Rows without a title are
// skipped; every other row keeps its original position in Seq.
func LoadCSV(r io.Reader, opts CSVOptions) (*Dataset, error) {
	br := bufio.NewReader(r)
	reader := csv.NewReader(br)
	reader.Comma = detectDelimiter(br)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("dataset is empty")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[int]models.Field, len(header))
	columns := make([]models.Field, 0, len(header))
	for i, name := range header {
		f, ok := resolveHeader(name)
		if !ok {
			continue
		}
		index[i] = f
		columns = append(columns, f)
	}

	required := opts.Required
	if required == nil {
		required = DefaultRequired
	}
	ds := New(nil, columns)
	if missing := ds.Missing(required...); len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}

	var records []models.ThesisRecord
	for row := int64(0); ; row++ {
		cells, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", row+1, err)
		}

		rec := models.ThesisRecord{Seq: row, Source: opts.Source}
		for i, cell := range cells {
			if f, ok := index[i]; ok {
				rec.Set(f, normalizeCell(cell))
			}
		}
		if rec.Title == "" {
			continue
		}
		records = append(records, rec)
	}

	ds.records = records
	return ds, nil
}

func resolveHeader(raw string) (models.Field, bool) {
	key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff")))
	f, ok := headerAliases[key]
	return f, ok
}

// normalizeCell maps pandas style null markers to empty.
func normalizeCell(cell string) string {
	switch strings.ToLower(strings.TrimSpace(cell)) {
	case "nan", "null", "none", "n/a":
		return ""
	}
	return cell
}

func detectDelimiter(br *bufio.Reader) rune {
	line, _ := br.Peek(4096)
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if bytes.Count(line, []byte{';'}) > bytes.Count(line, []byte{','}) {
		return ';'
	}
	return ','
}
