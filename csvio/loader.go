package csvio

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"paper-filter/logger"
	"paper-filter/types"
)

// Loader reads paper exports into a types.Table
type Loader struct {
	// TitleColumn forces the title column instead of detecting it.
	TitleColumn string
	// AbstractColumn forces the abstract column; blank means detect.
	AbstractColumn string
	Comma          rune
	logger         *logger.Logger
}

// NewLoader creates a comma separated Loader
func NewLoader() *Loader {
	return NewLoaderWithLogger(logger.New("csv-loader"))
}

// NewLoaderWithLogger creates a Loader that logs through log
func NewLoaderWithLogger(log *logger.Logger) *Loader {
	return &Loader{Comma: ',', logger: log}
}

// LoadFile reads path; files ending in .tsv are read tab separated.
func (l *Loader) LoadFile(path string) (types.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Table{}, logger.NewAppErrorWithMetadata(logger.ErrorTypeData,
			"failed to read input file", err, map[string]interface{}{"path": path})
	}
	loader := *l
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		loader.Comma = '\t'
	}
	return loader.Read(bytes.NewReader(data))
}

// Read parses CSV from r. The first row is the header. Ids are assigned in
// row order starting at zero. Short rows are padded and long rows truncated
// to the header width.
func (l *Loader) Read(r io.Reader) (types.Table, error) {
	reader := csv.NewReader(r)
	if l.Comma != 0 {
		reader.Comma = l.Comma
	}
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return types.Table{}, logger.NewAppError(logger.ErrorTypeData, "failed to parse CSV", err)
	}
	if len(rows) == 0 {
		return types.Table{}, logger.NewAppErrorWithCode(logger.ErrorTypeData, "input has no header row", logger.CodeNoData, nil)
	}

	columns := headerColumns(rows[0])

	titleColumn := l.TitleColumn
	if titleColumn == "" {
		detected, ok := DetectTitleColumn(columns)
		if !ok {
			return types.Table{}, logger.MissingTitleField(columns)
		}
		titleColumn = detected
	} else if indexOf(columns, titleColumn) < 0 {
		return types.Table{}, logger.MissingTitleField(columns)
	}

	abstractColumn := l.AbstractColumn
	if abstractColumn == "" {
		abstractColumn, _ = DetectAbstractColumn(columns)
	} else if indexOf(columns, abstractColumn) < 0 {
		abstractColumn = ""
	}

	records := make([]types.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		fields := make(map[string]string, len(columns))
		for i, column := range columns {
			if i < len(row) {
				fields[column] = row[i]
			} else {
				fields[column] = ""
			}
		}
		records = append(records, types.Record{
			ID:       len(records),
			Title:    fields[titleColumn],
			Abstract: fields[abstractColumn],
			Fields:   fields,
		})
	}

	if l.logger != nil {
		l.logger.InfoWithCount("Loaded records", len(records), map[string]interface{}{
			"title_column":    titleColumn,
			"abstract_column": abstractColumn,
			"columns":         len(columns),
		})
	}

	return types.Table{
		Columns:        columns,
		TitleColumn:    titleColumn,
		AbstractColumn: abstractColumn,
		Records:        records,
	}, nil
}

// DetectTitleColumn returns the first column whose name contains "title",
// ignoring case.
func DetectTitleColumn(columns []string) (string, bool) {
	return firstContaining(columns, "title")
}

// DetectAbstractColumn returns the first column whose name contains
// "abstract", ignoring case.
func DetectAbstractColumn(columns []string) (string, bool) {
	return firstContaining(columns, "abstract")
}

func firstContaining(columns []string, needle string) (string, bool) {
	for _, column := range columns {
		if strings.Contains(strings.ToLower(column), needle) {
			return column, true
		}
	}
	return "", false
}

// headerColumns cleans header cells and makes names unique: blank cells
// become "Unnamed: i" and repeats get a ".n" suffix.
func headerColumns(header []string) []string {
	columns := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, cell := range header {
		name := cleanCell(cell)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		base := name
		for n := 1; seen[name]; n++ {
			name = fmt.Sprintf("%s.%d", base, n)
		}
		seen[name] = true
		columns[i] = name
	}
	return columns
}

func cleanCell(v string) string {
	v = strings.TrimPrefix(v, "\ufeff")
	return strings.TrimSpace(v)
}

func indexOf(columns []string, name string) int {
	for i, column := range columns {
		if column == name {
			return i
		}
	}
	return -1
}
