package csvio

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"

	"paper-filter/logger"
	"paper-filter/types"
)

// WriteTable writes table as CSV with its header in column order
func WriteTable(w io.Writer, table types.Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(table.Columns); err != nil {
		return logger.NewAppError(logger.ErrorTypeData, "failed to write CSV header", err)
	}

	row := make([]string, len(table.Columns))
	for _, record := range table.Records {
		for i, column := range table.Columns {
			row[i] = cellValue(table, record, column)
		}
		if err := writer.Write(row); err != nil {
			return logger.NewAppErrorWithMetadata(logger.ErrorTypeData, "failed to write CSV row", err,
				map[string]interface{}{"record_id": record.ID})
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return logger.NewAppError(logger.ErrorTypeData, "failed to flush CSV", err)
	}
	return nil
}

// Encode renders table as CSV bytes
func Encode(table types.Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteTable(&buf, table); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile writes table to path, replacing any existing file
func WriteFile(path string, table types.Table) error {
	data, err := Encode(table)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return logger.NewAppErrorWithMetadata(logger.ErrorTypeData, "failed to write output file", err,
			map[string]interface{}{"path": path})
	}
	return nil
}

// cellValue prefers the source field; records built in code without a
// field map still export their title and abstract.
func cellValue(table types.Table, record types.Record, column string) string {
	if value, ok := record.Fields[column]; ok {
		return value
	}
	switch column {
	case table.TitleColumn:
		return record.Title
	case table.AbstractColumn:
		if column != "" {
			return record.Abstract
		}
	}
	return ""
}
