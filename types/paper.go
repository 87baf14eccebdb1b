package types

import "strings"

// Record is one paper row. ID is assigned at load time and stays stable
// for the lifetime of the loaded dataset.
type Record struct {
	ID       int               `json:"id"`
	Title    string            `json:"title"`
	Abstract string            `json:"abstract,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
}

// Get returns the raw value of a source column.
func (r Record) Get(column string) string {
	return r.Fields[column]
}

// WordCount returns the number of whitespace separated words in the title.
func (r Record) WordCount() int {
	return len(strings.Fields(r.Title))
}

// Table is an ordered sequence of records plus the source header.
type Table struct {
	Columns        []string `json:"columns"`
	TitleColumn    string   `json:"title_column"`
	AbstractColumn string   `json:"abstract_column,omitempty"`
	Records        []Record `json:"records"`
}

// Len returns the number of records
func (t Table) Len() int {
	return len(t.Records)
}

// IDs returns record ids in table order
func (t Table) IDs() []int {
	ids := make([]int, len(t.Records))
	for i, r := range t.Records {
		ids[i] = r.ID
	}
	return ids
}

// Titles returns record titles in table order
func (t Table) Titles() []string {
	titles := make([]string, len(t.Records))
	for i, r := range t.Records {
		titles[i] = r.Title
	}
	return titles
}

// WithRecords returns a table sharing t's header with the given records.
func (t Table) WithRecords(records []Record) Table {
	return Table{
		Columns:        t.Columns,
		TitleColumn:    t.TitleColumn,
		AbstractColumn: t.AbstractColumn,
		Records:        records,
	}
}

// Subset keeps the records for which keep returns true, in order.
func (t Table) Subset(keep func(Record) bool) Table {
	records := make([]Record, 0, len(t.Records))
	for _, r := range t.Records {
		if keep(r) {
			records = append(records, r)
		}
	}
	return t.WithRecords(records)
}

// Clone copies the header and record slice. Field maps are shared; records
// are treated as immutable once loaded.
func (t Table) Clone() Table {
	columns := make([]string, len(t.Columns))
	copy(columns, t.Columns)
	records := make([]Record, len(t.Records))
	copy(records, t.Records)
	return Table{
		Columns:        columns,
		TitleColumn:    t.TitleColumn,
		AbstractColumn: t.AbstractColumn,
		Records:        records,
	}
}

// Lookup returns the record with the given id.
func (t Table) Lookup(id int) (Record, bool) {
	for _, r := range t.Records {
		if r.ID == id {
			return r, true
		}
	}
	return Record{}, false
}
