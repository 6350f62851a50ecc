// Package tabular normalizes uploaded spreadsheets and CSV files into a
// row-oriented table with named columns. It is the input boundary for the
// generation pipeline: everything downstream works on Table values and
// never touches file formats again.
package tabular

import "strings"

// Row maps column names to cell values. Cells are always strings; numeric
// cells are carried in their display form. A missing or empty cell is the
// empty string.
type Row map[string]string

// Table is an immutable, ordered collection of rows sharing one column set.
type Table struct {
	// Sheet is the worksheet name this table came from ("Sheet1" for CSV).
	Sheet string

	// Columns holds the header names in file order.
	Columns []string

	// Rows holds the data rows in file order. Every row has a value
	// (possibly empty) for every column.
	Rows []Row
}

// Cell returns the value at the given row index and column, or the empty
// string if the index is out of range or the column does not exist.
func (t *Table) Cell(row int, column string) string {
	if row < 0 || row >= len(t.Rows) {
		return ""
	}
	return t.Rows[row][column]
}

// HasColumn reports whether the table contains the named column.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Empty reports whether the table has no data rows.
func (t *Table) Empty() bool {
	return len(t.Rows) == 0
}

// buildTable assembles a Table from a header row and raw data rows.
// Header cells are trimmed; blank headers get positional names and
// duplicate headers get a numeric suffix so the column set stays unique.
// Ragged rows are padded, fully empty rows are dropped.
func buildTable(sheet string, header []string, raw [][]string) *Table {
	columns := normalizeHeader(header)

	rows := make([]Row, 0, len(raw))
	for _, rec := range raw {
		empty := true
		for _, v := range rec {
			if strings.TrimSpace(v) != "" {
				empty = false
				break
			}
		}
		if empty {
			continue
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			if i < len(rec) {
				row[col] = strings.TrimSpace(rec[i])
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}

	return &Table{Sheet: sheet, Columns: columns, Rows: rows}
}

// normalizeHeader trims header cells, names blank headers by position
// ("column_3") and disambiguates duplicates ("name", "name_2", ...).
func normalizeHeader(header []string) []string {
	columns := make([]string, 0, len(header))
	seen := make(map[string]int, len(header))

	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = "column_" + itoa(i+1)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = name + "_" + itoa(n+1)
		}
		if _, dup := seen[name]; !dup {
			seen[name] = 1
		}
		columns = append(columns, name)
	}
	return columns
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	n := len(b)
	for i > 0 {
		n--
		b[n] = byte('0' + i%10)
		i /= 10
	}
	return string(b[n:])
}
