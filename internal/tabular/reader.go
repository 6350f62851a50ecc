package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// CSVSheetName is the sheet name assigned to tables parsed from CSV input,
// which has no sheet concept of its own.
const CSVSheetName = "Sheet1"

var excelExtensions = map[string]bool{
	".xlsx": true,
	".xlsm": true,
	".xls":  true,
}

// Read parses an uploaded file into one table per non-empty sheet, keeping
// workbook sheet order. The format is chosen from the file name extension:
// .xlsx/.xlsm/.xls are read as workbooks, .csv as a single-sheet table.
func Read(fileName string, r io.Reader) ([]*Table, error) {
	ext := strings.ToLower(filepath.Ext(fileName))

	switch {
	case excelExtensions[ext]:
		return ReadWorkbook(r)
	case ext == ".csv":
		t, err := ReadCSV(r)
		if err != nil {
			return nil, err
		}
		return []*Table{t}, nil
	default:
		return nil, fmt.Errorf("unsupported file type %q", ext)
	}
}

// ReadFile parses a spreadsheet or CSV file from disk. Used by the CLI;
// the HTTP service reads from the multipart stream via Read.
func ReadFile(path string) ([]*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	return Read(filepath.Base(path), f)
}

// ReadCSV parses CSV input into a single table. The first record is the
// header; ragged records are tolerated and padded to the header width.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(newSanitizingReader(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	return buildTable(CSVSheetName, records[0], records[1:]), nil
}

// ReadWorkbook parses an Excel workbook, returning one table per sheet
// that has a header row and at least zero data rows. Sheets with no
// content at all are skipped, matching how users expect empty scratch
// sheets to be ignored.
func ReadWorkbook(r io.Reader) ([]*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	var tables []*Table
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("reading sheet %q: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}
		tables = append(tables, buildTable(sheet, rows[0], rows[1:]))
	}

	if len(tables) == 0 {
		return nil, fmt.Errorf("workbook has no non-empty sheets")
	}
	return tables, nil
}
