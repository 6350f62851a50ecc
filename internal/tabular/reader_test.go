package tabular

import (
	"strings"
	"testing"
)

func TestReadCSV(t *testing.T) {
	input := "url,name\nhttps://example.com,alpha\nhttps://example.org,beta\n"

	table, err := ReadCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}

	if table.Sheet != CSVSheetName {
		t.Errorf("Sheet = %q, want %q", table.Sheet, CSVSheetName)
	}
	wantCols := []string{"url", "name"}
	if len(table.Columns) != len(wantCols) {
		t.Fatalf("Columns = %v, want %v", table.Columns, wantCols)
	}
	for i, c := range wantCols {
		if table.Columns[i] != c {
			t.Errorf("Columns[%d] = %q, want %q", i, table.Columns[i], c)
		}
	}
	if len(table.Rows) != 2 {
		t.Fatalf("len(Rows) = %d, want 2", len(table.Rows))
	}
	if got := table.Cell(0, "url"); got != "https://example.com" {
		t.Errorf("Cell(0, url) = %q", got)
	}
	if got := table.Cell(1, "name"); got != "beta" {
		t.Errorf("Cell(1, name) = %q", got)
	}
}

func TestReadCSV_BOM(t *testing.T) {
	input := "\xEF\xBB\xBFurl,name\nhttps://example.com,a\n"

	table, err := ReadCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	if table.Columns[0] != "url" {
		t.Errorf("Columns[0] = %q, want %q (BOM not stripped)", table.Columns[0], "url")
	}
}

func TestReadCSV_RaggedRows(t *testing.T) {
	input := "url,name,note\nhttps://example.com,a\nhttps://example.org,b,extra\n"

	table, err := ReadCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	if got := table.Cell(0, "note"); got != "" {
		t.Errorf("short row note = %q, want empty", got)
	}
	if got := table.Cell(1, "note"); got != "extra" {
		t.Errorf("full row note = %q, want %q", got, "extra")
	}
}

func TestReadCSV_SkipsEmptyRows(t *testing.T) {
	input := "url,name\nhttps://example.com,a\n,\n  ,  \nhttps://example.org,b\n"

	table, err := ReadCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	if len(table.Rows) != 2 {
		t.Errorf("len(Rows) = %d, want 2 (blank rows dropped)", len(table.Rows))
	}
}

func TestReadCSV_Empty(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader("")); err == nil {
		t.Fatal("ReadCSV() expected error for empty input")
	}
}

func TestRead_UnsupportedExtension(t *testing.T) {
	if _, err := Read("data.txt", strings.NewReader("x")); err == nil {
		t.Fatal("Read() expected error for unsupported extension")
	}
}

func TestNormalizeHeader(t *testing.T) {
	tests := []struct {
		name   string
		header []string
		want   []string
	}{
		{"plain", []string{"url", "name"}, []string{"url", "name"}},
		{"blank cells", []string{"url", "", ""}, []string{"url", "column_2", "column_3"}},
		{"duplicates", []string{"name", "name", "name"}, []string{"name", "name_2", "name_3"}},
		{"whitespace", []string{"  url  ", "name "}, []string{"url", "name"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeHeader(tt.header)
			if len(got) != len(tt.want) {
				t.Fatalf("normalizeHeader() = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("normalizeHeader()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestTable_HasColumn(t *testing.T) {
	table := &Table{Columns: []string{"url", "name"}}
	if !table.HasColumn("url") {
		t.Error("HasColumn(url) = false, want true")
	}
	if table.HasColumn("missing") {
		t.Error("HasColumn(missing) = true, want false")
	}
}

func TestTable_CellOutOfRange(t *testing.T) {
	table := &Table{
		Columns: []string{"url"},
		Rows:    []Row{{"url": "https://example.com"}},
	}
	if got := table.Cell(5, "url"); got != "" {
		t.Errorf("Cell(5, url) = %q, want empty", got)
	}
	if got := table.Cell(-1, "url"); got != "" {
		t.Errorf("Cell(-1, url) = %q, want empty", got)
	}
}
