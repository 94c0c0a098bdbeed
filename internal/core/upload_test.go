package core

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestReadTable_CSV(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantCols  []string
		wantRows  int
		wantLines []int
	}{
		{
			name:      "comma separated",
			body:      "NNI,Nom\n1,A\n2,B\n",
			wantCols:  []string{"NNI", "Nom"},
			wantRows:  2,
			wantLines: []int{2, 3},
		},
		{
			name:      "semicolon separated",
			body:      "NNI;Nom;TOTAL\n1;A;12,5\n",
			wantCols:  []string{"NNI", "Nom", "TOTAL"},
			wantRows:  1,
			wantLines: []int{2},
		},
		{
			name:      "tab separated",
			body:      "NNI\tNom\n1\tA\n",
			wantCols:  []string{"NNI", "Nom"},
			wantRows:  1,
			wantLines: []int{2},
		},
		{
			name:      "utf8 bom and blank lines",
			body:      "\ufeffNNI,Nom\n\n1,A\n,\n3,C\n",
			wantCols:  []string{"NNI", "Nom"},
			wantRows:  2,
			wantLines: []int{3, 5},
		},
		{
			name:      "ragged rows",
			body:      "A,B,C\n1\n1,2,3,4\n",
			wantCols:  []string{"A", "B", "C"},
			wantRows:  2,
			wantLines: []int{2, 3},
		},
		{
			name:      "header only",
			body:      "NNI,Nom\n",
			wantCols:  []string{"NNI", "Nom"},
			wantRows:  0,
			wantLines: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := ReadTable("data.csv", strings.NewReader(tt.body), int64(len(tt.body)), FileRules{})
			if err != nil {
				t.Fatalf("ReadTable() error = %v", err)
			}
			if got := table.Columns(); strings.Join(got, "|") != strings.Join(tt.wantCols, "|") {
				t.Errorf("Columns() = %v, want %v", got, tt.wantCols)
			}
			if table.Len() != tt.wantRows {
				t.Fatalf("Len() = %d, want %d", table.Len(), tt.wantRows)
			}
			for i, want := range tt.wantLines {
				if got := table.Line(i); got != want {
					t.Errorf("Line(%d) = %d, want %d", i, got, want)
				}
			}
		})
	}
}

func TestReadTable_UTF16(t *testing.T) {
	text := "NNI,NOM_AR\n7,علي\n"
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFE})
	for _, r := range text {
		buf.WriteByte(byte(r))
		buf.WriteByte(byte(r >> 8))
	}

	table, err := ReadTable("export.csv", &buf, int64(buf.Len()), FileRules{})
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	if v, _ := table.Row(0).ByName("NOM_AR"); v != "علي" {
		t.Errorf("NOM_AR = %q, want علي", v)
	}
}

func TestReadTable_XLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Numéro_C1AS", "NOM_AR", "TOTAL", "DATN"},
		{12345, "أحمد", 91.5, 38851},
		{nil, nil, nil, nil},
		{67890, "مريم", 70, nil},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}

	table, err := ReadTable("resultats.xlsx", buf, int64(buf.Len()), FileRules{})
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	if table.FileName != "resultats.xlsx" {
		t.Errorf("FileName = %q", table.FileName)
	}
	if table.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", table.Len())
	}
	if got := table.Line(1); got != 4 {
		t.Errorf("Line(1) = %d, want 4", got)
	}

	row := table.Row(0)
	if v, _ := row.ByName("Numéro_C1AS"); v != "12345" {
		t.Errorf("Numéro_C1AS = %q", v)
	}
	if v, _ := row.ByName("TOTAL"); v != "91.5" {
		t.Errorf("TOTAL = %q", v)
	}
	d, ok := ParseDate(func() string { v, _ := row.ByName("DATN"); return v }())
	if !ok || d.Format("2006-01-02") != "2006-05-14" {
		t.Errorf("DATN parsed as %v, %v", d, ok)
	}
}

func TestReadTable_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		body     string
		size     int64
		rules    FileRules
		wantErr  error
	}{
		{name: "no file name", fileName: "", body: "a", wantErr: ErrNoFile},
		{name: "unsupported extension", fileName: "notes.pdf", body: "a", wantErr: ErrUnsupportedFile},
		{name: "legacy xls", fileName: "old.xls", body: "a", wantErr: ErrUnsupportedFile},
		{name: "declared size too large", fileName: "a.csv", body: "a,b\n1,2\n", size: 100, rules: FileRules{MaxSize: 10}, wantErr: ErrFileTooLarge},
		{name: "actual size too large", fileName: "a.csv", body: strings.Repeat("x", 64), size: 0, rules: FileRules{MaxSize: 10}, wantErr: ErrFileTooLarge},
		{name: "empty", fileName: "a.csv", body: "", wantErr: ErrEmptyFile},
		{name: "whitespace only", fileName: "a.csv", body: " \n\n ", wantErr: ErrEmptyFile},
		{name: "corrupt workbook", fileName: "a.xlsx", body: "this is not a zip", wantErr: ErrUnparseableFile},
		{name: "extension not allowed by rules", fileName: "a.xlsm", body: "a", rules: FileRules{Extensions: []string{".csv"}}, wantErr: ErrUnsupportedFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadTable(tt.fileName, strings.NewReader(tt.body), tt.size, tt.rules)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ReadTable() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestFileRules_XLSAdvice(t *testing.T) {
	err := FileRules{}.Check("resultats.XLS", 10)
	if err == nil || !strings.Contains(err.Error(), ".xlsx") {
		t.Errorf("Check(.XLS) = %v, want advice to save as .xlsx", err)
	}
}

func TestSniffDelimiter(t *testing.T) {
	tests := map[string]rune{
		"a,b,c\n1;2": ',',
		"a;b;c\n1,2": ';',
		"a\tb\tc":    '\t',
		"single":     ',',
		"a;b,c;d\n":  ';',
	}
	for in, want := range tests {
		if got := sniffDelimiter([]byte(in)); got != want {
			t.Errorf("sniffDelimiter(%q) = %q, want %q", in, got, want)
		}
	}
}
