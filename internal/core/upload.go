package core

// upload.go reads an uploaded spreadsheet into a Table.
//
// Delimited text (.csv) is decoded to UTF-8 and split with encoding/csv, the
// delimiter being sniffed from the header line since French-locale exports
// use ';'. Workbooks (.xlsx, .xlsm) are read with excelize; only the first
// sheet is imported and cells are taken raw so dates arrive as serial numbers.

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// File rejection causes, surfaced to callers before any task is created.
var (
	ErrNoFile          = errors.New("no file provided")
	ErrUnsupportedFile = errors.New("unsupported file type")
	ErrFileTooLarge    = errors.New("file too large")
	ErrEmptyFile       = errors.New("empty file")
	ErrUnparseableFile = errors.New("unparseable file")
)

// DefaultMaxFileSize is the upload ceiling used when none is configured.
const DefaultMaxFileSize = 50 << 20

// DefaultExtensions are the file types the readers below understand.
var DefaultExtensions = []string{".csv", ".xlsx", ".xlsm"}

// Table is a parsed file: one header row and its data rows.
type Table struct {
	FileName string
	Header   *Header
	Rows     [][]string
	// Lines holds the 1-based source line of each data row.
	Lines []int
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Row returns a view of data row i.
func (t *Table) Row(i int) Row { return NewRow(t.Header, t.Rows[i]) }

// Line returns the source line of data row i.
func (t *Table) Line(i int) int {
	if i < len(t.Lines) {
		return t.Lines[i]
	}
	return i + 2
}

// Columns returns the header names.
func (t *Table) Columns() []string { return t.Header.Names() }

// FileRules validates an upload before it is read.
type FileRules struct {
	MaxSize    int64
	Extensions []string
}

// Check rejects unsupported extensions and sizes over the ceiling. A size of
// zero or less means unknown and is left to the reader's guard.
func (f FileRules) Check(fileName string, size int64) error {
	if strings.TrimSpace(fileName) == "" {
		return ErrNoFile
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	allowed := f.Extensions
	if len(allowed) == 0 {
		allowed = DefaultExtensions
	}
	ok := false
	for _, a := range allowed {
		if strings.EqualFold(a, ext) {
			ok = true
			break
		}
	}
	if !ok {
		if ext == ".xls" {
			return fmt.Errorf("%w: legacy .xls workbooks are not supported, save the file as .xlsx", ErrUnsupportedFile)
		}
		return fmt.Errorf("%w: %q (accepted: %s)", ErrUnsupportedFile, ext, strings.Join(allowed, ", "))
	}
	if f.maxSize() > 0 && size > f.maxSize() {
		return fmt.Errorf("%w: %d bytes exceeds the %d byte limit", ErrFileTooLarge, size, f.maxSize())
	}
	return nil
}

func (f FileRules) maxSize() int64 {
	if f.MaxSize <= 0 {
		return DefaultMaxFileSize
	}
	return f.MaxSize
}

// ReadTable checks fileName against rules and parses r.
func ReadTable(fileName string, r io.Reader, size int64, rules FileRules) (*Table, error) {
	if err := rules.Check(fileName, size); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(newSizeGuardReader(r, rules.maxSize()))
	if err != nil {
		if errors.Is(err, ErrFileTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	var t *Table
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		t, err = readDelimited(data)
	default:
		t, err = readWorkbook(data)
	}
	if err != nil {
		return nil, err
	}
	t.FileName = filepath.Base(fileName)
	return t, nil
}

func readDelimited(data []byte) (*Table, error) {
	text, err := io.ReadAll(newTextReader(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: decode text: %v", ErrUnparseableFile, err)
	}

	cr := csv.NewReader(bytes.NewReader(text))
	cr.Comma = sniffDelimiter(text)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var (
		records [][]string
		lines   []int
	)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnparseableFile, err)
		}
		line, _ := cr.FieldPos(0)
		records = append(records, rec)
		lines = append(lines, line)
	}
	return buildTable(records, lines)
}

func readWorkbook(data []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %v", ErrUnparseableFile, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrUnparseableFile)
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %v", ErrUnparseableFile, sheets[0], err)
	}

	lines := make([]int, len(rows))
	for i := range rows {
		lines[i] = i + 1
	}
	return buildTable(rows, lines)
}

// buildTable takes the first non-empty record as the header and keeps every
// later non-empty record as data.
func buildTable(records [][]string, lines []int) (*Table, error) {
	headerIdx := -1
	for i, rec := range records {
		if !isEmptyRow(rec) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, ErrEmptyFile
	}

	t := &Table{Header: NewHeader(records[headerIdx])}
	for i := headerIdx + 1; i < len(records); i++ {
		if isEmptyRow(records[i]) {
			continue
		}
		t.Rows = append(t.Rows, records[i])
		t.Lines = append(t.Lines, lines[i])
	}
	return t, nil
}

// sniffDelimiter picks the most frequent of ',', ';' and tab on the first line.
func sniffDelimiter(text []byte) rune {
	first := text
	if i := bytes.IndexByte(text, '\n'); i >= 0 {
		first = text[:i]
	}
	best, bestCount := ',', bytes.Count(first, []byte{','})
	for _, d := range []rune{';', '\t'} {
		if c := bytes.Count(first, []byte(string(d))); c > bestCount {
			best, bestCount = d, c
		}
	}
	return best
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
