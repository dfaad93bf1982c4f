package tickers

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// columnPriority lists the header names searched for a ticker column, best first.
var columnPriority = []string{"ticker", "tickers", "symbol", "symbols", "stock", "stocks", "keyword", "keywords"}

var (
	errEmptyFile     = errors.New("file has no rows")
	errInvalidEncode = errors.New("file is not valid UTF-8")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseTickerFile extracts tickers from an uploaded CSV or XLSX file.
// The format is chosen from the file name, then the content type.
func ParseTickerFile(name, contentType string, data []byte) ([]string, error) {
	if isWorkbook(name, contentType) {
		return parseXLSX(data, "")
	}
	return parseCSV(data)
}

func isWorkbook(name, contentType string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return true
	case ".csv", ".txt":
		return false
	}
	return strings.Contains(contentType, "spreadsheetml")
}

func parseCSV(data []byte) ([]string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return nil, errInvalidEncode
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		rows = append(rows, rec)
	}
	return extractColumn(rows)
}

func parseXLSX(data []byte, sheet string) ([]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()
	return readSheet(f, sheet)
}

// readSheet reads the named sheet, or the first sheet when name is empty.
func readSheet(f *excelize.File, sheet string) ([]string, error) {
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errEmptyFile
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	return extractColumn(rows)
}

// extractColumn picks the ticker column from the header row and returns its
// non-empty values, uppercased and trimmed. Without a known header the first
// column is used and the header row is treated as a column title.
func extractColumn(rows [][]string) ([]string, error) {
	if len(rows) == 0 {
		return nil, errEmptyFile
	}

	col := findColumn(rows[0])
	if col < 0 {
		col = 0
	}

	var out []string
	for _, row := range rows[1:] {
		if col >= len(row) {
			continue
		}
		if t := normalize(row[col]); t != "" {
			out = append(out, t)
		}
	}
	return out, nil
}

func findColumn(header []string) int {
	index := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, ok := index[key]; !ok {
			index[key] = i
		}
	}
	for _, name := range columnPriority {
		if i, ok := index[name]; ok {
			return i
		}
	}
	return -1
}

func normalize(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}

// NormalizeList uppercases and trims tickers, dropping empties. Order is kept.
func NormalizeList(list []string) []string {
	out := make([]string, 0, len(list))
	for _, t := range list {
		if n := normalize(t); n != "" {
			out = append(out, n)
		}
	}
	return out
}
