package core

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ParseText turns delimited text into a ParsedTable.
//
// Lines are split on "\n" (a trailing "\r" is dropped) and blank lines are
// skipped. The first line holds the headers. Every field is split on ","
// without regard to quoting, trimmed, and stripped of one pair of surrounding
// quotes. Data rows are zipped with the headers by position: missing trailing
// values become "" and extra values are dropped.
func ParseText(text string) (*ParsedTable, error) {
	var records [][]string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		records = append(records, splitLine(line))
	}
	return buildTable(records)
}

// ParseReader reads at most maxBytes from r, repairs the encoding and parses
// the result with ParseText.
func ParseReader(r io.Reader, maxBytes int64) (*ParsedTable, error) {
	data, err := ReadAllLimited(NewTextReader(r), maxBytes)
	if err != nil {
		return nil, err
	}
	return ParseText(string(data))
}

// DecodeFile picks a decoder from the file name extension.
// Spreadsheets yield the same table shape as delimited text.
func DecodeFile(name string, r io.Reader, maxBytes int64) (*ParsedTable, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		data, err := ReadAllLimited(r, maxBytes)
		if err != nil {
			return nil, err
		}
		return parseWorkbook(data, workbookUnzipLimit(maxBytes))
	case ".xls", ".numbers", ".ods":
		return nil, &ParseError{Reason: "unsupported file format: " + strings.ToLower(filepath.Ext(name))}
	default:
		return ParseReader(r, maxBytes)
	}
}

// Workbooks are zip archives: maxBytes bounds the compressed upload and
// workbookExpansion times maxBytes bounds what may be unpacked from it.
const (
	workbookExpansion   = 32
	workbookXMLMemLimit = 16 << 20 // Larger sheet parts are buffered on disk
)

// workbookUnzipLimit returns the unpacked size allowed for an upload of
// maxBytes, or 0 for no limit.
func workbookUnzipLimit(maxBytes int64) int64 {
	if maxBytes <= 0 {
		return 0
	}
	return maxBytes * workbookExpansion
}

// parseWorkbook reads the first sheet of an xlsx workbook, refusing archives
// that unpack to more than unzipLimit bytes.
func parseWorkbook(data []byte, unzipLimit int64) (*ParsedTable, error) {
	var opts []excelize.Options
	if unzipLimit > 0 {
		if err := checkUnzipSize(data, unzipLimit); err != nil {
			return nil, err
		}
		opts = append(opts, excelize.Options{
			UnzipSizeLimit:    unzipLimit,
			UnzipXMLSizeLimit: min(unzipLimit, workbookXMLMemLimit),
		})
	}

	f, err := excelize.OpenReader(bytes.NewReader(data), opts...)
	if err != nil {
		return nil, &ParseError{Reason: "invalid workbook: " + err.Error()}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &ParseError{Reason: "empty file"}
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		return nil, &ParseError{Reason: "read sheet " + sheets[0] + ": " + err.Error()}
	}
	defer rows.Close()

	var records [][]string
	for rows.Next() {
		row, err := rows.Columns()
		if err != nil {
			return nil, &ParseError{Reason: "read sheet " + sheets[0] + ": " + err.Error()}
		}
		blank := true
		for i := range row {
			row[i] = strings.TrimSpace(row[i])
			if row[i] != "" {
				blank = false
			}
		}
		if !blank {
			records = append(records, row)
		}
	}
	if err := rows.Error(); err != nil {
		return nil, &ParseError{Reason: "read sheet " + sheets[0] + ": " + err.Error()}
	}
	return buildTable(records)
}

// checkUnzipSize sums the declared sizes of the archive entries.
func checkUnzipSize(data []byte, limit int64) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return &ParseError{Reason: "invalid workbook: " + err.Error()}
	}
	var total uint64
	for _, zf := range zr.File {
		total += zf.UncompressedSize64
		if total > uint64(limit) {
			return fmt.Errorf("file too large: workbook unpacks to more than %d bytes", limit)
		}
	}
	return nil
}

// buildTable zips records after the first with the header record.
func buildTable(records [][]string) (*ParsedTable, error) {
	if len(records) == 0 {
		return nil, &ParseError{Reason: "empty file"}
	}

	headers := records[0]
	rows := make([]Row, 0, len(records)-1)
	for _, values := range records[1:] {
		row := make(Row, len(headers))
		for i, h := range headers {
			row[i] = Cell{Header: h}
			if i < len(values) {
				row[i].Value = values[i]
			}
		}
		rows = append(rows, row)
	}

	return &ParsedTable{
		Headers:   headers,
		Rows:      rows,
		TotalRows: len(rows),
	}, nil
}

func splitLine(line string) []string {
	fields := strings.Split(line, ",")
	for i, f := range fields {
		fields[i] = stripQuotes(strings.TrimSpace(f))
	}
	return fields
}

// stripQuotes removes one pair of matching surrounding quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first == last && (first == '"' || first == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
