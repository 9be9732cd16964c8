package core

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
)

// Template is a downloadable starter file for a kind.
type Template struct {
	FileName    string
	ContentType string
	Content     []byte
}

// Sample values written into the second template line.
const (
	sampleName   = "Sample Name"
	sampleAmount = "100.00"
	sampleDate   = "2024-01-15"
)

// GenerateTemplate returns a two-line CSV for kind: the field labels in
// registry order and one sample row. The file name is
// "<product>-<kind>-template.csv".
func GenerateTemplate(kind ImportKind, product string) Template {
	fields := Fields(kind)

	header := make([]string, len(fields))
	sample := make([]string, len(fields))
	for i, f := range fields {
		header[i] = f.Label
		sample[i] = SampleValue(f)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	// csv.Writer only fails on write errors, and bytes.Buffer does not fail.
	_ = w.Write(header)
	_ = w.Write(sample)
	w.Flush()

	return Template{
		FileName:    TemplateFileName(kind, product),
		ContentType: "text/csv",
		Content:     buf.Bytes(),
	}
}

// TemplateFileName returns "<product>-<kind>-template.csv".
func TemplateFileName(kind ImportKind, product string) string {
	product = strings.ToLower(strings.TrimSpace(product))
	if product == "" {
		product = "ledger"
	}
	return fmt.Sprintf("%s-%s-template.csv", product, kind)
}

// SampleValue returns the canned template value for a field: a placeholder
// for name-like fields, a numeric string for price or amount fields, a date
// for date fields, and "" otherwise.
func SampleValue(f TargetField) string {
	id := Normalize(f.Field)
	switch {
	case strings.Contains(id, "name"):
		return sampleName
	case strings.Contains(id, "price"), strings.Contains(id, "amount"), strings.Contains(id, "cost"):
		return sampleAmount
	case strings.Contains(id, "date"), f.Type == FieldDate:
		return sampleDate
	default:
		return ""
	}
}
