package core

import (
	"fmt"
	"time"
)

// ImportKind identifies the category of records being imported.
type ImportKind string

const (
	KindContacts ImportKind = "contacts"
	KindProducts ImportKind = "products"
	KindInvoices ImportKind = "invoices"
	KindExpenses ImportKind = "expenses"
)

// SkipField is the target value meaning "ignore this source column".
const SkipField = "skip"

// FieldType represents the expected data type for a target field.
type FieldType int

const (
	FieldText FieldType = iota
	FieldEnum
	FieldDate
	FieldNumeric
	FieldBool
)

// String returns the lowercase name used in API payloads.
func (t FieldType) String() string {
	switch t {
	case FieldEnum:
		return "enum"
	case FieldDate:
		return "date"
	case FieldNumeric:
		return "numeric"
	case FieldBool:
		return "bool"
	default:
		return "text"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t FieldType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *FieldType) UnmarshalText(b []byte) error {
	switch string(b) {
	case "text":
		*t = FieldText
	case "enum":
		*t = FieldEnum
	case "date":
		*t = FieldDate
	case "numeric":
		*t = FieldNumeric
	case "bool":
		*t = FieldBool
	default:
		return fmt.Errorf("unknown field type %q", b)
	}
	return nil
}

// TargetField is one field a record of a kind can carry.
type TargetField struct {
	Field      string    `json:"field"`    // Stable identifier sent to the ingestion endpoint
	Label      string    `json:"label"`    // Human-readable name, also the template header
	Required   bool      `json:"required"` // Import cannot proceed without a mapped column
	Type       FieldType `json:"type"`
	EnumValues []string  `json:"enumValues,omitempty"`
}

// KindDefinition describes an import kind and its ordered target fields.
type KindDefinition struct {
	Kind     ImportKind
	Label    string        // Display name: "Contacts"
	Endpoint string        // Ingestion path relative to the ingest base URL
	Fields   []TargetField // Registry order matters for auto-mapping
}

// Cell is one (header, value) pair of a parsed row.
type Cell struct {
	Header string `json:"header"`
	Value  string `json:"value"`
}

// Row is an ordered list of cells positionally aligned with the table headers.
type Row []Cell

// Values returns the raw cell values in column order.
func (r Row) Values() []string {
	out := make([]string, len(r))
	for i, c := range r {
		out[i] = c.Value
	}
	return out
}

// ParsedTable is the in-memory form of an uploaded file.
type ParsedTable struct {
	Headers   []string `json:"headers"`
	Rows      []Row    `json:"rows"`
	TotalRows int      `json:"totalRows"`
}

// ColumnMapping binds one source column to a target field or to SkipField.
type ColumnMapping struct {
	SourceColumn string `json:"sourceColumn"`
	TargetField  string `json:"targetField"`
}

// Skipped reports whether the column is ignored.
func (m ColumnMapping) Skipped() bool {
	return m.TargetField == "" || m.TargetField == SkipField
}

// Record is a projected row keyed by target field identifier.
type Record map[string]string

// SessionState is the step an import session is at.
type SessionState string

const (
	StateUpload    SessionState = "upload"
	StateMapping   SessionState = "mapping"
	StatePreview   SessionState = "preview"
	StateImporting SessionState = "importing"
	StateComplete  SessionState = "complete"
)

// ImportProgress is published after every attempted batch.
type ImportProgress struct {
	SessionID     string       `json:"sessionId"`
	Kind          ImportKind   `json:"kind"`
	State         SessionState `json:"state"`
	Percent       int          `json:"percent"`
	ProcessedRows int          `json:"processedRows"`
	TotalRows     int          `json:"totalRows"`
	Batch         int          `json:"batch"`
	BatchCount    int          `json:"batchCount"`
}

// ProgressCallback receives progress updates from an import run.
type ProgressCallback func(ImportProgress)

// ImportResult is the running and final outcome of an import run.
type ImportResult struct {
	SuccessCount int           `json:"successCount"`
	FailedCount  int           `json:"failedCount"`
	Errors       []string      `json:"errors"`
	Cancelled    bool          `json:"cancelled,omitempty"`
	Duration     time.Duration `json:"-"`
}

// Preview returns at most n errors for display.
func (r ImportResult) Preview(n int) []string {
	if len(r.Errors) <= n {
		return r.Errors
	}
	return r.Errors[:n]
}

// ErrorPreviewLimit is how many row errors are shown to users.
const ErrorPreviewLimit = 10
