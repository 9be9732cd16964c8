package core

// validation.go checks mappings before an import and cells during preview.
//
// Mapping validation blocks the move to preview when a required field has no
// column. Cell validation never blocks; it only feeds preview warnings since
// the ingestion endpoint owns per-record rules.

import (
	"fmt"
	"strings"
)

// ValidationError represents a single problem with a cell.
type ValidationError struct {
	Row     int    `json:"row"`   // 1-based data row number
	Field   string `json:"field"` // Target field label
	Value   string `json:"value"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("row %d: %s: %s", e.Row, e.Field, e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// ValidateMapping returns a *MissingRequiredFieldsError naming every required
// field of kind that no non-skip mapping references, in registry order.
func ValidateMapping(mappings []ColumnMapping, kind ImportKind) error {
	mapped := make(map[string]bool, len(mappings))
	for _, m := range mappings {
		if !m.Skipped() {
			mapped[m.TargetField] = true
		}
	}

	var missing []string
	for _, f := range Fields(kind) {
		if f.Required && !mapped[f.Field] {
			missing = append(missing, f.Label)
		}
	}

	if len(missing) > 0 {
		return &MissingRequiredFieldsError{Labels: missing}
	}
	return nil
}

// CheckMappings verifies that mappings line up with headers one to one and
// only reference fields of kind.
func CheckMappings(headers []string, mappings []ColumnMapping, kind ImportKind) error {
	if len(mappings) != len(headers) {
		return fmt.Errorf("%w: %d mappings for %d columns", ErrMappingMismatch, len(mappings), len(headers))
	}
	for i, m := range mappings {
		if m.SourceColumn != headers[i] {
			return fmt.Errorf("%w: column %d is %q, mapping names %q", ErrMappingMismatch, i+1, headers[i], m.SourceColumn)
		}
		if m.Skipped() {
			continue
		}
		if _, ok := FieldByID(kind, m.TargetField); !ok {
			return fmt.Errorf("%w %q for %s", ErrUnknownField, m.TargetField, kind)
		}
	}
	return nil
}

// DuplicateTargets returns the target fields referenced by more than one
// column, in first-seen order. The later column wins at projection.
func DuplicateTargets(mappings []ColumnMapping) []string {
	counts := make(map[string]int)
	var order []string
	for _, m := range mappings {
		if m.Skipped() {
			continue
		}
		if counts[m.TargetField] == 0 {
			order = append(order, m.TargetField)
		}
		counts[m.TargetField]++
	}

	var dups []string
	for _, f := range order {
		if counts[f] > 1 {
			dups = append(dups, f)
		}
	}
	return dups
}

// ValidateCell checks a single value against a target field type.
// Returns nil if valid or empty.
func ValidateCell(value string, field TargetField) error {
	if strings.TrimSpace(value) == "" {
		return nil
	}

	switch field.Type {
	case FieldNumeric:
		if _, ok := ParseDecimal(value); !ok {
			return fmt.Errorf("invalid number format")
		}
	case FieldDate:
		if _, ok := ParseDate(value); !ok {
			return fmt.Errorf("invalid date format (use YYYY-MM-DD or similar)")
		}
	case FieldBool:
		if _, ok := ParseBool(value); !ok {
			return fmt.Errorf("must be yes/no, true/false, or 1/0")
		}
	case FieldEnum:
		if len(field.EnumValues) > 0 {
			v := CleanCell(value)
			for _, ev := range field.EnumValues {
				if strings.EqualFold(ev, v) {
					return nil
				}
			}
			return fmt.Errorf("invalid enum: value must be one of %s", strings.Join(field.EnumValues, ", "))
		}
	}
	return nil
}
