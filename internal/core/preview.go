package core

import (
	"context"
	"sort"
	"time"
)

// PreviewSummary contains the summary counts for an import preview.
type PreviewSummary struct {
	TotalRows   int `json:"totalRows"`
	CleanRows   int `json:"cleanRows"`
	WarningRows int `json:"warningRows"`
	EmptyRows   int `json:"emptyRows"` // Every mapped value is blank
}

// RowPreview is one projected row for preview display.
type RowPreview struct {
	Row    int    `json:"row"` // 1-based data row number
	Values Record `json:"values"`
}

// WarningPreview is a projected row with cell warnings.
type WarningPreview struct {
	Row      int               `json:"row"`
	Values   Record            `json:"values"`
	Warnings []ValidationError `json:"warnings"`
}

// PreviewResponse is what the user reviews before starting an import.
// Warnings never block the import; the ingestion endpoint decides per record.
type PreviewResponse struct {
	Summary          PreviewSummary   `json:"summary"`
	Samples          []RowPreview     `json:"samples"`
	WarningSamples   []WarningPreview `json:"warningSamples"`
	DuplicateTargets []string         `json:"duplicateTargets"`
	SkippedColumns   []string         `json:"skippedColumns"`
	BatchSize        int              `json:"batchSize"`
	BatchCount       int              `json:"batchCount"`
	ProcessingTimeMs int64            `json:"processingTimeMs"`
}

// Sample limits
const (
	maxRowSamples     = 20
	maxWarningSamples = 20
)

// BuildPreview projects every row with mappings and checks each mapped cell
// against its field type.
func BuildPreview(table *ParsedTable, mappings []ColumnMapping, kind ImportKind, batchSize int) *PreviewResponse {
	start := time.Now()
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	fields := make(map[string]TargetField)
	for _, f := range Fields(kind) {
		fields[f.Field] = f
	}

	resp := &PreviewResponse{
		Summary:          PreviewSummary{TotalRows: table.TotalRows},
		Samples:          []RowPreview{},
		WarningSamples:   []WarningPreview{},
		DuplicateTargets: DuplicateTargets(mappings),
		SkippedColumns:   []string{},
		BatchSize:        batchSize,
		BatchCount:       (table.TotalRows + batchSize - 1) / batchSize,
	}
	if resp.DuplicateTargets == nil {
		resp.DuplicateTargets = []string{}
	}
	for _, m := range mappings {
		if m.Skipped() {
			resp.SkippedColumns = append(resp.SkippedColumns, m.SourceColumn)
		}
	}

	for i, rec := range ProjectRows(table, mappings) {
		rowNum := i + 1

		var warnings []ValidationError
		empty := true
		for field, value := range rec {
			if value != "" {
				empty = false
			}
			if err := ValidateCell(value, fields[field]); err != nil {
				warnings = append(warnings, ValidationError{
					Row:     rowNum,
					Field:   fields[field].Label,
					Value:   value,
					Message: err.Error(),
				})
			}
		}

		switch {
		case empty:
			resp.Summary.EmptyRows++
		case len(warnings) > 0:
			resp.Summary.WarningRows++
		default:
			resp.Summary.CleanRows++
		}

		if len(warnings) > 0 && len(resp.WarningSamples) < maxWarningSamples {
			sort.Slice(warnings, func(a, b int) bool { return warnings[a].Field < warnings[b].Field })
			resp.WarningSamples = append(resp.WarningSamples, WarningPreview{Row: rowNum, Values: rec, Warnings: warnings})
		}
		if len(resp.Samples) < maxRowSamples {
			resp.Samples = append(resp.Samples, RowPreview{Row: rowNum, Values: rec})
		}
	}

	resp.ProcessingTimeMs = time.Since(start).Milliseconds()
	return resp
}

// Preview builds the preview for a session in mapping or preview state.
func (s *Service) Preview(ctx context.Context, sessionID string) (*PreviewResponse, error) {
	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	state := sess.State()
	if state != StateMapping && state != StatePreview {
		return nil, &TransitionError{Op: "preview", State: state}
	}

	table := sess.Table()
	if table == nil {
		return nil, &TransitionError{Op: "preview", State: state}
	}
	return BuildPreview(table, sess.Mappings(), sess.Kind, s.cfg.BatchSize), nil
}
