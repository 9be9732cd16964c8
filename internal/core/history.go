package core

import (
	"context"
	"log/slog"
	"time"
)

// RunRecord summarizes a finished import run.
type RunRecord struct {
	ID         string     `json:"id"`
	TenantID   string     `json:"-"`
	SessionID  string     `json:"sessionId"`
	Kind       ImportKind `json:"kind"`
	FileName   string     `json:"fileName"`
	TotalRows  int        `json:"totalRows"`
	Success    int        `json:"successCount"`
	Failed     int        `json:"failedCount"`
	ErrorCount int        `json:"errorCount"`
	Errors     []string   `json:"errors,omitempty"` // First ErrorPreviewLimit errors
	Cancelled  bool       `json:"cancelled"`
	IPAddress  string     `json:"-"`
	UserAgent  string     `json:"-"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt time.Time  `json:"finishedAt"`
}

// RunRecorder persists finished runs.
type RunRecorder interface {
	RecordRun(ctx context.Context, rec RunRecord) error
	ListRuns(ctx context.Context, tenantID string, limit int) ([]RunRecord, error)
}

// recordTimeout bounds how long writing run history may take.
const recordTimeout = 5 * time.Second

// DefaultRunHistoryLimit is how many runs ListRuns returns by default.
const DefaultRunHistoryLimit = 50

// recordRun writes run history. Failures are only logged.
func (s *Service) recordRun(rec RunRecord) {
	if s.runs == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := s.runs.RecordRun(ctx, rec); err != nil {
		slog.Error("record import run failed",
			"run_id", rec.ID,
			"session_id", rec.SessionID,
			"error", err,
		)
	}
}

// ListRuns returns the caller tenant's most recent runs.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if s.runs == nil {
		return []RunRecord{}, nil
	}
	if limit <= 0 || limit > DefaultRunHistoryLimit {
		limit = DefaultRunHistoryLimit
	}
	return s.runs.ListRuns(ctx, TenantFromContext(ctx), limit)
}
