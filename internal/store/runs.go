package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/netip"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/ledgerimport/internal/core"
)

// RecordRun inserts a finished run. Recording the same run twice is a no-op.
func (s *Store) RecordRun(ctx context.Context, rec core.RunRecord) error {
	errs := rec.Errors
	if errs == nil {
		errs = []string{}
	}
	errorsJSON, err := json.Marshal(errs)
	if err != nil {
		return fmt.Errorf("marshal run errors: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO import_runs (
			id, tenant_id, session_id, kind, file_name, total_rows,
			success_count, failed_count, error_count, errors, cancelled,
			ip_address, user_agent, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO NOTHING`,
		toPgUUID(rec.ID), rec.TenantID, toPgUUID(rec.SessionID), string(rec.Kind), rec.FileName,
		rec.TotalRows, rec.Success, rec.Failed, rec.ErrorCount, errorsJSON, rec.Cancelled,
		parseIP(rec.IPAddress), toPgText(rec.UserAgent), rec.StartedAt, rec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert import run: %w", err)
	}
	return nil
}

// ListRuns returns the tenant's most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, tenantID string, limit int) ([]core.RunRecord, error) {
	if limit <= 0 {
		limit = core.DefaultRunHistoryLimit
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, tenant_id, session_id, kind, file_name, total_rows,
			success_count, failed_count, error_count, errors, cancelled,
			ip_address, user_agent, started_at, finished_at
		FROM import_runs
		WHERE tenant_id = $1
		ORDER BY started_at DESC
		LIMIT $2`,
		tenantID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]core.RunRecord, 0)
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, rec)
	}
	return runs, rows.Err()
}

func scanRun(rows pgx.Rows) (core.RunRecord, error) {
	var (
		id         pgtype.UUID
		sessionID  pgtype.UUID
		kind       string
		errorsJSON []byte
		ipAddress  *netip.Addr
		userAgent  pgtype.Text
		startedAt  pgtype.Timestamptz
		finishedAt pgtype.Timestamptz
		rec        core.RunRecord
	)

	err := rows.Scan(
		&id, &rec.TenantID, &sessionID, &kind, &rec.FileName, &rec.TotalRows,
		&rec.Success, &rec.Failed, &rec.ErrorCount, &errorsJSON, &rec.Cancelled,
		&ipAddress, &userAgent, &startedAt, &finishedAt,
	)
	if err != nil {
		return core.RunRecord{}, err
	}

	rec.ID = uuidString(id)
	rec.SessionID = uuidString(sessionID)
	rec.Kind = core.ImportKind(kind)
	rec.StartedAt = startedAt.Time
	rec.FinishedAt = finishedAt.Time
	if ipAddress != nil {
		rec.IPAddress = ipAddress.String()
	}
	if userAgent.Valid {
		rec.UserAgent = userAgent.String
	}
	if len(errorsJSON) > 0 {
		if err := json.Unmarshal(errorsJSON, &rec.Errors); err != nil {
			return core.RunRecord{}, fmt.Errorf("decode run errors: %w", err)
		}
	}
	return rec, nil
}
