package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/ledgerimport/internal/core"
)

// TxBeginner starts transactions. Satisfied by *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresSubmitter writes projected rows into import_staging_rows. Each
// batch is one transaction and each row its own savepoint, so a bad row is
// reported without losing the rest of the batch.
type PostgresSubmitter struct {
	db TxBeginner
}

// NewPostgresSubmitter creates a staging-table submitter.
func NewPostgresSubmitter(db TxBeginner) *PostgresSubmitter {
	return &PostgresSubmitter{db: db}
}

const insertStagingRow = `
	INSERT INTO import_staging_rows (run_id, tenant_id, kind, row_number, data)
	VALUES ($1, $2, $3, $4, $5)`

// SubmitBatch implements core.Submitter.
func (p *PostgresSubmitter) SubmitBatch(ctx context.Context, b core.Batch) (core.BatchResponse, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return core.BatchResponse{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	resp := core.BatchResponse{Errors: []string{}}
	for i, rec := range b.Rows {
		rowNum := b.Offset + i + 1

		data, err := json.Marshal(rec)
		if err != nil {
			resp.Failed++
			resp.Errors = append(resp.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
			continue
		}

		if err := insertRow(ctx, tx, b, rowNum, data); err != nil {
			resp.Failed++
			resp.Errors = append(resp.Errors, fmt.Sprintf("Row %d: %s", rowNum, rowError(err)))
			continue
		}
		resp.Success++
	}

	if err := tx.Commit(ctx); err != nil {
		return core.BatchResponse{}, fmt.Errorf("commit batch: %w", err)
	}
	return resp, nil
}

// insertRow inserts one row inside a savepoint.
func insertRow(ctx context.Context, tx pgx.Tx, b core.Batch, rowNum int, data []byte) error {
	sp, err := tx.Begin(ctx)
	if err != nil {
		return err
	}
	if _, err := sp.Exec(ctx, insertStagingRow, b.RunID, b.TenantID, string(b.Kind), rowNum, data); err != nil {
		_ = sp.Rollback(ctx)
		return err
	}
	return sp.Commit(ctx)
}

// rowError reduces a database error to its message.
func rowError(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Detail != "" {
			return pgErr.Message + ": " + pgErr.Detail
		}
		return pgErr.Message
	}
	return err.Error()
}
