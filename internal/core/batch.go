package core

// batch.go submits projected records to the ingestion endpoint.
//
// A run is a single goroutine: it issues one batch, waits for its outcome,
// folds the outcome into the ImportResult and only then issues the next.
// A failed batch never aborts the run; its rows are counted as failed and a
// synthetic error names the batch.

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/JonMunkholm/ledgerimport/internal/logging"
)

const (
	DefaultBatchSize    = 10
	DefaultBatchTimeout = 30 * time.Second
)

// Batch is one ingestion request.
type Batch struct {
	RunID    string
	TenantID string
	Kind     ImportKind
	Index    int // 1-based
	Count    int
	Offset   int // Position of the first row within the run
	Rows     []Record
	Mappings []ColumnMapping
}

// BatchResponse is what the ingestion endpoint reports for one batch.
type BatchResponse struct {
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors"`
}

// Submitter delivers a batch to the ingestion endpoint for its kind.
// A returned error is a transport failure: the whole batch counts as failed.
type Submitter interface {
	SubmitBatch(ctx context.Context, batch Batch) (BatchResponse, error)
}

// RunRequest describes one import run.
type RunRequest struct {
	RunID     string
	SessionID string
	TenantID  string
	Kind      ImportKind
	Records   []Record
	Mappings  []ColumnMapping
}

// Importer runs batched submissions.
type Importer struct {
	Submitter    Submitter
	BatchSize    int
	BatchTimeout time.Duration
}

// NewImporter creates an importer. Zero values fall back to the defaults.
func NewImporter(sub Submitter, batchSize int, batchTimeout time.Duration) *Importer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if batchTimeout <= 0 {
		batchTimeout = DefaultBatchTimeout
	}
	return &Importer{Submitter: sub, BatchSize: batchSize, BatchTimeout: batchTimeout}
}

// Run submits every batch in order and returns the folded result.
//
// Cancellation of ctx is checked before each batch; a batch already in
// flight finishes under its own timeout. onProgress is called after every
// attempted batch with a non-decreasing percentage, and with 100 once all
// batches were attempted. onProgress may be nil.
func (im *Importer) Run(ctx context.Context, req RunRequest, onProgress ProgressCallback) ImportResult {
	start := time.Now()
	log := logging.WithFields(ctx, "run_id", req.RunID, "session_id", req.SessionID, "kind", req.Kind)

	batches := Partition(req.Records, im.BatchSize)
	total := len(req.Records)
	result := ImportResult{Errors: []string{}}

	publish := func(processed, batch int) {
		if onProgress == nil {
			return
		}
		onProgress(ImportProgress{
			SessionID:     req.SessionID,
			Kind:          req.Kind,
			State:         StateImporting,
			Percent:       progressPercent(processed, total),
			ProcessedRows: processed,
			TotalRows:     total,
			Batch:         batch,
			BatchCount:    len(batches),
		})
	}

	activeRuns.Inc()
	defer activeRuns.Dec()

	log.Info("import run started", "rows", total, "batches", len(batches), "batch_size", im.BatchSize)

	processed := 0
	for i, rows := range batches {
		if ctx.Err() != nil {
			result.Cancelled = true
			result.Errors = append(result.Errors,
				fmt.Sprintf("Import cancelled: %d of %d rows were not submitted", total-processed, total))
			log.Warn("import run cancelled", "batch", i+1, "unsubmitted_rows", total-processed)
			break
		}

		batch := Batch{
			RunID:    req.RunID,
			TenantID: req.TenantID,
			Kind:     req.Kind,
			Index:    i + 1,
			Count:    len(batches),
			Offset:   processed,
			Rows:     rows,
			Mappings: req.Mappings,
		}

		batchStart := time.Now()
		resp, err := im.submit(ctx, batch)
		batchDuration.WithLabelValues(string(req.Kind)).Observe(time.Since(batchStart).Seconds())

		if err != nil {
			failure := &BatchSubmissionFailure{Batch: batch.Index, Rows: len(rows), Err: err}
			log.Warn("batch submission failed", "batch", batch.Index, "rows", len(rows), "error", err)
			result.FailedCount += len(rows)
			result.Errors = append(result.Errors, failure.Error())
			batchesTotal.WithLabelValues(string(req.Kind), "failed").Inc()
			rowsTotal.WithLabelValues(string(req.Kind), "failed").Add(float64(len(rows)))
		} else {
			result.SuccessCount += resp.Success
			result.FailedCount += resp.Failed
			result.Errors = append(result.Errors, resp.Errors...)
			batchesTotal.WithLabelValues(string(req.Kind), "ok").Inc()
			rowsTotal.WithLabelValues(string(req.Kind), "success").Add(float64(resp.Success))
			rowsTotal.WithLabelValues(string(req.Kind), "failed").Add(float64(resp.Failed))
			log.Debug("batch submitted", "batch", batch.Index, "success", resp.Success, "failed", resp.Failed)
		}

		processed += len(rows)
		publish(processed, batch.Index)
	}

	if !result.Cancelled {
		publish(total, len(batches))
		runsTotal.WithLabelValues(string(req.Kind), "complete").Inc()
	} else {
		runsTotal.WithLabelValues(string(req.Kind), "cancelled").Inc()
	}

	result.Duration = time.Since(start)
	log.Info("import run finished",
		"success", result.SuccessCount,
		"failed", result.FailedCount,
		"errors", len(result.Errors),
		"cancelled", result.Cancelled,
		"duration", result.Duration)

	return result
}

type submitOutcome struct {
	resp BatchResponse
	err  error
}

// submit runs one submission under the batch timeout. The submitter runs
// in its own goroutine so a call that ignores its context cannot stall the
// run; panics are reported as failures.
func (im *Importer) submit(ctx context.Context, b Batch) (BatchResponse, error) {
	timeout := im.BatchTimeout
	if timeout <= 0 {
		timeout = DefaultBatchTimeout
	}
	bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	done := make(chan submitOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- submitOutcome{err: fmt.Errorf("unexpected failure: %v", r)}
			}
		}()
		resp, err := im.Submitter.SubmitBatch(bctx, b)
		done <- submitOutcome{resp: resp, err: err}
	}()

	return awaitOutcome(done, bctx.Done(), timeout)
}

// awaitOutcome waits for the submitter or the deadline. An outcome that is
// ready when the deadline fires still wins.
func awaitOutcome(done <-chan submitOutcome, expired <-chan struct{}, timeout time.Duration) (BatchResponse, error) {
	select {
	case out := <-done:
		return out.settle()
	case <-expired:
		select {
		case out := <-done:
			return out.settle()
		default:
		}
		return BatchResponse{}, fmt.Errorf("timed out after %s", timeout)
	}
}

func (out submitOutcome) settle() (BatchResponse, error) {
	if out.err != nil {
		return BatchResponse{}, out.err
	}
	if out.resp.Success < 0 || out.resp.Failed < 0 {
		return BatchResponse{}, fmt.Errorf("invalid response: negative counts")
	}
	return out.resp, nil
}

// progressPercent rounds processed/total to a whole percentage.
// An empty run is complete by definition.
func progressPercent(processed, total int) int {
	if total == 0 {
		return 100
	}
	return int(math.Round(float64(processed) * 100 / float64(total)))
}
