package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/ledgerimport/internal/logging"
)

// Defaults for ServiceConfig fields left at zero.
const (
	DefaultMaxFileSize    = 10 << 20
	DefaultRunTimeout     = 30 * time.Minute
	DefaultSessionIdleTTL = 30 * time.Minute
	DefaultProductName    = "ledger"
)

// ServiceConfig tunes import sessions and runs.
type ServiceConfig struct {
	BatchSize      int
	BatchTimeout   time.Duration
	RunTimeout     time.Duration
	MaxFileSize    int64
	MaxConcurrent  int
	MaxWait        time.Duration
	SessionIdleTTL time.Duration
	ProductName    string
}

func (c ServiceConfig) withDefaults() ServiceConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = DefaultBatchTimeout
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = DefaultRunTimeout
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = DefaultMaxFileSize
	}
	if c.SessionIdleTTL <= 0 {
		c.SessionIdleTTL = DefaultSessionIdleTTL
	}
	if c.ProductName == "" {
		c.ProductName = DefaultProductName
	}
	return c
}

// Option configures optional Service collaborators.
type Option func(*Service)

// WithPresetStore enables saved mapping presets.
func WithPresetStore(store PresetStore) Option {
	return func(s *Service) { s.presets = store }
}

// WithRunRecorder enables run history.
func WithRunRecorder(rec RunRecorder) Option {
	return func(s *Service) { s.runs = rec }
}

// Service owns in-memory import sessions and runs their imports.
type Service struct {
	cfg      ServiceConfig
	importer *Importer
	limiter  *RunLimiter
	presets  PresetStore
	runs     RunRecorder

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewService creates a Service that submits batches through sub.
func NewService(sub Submitter, cfg ServiceConfig, opts ...Option) *Service {
	cfg = cfg.withDefaults()
	s := &Service{
		cfg:      cfg,
		importer: NewImporter(sub, cfg.BatchSize, cfg.BatchTimeout),
		limiter:  NewRunLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the effective configuration.
func (s *Service) Config() ServiceConfig {
	return s.cfg
}

// Template returns the starter file for kind.
func (s *Service) Template(kind ImportKind) Template {
	return GenerateTemplate(kind, s.cfg.ProductName)
}

// CreateSession parses an uploaded file and returns a session in mapping
// state with auto-mapped columns. The tenant comes from ctx.
func (s *Service) CreateSession(ctx context.Context, kind ImportKind, fileName string, r io.Reader) (*Session, error) {
	if _, ok := Lookup(kind); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	table, err := DecodeFile(fileName, r, s.cfg.MaxFileSize)
	if err != nil {
		return nil, err
	}

	sess := NewSession(uuid.New().String(), TenantFromContext(ctx), kind)
	if err := sess.Load(fileName, table); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	sessionsActive.Set(float64(len(s.sessions)))
	s.mu.Unlock()

	logging.FromContext(ctx).Info("import session created",
		"session_id", sess.ID,
		"kind", kind,
		"file", fileName,
		"columns", len(table.Headers),
		"rows", table.TotalRows,
	)
	return sess, nil
}

// LoadFile replaces the file of a session that stepped back to upload.
// The session returns to mapping with fresh auto-mapped columns.
func (s *Service) LoadFile(ctx context.Context, id, fileName string, r io.Reader) error {
	sess, err := s.Session(ctx, id)
	if err != nil {
		return err
	}
	if state := sess.State(); state != StateUpload {
		return &TransitionError{Op: "load a file", State: state}
	}

	table, err := DecodeFile(fileName, r, s.cfg.MaxFileSize)
	if err != nil {
		return err
	}
	return sess.Load(fileName, table)
}

// Session returns a session visible to the tenant in ctx.
func (s *Service) Session(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok || sess.TenantID != TenantFromContext(ctx) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// UpdateMappings replaces a session's mappings.
func (s *Service) UpdateMappings(ctx context.Context, id string, mappings []ColumnMapping) error {
	sess, err := s.Session(ctx, id)
	if err != nil {
		return err
	}
	return sess.SetMappings(mappings)
}

// ColumnSuggestions lists override candidates for one source column.
type ColumnSuggestions struct {
	Column      string       `json:"column"`
	Current     string       `json:"current"`
	Suggestions []Suggestion `json:"suggestions"`
}

// Suggestions returns override candidates for every column of a session.
func (s *Service) Suggestions(ctx context.Context, id string) ([]ColumnSuggestions, error) {
	sess, err := s.Session(ctx, id)
	if err != nil {
		return nil, err
	}
	table := sess.Table()
	if table == nil {
		return nil, &TransitionError{Op: "suggest mappings", State: sess.State()}
	}

	mappings := sess.Mappings()
	out := make([]ColumnSuggestions, len(table.Headers))
	for i, h := range table.Headers {
		out[i] = ColumnSuggestions{Column: h, Suggestions: Suggest(h, sess.Kind)}
		if i < len(mappings) {
			out[i].Current = mappings[i].TargetField
		}
		if out[i].Suggestions == nil {
			out[i].Suggestions = []Suggestion{}
		}
	}
	return out, nil
}

// Confirm validates mappings and moves the session to preview.
func (s *Service) Confirm(ctx context.Context, id string) error {
	sess, err := s.Session(ctx, id)
	if err != nil {
		return err
	}
	return sess.Confirm()
}

// Back steps the session backward.
func (s *Service) Back(ctx context.Context, id string) error {
	sess, err := s.Session(ctx, id)
	if err != nil {
		return err
	}
	return sess.Back()
}

// StartImport begins the batched import of a session in preview.
// It returns once the run is started; follow it with Subscribe or Wait.
// A second start while importing returns ErrImportInProgress.
func (s *Service) StartImport(ctx context.Context, id string) error {
	sess, err := s.Session(ctx, id)
	if err != nil {
		return err
	}
	if err := sess.canStart(); err != nil {
		return err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return err
	}

	// The run outlives the request but keeps its values for log correlation.
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.RunTimeout)
	runID := uuid.New().String()

	req, err := sess.begin(runID, cancel)
	if err != nil {
		cancel()
		s.limiter.Release()
		return err
	}

	rec := RunRecord{
		ID:        runID,
		TenantID:  sess.TenantID,
		SessionID: sess.ID,
		Kind:      sess.Kind,
		FileName:  sess.FileName(),
		TotalRows: len(req.Records),
		IPAddress: GetIPAddressFromContext(ctx),
		UserAgent: GetUserAgentFromContext(ctx),
		StartedAt: time.Now(),
	}

	go func() {
		defer s.limiter.Release()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in import run",
					"session_id", sess.ID,
					"run_id", runID,
					"panic", r,
				)
				sess.finish(ImportResult{
					FailedCount: len(req.Records),
					Errors:      []string{fmt.Sprintf("internal error: %v", r)},
				})
			}
		}()
		s.runImport(runCtx, sess, req, rec)
	}()

	return nil
}

func (s *Service) runImport(ctx context.Context, sess *Session, req RunRequest, rec RunRecord) {
	result := s.importer.Run(ctx, req, sess.publish)
	sess.finish(result)

	rec.Success = result.SuccessCount
	rec.Failed = result.FailedCount
	rec.ErrorCount = len(result.Errors)
	rec.Errors = result.Preview(ErrorPreviewLimit)
	rec.Cancelled = result.Cancelled
	rec.FinishedAt = time.Now()
	s.recordRun(rec)
}

// Subscribe streams progress for a session until its import completes.
func (s *Service) Subscribe(ctx context.Context, id string) (<-chan ImportProgress, func(), error) {
	sess, err := s.Session(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	ch, stop := sess.Subscribe()
	return ch, stop, nil
}

// Cancel asks a running import to stop before its next batch.
func (s *Service) Cancel(ctx context.Context, id string) error {
	sess, err := s.Session(ctx, id)
	if err != nil {
		return err
	}
	if !sess.Cancel() {
		return &TransitionError{Op: "cancel", State: sess.State()}
	}
	logging.FromContext(ctx).Info("import cancellation requested", "session_id", id)
	return nil
}

// Wait blocks until the session's import completes or ctx ends.
func (s *Service) Wait(ctx context.Context, id string) (ImportResult, error) {
	sess, err := s.Session(ctx, id)
	if err != nil {
		return ImportResult{}, err
	}

	state := sess.State()
	if state != StateImporting && state != StateComplete {
		return ImportResult{}, &TransitionError{Op: "wait for results", State: state}
	}

	select {
	case <-sess.Done():
	case <-ctx.Done():
		return ImportResult{}, ctx.Err()
	}

	result, _ := sess.Result()
	return result, nil
}

// Discard removes a session, cancelling its import if one is running.
func (s *Service) Discard(ctx context.Context, id string) error {
	sess, err := s.Session(ctx, id)
	if err != nil {
		return err
	}
	if !sess.Cancel() {
		sess.close()
	}
	s.remove(id)
	return nil
}

func (s *Service) remove(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	sessionsActive.Set(float64(len(s.sessions)))
	s.mu.Unlock()
}

// SessionCount returns the number of sessions held in memory.
func (s *Service) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// ActiveImports returns the number of running imports.
func (s *Service) ActiveImports() int {
	return s.limiter.ActiveCount()
}

// LimiterStatus returns the run limiter state for monitoring.
func (s *Service) LimiterStatus() RunLimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until running imports finish or timeout elapses.
// Returns true if all imports finished.
func (s *Service) WaitForImports(timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.limiter.WaitForDrain(ctx) == nil
}
