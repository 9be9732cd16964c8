package core

// session.go holds the per-file import state machine:
//
//	upload -> mapping -> preview -> importing -> complete
//
// Back is allowed from mapping (discarding the file) and from preview.
// Progress and the final result are written only by the run goroutine;
// readers get copies or listener channels.

import (
	"context"
	"slices"
	"sync"
	"time"
)

// listenerBuffer is the channel capacity for progress subscribers.
const listenerBuffer = 10

// Session is one import attempt for a tenant and kind.
type Session struct {
	ID        string
	TenantID  string
	Kind      ImportKind
	CreatedAt time.Time

	mu        sync.RWMutex
	state     SessionState
	fileName  string
	table     *ParsedTable
	mappings  []ColumnMapping
	progress  ImportProgress
	result    *ImportResult
	runID     string
	startedAt time.Time
	touchedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}
	closed    bool

	listenerMu sync.Mutex
	listeners  []chan ImportProgress
}

// NewSession creates a session waiting for a file.
func NewSession(id, tenantID string, kind ImportKind) *Session {
	now := time.Now()
	return &Session{
		ID:        id,
		TenantID:  tenantID,
		Kind:      kind,
		CreatedAt: now,
		state:     StateUpload,
		touchedAt: now,
		done:      make(chan struct{}),
		progress:  ImportProgress{SessionID: id, Kind: kind, State: StateUpload},
	}
}

// Load attaches a parsed file and proposes mappings with AutoMap.
func (s *Session) Load(fileName string, table *ParsedTable) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUpload {
		return &TransitionError{Op: "load a file", State: s.state}
	}

	s.fileName = fileName
	s.table = table
	s.mappings = AutoMap(table.Headers, s.Kind)
	s.setState(StateMapping)
	return nil
}

// SetMappings replaces the mappings. Allowed only while mapping.
func (s *Session) SetMappings(mappings []ColumnMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateMapping {
		return &TransitionError{Op: "change mappings", State: s.state}
	}
	if err := CheckMappings(s.table.Headers, mappings, s.Kind); err != nil {
		return err
	}

	s.mappings = slices.Clone(mappings)
	s.touchedAt = time.Now()
	return nil
}

// Confirm validates the mappings and moves to preview.
// On a *MissingRequiredFieldsError the session stays in mapping.
func (s *Session) Confirm() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateMapping {
		return &TransitionError{Op: "confirm mappings", State: s.state}
	}
	if err := ValidateMapping(s.mappings, s.Kind); err != nil {
		s.touchedAt = time.Now()
		return err
	}

	s.setState(StatePreview)
	return nil
}

// Back steps from preview to mapping, or from mapping to upload.
// Going back to upload discards the file and its mappings.
func (s *Session) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StatePreview:
		s.setState(StateMapping)
	case StateMapping:
		s.fileName = ""
		s.table = nil
		s.mappings = nil
		s.setState(StateUpload)
	default:
		return &TransitionError{Op: "go back", State: s.state}
	}
	return nil
}

// begin moves preview to importing and returns the run request.
func (s *Session) begin(runID string, cancel context.CancelFunc) (RunRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return RunRequest{}, ErrSessionNotFound
	}
	switch s.state {
	case StateImporting:
		return RunRequest{}, ErrImportInProgress
	case StatePreview:
	default:
		return RunRequest{}, &TransitionError{Op: "start import", State: s.state}
	}

	s.runID = runID
	s.cancel = cancel
	s.startedAt = time.Now()
	s.setState(StateImporting)

	return RunRequest{
		RunID:     runID,
		SessionID: s.ID,
		TenantID:  s.TenantID,
		Kind:      s.Kind,
		Records:   ProjectRows(s.table, s.mappings),
		Mappings:  slices.Clone(s.mappings),
	}, nil
}

// canStart reports whether begin would succeed, without changing state.
func (s *Session) canStart() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrSessionNotFound
	}
	switch s.state {
	case StatePreview:
		return nil
	case StateImporting:
		return ErrImportInProgress
	default:
		return &TransitionError{Op: "start import", State: s.state}
	}
}

// publish records run progress and fans it out to listeners.
// The percentage never decreases.
func (s *Session) publish(p ImportProgress) {
	s.mu.Lock()
	if p.Percent < s.progress.Percent {
		p.Percent = s.progress.Percent
	}
	p.State = s.state
	s.progress = p
	s.touchedAt = time.Now()
	s.mu.Unlock()

	s.notify(p)
}

// finish stores the final result, moves to complete and closes listeners.
func (s *Session) finish(result ImportResult) {
	s.mu.Lock()
	if s.state == StateComplete {
		s.mu.Unlock()
		return
	}
	s.result = &result
	if !result.Cancelled {
		s.progress.Percent = 100
		s.progress.ProcessedRows = s.progress.TotalRows
	}
	s.setState(StateComplete)
	if s.cancel != nil {
		s.cancel()
	}
	final := s.progress
	s.mu.Unlock()

	s.notify(final)
	s.closeListeners()
	close(s.done)
}

// Cancel signals a running import to stop before its next batch.
// Returns false if the session is not importing.
func (s *Session) Cancel() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state != StateImporting || s.cancel == nil {
		return false
	}
	s.cancel()
	return true
}

// Subscribe returns a channel receiving progress updates, starting with the
// current progress. The channel is closed when the import completes.
// Call the returned function to stop listening early.
func (s *Session) Subscribe() (<-chan ImportProgress, func()) {
	ch := make(chan ImportProgress, listenerBuffer)

	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()

	s.mu.RLock()
	current := s.progress
	ended := s.state == StateComplete || s.closed
	s.mu.RUnlock()

	ch <- current
	if ended {
		close(ch)
		return ch, func() {}
	}

	s.listeners = append(s.listeners, ch)
	return ch, func() { s.unsubscribe(ch) }
}

// close releases the listeners of a session that is being removed.
// Returns false while an import is running; finish releases them instead.
func (s *Session) close() bool {
	s.mu.Lock()
	if s.state == StateImporting {
		s.mu.Unlock()
		return false
	}
	released := s.closed || s.state == StateComplete
	s.closed = true
	s.mu.Unlock()

	if !released {
		s.closeListeners()
		close(s.done)
	}
	return true
}

// Done is closed once the session reaches complete or is removed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) notify(p ImportProgress) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()

	for _, ch := range s.listeners {
		select {
		case ch <- p:
		default:
			// Listener is slow, skip this update
		}
	}
}

func (s *Session) closeListeners() {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()

	for _, ch := range s.listeners {
		close(ch)
	}
	s.listeners = nil
}

func (s *Session) unsubscribe(ch chan ImportProgress) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()

	for i, l := range s.listeners {
		if l == ch {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// setState must be called with mu held.
func (s *Session) setState(state SessionState) {
	s.state = state
	s.progress.State = state
	if state == StateImporting {
		total := 0
		if s.table != nil {
			total = s.table.TotalRows
		}
		s.progress = ImportProgress{SessionID: s.ID, Kind: s.Kind, State: state, TotalRows: total}
	}
	s.touchedAt = time.Now()
}

// State returns the current state.
func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// FileName returns the uploaded file name.
func (s *Session) FileName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fileName
}

// Table returns the parsed file, or nil before upload.
func (s *Session) Table() *ParsedTable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table
}

// Mappings returns a copy of the current mappings.
func (s *Session) Mappings() []ColumnMapping {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.mappings)
}

// Result returns a copy of the result once importing has begun.
func (s *Session) Result() (ImportResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.result == nil {
		return ImportResult{}, false
	}
	r := *s.result
	r.Errors = slices.Clone(r.Errors)
	return r, true
}

// Progress returns the latest published progress.
func (s *Session) Progress() ImportProgress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progress
}

// idleSince reports when the session was last touched.
func (s *Session) idleSince() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.touchedAt
}

// SessionSnapshot is a read-only view of a session for API responses.
type SessionSnapshot struct {
	ID           string          `json:"id"`
	Kind         ImportKind      `json:"kind"`
	State        SessionState    `json:"state"`
	FileName     string          `json:"fileName,omitempty"`
	Headers      []string        `json:"headers"`
	TotalRows    int             `json:"totalRows"`
	Mappings     []ColumnMapping `json:"mappings"`
	Fields       []TargetField   `json:"fields"`
	Progress     ImportProgress  `json:"progress"`
	Result       *ResultSummary  `json:"result,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
	RunID        string          `json:"runId,omitempty"`
	RunStartedAt *time.Time      `json:"runStartedAt,omitempty"`
}

// ResultSummary is an ImportResult with the error list cut to a preview.
type ResultSummary struct {
	SuccessCount int      `json:"successCount"`
	FailedCount  int      `json:"failedCount"`
	Errors       []string `json:"errors"`
	TotalErrors  int      `json:"totalErrors"`
	Cancelled    bool     `json:"cancelled,omitempty"`
	DurationMS   int64    `json:"durationMs"`
}

// Summarize cuts the error list to ErrorPreviewLimit entries.
func (r ImportResult) Summarize() ResultSummary {
	return ResultSummary{
		SuccessCount: r.SuccessCount,
		FailedCount:  r.FailedCount,
		Errors:       r.Preview(ErrorPreviewLimit),
		TotalErrors:  len(r.Errors),
		Cancelled:    r.Cancelled,
		DurationMS:   r.Duration.Milliseconds(),
	}
}

// Snapshot returns the current session view.
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := SessionSnapshot{
		ID:        s.ID,
		Kind:      s.Kind,
		State:     s.state,
		FileName:  s.fileName,
		Headers:   []string{},
		Mappings:  slices.Clone(s.mappings),
		Fields:    Fields(s.Kind),
		Progress:  s.progress,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.touchedAt,
		RunID:     s.runID,
	}
	if s.table != nil {
		snap.Headers = s.table.Headers
		snap.TotalRows = s.table.TotalRows
	}
	if snap.Mappings == nil {
		snap.Mappings = []ColumnMapping{}
	}
	if s.result != nil {
		sum := s.result.Summarize()
		snap.Result = &sum
	}
	if !s.startedAt.IsZero() {
		started := s.startedAt
		snap.RunStartedAt = &started
	}
	return snap
}
