package core_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/JonMunkholm/ledgerimport/internal/core"
	_ "github.com/JonMunkholm/ledgerimport/internal/core/kinds"
)

// fakeSubmitter records batches and replies from a per-batch script.
type fakeSubmitter struct {
	mu      sync.Mutex
	batches []core.Batch
	// reply returns the response for a batch.
	reply func(b core.Batch) (core.BatchResponse, error)
	// gate, when set, blocks every submission until it is closed.
	gate chan struct{}
	// calls counts submissions that have started.
	calls atomic.Int32
}

func (f *fakeSubmitter) SubmitBatch(ctx context.Context, b core.Batch) (core.BatchResponse, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return core.BatchResponse{}, ctx.Err()
		}
	}

	f.mu.Lock()
	f.batches = append(f.batches, b)
	f.mu.Unlock()

	if f.reply != nil {
		return f.reply(b)
	}
	return core.BatchResponse{Success: len(b.Rows), Errors: []string{}}, nil
}

func (f *fakeSubmitter) recorded() []core.Batch {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]core.Batch, len(f.batches))
	copy(out, f.batches)
	return out
}

// failBatches makes the listed 1-based batches fail at the transport level.
func failBatches(indexes ...int) func(core.Batch) (core.BatchResponse, error) {
	fail := make(map[int]bool, len(indexes))
	for _, i := range indexes {
		fail[i] = true
	}
	return func(b core.Batch) (core.BatchResponse, error) {
		if fail[b.Index] {
			return core.BatchResponse{}, errors.New("connection reset by peer")
		}
		return core.BatchResponse{Success: len(b.Rows), Errors: []string{}}, nil
	}
}

// memoryPresets is an in-memory core.PresetStore.
type memoryPresets struct {
	mu      sync.Mutex
	presets map[string]core.MappingPreset
	next    int
}

func newMemoryPresets() *memoryPresets {
	return &memoryPresets{presets: make(map[string]core.MappingPreset)}
}

func (m *memoryPresets) CreatePreset(_ context.Context, p core.MappingPreset) (core.MappingPreset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	p.ID = fmt.Sprintf("preset-%d", m.next)
	m.presets[p.ID] = p
	return p, nil
}

func (m *memoryPresets) GetPreset(_ context.Context, tenantID, id string) (core.MappingPreset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.presets[id]
	if !ok || p.TenantID != tenantID {
		return core.MappingPreset{}, core.ErrPresetNotFound
	}
	return p, nil
}

func (m *memoryPresets) ListPresets(_ context.Context, tenantID string, kind core.ImportKind) ([]core.MappingPreset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.MappingPreset
	for i := 1; i <= m.next; i++ {
		p, ok := m.presets[fmt.Sprintf("preset-%d", i)]
		if ok && p.TenantID == tenantID && p.Kind == kind {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memoryPresets) DeletePreset(_ context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.presets[id]
	if !ok || p.TenantID != tenantID {
		return core.ErrPresetNotFound
	}
	delete(m.presets, id)
	return nil
}

// memoryRuns is an in-memory core.RunRecorder.
type memoryRuns struct {
	mu   sync.Mutex
	runs []core.RunRecord
}

func (m *memoryRuns) RecordRun(_ context.Context, rec core.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, rec)
	return nil
}

func (m *memoryRuns) ListRuns(_ context.Context, tenantID string, limit int) ([]core.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.RunRecord
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		if m.runs[i].TenantID == tenantID {
			out = append(out, m.runs[i])
		}
	}
	return out, nil
}

func makeRecords(n int) []core.Record {
	records := make([]core.Record, n)
	for i := range records {
		records[i] = core.Record{"name": fmt.Sprintf("Contact %d", i+1)}
	}
	return records
}
