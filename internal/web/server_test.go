package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/ledgerimport/internal/config"
	"github.com/JonMunkholm/ledgerimport/internal/core"
	_ "github.com/JonMunkholm/ledgerimport/internal/core/kinds"
)

const contactsCSV = "Full Name,E-mail,Phone,Favourite Colour\n" +
	"Ada Lovelace,ada@example.com,555-0100,green\n" +
	"Alan Turing,alan@example.com,555-0101,blue\n" +
	"Grace Hopper,grace@example.com,555-0102,red\n"

// acceptAll accepts every row it is sent.
type acceptAll struct{}

func (acceptAll) SubmitBatch(_ context.Context, b core.Batch) (core.BatchResponse, error) {
	return core.BatchResponse{Success: len(b.Rows), Errors: []string{}}, nil
}

// presetStore is an in-memory core.PresetStore.
type presetStore struct {
	mu      sync.Mutex
	presets map[string]core.MappingPreset
}

func (p *presetStore) CreatePreset(_ context.Context, in core.MappingPreset) (core.MappingPreset, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, existing := range p.presets {
		if existing.TenantID == in.TenantID && existing.Kind == in.Kind && existing.Name == in.Name {
			return core.MappingPreset{}, core.ErrPresetExists
		}
	}
	in.ID = uuid.NewString()
	p.presets[in.ID] = in
	return in, nil
}

func (p *presetStore) GetPreset(_ context.Context, tenantID, id string) (core.MappingPreset, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	got, ok := p.presets[id]
	if !ok || got.TenantID != tenantID {
		return core.MappingPreset{}, core.ErrPresetNotFound
	}
	return got, nil
}

func (p *presetStore) ListPresets(_ context.Context, tenantID string, kind core.ImportKind) ([]core.MappingPreset, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := []core.MappingPreset{}
	for _, got := range p.presets {
		if got.TenantID == tenantID && got.Kind == kind {
			out = append(out, got)
		}
	}
	return out, nil
}

func (p *presetStore) DeletePreset(_ context.Context, tenantID, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	got, ok := p.presets[id]
	if !ok || got.TenantID != tenantID {
		return core.ErrPresetNotFound
	}
	delete(p.presets, id)
	return nil
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("dial tcp: connection refused") }

func testConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{RequestTimeout: 5 * time.Second},
		Security: config.SecurityConfig{DefaultTenant: "default"},
	}
}

type testEnv struct {
	t      *testing.T
	server *Server
	svc    *core.Service
}

func newTestEnv(t *testing.T, cfg *config.Config, svcCfg core.ServiceConfig, opts ...Option) *testEnv {
	t.Helper()
	if svcCfg.BatchSize == 0 {
		svcCfg.BatchSize = 2
	}
	svcCfg.BatchTimeout = time.Second
	svcCfg.MaxWait = 100 * time.Millisecond

	svc := core.NewService(acceptAll{}, svcCfg,
		core.WithPresetStore(&presetStore{presets: make(map[string]core.MappingPreset)}))
	return &testEnv{t: t, server: NewServer(svc, cfg, opts...), svc: svc}
}

// do sends a request through the router.
func (e *testEnv) do(method, path string, body io.Reader, header http.Header) *httptest.ResponseRecorder {
	e.t.Helper()
	req := httptest.NewRequest(method, path, body)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) doJSON(method, path string, v any) *httptest.ResponseRecorder {
	e.t.Helper()
	var body io.Reader
	if v != nil {
		data, err := json.Marshal(v)
		require.NoError(e.t, err)
		body = bytes.NewReader(data)
	}
	return e.do(method, path, body, http.Header{"Content-Type": {"application/json"}})
}

// upload posts content as a multipart file field.
func (e *testEnv) upload(kind, fileName, content string, header http.Header) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		require.NoError(e.t, err)
		_, err = io.WriteString(fw, content)
		require.NoError(e.t, err)
	} else {
		require.NoError(e.t, mw.WriteField("note", "no file"))
	}
	require.NoError(e.t, mw.Close())

	h := http.Header{"Content-Type": {mw.FormDataContentType()}}
	for k, v := range header {
		h[k] = v
	}
	return e.do(http.MethodPost, "/api/imports/"+kind, &buf, h)
}

func (e *testEnv) createContacts() core.SessionSnapshot {
	e.t.Helper()
	rec := e.upload("contacts", "contacts.csv", contactsCSV, nil)
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
	var snap core.SessionSnapshot
	require.NoError(e.t, json.Unmarshal(rec.Body.Bytes(), &snap))
	return snap
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestImportFlow(t *testing.T) {
	env := newTestEnv(t, testConfig(), core.ServiceConfig{})

	rec := env.upload("contacts", "contacts.csv", contactsCSV, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	up := decode[uploadResponse](t, rec)
	assert.Equal(t, core.StateMapping, up.State)
	assert.Equal(t, 3, up.TotalRows)
	assert.Equal(t, "/api/imports/"+up.ID, rec.Header().Get("Location"))
	assert.Empty(t, up.PresetMatches)
	base := "/api/imports/" + up.ID

	// Override the skipped column explicitly.
	rec = env.doJSON(http.MethodPut, base+"/mappings", map[string]any{
		"mappings": []map[string]string{
			{"sourceColumn": "Full Name", "targetField": "name"},
			{"sourceColumn": "E-mail", "targetField": "email"},
			{"sourceColumn": "Phone", "targetField": "phone"},
			{"sourceColumn": "Favourite Colour", "targetField": "notes"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "notes", decode[core.SessionSnapshot](t, rec).Mappings[3].TargetField)

	rec = env.do(http.MethodGet, base+"/suggestions", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]core.ColumnSuggestions](t, rec), 4)

	rec = env.do(http.MethodPost, base+"/confirm", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, core.StatePreview, decode[core.SessionSnapshot](t, rec).State)

	rec = env.do(http.MethodGet, base+"/preview", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	preview := decode[core.PreviewResponse](t, rec)
	assert.Equal(t, 3, preview.Summary.TotalRows)
	assert.Equal(t, 2, preview.BatchCount)

	rec = env.do(http.MethodPost, base+"/start", nil, nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	rec = env.do(http.MethodGet, base+"/result", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	result := decode[core.ResultSummary](t, rec)
	assert.Equal(t, 3, result.SuccessCount)
	assert.Equal(t, 0, result.FailedCount)

	rec = env.do(http.MethodGet, base, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[core.SessionSnapshot](t, rec)
	assert.Equal(t, core.StateComplete, snap.State)
	assert.Equal(t, 100, snap.Progress.Percent)

	// A finished session cannot start again.
	rec = env.do(http.MethodPost, base+"/start", nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(http.MethodDelete, base, nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(http.MethodGet, base, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConfirmMissingRequiredField(t *testing.T) {
	env := newTestEnv(t, testConfig(), core.ServiceConfig{})

	rec := env.upload("contacts", "emails.csv", "E-mail\nada@example.com\n", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	snap := decode[core.SessionSnapshot](t, rec)

	rec = env.do(http.MethodPost, "/api/imports/"+snap.ID+"/confirm", nil, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "MAP001", resp.Code)
	assert.Equal(t, []string{"Contact Name"}, resp.Fields)
	assert.Contains(t, resp.Message, "Contact Name")
}

func TestUploadErrors(t *testing.T) {
	env := newTestEnv(t, testConfig(), core.ServiceConfig{MaxFileSize: 1024})

	tests := []struct {
		name     string
		kind     string
		fileName string
		content  string
		status   int
		code     string
	}{
		{"unknown kind", "payroll", "p.csv", contactsCSV, http.StatusBadRequest, "MAP004"},
		{"missing file", "contacts", "", "", http.StatusBadRequest, "FILE004"},
		{"empty file", "contacts", "empty.csv", "", http.StatusBadRequest, "FILE005"},
		{"legacy spreadsheet", "contacts", "old.xls", "binary", http.StatusBadRequest, "FILE006"},
		{"too large", "contacts", "big.csv", "Name\n" + strings.Repeat("x", 2048) + "\n", http.StatusRequestEntityTooLarge, "FILE001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.upload(tt.kind, tt.fileName, tt.content, nil)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode[ErrorResponse](t, rec).Code)
		})
	}
}

func TestUpdateMappingsErrors(t *testing.T) {
	env := newTestEnv(t, testConfig(), core.ServiceConfig{})
	snap := env.createContacts()
	path := "/api/imports/" + snap.ID + "/mappings"

	mappings := func(targets ...string) map[string]any {
		out := make([]map[string]string, len(targets))
		for i, target := range targets {
			out[i] = map[string]string{"sourceColumn": snap.Headers[i], "targetField": target}
		}
		return map[string]any{"mappings": out}
	}

	tests := []struct {
		name string
		body any
		code string
		msg  string
	}{
		{"empty body", map[string]any{}, "REQ001", "mappings is required"},
		{"unknown field in body", map[string]any{"mappings": []any{}, "extra": 1}, "REQ001", "invalid JSON"},
		{"missing target", map[string]any{"mappings": []map[string]string{{"sourceColumn": "Full Name"}}}, "REQ001", "mappings[0].targetField is required"},
		{"misaligned", mappings("name", "email"), "MAP002", ""},
		{"unknown target", mappings("name", "email", "phone", "shoe_size"), "MAP003", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.doJSON(http.MethodPut, path, tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			resp := decode[ErrorResponse](t, rec)
			assert.Equal(t, tt.code, resp.Code)
			if tt.msg != "" {
				assert.Contains(t, resp.Message, tt.msg)
			}
		})
	}
}

func TestSessionLookup(t *testing.T) {
	env := newTestEnv(t, testConfig(), core.ServiceConfig{})
	snap := env.createContacts()

	t.Run("unknown id", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/imports/"+uuid.NewString(), nil, nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "IMP003", decode[ErrorResponse](t, rec).Code)
	})

	t.Run("other tenant", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/imports/"+snap.ID, nil, http.Header{"X-Tenant-Id": {"other"}})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("wrong step", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/api/imports/"+snap.ID+"/start", nil, nil)
		require.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "IMP004", decode[ErrorResponse](t, rec).Code)
	})

	t.Run("result before start", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/imports/"+snap.ID+"/result", nil, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("cancel while idle", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/api/imports/"+snap.ID+"/cancel", nil, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("back to upload and reload", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/api/imports/"+snap.ID+"/back", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, core.StateUpload, decode[core.SessionSnapshot](t, rec).State)

		rec = env.do(http.MethodPost, "/api/imports/"+snap.ID+"/back", nil, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)

		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", "emails.csv")
		require.NoError(t, err)
		_, _ = io.WriteString(fw, "Name,E-mail\nAda,ada@example.com\n")
		require.NoError(t, mw.Close())

		rec = env.do(http.MethodPut, "/api/imports/"+snap.ID+"/file", &buf, http.Header{"Content-Type": {mw.FormDataContentType()}})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		reloaded := decode[core.SessionSnapshot](t, rec)
		assert.Equal(t, core.StateMapping, reloaded.State)
		assert.Equal(t, []string{"Name", "E-mail"}, reloaded.Headers)
	})
}

func TestProgressStream(t *testing.T) {
	env := newTestEnv(t, testConfig(), core.ServiceConfig{})
	snap := env.createContacts()
	base := "/api/imports/" + snap.ID

	require.Equal(t, http.StatusOK, env.do(http.MethodPost, base+"/confirm", nil, nil).Code)
	require.Equal(t, http.StatusAccepted, env.do(http.MethodPost, base+"/start", nil, nil).Code)
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, base+"/result", nil, nil).Code)

	rec := env.do(http.MethodGet, base+"/progress", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "id: 100\nevent: progress\n")
	assert.Contains(t, body, "event: complete\n")
	assert.Contains(t, body, `"successCount":3`)
	assert.Less(t, strings.Index(body, "event: progress"), strings.Index(body, "event: complete"))
}

func TestProgressStreamUnknownSession(t *testing.T) {
	env := newTestEnv(t, testConfig(), core.ServiceConfig{})
	rec := env.do(http.MethodGet, "/api/imports/"+uuid.NewString()+"/progress", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestKindsAndTemplates(t *testing.T) {
	env := newTestEnv(t, testConfig(), core.ServiceConfig{ProductName: "acme"})

	rec := env.do(http.MethodGet, "/api/kinds", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	kinds := decode[[]kindResponse](t, rec)
	var names []core.ImportKind
	for _, k := range kinds {
		names = append(names, k.Kind)
	}
	assert.Contains(t, names, core.KindContacts)
	assert.Contains(t, names, core.KindInvoices)

	rec = env.do(http.MethodGet, "/api/templates/contacts", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="acme-contacts-template.csv"`, rec.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "Contact Name,Email,"))

	rec = env.do(http.MethodGet, "/api/templates/payroll", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPresets(t *testing.T) {
	env := newTestEnv(t, testConfig(), core.ServiceConfig{})
	first := env.createContacts()

	rec := env.doJSON(http.MethodPost, "/api/presets/contacts", map[string]string{
		"sessionId": first.ID,
		"name":      "CRM export",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	preset := decode[core.MappingPreset](t, rec)
	assert.Equal(t, "CRM export", preset.Name)

	rec = env.doJSON(http.MethodPost, "/api/presets/contacts", map[string]string{
		"sessionId": first.ID,
		"name":      "CRM export",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DB001", decode[ErrorResponse](t, rec).Code)

	rec = env.doJSON(http.MethodPost, "/api/presets/products", map[string]string{
		"sessionId": first.ID,
		"name":      "Wrong kind",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.doJSON(http.MethodPost, "/api/presets/contacts", map[string]string{"sessionId": "nope", "name": "x"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Message, "sessionId must be a UUID")

	rec = env.do(http.MethodGet, "/api/presets/contacts", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]core.MappingPreset](t, rec), 1)

	// A second upload with the same headers is offered the preset.
	rec = env.upload("contacts", "again.csv", contactsCSV, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	second := decode[uploadResponse](t, rec)
	require.Len(t, second.PresetMatches, 1)
	assert.Equal(t, preset.ID, second.PresetMatches[0].Preset.ID)

	rec = env.do(http.MethodGet, "/api/presets/contacts/match?headers=Full%20Name,E-mail,Phone,Favourite%20Colour", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]core.PresetMatch](t, rec), 1)

	rec = env.do(http.MethodGet, "/api/presets/contacts/match", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/api/imports/"+second.ID+"/preset/"+preset.ID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, first.Mappings, decode[core.SessionSnapshot](t, rec).Mappings)

	rec = env.do(http.MethodDelete, "/api/presets/id/"+preset.ID, nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(http.MethodDelete, "/api/presets/id/"+preset.ID, nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "IMP006", decode[ErrorResponse](t, rec).Code)
}

func TestRuns(t *testing.T) {
	env := newTestEnv(t, testConfig(), core.ServiceConfig{})

	rec := env.do(http.MethodGet, "/api/runs", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = env.do(http.MethodGet, "/api/runs?limit=zero", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"secret-key"}
	env := newTestEnv(t, cfg, core.ServiceConfig{})

	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/kinds", nil, nil).Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/kinds", nil, http.Header{"X-Api-Key": {"secret-key"}}).Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/healthz", nil, nil).Code)
}

func TestUploadRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 100, UploadLimit: 1}
	env := newTestEnv(t, cfg, core.ServiceConfig{})

	require.Equal(t, http.StatusCreated, env.upload("contacts", "a.csv", contactsCSV, nil).Code)
	rec := env.upload("contacts", "b.csv", contactsCSV, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE001", decode[ErrorResponse](t, rec).Code)

	// Other endpoints keep their own budget.
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/kinds", nil, nil).Code)
}

func TestHealthReadyMetrics(t *testing.T) {
	env := newTestEnv(t, testConfig(), core.ServiceConfig{MaxConcurrent: 3})
	env.createContacts()

	rec := env.do(http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", health["status"])
	assert.EqualValues(t, 1, health["sessions"])

	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/readyz", nil, nil).Code)

	rec = env.do(http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ledgerimport_session_active")

	down := newTestEnv(t, testConfig(), core.ServiceConfig{}, WithPinger(failingPinger{}))
	rec = down.do(http.MethodGet, "/readyz", nil, nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "DB002", decode[ErrorResponse](t, rec).Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrSessionNotFound, http.StatusNotFound},
		{&core.MissingRequiredFieldsError{Labels: []string{"Email"}}, http.StatusUnprocessableEntity},
		{&core.TransitionError{Op: "start import", State: core.StateMapping}, http.StatusConflict},
		{core.ErrImportInProgress, http.StatusConflict},
		{fmt.Errorf("acquire: %w", core.ErrTooManyImports), http.StatusServiceUnavailable},
		{&core.ParseError{Reason: "empty file"}, http.StatusBadRequest},
		{&http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusTeapot},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err, http.StatusTeapot), "statusFor(%v)", tt.err)
	}
}
