package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JonMunkholm/ledgerimport/internal/core"
)

// maxResponseBytes bounds how much of an endpoint response is read.
const maxResponseBytes = 1 << 20

// HTTPSubmitter posts batches to BaseURL joined with the kind's endpoint path.
type HTTPSubmitter struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

// NewHTTPSubmitter creates a submitter. Per-batch timeouts come from the
// importer's context; timeout caps a single HTTP exchange.
func NewHTTPSubmitter(baseURL, token string, timeout time.Duration) *HTTPSubmitter {
	return &HTTPSubmitter{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Client:  &http.Client{Timeout: timeout},
	}
}

// SubmitBatch implements core.Submitter.
func (h *HTTPSubmitter) SubmitBatch(ctx context.Context, b core.Batch) (core.BatchResponse, error) {
	endpoint, err := h.endpointURL(b.Kind)
	if err != nil {
		return core.BatchResponse{}, err
	}

	body, err := json.Marshal(newPayload(b))
	if err != nil {
		return core.BatchResponse{}, fmt.Errorf("encode batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return core.BatchResponse{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", fmt.Sprintf("%s-%d", b.RunID, b.Index))
	if b.TenantID != "" {
		req.Header.Set("X-Tenant-ID", b.TenantID)
	}
	if h.Token != "" {
		req.Header.Set("Authorization", "Bearer "+h.Token)
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return core.BatchResponse{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return core.BatchResponse{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Debug("ingest endpoint rejected batch",
			"url", endpoint,
			"status", resp.StatusCode,
			"body", truncate(string(raw), 200),
		)
		return core.BatchResponse{}, fmt.Errorf("endpoint returned %s", resp.Status)
	}

	var out core.BatchResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return core.BatchResponse{}, fmt.Errorf("decode response: %w", err)
	}
	if out.Errors == nil {
		out.Errors = []string{}
	}
	return out, nil
}

func (h *HTTPSubmitter) endpointURL(kind core.ImportKind) (string, error) {
	def, ok := core.Lookup(kind)
	if !ok {
		return "", fmt.Errorf("%w: %q", core.ErrUnknownKind, kind)
	}
	if h.BaseURL == "" {
		return "", fmt.Errorf("ingest base URL is not configured")
	}
	return url.JoinPath(h.BaseURL, def.Endpoint)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
