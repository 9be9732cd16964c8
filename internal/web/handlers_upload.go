package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/ledgerimport/internal/core"
	"github.com/JonMunkholm/ledgerimport/internal/logging"
)

// multipartOverhead leaves room for boundaries and form fields around the file.
const multipartOverhead = 64 << 10

// sseKeepAlive is how often an idle progress stream sends a comment line.
const sseKeepAlive = 15 * time.Second

// uploadResponse is the new session plus saved presets matching its headers.
type uploadResponse struct {
	core.SessionSnapshot
	PresetMatches []core.PresetMatch `json:"presetMatches"`
}

// handleUpload parses an uploaded file into a new session in the mapping
// step with auto-mapped columns.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	kind, err := core.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	file, header, err := s.formFile(w, r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	defer file.Close()

	ctx := WithRequestMetadata(r.Context(), r)
	sess, err := s.service.CreateSession(ctx, kind, header.Filename, file)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	snap := sess.Snapshot()
	matches, err := s.service.MatchPresets(ctx, kind, snap.Headers)
	if err != nil {
		// Presets are a convenience; the upload still succeeded.
		logging.FromContext(ctx).Warn("preset match failed", "session_id", sess.ID, "error", err)
		matches = []core.PresetMatch{}
	}

	w.Header().Set("Location", "/api/imports/"+sess.ID)
	writeJSON(w, http.StatusCreated, uploadResponse{SessionSnapshot: snap, PresetMatches: matches})
}

// handleReplaceFile loads a new file into a session that stepped back to
// the upload step.
func (s *Server) handleReplaceFile(w http.ResponseWriter, r *http.Request) {
	file, header, err := s.formFile(w, r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	defer file.Close()

	if err := s.service.LoadFile(r.Context(), chi.URLParam(r, "id"), header.Filename, file); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	s.respondSnapshot(w, r, http.StatusOK)
}

// formFile bounds the request body and returns the "file" form field.
func (s *Server) formFile(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	maxSize := s.service.Config().MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		return nil, nil, fmt.Errorf("invalid upload form: %w", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			err = core.ErrNoFile
		}
		return nil, nil, err
	}
	return file, header, nil
}

// handleImportProgress streams progress via Server-Sent Events.
//
// Event IDs are the progress percentage. A reconnecting client sends
// Last-Event-ID (or ?lastEventId=) and skips updates it has already seen.
// The stream ends with a "complete" event carrying the result summary.
func (s *Server) handleImportProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	lastEventID := -1
	if v := r.Header.Get("Last-Event-ID"); v != "" {
		lastEventID, _ = strconv.Atoi(v)
	} else if v := r.URL.Query().Get("lastEventId"); v != "" {
		lastEventID, _ = strconv.Atoi(v)
	}

	progressCh, stop, err := s.service.Subscribe(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err, http.StatusNotFound)
		return
	}
	defer stop()

	rc := http.NewResponseController(w)
	// Progress streams outlive the server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		logging.FromContext(r.Context()).Error("streaming not supported", "error", err)
		return
	}

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				s.writeCompleteEvent(w, r, id)
				_ = rc.Flush()
				return
			}
			if progress.State == core.StateImporting && progress.Percent <= lastEventID {
				continue
			}
			lastEventID = progress.Percent

			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", progress.Percent, data)
			if err := rc.Flush(); err != nil {
				return
			}

		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			if err := rc.Flush(); err != nil {
				return
			}

		case <-r.Context().Done():
			return
		}
	}
}

// writeCompleteEvent sends the final result, or an empty object when the
// session was discarded while streaming.
func (s *Server) writeCompleteEvent(w http.ResponseWriter, r *http.Request, id string) {
	payload := []byte("{}")
	if sess, err := s.service.Session(r.Context(), id); err == nil {
		if result, ok := sess.Result(); ok {
			payload, _ = json.Marshal(result.Summarize())
		}
	}
	fmt.Fprintf(w, "event: complete\ndata: %s\n\n", payload)
}

// handleImportResult blocks until the import completes and returns its result.
func (s *Server) handleImportResult(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.Wait(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, result.Summarize())
}

// handleCancelImport asks a running import to stop before its next batch.
func (s *Server) handleCancelImport(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}
