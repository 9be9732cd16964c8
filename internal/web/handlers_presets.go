package web

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/ledgerimport/internal/core"
)

// handleListPresets returns the tenant's saved mappings for a kind.
func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	presets, err := s.service.ListPresets(r.Context(), kind)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, presets)
}

// handleCreatePreset saves the mappings of a session under a name.
func (s *Server) handleCreatePreset(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	var req createPresetRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	sess, err := s.service.Session(r.Context(), req.SessionID)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if sess.Kind != kind {
		s.respondError(w, r, badRequest(fmt.Sprintf("session %s imports %s, not %s", req.SessionID, sess.Kind, kind)), http.StatusBadRequest)
		return
	}

	preset, err := s.service.SavePreset(r.Context(), req.SessionID, req.Name)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, preset)
}

// handleMatchPresets finds presets whose headers overlap either the
// comma-separated ?headers= list or the headers of ?session=.
func (s *Server) handleMatchPresets(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	var headers []string
	q := r.URL.Query()
	switch {
	case q.Get("session") != "":
		sess, err := s.service.Session(r.Context(), q.Get("session"))
		if err != nil {
			s.respondError(w, r, err, http.StatusInternalServerError)
			return
		}
		headers = sess.Snapshot().Headers
	case q.Get("headers") != "":
		for _, h := range strings.Split(q.Get("headers"), ",") {
			headers = append(headers, strings.TrimSpace(h))
		}
	default:
		s.respondError(w, r, badRequest("headers or session parameter is required"), http.StatusBadRequest)
		return
	}

	matches, err := s.service.MatchPresets(r.Context(), kind, headers)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

func (s *Server) handleDeletePreset(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeletePreset(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListRuns returns the tenant's most recent finished imports.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := core.DefaultRunHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.respondError(w, r, badRequest("limit must be a positive integer"), http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := s.service.ListRuns(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}
