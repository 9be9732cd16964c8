package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/ledgerimport/internal/core"
)

// respondSnapshot writes the session's current state.
func (s *Server) respondSnapshot(w http.ResponseWriter, r *http.Request, status int) {
	sess, err := s.service.Session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, status, sess.Snapshot())
}

func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	s.respondSnapshot(w, r, http.StatusOK)
}

// handleDiscardImport resets the flow by dropping the session.
func (s *Server) handleDiscardImport(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Discard(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateMappings(w http.ResponseWriter, r *http.Request) {
	var req updateMappingsRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	if err := s.service.UpdateMappings(r.Context(), chi.URLParam(r, "id"), req.toCore()); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	s.respondSnapshot(w, r, http.StatusOK)
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	suggestions, err := s.service.Suggestions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, suggestions)
}

// handleConfirm validates mappings and moves to preview.
// Missing required fields answer 422 with their labels.
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Confirm(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	s.respondSnapshot(w, r, http.StatusOK)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	preview, err := s.service.Preview(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Back(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	s.respondSnapshot(w, r, http.StatusOK)
}

// handleStartImport starts the batched run in the background.
func (s *Server) handleStartImport(w http.ResponseWriter, r *http.Request) {
	ctx := WithRequestMetadata(r.Context(), r)
	if err := s.service.StartImport(ctx, chi.URLParam(r, "id")); err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	s.respondSnapshot(w, r, http.StatusAccepted)
}

func (s *Server) handleApplyPreset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.service.ApplyPreset(r.Context(), id, chi.URLParam(r, "presetID")); err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	s.respondSnapshot(w, r, http.StatusOK)
}

// kindParam parses the {kind} URL parameter.
func kindParam(r *http.Request) (core.ImportKind, error) {
	return core.ParseKind(chi.URLParam(r, "kind"))
}
