package web

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/ledgerimport/internal/core"
)

// kindResponse describes one registered import kind.
type kindResponse struct {
	Kind     core.ImportKind    `json:"kind"`
	Label    string             `json:"label"`
	Template string             `json:"template"` // Download path
	Fields   []core.TargetField `json:"fields"`
}

// handleListKinds returns every kind with its ordered target fields.
func (s *Server) handleListKinds(w http.ResponseWriter, r *http.Request) {
	defs := core.All()
	out := make([]kindResponse, len(defs))
	for i, def := range defs {
		out[i] = kindResponse{
			Kind:     def.Kind,
			Label:    def.Label,
			Template: "/api/templates/" + string(def.Kind),
			Fields:   def.Fields,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// handleDownloadTemplate serves the CSV template for a kind as an attachment.
func (s *Server) handleDownloadTemplate(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	tmpl := s.service.Template(kind)
	w.Header().Set("Content-Type", tmpl.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, tmpl.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(tmpl.Content)))
	_, _ = w.Write(tmpl.Content)
}
