package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/entrhq/chromectl/pkg/browser"
	"github.com/entrhq/chromectl/pkg/tools"
)

type toolInfo struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Schema      map[string]interface{} `json:"schema"`
	Visible     bool                   `json:"visible"`
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	visible := make(map[string]bool)
	for _, t := range s.tools.Visible() {
		visible[t.Name()] = true
	}

	all := s.tools.All()
	infos := make([]toolInfo, 0, len(all))
	for _, t := range all {
		infos = append(infos, toolInfo{
			Name:        t.Name(),
			Description: t.Description(),
			Schema:      t.Schema(),
			Visible:     visible[t.Name()],
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"tools": infos})
}

type toolResult struct {
	Output   string                 `json:"output"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

func (s *Server) handleRunTool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, ok := s.tools.Get(name); !ok {
		respondError(w, http.StatusNotFound, tools.ErrUnknownTool)
		return
	}

	var args json.RawMessage
	if status, err := decodeJSONBody(w, r, &args, true); err != nil {
		respondError(w, status, err)
		return
	}

	output, meta, err := s.tools.Execute(r.Context(), name, args)
	if err != nil {
		// Argument errors from the tool itself carry no manager kind.
		status := statusFor(err)
		if browser.KindOf(err) == nil && !errors.Is(err, r.Context().Err()) {
			status = http.StatusBadRequest
		}
		respondError(w, status, err)
		return
	}
	respondJSON(w, http.StatusOK, toolResult{Output: output, Metadata: meta})
}
