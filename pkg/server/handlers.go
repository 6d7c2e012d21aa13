package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/entrhq/chromectl/pkg/browser"
)

type launchResponse struct {
	Session *browser.LaunchResult `json:"session"`
	Events  string                `json:"events,omitempty"`
}

func (s *Server) handleLaunch(w http.ResponseWriter, r *http.Request) {
	var cfg browser.LaunchConfig
	if status, err := decodeJSONBody(w, r, &cfg, true); err != nil {
		respondError(w, status, err)
		return
	}

	res, err := s.manager.Launch(r.Context(), cfg)
	if err != nil {
		respondManagerError(w, err)
		return
	}

	resp := launchResponse{Session: res}
	if s.cfg.EnableEvents {
		resp.Events = fmt.Sprintf("/v1/sessions/%s/events", res.ID)
	}
	respondJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	sessions := s.manager.List()
	respondJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	info, err := s.manager.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		respondManagerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if _, err := s.manager.Close(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		respondManagerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type navigateRequest struct {
	URL    string         `json:"url"`
	PageID browser.PageID `json:"page_id,omitempty"`
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	var req navigateRequest
	if status, err := decodeJSONBody(w, r, &req, false); err != nil {
		respondError(w, status, err)
		return
	}
	if req.URL == "" {
		respondError(w, http.StatusBadRequest, fmt.Errorf("url is required"))
		return
	}

	pageID := req.PageID
	var err error
	if pageID == 0 {
		pageID, err = s.manager.Navigate(r.Context(), id, req.URL)
	} else {
		err = s.manager.NavigatePage(r.Context(), id, pageID, req.URL)
	}
	if err != nil {
		respondManagerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"page_id": pageID, "url": req.URL})
}

type evaluateRequest struct {
	Script string         `json:"script"`
	PageID browser.PageID `json:"page_id,omitempty"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if status, err := decodeJSONBody(w, r, &req, false); err != nil {
		respondError(w, status, err)
		return
	}
	if req.Script == "" {
		respondError(w, http.StatusBadRequest, fmt.Errorf("script is required"))
		return
	}

	result, err := s.manager.ExecuteScriptOn(r.Context(), chi.URLParam(r, "sessionID"), req.PageID, req.Script)
	if err != nil {
		respondManagerError(w, err)
		return
	}
	// result is already JSON text.
	respondJSON(w, http.StatusOK, map[string]any{"result": rawJSON(result)})
}

type fileRequest struct {
	Path   string         `json:"path"`
	PageID browser.PageID `json:"page_id,omitempty"`
}

func (s *Server) decodeFileRequest(w http.ResponseWriter, r *http.Request) (*fileRequest, bool) {
	var req fileRequest
	if status, err := decodeJSONBody(w, r, &req, false); err != nil {
		respondError(w, status, err)
		return nil, false
	}
	if req.Path == "" {
		respondError(w, http.StatusBadRequest, fmt.Errorf("path is required"))
		return nil, false
	}
	return &req, true
}

func (s *Server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeFileRequest(w, r)
	if !ok {
		return
	}
	path, err := s.manager.ScreenshotPage(r.Context(), chi.URLParam(r, "sessionID"), req.PageID, req.Path)
	if err != nil {
		respondManagerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"path": path})
}

func (s *Server) handlePDF(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeFileRequest(w, r)
	if !ok {
		return
	}
	res, err := s.manager.PrintPDF(r.Context(), chi.URLParam(r, "sessionID"), req.PageID, req.Path)
	if err != nil {
		respondManagerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	pageID, err := queryPageID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	q := r.URL.Query()
	clean, _ := strconv.ParseBool(q.Get("clean"))
	if !clean {
		content, err := s.manager.GetPageContent(r.Context(), id, pageID)
		if err != nil {
			respondManagerError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(content))
		return
	}

	maxLength := 0
	if v := q.Get("max_length"); v != "" {
		maxLength, err = strconv.Atoi(v)
		if err != nil || maxLength < 0 {
			respondError(w, http.StatusBadRequest, fmt.Errorf("invalid max_length %q", v))
			return
		}
	}
	cleaned, err := s.manager.CleanContent(r.Context(), id, pageID, maxLength)
	if err != nil {
		respondManagerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cleaned)
}

func (s *Server) handleOutline(w http.ResponseWriter, r *http.Request) {
	pageID, err := queryPageID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	outline, err := s.manager.Outline(r.Context(), chi.URLParam(r, "sessionID"), pageID)
	if err != nil {
		respondManagerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, outline)
}

func (s *Server) handlePages(w http.ResponseWriter, r *http.Request) {
	pages, err := s.manager.Pages(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondManagerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"pages": pages, "count": len(pages)})
}

func (s *Server) handleClosePage(w http.ResponseWriter, r *http.Request) {
	pageID, err := parsePageID(chi.URLParam(r, "pageID"))
	if err != nil || pageID == 0 {
		respondError(w, http.StatusBadRequest, fmt.Errorf("invalid page id %q", chi.URLParam(r, "pageID")))
		return
	}
	if err := s.manager.ClosePage(r.Context(), chi.URLParam(r, "sessionID"), pageID); err != nil {
		respondManagerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func queryPageID(r *http.Request) (browser.PageID, error) {
	v := r.URL.Query().Get("page_id")
	if v == "" {
		return 0, nil
	}
	id, err := parsePageID(v)
	if err != nil {
		return 0, fmt.Errorf("invalid page_id %q", v)
	}
	return id, nil
}

func parsePageID(v string) (browser.PageID, error) {
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid page id %q", v)
	}
	return browser.PageID(n), nil
}

// rawJSON embeds already-encoded JSON in a response.
type rawJSON string

func (r rawJSON) MarshalJSON() ([]byte, error) {
	if r == "" {
		return []byte("null"), nil
	}
	return []byte(r), nil
}
