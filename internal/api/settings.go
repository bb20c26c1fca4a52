package api

import (
	"net/http"

	"github.com/spigell/hire-matcher/internal/pipeline"
)

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.svc.Settings(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) putSettings(w http.ResponseWriter, r *http.Request) {
	var upd pipeline.SettingsUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		s.writeError(w, r, err)
		return
	}
	cfg, err := s.svc.UpdateSettings(r.Context(), upd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) activity(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	entries, err := s.svc.Activity(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
