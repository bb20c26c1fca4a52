package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/spigell/hire-matcher/internal/pipeline"
)

func (s *Server) createScreening(w http.ResponseWriter, r *http.Request) {
	var in pipeline.NewScreening
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	sc, err := s.svc.CreateScreening(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sc)
}

func (s *Server) listScreenings(w http.ResponseWriter, r *http.Request) {
	var (
		filter pipeline.ScreeningFilter
		err    error
	)
	if filter.ApplicationID, err = queryInt64(r, "application_id"); err != nil {
		s.writeError(w, r, err)
		return
	}
	if filter.Offset, err = queryInt(r, "offset"); err != nil {
		s.writeError(w, r, err)
		return
	}
	if filter.Limit, err = queryInt(r, "limit"); err != nil {
		s.writeError(w, r, err)
		return
	}
	filter.Status = pipeline.ScreeningStatus(strings.TrimSpace(r.URL.Query().Get("status")))

	items, total, err := s.svc.ListScreenings(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page[pipeline.Screening]{Items: items, Total: total, Offset: filter.Offset})
}

func (s *Server) screeningStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.ScreeningStats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) getScreening(w http.ResponseWriter, r *http.Request) {
	s.screeningAction(w, r, s.svc.GetScreening)
}

func (s *Server) startScreening(w http.ResponseWriter, r *http.Request) {
	s.screeningAction(w, r, s.svc.StartScreening)
}

func (s *Server) cancelScreening(w http.ResponseWriter, r *http.Request) {
	s.screeningAction(w, r, s.svc.CancelScreening)
}

func (s *Server) completeScreening(w http.ResponseWriter, r *http.Request) {
	var ev pipeline.Evaluation
	if err := decodeJSON(w, r, &ev); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.screeningAction(w, r, func(ctx context.Context, id int64) (*pipeline.Screening, error) {
		return s.svc.CompleteScreening(ctx, id, ev)
	})
}

func (s *Server) updateScreening(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Notes string `json:"notes"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.screeningAction(w, r, func(ctx context.Context, id int64) (*pipeline.Screening, error) {
		return s.svc.UpdateScreeningNotes(ctx, id, body.Notes)
	})
}

func (s *Server) screeningAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, id int64) (*pipeline.Screening, error)) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sc, err := action(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}
