package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/hire-matcher/internal/export"
	"github.com/spigell/hire-matcher/internal/extract"
	"github.com/spigell/hire-matcher/internal/logger"
	"github.com/spigell/hire-matcher/internal/pipeline"
)

const xlsxMediaType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// publicApply accepts a multipart form with the candidate fields and an
// optional resume file.
func (s *Server) publicApply(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: invalid form: %v", pipeline.ErrValidation, err))
		return
	}

	jobID, err := strconv.ParseInt(strings.TrimSpace(r.FormValue("job_id")), 10, 64)
	if err != nil || jobID <= 0 {
		s.writeError(w, r, fmt.Errorf("%w: job_id is required", pipeline.ErrValidation))
		return
	}
	email := strings.ToLower(strings.TrimSpace(r.FormValue("email")))

	if s.limiter != nil {
		key := fmt.Sprintf("apply:%d:%s", jobID, email)
		if !s.limiter.Allow(r.Context(), key, s.cfg.ApplyLimit, s.cfg.ApplyWindow) {
			s.writeError(w, r, errRateLimited)
			return
		}
	}

	sub := pipeline.Submission{
		JobID:       jobID,
		Email:       email,
		FullName:    r.FormValue("full_name"),
		Phone:       r.FormValue("phone"),
		CoverLetter: r.FormValue("cover_letter"),
		ResumeText:  r.FormValue("resume_text"),
		Source:      r.FormValue("source"),
	}

	file, header, err := r.FormFile("resume")
	switch {
	case err == nil:
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w: reading resume: %v", pipeline.ErrValidation, err))
			return
		}
		sub.Resume = data
		sub.ResumeMediaType = extract.MediaTypeFromPath(header.Filename)
		if sub.ResumeMediaType == "" {
			sub.ResumeMediaType = header.Header.Get("Content-Type")
		}
	case !errors.Is(err, http.ErrMissingFile):
		s.writeError(w, r, fmt.Errorf("%w: resume: %v", pipeline.ErrValidation, err))
		return
	}

	app, err := s.svc.Submit(r.Context(), sub)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, app)
}

func (s *Server) createApplication(w http.ResponseWriter, r *http.Request) {
	var in pipeline.NewApplication
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	app, err := s.svc.CreateApplication(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, app)
}

func (s *Server) listApplications(w http.ResponseWriter, r *http.Request) {
	filter, err := applicationFilter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	apps, total, err := s.svc.ListApplications(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page[pipeline.Application]{Items: apps, Total: total, Offset: filter.Offset})
}

func (s *Server) applicationStats(w http.ResponseWriter, r *http.Request) {
	jobID, err := queryInt64(r, "job_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	stats, err := s.svc.ApplicationStats(r.Context(), jobID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) getApplication(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	app, err := s.svc.GetApplication(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (s *Server) updateApplication(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var upd pipeline.ApplicationUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		s.writeError(w, r, err)
		return
	}
	app, err := s.svc.UpdateApplication(r.Context(), id, upd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (s *Server) shortlist(w http.ResponseWriter, r *http.Request) {
	s.applicationAction(w, r, s.svc.Shortlist)
}

func (s *Server) reject(w http.ResponseWriter, r *http.Request) {
	s.applicationAction(w, r, s.svc.Reject)
}

func (s *Server) applicationAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, id int64) (*pipeline.Application, error)) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	app, err := action(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (s *Server) deleteApplication(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.svc.DeleteApplication(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type bulkInviteRequest struct {
	ApplicationIDs []int64                  `json:"application_ids"`
	Source         pipeline.ScreeningSource `json:"source"`
}

func (s *Server) bulkInvite(w http.ResponseWriter, r *http.Request) {
	var req bulkInviteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(req.ApplicationIDs) == 0 {
		s.writeError(w, r, fmt.Errorf("%w: application_ids is required", pipeline.ErrValidation))
		return
	}
	res, err := s.svc.BulkInvite(r.Context(), req.ApplicationIDs, req.Source)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) autoInvite(w http.ResponseWriter, r *http.Request) {
	jobID, err := queryInt64(r, "job_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.svc.AutoInvite(r.Context(), jobID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// exportApplications streams every application matching the filter as xlsx.
func (s *Server) exportApplications(w http.ResponseWriter, r *http.Request) {
	filter, err := applicationFilter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx := r.Context()

	var apps []pipeline.Application
	filter.Offset, filter.Limit = 0, 100
	for {
		batch, total, err := s.svc.ListApplications(ctx, filter)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		apps = append(apps, batch...)
		filter.Offset += len(batch)
		if len(batch) == 0 || filter.Offset >= total {
			break
		}
	}

	stats, err := s.svc.ApplicationStats(ctx, filter.JobID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", xlsxMediaType)
	w.Header().Set("Content-Disposition", `attachment; filename="applications.xlsx"`)
	err = export.WriteApplications(w, export.Report{
		Generated:    s.now(),
		Stats:        stats,
		Applications: apps,
	})
	if err != nil {
		s.logger.Error("export failed", zap.String(logger.FieldRequest, requestID(ctx)), zap.Error(err))
	}
}
