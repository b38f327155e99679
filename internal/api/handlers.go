package api

import (
	"billnotify/internal/domain"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type jobResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"jobId"`
	Message string `json:"message"`
}

type countResponse struct {
	Success bool   `json:"success"`
	Count   int    `json:"count"`
	Message string `json:"message"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type triggerReq struct {
	TaskID string `json:"taskId"`
	Type   string `json:"type"`
}

type jobReq struct {
	JobID string `json:"jobId"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidKind):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrJobNotFound), errors.Is(err, domain.ErrTaskNotFound), errors.Is(err, domain.ErrQueueNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrJobNotDelayed):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		log.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("admin request failed")
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decode(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body", domain.ErrValidation)
	}
	return nil
}

func (s *Server) listQueues(w http.ResponseWriter, r *http.Request) {
	sum, err := s.admin.Summary(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"queues": []any{sum}})
}

func (s *Server) queueDetail(w http.ResponseWriter, r *http.Request) {
	var states []string
	if q := r.URL.Query().Get("state"); q != "" {
		states = strings.Split(q, ",")
	}
	d, err := s.admin.QueueDetail(r.Context(), chi.URLParam(r, "name"), states...)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.admin.UnpaidTasks(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []domain.UnpaidTask{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (s *Server) trigger(w http.ResponseWriter, r *http.Request) {
	var req triggerReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := s.admin.Trigger(r.Context(), req.TaskID, req.Type)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobResponse{
		Success: true,
		JobID:   id,
		Message: fmt.Sprintf("Job queued successfully for task %s", req.TaskID),
	})
}

func (s *Server) triggerDelayed(w http.ResponseWriter, r *http.Request) {
	var req jobReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.admin.Promote(r.Context(), req.JobID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobResponse{
		Success: true,
		JobID:   req.JobID,
		Message: fmt.Sprintf("Delayed job %s triggered successfully", req.JobID),
	})
}

func (s *Server) triggerAllDelayed(w http.ResponseWriter, r *http.Request) {
	n, err := s.admin.PromoteAllDelayed(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{
		Success: true,
		Count:   n,
		Message: fmt.Sprintf("Successfully triggered %d delayed jobs", n),
	})
}

func (s *Server) deleteJob(w http.ResponseWriter, r *http.Request) {
	var req jobReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.admin.DeleteJob(r.Context(), req.JobID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobResponse{
		Success: true,
		JobID:   req.JobID,
		Message: fmt.Sprintf("Job %s deleted successfully", req.JobID),
	})
}

func (s *Server) deleteFailed(w http.ResponseWriter, r *http.Request) {
	n, err := s.admin.PurgeFailed(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{
		Success: true,
		Count:   n,
		Message: fmt.Sprintf("Successfully deleted %d failed jobs", n),
	})
}

func (s *Server) deleteCompleted(w http.ResponseWriter, r *http.Request) {
	n, err := s.admin.PurgeCompleted(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{
		Success: true,
		Count:   n,
		Message: fmt.Sprintf("Successfully deleted %d completed jobs", n),
	})
}
