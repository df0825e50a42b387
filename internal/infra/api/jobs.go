package api

import (
	"net/http"

	"jobflow/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type checklistItemRequest struct {
	Text string `json:"text" validate:"max=500"`
	Done bool   `json:"done"`
}

// jobRequest is the editable part of a job, shared by create and update.
type jobRequest struct {
	Company        string                 `json:"company" validate:"max=200"`
	Role           string                 `json:"role" validate:"max=200"`
	Status         string                 `json:"status" validate:"max=32"`
	AppliedDate    looseDate              `json:"appliedDate"`
	InterviewDate  looseDate              `json:"interviewDate"`
	ReminderAt     looseDate              `json:"reminderAt"`
	Notes          string                 `json:"notes" validate:"max=20000"`
	JobDescription string                 `json:"jobDescription" validate:"max=50000"`
	Pinned         bool                   `json:"pinned"`
	Checklist      []checklistItemRequest `json:"checklist" validate:"max=200,dive"`
}

func (req jobRequest) toModel() model.Job {
	j := model.Job{
		Company:        req.Company,
		Role:           req.Role,
		Status:         model.JobStatus(req.Status),
		AppliedDate:    req.AppliedDate.Time(),
		InterviewDate:  req.InterviewDate.Time(),
		ReminderAt:     req.ReminderAt.Time(),
		Notes:          req.Notes,
		JobDescription: req.JobDescription,
		Pinned:         req.Pinned,
		Checklist:      make([]model.ChecklistItem, 0, len(req.Checklist)),
	}
	for _, c := range req.Checklist {
		j.Checklist = append(j.Checklist, model.ChecklistItem{Text: c.Text, Done: c.Done})
	}
	return j
}

func (s *Server) readJob(w http.ResponseWriter, r *http.Request) (model.Job, bool) {
	var req jobRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, r, http.StatusBadRequest, msgBadBody)
		return model.Job{}, false
	}
	if err := validate.Struct(req); err != nil {
		writeMessage(w, r, http.StatusBadRequest, validationMessage(err))
		return model.Job{}, false
	}
	return req.toModel(), true
}

func (s *Server) handleJobCreate(w http.ResponseWriter, r *http.Request) {
	j, ok := s.readJob(w, r)
	if !ok {
		return
	}
	job, err := s.jobs.Create(r.Context(), currentUser(r).ID, j)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, job)
}

func (s *Server) handleJobList(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.jobs.List(r.Context(), currentUser(r).ID, r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if jobs == nil {
		jobs = []*model.Job{}
	}
	writeJSON(w, r, http.StatusOK, jobs)
}

func (s *Server) handleJobUpdate(w http.ResponseWriter, r *http.Request) {
	j, ok := s.readJob(w, r)
	if !ok {
		return
	}
	job, err := s.jobs.Update(r.Context(), currentUser(r).ID, chi.URLParam(r, "id"), j)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, r, http.StatusOK, job)
}

func (s *Server) handleJobDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.jobs.Delete(r.Context(), currentUser(r).ID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeMessage(w, r, http.StatusOK, "Job deleted")
}
