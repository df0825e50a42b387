package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

type JobStatus string

const (
	JobStatusApplied   JobStatus = "Applied"
	JobStatusInterview JobStatus = "Interview"
	JobStatusOffer     JobStatus = "Offer"
	JobStatusRejected  JobStatus = "Rejected"
)

func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusApplied, JobStatusInterview, JobStatusOffer, JobStatusRejected:
		return true
	}
	return false
}

type ChecklistItem struct {
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// Job is one tracked application.
type Job struct {
	ID             string          `json:"id"`
	UserID         string          `json:"userId"`
	Company        string          `json:"company"`
	Role           string          `json:"role"`
	Status         JobStatus       `json:"status"`
	AppliedDate    *time.Time      `json:"appliedDate,omitempty"`
	InterviewDate  *time.Time      `json:"interviewDate,omitempty"`
	ReminderAt     *time.Time      `json:"reminderAt,omitempty"`
	Notes          string          `json:"notes"`
	JobDescription string          `json:"jobDescription"`
	Pinned         bool            `json:"pinned"`
	Checklist      []ChecklistItem `json:"checklist"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// MarshalJSON writes the id a second time as "_id", the key the web client
// reads job ids from.
func (j Job) MarshalJSON() ([]byte, error) {
	type plain Job
	return json.Marshal(struct {
		plain
		LegacyID string `json:"_id"`
	}{plain(j), j.ID})
}

// NewJob assigns an id and timestamps and normalizes company, role and status.
func NewJob(userID string, j Job) *Job {
	now := time.Now()
	j.ID = ulid.Make().String()
	j.UserID = userID
	j.CreatedAt = now
	j.UpdatedAt = now
	j.Normalize()
	return &j
}

func (j *Job) Normalize() {
	j.Company = strings.TrimSpace(j.Company)
	j.Role = strings.TrimSpace(j.Role)
	if j.Status == "" {
		j.Status = JobStatusApplied
	}
	if j.Checklist == nil {
		j.Checklist = []ChecklistItem{}
	}
}

// JobFilter narrows a user's job list.
type JobFilter struct {
	UserID string
	Query  string
}
