package repository

import (
	"context"

	"jobflow/internal/domain/model"
)

type JobRepository interface {
	Save(ctx context.Context, tx Tx, j *model.Job) error
	// FindDuplicate looks up a job of the user with the same company and role, ignoring case.
	FindDuplicate(ctx context.Context, tx Tx, userID, company, role string) (*model.Job, error)
	List(ctx context.Context, tx Tx, f model.JobFilter) ([]*model.Job, error)
	// Update replaces editable fields of the user's job; domain.ErrNotFound when absent.
	Update(ctx context.Context, tx Tx, j *model.Job) error
	Delete(ctx context.Context, tx Tx, userID, id string) error
}
