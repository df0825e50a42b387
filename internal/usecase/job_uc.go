package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"jobflow/internal/domain"
	"jobflow/internal/domain/model"
	"jobflow/internal/domain/ports/repository"
	"jobflow/internal/infra/logging"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ JobUseCase = (*jobUC)(nil)

type JobUseCase interface {
	Create(ctx context.Context, userID string, j model.Job) (*model.Job, error)
	List(ctx context.Context, userID, query string) ([]*model.Job, error)
	Update(ctx context.Context, userID, id string, j model.Job) (*model.Job, error)
	Delete(ctx context.Context, userID, id string) error
}

const duplicateJobMsg = "Duplicate job detected for this company and role."

type jobUC struct {
	jobs repository.JobRepository
	log  *zerolog.Logger
}

func NewJobUseCase(jobs repository.JobRepository, logger *zerolog.Logger) *jobUC {
	return &jobUC{jobs: jobs, log: logger}
}

func (u *jobUC) Create(ctx context.Context, userID string, in model.Job) (*model.Job, error) {
	defer logging.TraceDuration(u.log, "JobUC.Create")()

	j := model.NewJob(userID, in)
	if !j.Status.Valid() {
		return nil, domain.Invalid("Invalid status.")
	}

	if j.Company != "" && j.Role != "" {
		_, err := u.jobs.FindDuplicate(ctx, repository.NoTX, userID, j.Company, j.Role)
		switch {
		case err == nil:
			return nil, domain.Conflict(duplicateJobMsg)
		case !errors.Is(err, domain.ErrNotFound):
			return nil, err
		}
	}

	if err := u.jobs.Save(ctx, repository.NoTX, j); err != nil {
		logging.With(ctx, u.log).Error().Err(err).Msg("save job failed")
		return nil, err
	}
	return j, nil
}

func (u *jobUC) List(ctx context.Context, userID, query string) ([]*model.Job, error) {
	defer logging.TraceDuration(u.log, "JobUC.List")()
	return u.jobs.List(ctx, repository.NoTX, model.JobFilter{UserID: userID, Query: strings.TrimSpace(query)})
}

func (u *jobUC) Update(ctx context.Context, userID, id string, in model.Job) (*model.Job, error) {
	defer logging.TraceDuration(u.log, "JobUC.Update")()

	in.ID = id
	in.UserID = userID
	in.UpdatedAt = time.Now()
	in.Normalize()
	if !in.Status.Valid() {
		return nil, domain.Invalid("Invalid status.")
	}
	if err := u.jobs.Update(ctx, repository.NoTX, &in); err != nil {
		return nil, err
	}
	return &in, nil
}

func (u *jobUC) Delete(ctx context.Context, userID, id string) error {
	defer logging.TraceDuration(u.log, "JobUC.Delete")()
	return u.jobs.Delete(ctx, repository.NoTX, userID, id)
}
