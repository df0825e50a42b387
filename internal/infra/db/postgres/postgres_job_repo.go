package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"jobflow/internal/domain"
	"jobflow/internal/domain/model"
	"jobflow/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*jobRepo)(nil)

type jobRepo struct{ pool *pgxpool.Pool }

func NewJobRepo(pool *pgxpool.Pool) *jobRepo {
	return &jobRepo{pool: pool}
}

const jobColumns = `id, user_id, company, role, status, applied_date, interview_date, reminder_at,
       notes, job_description, pinned, checklist, created_at, updated_at`

func (r *jobRepo) Save(ctx context.Context, tx repository.Tx, j *model.Job) error {
	const q = `
INSERT INTO jobs (` + jobColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14);`
	checklist, err := json.Marshal(j.Checklist)
	if err != nil {
		return fmt.Errorf("encode checklist: %w", err)
	}
	_, err = execSQL(ctx, r.pool, tx, q,
		j.ID, j.UserID, j.Company, j.Role, string(j.Status), j.AppliedDate, j.InterviewDate, j.ReminderAt,
		j.Notes, j.JobDescription, j.Pinned, checklist, j.CreatedAt, j.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (r *jobRepo) FindDuplicate(ctx context.Context, tx repository.Tx, userID, company, role string) (*model.Job, error) {
	const q = `
SELECT ` + jobColumns + `
  FROM jobs
 WHERE user_id=$1 AND lower(company)=lower($2) AND lower(role)=lower($3)
 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, userID, company, role)
	if err != nil {
		return nil, err
	}
	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find duplicate job: %w", err)
	}
	return j, nil
}

func (r *jobRepo) List(ctx context.Context, tx repository.Tx, f model.JobFilter) ([]*model.Job, error) {
	q := `SELECT ` + jobColumns + ` FROM jobs WHERE user_id=$1`
	args := []interface{}{f.UserID}
	if term := strings.TrimSpace(f.Query); term != "" {
		args = append(args, "%"+escapeLike(term)+"%")
		q += ` AND (company ILIKE $2 OR role ILIKE $2 OR job_description ILIKE $2)`
	}
	q += ` ORDER BY created_at ASC, id ASC;`

	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]*model.Job, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *jobRepo) Update(ctx context.Context, tx repository.Tx, j *model.Job) error {
	const q = `
UPDATE jobs SET
  company=$3, role=$4, status=$5, applied_date=$6, interview_date=$7, reminder_at=$8,
  notes=$9, job_description=$10, pinned=$11, checklist=$12, updated_at=$13
WHERE id=$1 AND user_id=$2
RETURNING created_at;`
	checklist, err := json.Marshal(j.Checklist)
	if err != nil {
		return fmt.Errorf("encode checklist: %w", err)
	}
	row, err := pickRow(ctx, r.pool, tx, q,
		j.ID, j.UserID, j.Company, j.Role, string(j.Status), j.AppliedDate, j.InterviewDate, j.ReminderAt,
		j.Notes, j.JobDescription, j.Pinned, checklist, j.UpdatedAt)
	if err != nil {
		return err
	}
	if err := row.Scan(&j.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

func (r *jobRepo) Delete(ctx context.Context, tx repository.Tx, userID, id string) error {
	if _, err := execSQL(ctx, r.pool, tx, `DELETE FROM jobs WHERE id=$1 AND user_id=$2;`, id, userID); err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return nil
}

func scanJob(row pgx.Row) (*model.Job, error) {
	var (
		j         model.Job
		status    string
		checklist []byte
	)
	if err := row.Scan(&j.ID, &j.UserID, &j.Company, &j.Role, &status, &j.AppliedDate, &j.InterviewDate, &j.ReminderAt,
		&j.Notes, &j.JobDescription, &j.Pinned, &checklist, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	j.Status = model.JobStatus(status)
	if len(checklist) > 0 {
		if err := json.Unmarshal(checklist, &j.Checklist); err != nil {
			return nil, fmt.Errorf("decode checklist: %w", err)
		}
	}
	if j.Checklist == nil {
		j.Checklist = []model.ChecklistItem{}
	}
	return &j, nil
}

// escapeLike makes term match literally inside an ILIKE pattern.
func escapeLike(term string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(term)
}
