package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"jobflow/internal/domain/model"
	"jobflow/internal/domain/ports/repository"
)

var _ repository.FeatureFlagRepository = (*featureFlagRepo)(nil)

type featureFlagRepo struct{ pool *pgxpool.Pool }

func NewFeatureFlagRepo(pool *pgxpool.Pool) *featureFlagRepo {
	return &featureFlagRepo{pool: pool}
}

func (r *featureFlagRepo) List(ctx context.Context, tx repository.Tx) ([]*model.FeatureFlag, error) {
	rows, err := queryRows(ctx, r.pool, tx, `SELECT name, enabled, description, updated_at FROM feature_flags ORDER BY name;`)
	if err != nil {
		return nil, fmt.Errorf("list flags: %w", err)
	}
	defer rows.Close()

	var out []*model.FeatureFlag
	for rows.Next() {
		var f model.FeatureFlag
		if err := rows.Scan(&f.Name, &f.Enabled, &f.Description, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan flag: %w", err)
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}

func (r *featureFlagRepo) Upsert(ctx context.Context, tx repository.Tx, f *model.FeatureFlag) error {
	const q = `
INSERT INTO feature_flags (name, enabled, description, updated_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (name) DO UPDATE SET
  enabled=EXCLUDED.enabled,
  description=CASE WHEN EXCLUDED.description = '' THEN feature_flags.description ELSE EXCLUDED.description END,
  updated_at=EXCLUDED.updated_at;`
	if _, err := execSQL(ctx, r.pool, tx, q, f.Name, f.Enabled, f.Description, f.UpdatedAt); err != nil {
		return fmt.Errorf("upsert flag: %w", err)
	}
	return nil
}

func (r *featureFlagRepo) SeedMissing(ctx context.Context, tx repository.Tx, flags []*model.FeatureFlag) (int, error) {
	const q = `
INSERT INTO feature_flags (name, enabled, description, updated_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (name) DO NOTHING;`
	inserted := 0
	for _, f := range flags {
		tag, err := execSQL(ctx, r.pool, tx, q, f.Name, f.Enabled, f.Description, f.UpdatedAt)
		if err != nil {
			return inserted, fmt.Errorf("seed flag %q: %w", f.Name, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}
