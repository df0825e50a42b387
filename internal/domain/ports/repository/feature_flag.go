package repository

import (
	"context"

	"jobflow/internal/domain/model"
)

type FeatureFlagRepository interface {
	List(ctx context.Context, tx Tx) ([]*model.FeatureFlag, error)
	Upsert(ctx context.Context, tx Tx, f *model.FeatureFlag) error
	// SeedMissing inserts flags that do not exist yet and leaves the rest untouched.
	SeedMissing(ctx context.Context, tx Tx, flags []*model.FeatureFlag) (int, error)
}
