package usecase

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"jobflow/internal/domain"
	"jobflow/internal/domain/model"
	"jobflow/internal/domain/ports/adapter"
	"jobflow/internal/domain/ports/repository"
	"jobflow/internal/infra/logging"
)

// Compile-time check
var _ FeatureFlagUseCase = (*featureFlagUC)(nil)

type FeatureFlagUseCase interface {
	List(ctx context.Context) (model.FlagMap, error)
	// Set stores the flag and publishes the full map to every stream subscriber.
	Set(ctx context.Context, name string, enabled bool, description string) (model.FlagMap, error)
	// SeedDefaults inserts the given flags that do not exist yet.
	SeedDefaults(ctx context.Context, defaults []*model.FeatureFlag) (int, error)
}

var flagNameRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.-]{0,63}$`)

type featureFlagUC struct {
	flags     repository.FeatureFlagRepository
	tm        repository.TransactionManager
	publisher adapter.FlagPublisher
	log       *zerolog.Logger
}

func NewFeatureFlagUseCase(flags repository.FeatureFlagRepository, tm repository.TransactionManager, publisher adapter.FlagPublisher, logger *zerolog.Logger) *featureFlagUC {
	return &featureFlagUC{flags: flags, tm: tm, publisher: publisher, log: logger}
}

func (u *featureFlagUC) List(ctx context.Context) (model.FlagMap, error) {
	defer logging.TraceDuration(u.log, "FeatureFlagUC.List")()

	flags, err := u.flags.List(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	return model.FlagMapOf(flags), nil
}

func (u *featureFlagUC) Set(ctx context.Context, name string, enabled bool, description string) (model.FlagMap, error) {
	defer logging.TraceDuration(u.log, "FeatureFlagUC.Set")()

	name = strings.TrimSpace(name)
	if !flagNameRe.MatchString(name) {
		return nil, domain.Invalid("Invalid flag name.")
	}

	var snapshot model.FlagMap
	err := u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.flags.Upsert(ctx, tx, &model.FeatureFlag{
			Name:        name,
			Enabled:     enabled,
			Description: strings.TrimSpace(description),
			UpdatedAt:   time.Now(),
		}); err != nil {
			return err
		}
		all, err := u.flags.List(ctx, tx)
		if err != nil {
			return err
		}
		snapshot = model.FlagMapOf(all)
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := logging.With(ctx, u.log)
	log.Info().Str("flag", name).Bool("enabled", enabled).Msg("feature flag updated")
	// Already committed; publish failures are only logged.
	if err := u.publisher.Publish(ctx, snapshot); err != nil {
		log.Error().Err(err).Msg("publish flags failed")
	}
	return snapshot, nil
}

func (u *featureFlagUC) SeedDefaults(ctx context.Context, defaults []*model.FeatureFlag) (int, error) {
	defer logging.TraceDuration(u.log, "FeatureFlagUC.SeedDefaults")()

	n, err := u.flags.SeedMissing(ctx, repository.NoTX, defaults)
	if err != nil {
		return n, err
	}
	u.log.Info().Int("inserted", n).Int("defaults", len(defaults)).Msg("feature flags seeded")
	return n, nil
}
