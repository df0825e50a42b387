package usecase

import (
	"context"
	"time"

	"jobflow/internal/domain/model"
	"jobflow/internal/domain/ports/repository"
	"jobflow/internal/infra/logging"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ UserUseCase = (*userUC)(nil)

// UserUseCase mirrors identity-provider users and owns the premium entitlement.
type UserUseCase interface {
	// EnsureUser upserts id, email and name from verified token claims.
	EnsureUser(ctx context.Context, id, email, name string) (*model.User, error)
	Me(ctx context.Context, id string) (*model.User, error)
	// ExpirePremium clears lapsed entitlements and returns the affected user ids.
	ExpirePremium(ctx context.Context) ([]string, error)
}

type userUC struct {
	users repository.UserRepository
	log   *zerolog.Logger
	now   func() time.Time
}

func NewUserUseCase(users repository.UserRepository, logger *zerolog.Logger) *userUC {
	return &userUC{
		users: users,
		log:   logger,
		now:   time.Now,
	}
}

func (u *userUC) EnsureUser(ctx context.Context, id, email, name string) (*model.User, error) {
	defer logging.TraceDuration(u.log, "UserUC.EnsureUser")()

	nu, err := model.NewUser(id, email, name)
	if err != nil {
		return nil, err
	}
	if err := u.users.Upsert(ctx, repository.NoTX, nu); err != nil {
		logging.With(ctx, u.log).Error().Err(err).Msg("upsert user failed")
		return nil, err
	}
	return u.users.FindByID(ctx, repository.NoTX, nu.ID)
}

// Me reports the entitlement as of now, so a lapse shows before the next sweep.
func (u *userUC) Me(ctx context.Context, id string) (*model.User, error) {
	defer logging.TraceDuration(u.log, "UserUC.Me")()
	user, err := u.users.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	user.IsPremium = user.HasPremium(u.now())
	return user, nil
}

func (u *userUC) ExpirePremium(ctx context.Context) ([]string, error) {
	defer logging.TraceDuration(u.log, "UserUC.ExpirePremium")()

	ids, err := u.users.ExpirePremium(ctx, repository.NoTX, u.now())
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		u.log.Info().Int("count", len(ids)).Msg("premium expired")
	}
	return ids, nil
}
