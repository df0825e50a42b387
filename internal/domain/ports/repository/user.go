package repository

import (
	"context"
	"time"

	"jobflow/internal/domain/model"
)

// -----------------------------
// Users
// -----------------------------

type UserRepository interface {
	// Upsert inserts the user or refreshes email/name. Premium fields are never touched.
	Upsert(ctx context.Context, tx Tx, u *model.User) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	// SetPremium returns domain.ErrNotFound when no such user exists.
	SetPremium(ctx context.Context, tx Tx, id string, until time.Time) error
	// ExpirePremium clears the flag for every user whose premium_until is before now.
	ExpirePremium(ctx context.Context, tx Tx, now time.Time) ([]string, error)
}
