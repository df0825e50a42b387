package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"jobflow/internal/domain/model"
	"jobflow/internal/domain/ports/repository"
	"jobflow/internal/infra/metrics"
	red "jobflow/internal/infra/redis"
)

var _ repository.UserRepository = (*userRepoCacheDecorator)(nil)

type userRepoCacheDecorator struct {
	inner repository.UserRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewUserRepoCacheDecorator(inner repository.UserRepository, cache red.RedisClient, ttl time.Duration) repository.UserRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &userRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   ttl,
	}
}

func userKey(id string) string { return fmt.Sprintf("user:id:%s", id) }

// Writes drop the cached entry first.
func (d *userRepoCacheDecorator) Upsert(ctx context.Context, tx repository.Tx, u *model.User) error {
	_ = d.cache.Del(ctx, userKey(u.ID))
	return d.inner.Upsert(ctx, tx, u)
}

func (d *userRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	// Reads inside a transaction must see the transaction's own writes.
	if tx != nil {
		metrics.IncCacheRequest("user", "bypass")
		return d.inner.FindByID(ctx, tx, id)
	}

	key := userKey(id)
	if val, err := d.cache.Get(ctx, key); err == nil {
		var user model.User
		if json.Unmarshal([]byte(val), &user) == nil {
			metrics.IncCacheRequest("user", "hit")
			return &user, nil
		}
	}

	metrics.IncCacheRequest("user", "miss")
	user, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if bytes, err := json.Marshal(user); err == nil {
		_ = d.cache.Set(ctx, key, bytes, d.ttl)
	}
	return user, nil
}

func (d *userRepoCacheDecorator) SetPremium(ctx context.Context, tx repository.Tx, id string, until time.Time) error {
	_ = d.cache.Del(ctx, userKey(id))
	return d.inner.SetPremium(ctx, tx, id, until)
}

func (d *userRepoCacheDecorator) ExpirePremium(ctx context.Context, tx repository.Tx, now time.Time) ([]string, error) {
	ids, err := d.inner.ExpirePremium(ctx, tx, now)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		keys := make([]string, len(ids))
		for i, id := range ids {
			keys[i] = userKey(id)
		}
		_ = d.cache.Del(ctx, keys...)
	}
	return ids, nil
}
