package sched

import (
	"context"
	"time"

	"jobflow/internal/infra/metrics"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
)

// poolStats is the read side of *pgxpool.Stat.
type poolStats interface {
	TotalConns() int32
	IdleConns() int32
	AcquiredConns() int32
	MaxConns() int32
}

var _ poolStats = (*pgxpool.Stat)(nil)

// PoolSampler copies the Postgres pool counters into the db_pool_connections gauge.
type PoolSampler struct {
	interval time.Duration
	stat     func() poolStats
	record   func(total, idle, inUse, max int32)
	log      *zerolog.Logger
}

func NewPoolSampler(interval time.Duration, pool *pgxpool.Pool, logger *zerolog.Logger) *PoolSampler {
	l := logger.With().Str("component", "PoolSampler").Logger()
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &PoolSampler{
		interval: interval,
		stat:     func() poolStats { return pool.Stat() },
		record:   metrics.SetDBPoolStats,
		log:      &l,
	}
}

func (s *PoolSampler) Run(ctx context.Context) error {
	s.log.Debug().Dur("interval", s.interval).Msg("Starting pool sampler")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sample()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Sample()
		}
	}
}

func (s *PoolSampler) Sample() {
	st := s.stat()
	s.record(st.TotalConns(), st.IdleConns(), st.AcquiredConns(), st.MaxConns())
}
