//go:build !integration

package api_test

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"jobflow/internal/domain"
	"jobflow/internal/domain/model"
	"jobflow/internal/domain/ports/adapter"
	"jobflow/internal/domain/ports/repository"
)

//
// ---------------- in-memory infra mocks (repos/tx) ----------------
//

type memUsers struct {
	mu   sync.Mutex
	byID map[string]*model.User
}

func newMemUsers() *memUsers { return &memUsers{byID: map[string]*model.User{}} }

func (m *memUsers) Upsert(ctx context.Context, tx repository.Tx, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.byID[u.ID]; ok {
		cur.Email, cur.Name = u.Email, u.Name
		return nil
	}
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) SetPremium(ctx context.Context, tx repository.Tx, id string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.IsPremium, u.PremiumUntil = true, &until
	return nil
}

func (m *memUsers) ExpirePremium(ctx context.Context, tx repository.Tx, now time.Time) ([]string, error) {
	return nil, nil
}

type memLedger struct {
	mu   sync.Mutex
	rows map[string]model.PayUTransaction
}

func newMemLedger() *memLedger { return &memLedger{rows: map[string]model.PayUTransaction{}} }

func (m *memLedger) Record(ctx context.Context, tx repository.Tx, t *model.PayUTransaction) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[t.TxnID]; ok {
		return false, nil
	}
	m.rows[t.TxnID] = *t
	return true, nil
}

func (m *memLedger) FindByTxnID(ctx context.Context, tx repository.Tx, txnID string) (*model.PayUTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.rows[txnID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &t, nil
}

type memJobs struct {
	mu   sync.Mutex
	jobs []model.Job
}

func (m *memJobs) Save(ctx context.Context, tx repository.Tx, j *model.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, *j)
	return nil
}

func (m *memJobs) FindDuplicate(ctx context.Context, tx repository.Tx, userID, company, role string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.UserID == userID && strings.EqualFold(j.Company, company) && strings.EqualFold(j.Role, role) {
			cp := j
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memJobs) List(ctx context.Context, tx repository.Tx, f model.JobFilter) ([]*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := strings.ToLower(f.Query)
	var out []*model.Job
	for _, j := range m.jobs {
		if j.UserID != f.UserID {
			continue
		}
		hay := strings.ToLower(j.Company + " " + j.Role + " " + j.JobDescription)
		if q != "" && !strings.Contains(hay, q) {
			continue
		}
		cp := j
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memJobs) Update(ctx context.Context, tx repository.Tx, j *model.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.jobs {
		if m.jobs[i].ID == j.ID && m.jobs[i].UserID == j.UserID {
			j.CreatedAt = m.jobs[i].CreatedAt
			m.jobs[i] = *j
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memJobs) Delete(ctx context.Context, tx repository.Tx, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.jobs {
		if m.jobs[i].ID == id && m.jobs[i].UserID == userID {
			m.jobs = append(m.jobs[:i], m.jobs[i+1:]...)
			return nil
		}
	}
	return nil
}

type memFlags struct {
	mu    sync.Mutex
	flags map[string]model.FeatureFlag
}

func newMemFlags(seed model.FlagMap) *memFlags {
	m := &memFlags{flags: map[string]model.FeatureFlag{}}
	for k, v := range seed {
		m.flags[k] = model.FeatureFlag{Name: k, Enabled: v}
	}
	return m
}

func (m *memFlags) List(ctx context.Context, tx repository.Tx) ([]*model.FeatureFlag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.FeatureFlag, 0, len(m.flags))
	for _, f := range m.flags {
		cp := f
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memFlags) Upsert(ctx context.Context, tx repository.Tx, f *model.FeatureFlag) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags[f.Name] = *f
	return nil
}

func (m *memFlags) SeedMissing(ctx context.Context, tx repository.Tx, flags []*model.FeatureFlag) (int, error) {
	return 0, nil
}

type memTx struct{}

func (memTx) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, repository.NoTX)
}

//
// ---------------- adapters ----------------
//

type fakeAI struct {
	ready func(model string) error
	chat  func(ctx context.Context, req adapter.ChatRequest) (*adapter.ChatResponse, error)
}

func (f *fakeAI) Name() string { return "anthropic" }

func (f *fakeAI) Ready(model string) error {
	if f.ready != nil {
		return f.ready(model)
	}
	return nil
}

func (f *fakeAI) Chat(ctx context.Context, req adapter.ChatRequest) (*adapter.ChatResponse, error) {
	if f.chat != nil {
		return f.chat(ctx, req)
	}
	return &adapter.ChatResponse{Text: "ok", Model: req.Model, Provider: "anthropic"}, nil
}

type fakeLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (f *fakeLimiter) Allow(ctx context.Context, key string) (bool, error) {
	f.keys = append(f.keys, key)
	return f.allow, f.err
}

// recordingSub captures frames pushed by the broadcaster.
type recordingSub struct {
	mu     sync.Mutex
	frames []string
}

func (s *recordingSub) Send(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, string(frame))
	return nil
}

func (s *recordingSub) Frames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.frames...)
}

func newLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}
