//go:build !integration

package usecase_test

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

// =============================
// Adapters
// =============================

// ---- Mock AIServiceAdapter ----

type MockAI struct {
	mu sync.Mutex

	ChatFunc  func(ctx context.Context, req adapter.ChatRequest) (*adapter.ChatResponse, error)
	ReadyFunc func(model string) error

	Calls []adapter.ChatRequest
}

var _ adapter.AIServiceAdapter = (*MockAI)(nil)

func (m *MockAI) Name() string { return "mock" }

func (m *MockAI) Ready(model string) error {
	if m.ReadyFunc != nil {
		return m.ReadyFunc(model)
	}
	return nil
}

func (m *MockAI) Chat(ctx context.Context, req adapter.ChatRequest) (*adapter.ChatResponse, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	m.mu.Unlock()
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req)
	}
	return &adapter.ChatResponse{Text: "ok", Model: req.Model, Provider: "mock"}, nil
}

// ---- Mock PaymentGateway ----

type MockPaymentGateway struct {
	ReadyFunc  func() error
	SignFunc   func(req *model.PayURequest) error
	VerifyFunc func(resp *model.PayUResponse) (bool, error)
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func (m *MockPaymentGateway) Name() string      { return "mockpay" }
func (m *MockPaymentGateway) ActionURL() string { return "https://pay.example/_payment" }

func (m *MockPaymentGateway) Ready() error {
	if m.ReadyFunc != nil {
		return m.ReadyFunc()
	}
	return nil
}

func (m *MockPaymentGateway) SignRequest(req *model.PayURequest) error {
	if m.SignFunc != nil {
		return m.SignFunc(req)
	}
	req.Key = "mock-key"
	req.Hash = "signed:" + req.TxnID
	return nil
}

// VerifyResponse defaults to accepting hashes equal to "good".
func (m *MockPaymentGateway) VerifyResponse(resp *model.PayUResponse) (bool, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(resp)
	}
	return resp.Hash == "good", nil
}

// ---- Mock FlagPublisher ----

type MockPublisher struct {
	mu          sync.Mutex
	Published   []model.FlagMap
	PublishFunc func(ctx context.Context, flags model.FlagMap) error
}

var _ adapter.FlagPublisher = (*MockPublisher)(nil)

func (m *MockPublisher) Publish(ctx context.Context, flags model.FlagMap) error {
	m.mu.Lock()
	m.Published = append(m.Published, flags)
	m.mu.Unlock()
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, flags)
	}
	return nil
}

// =============================
// Repositories
// =============================

// ---- Mock UserRepository ----

type MockUserRepo struct {
	mu   sync.Mutex
	byID map[string]*model.User

	UpsertFunc        func(ctx context.Context, tx repository.Tx, u *model.User) error
	FindByIDFunc      func(ctx context.Context, tx repository.Tx, id string) (*model.User, error)
	SetPremiumFunc    func(ctx context.Context, tx repository.Tx, id string, until time.Time) error
	ExpirePremiumFunc func(ctx context.Context, tx repository.Tx, now time.Time) ([]string, error)
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{byID: map[string]*model.User{}}
}

func (r *MockUserRepo) Upsert(ctx context.Context, tx repository.Tx, u *model.User) error {
	if r.UpsertFunc != nil {
		return r.UpsertFunc(ctx, tx, u)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.byID[u.ID]; ok {
		cur.Email, cur.Name, cur.UpdatedAt = u.Email, u.Name, u.UpdatedAt
		return nil
	}
	cp := *u
	r.byID[u.ID] = &cp
	return nil
}

func (r *MockUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, tx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *MockUserRepo) SetPremium(ctx context.Context, tx repository.Tx, id string, until time.Time) error {
	if r.SetPremiumFunc != nil {
		return r.SetPremiumFunc(ctx, tx, id, until)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.IsPremium, u.PremiumUntil = true, &until
	return nil
}

func (r *MockUserRepo) ExpirePremium(ctx context.Context, tx repository.Tx, now time.Time) ([]string, error) {
	if r.ExpirePremiumFunc != nil {
		return r.ExpirePremiumFunc(ctx, tx, now)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, u := range r.byID {
		if u.IsPremium && u.PremiumUntil != nil && u.PremiumUntil.Before(now) {
			u.IsPremium = false
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// ---- Mock PaymentLedger ----

type MockLedger struct {
	mu   sync.Mutex
	rows map[string]*model.PayUTransaction

	RecordFunc func(ctx context.Context, tx repository.Tx, t *model.PayUTransaction) (bool, error)
}

var _ repository.PaymentLedger = (*MockLedger)(nil)

func NewMockLedger() *MockLedger {
	return &MockLedger{rows: map[string]*model.PayUTransaction{}}
}

func (l *MockLedger) Record(ctx context.Context, tx repository.Tx, t *model.PayUTransaction) (bool, error) {
	if l.RecordFunc != nil {
		return l.RecordFunc(ctx, tx, t)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.rows[t.TxnID]; ok {
		return false, nil
	}
	cp := *t
	l.rows[t.TxnID] = &cp
	return true, nil
}

func (l *MockLedger) FindByTxnID(ctx context.Context, tx repository.Tx, txnID string) (*model.PayUTransaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.rows[txnID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// ---- Mock JobRepository ----

type MockJobRepo struct {
	mu   sync.Mutex
	jobs []*model.Job

	SaveFunc func(ctx context.Context, tx repository.Tx, j *model.Job) error
}

var _ repository.JobRepository = (*MockJobRepo)(nil)

func NewMockJobRepo() *MockJobRepo { return &MockJobRepo{} }

func (r *MockJobRepo) Save(ctx context.Context, tx repository.Tx, j *model.Job) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, j)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *j
	r.jobs = append(r.jobs, &cp)
	return nil
}

func (r *MockJobRepo) FindDuplicate(ctx context.Context, tx repository.Tx, userID, company, role string) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.jobs {
		if j.UserID == userID && strings.EqualFold(j.Company, company) && strings.EqualFold(j.Role, role) {
			cp := *j
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockJobRepo) List(ctx context.Context, tx repository.Tx, f model.JobFilter) ([]*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q := strings.ToLower(f.Query)
	out := []*model.Job{}
	for _, j := range r.jobs {
		if j.UserID != f.UserID {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(j.Company+"\x00"+j.Role+"\x00"+j.JobDescription), q) {
			continue
		}
		cp := *j
		out = append(out, &cp)
	}
	return out, nil
}

func (r *MockJobRepo) Update(ctx context.Context, tx repository.Tx, j *model.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, cur := range r.jobs {
		if cur.ID == j.ID && cur.UserID == j.UserID {
			j.CreatedAt = cur.CreatedAt
			cp := *j
			r.jobs[i] = &cp
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r *MockJobRepo) Delete(ctx context.Context, tx repository.Tx, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, cur := range r.jobs {
		if cur.ID == id && cur.UserID == userID {
			r.jobs = append(r.jobs[:i], r.jobs[i+1:]...)
			break
		}
	}
	return nil
}

// ---- Mock FeatureFlagRepository ----

type MockFlagRepo struct {
	mu    sync.Mutex
	flags map[string]*model.FeatureFlag

	UpsertFunc func(ctx context.Context, tx repository.Tx, f *model.FeatureFlag) error
}

var _ repository.FeatureFlagRepository = (*MockFlagRepo)(nil)

func NewMockFlagRepo() *MockFlagRepo {
	return &MockFlagRepo{flags: map[string]*model.FeatureFlag{}}
}

func (r *MockFlagRepo) List(ctx context.Context, tx repository.Tx) ([]*model.FeatureFlag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.FeatureFlag, 0, len(r.flags))
	for _, f := range r.flags {
		cp := *f
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MockFlagRepo) Upsert(ctx context.Context, tx repository.Tx, f *model.FeatureFlag) error {
	if r.UpsertFunc != nil {
		return r.UpsertFunc(ctx, tx, f)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *f
	r.flags[f.Name] = &cp
	return nil
}

func (r *MockFlagRepo) SeedMissing(ctx context.Context, tx repository.Tx, flags []*model.FeatureFlag) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, f := range flags {
		if _, ok := r.flags[f.Name]; ok {
			continue
		}
		cp := *f
		r.flags[f.Name] = &cp
		n++
	}
	return n, nil
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
	Calls      int
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc is set.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.Calls++
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
