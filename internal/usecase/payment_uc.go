package usecase

import (
	"context"
	"errors"
	"math"
	"net/url"
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
var _ PaymentUseCase = (*paymentUC)(nil)

var (
	ErrInvalidAmount = domain.Invalid("Invalid amount.")
	ErrEmailRequired = domain.Invalid("Email is required for PayU.")
)

type PaymentUseCase interface {
	// Initiate builds and signs a checkout form for the signed-in user.
	Initiate(ctx context.Context, user *model.User, in InitiateInput) (*InitiateResult, error)
	// Verify recomputes the callback signature without side effects.
	Verify(ctx context.Context, resp *model.PayUResponse) (bool, error)
	// HandleCallback verifies the gateway callback, grants premium when it is a
	// valid success and returns where the browser should be sent.
	HandleCallback(ctx context.Context, resp *model.PayUResponse) (*CallbackResult, error)
}

// InitiateInput carries the optional form overrides sent by the client.
// Amount is NaN when the client value could not be parsed.
type InitiateInput struct {
	Amount      float64
	Plan        string
	ProductInfo string
	FirstName   string
	Email       string
	Phone       string
}

type InitiateResult struct {
	Action  string
	Request *model.PayURequest
}

type CallbackResult struct {
	Valid       bool
	Succeeded   bool
	Granted     bool
	Duplicate   bool
	Plan        model.PremiumPlan
	// PremiumUntil is the entitlement end of this grant, or of the original
	// grant when the callback is a duplicate.
	PremiumUntil time.Time
	RedirectURL  string
}

// PaymentURLs are the browser destinations around a checkout.
type PaymentURLs struct {
	Frontend string // base for /payment-success and /payment-failure after the callback
	Success  string // surl sent to the gateway
	Failure  string // furl sent to the gateway
}

type paymentUC struct {
	users   repository.UserRepository
	ledger  repository.PaymentLedger
	gateway adapter.PaymentGateway
	tm      repository.TransactionManager
	urls    PaymentURLs
	dedupe  bool
	dev     bool
	log     *zerolog.Logger
	now     func() time.Time
}

func NewPaymentUseCase(
	users repository.UserRepository,
	ledger repository.PaymentLedger,
	gateway adapter.PaymentGateway,
	tm repository.TransactionManager,
	urls PaymentURLs,
	dedupe bool,
	dev bool,
	logger *zerolog.Logger,
) *paymentUC {
	return &paymentUC{
		users:   users,
		ledger:  ledger,
		gateway: gateway,
		tm:      tm,
		urls:    urls,
		dedupe:  dedupe,
		dev:     dev,
		log:     logger,
		now:     time.Now,
	}
}

func (u *paymentUC) Initiate(ctx context.Context, user *model.User, in InitiateInput) (*InitiateResult, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.Initiate")()

	if err := u.gateway.Ready(); err != nil {
		return nil, err
	}
	if math.IsNaN(in.Amount) || math.IsInf(in.Amount, 0) || in.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	email := firstNonBlank(in.Email, user.Email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	txnID, err := model.NewTxnID()
	if err != nil {
		return nil, err
	}

	req := &model.PayURequest{
		TxnID:       txnID,
		Amount:      model.FormatAmount(in.Amount),
		ProductInfo: firstNonBlank(in.ProductInfo, model.DefaultProductInfo),
		FirstName:   firstNonBlank(in.FirstName, user.Name, model.DefaultFirstName),
		Email:       email,
		Phone:       strings.TrimSpace(in.Phone),
		SURL:        u.urls.Success,
		FURL:        u.urls.Failure,
	}
	req.UDF[0] = user.ID
	req.UDF[1] = string(model.PlanFromChoice(firstNonBlank(in.Plan, model.DefaultPlan)))

	if err := u.gateway.SignRequest(req); err != nil {
		return nil, err
	}

	logging.With(ctx, u.log).Info().
		Str("txnid", req.TxnID).
		Str("amount", req.Amount).
		Str("plan", req.UDF[1]).
		Msg("payu checkout initiated")
	return &InitiateResult{Action: u.gateway.ActionURL(), Request: req}, nil
}

func (u *paymentUC) Verify(ctx context.Context, resp *model.PayUResponse) (bool, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.Verify")()

	// The salt check wins over field validation.
	valid, err := u.gateway.VerifyResponse(resp)
	if err != nil {
		return false, err
	}
	if !resp.HasRequired() {
		return false, domain.Invalid("Missing required PayU fields.")
	}

	logging.With(ctx, u.log).Info().
		Str("txnid", resp.TxnID).
		Str("status", resp.Status).
		Str("amount", resp.Amount).
		Str("email", logging.Redact(resp.Email, u.dev)).
		Str("udf1", resp.UDF[0]).
		Str("udf2", resp.UDF[1]).
		Bool("valid", valid).
		Msg("payu verify")
	return valid, nil
}

func (u *paymentUC) HandleCallback(ctx context.Context, resp *model.PayUResponse) (*CallbackResult, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.HandleCallback")()
	log := logging.With(ctx, u.log)

	valid, err := u.gateway.VerifyResponse(resp)
	if err != nil {
		return nil, err
	}
	if !resp.HasRequired() {
		return nil, domain.Invalid("Missing PayU fields.")
	}

	res := &CallbackResult{Valid: valid, Succeeded: resp.Succeeded(), Plan: resp.Plan()}
	if !valid || !res.Succeeded {
		log.Warn().Str("txnid", resp.TxnID).Str("status", resp.Status).Bool("valid", valid).Msg("payu callback rejected")
		res.RedirectURL = u.failureURL()
		return res, nil
	}

	res.RedirectURL = u.successURL(resp.TxnID)
	if resp.UserID() == "" {
		log.Warn().Str("txnid", resp.TxnID).Msg("payu callback without user id; nothing granted")
		return res, nil
	}

	out, err := u.grant(ctx, resp)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		log.Warn().Str("txnid", resp.TxnID).Str("user_id", resp.UserID()).Msg("payu callback for unknown user; nothing recorded")
	case err != nil:
		log.Error().Err(err).Str("txnid", resp.TxnID).Msg("premium grant failed")
		res.RedirectURL = u.failureURL()
		return res, err
	default:
		res.Granted, res.Duplicate, res.PremiumUntil = out.granted, out.duplicate, out.until
	}
	return res, nil
}

type grantOutcome struct {
	granted, duplicate bool
	until              time.Time
}

// grant records the transaction and extends the entitlement in one transaction.
// An unknown user yields ErrNotFound before anything is written.
func (u *paymentUC) grant(ctx context.Context, resp *model.PayUResponse) (grantOutcome, error) {
	now := u.now()
	plan := resp.Plan()
	out := grantOutcome{until: now.Add(plan.Duration())}
	var original *model.PayUTransaction

	err := u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		if _, err := u.users.FindByID(ctx, tx, resp.UserID()); err != nil {
			return err
		}
		inserted, err := u.ledger.Record(ctx, tx, &model.PayUTransaction{
			TxnID:        resp.TxnID,
			UserID:       resp.UserID(),
			Plan:         plan,
			Amount:       resp.Amount,
			Status:       strings.ToLower(resp.Status),
			PremiumUntil: out.until,
			ProcessedAt:  now,
		})
		if err != nil {
			return err
		}
		if !inserted && u.dedupe {
			original, err = u.ledger.FindByTxnID(ctx, tx, resp.TxnID)
			if err != nil {
				return err
			}
			out.duplicate = true
			out.until = original.PremiumUntil
			return nil
		}
		if err := u.users.SetPremium(ctx, tx, resp.UserID(), out.until); err != nil {
			return err
		}
		out.granted = true
		return nil
	})
	if err != nil {
		return grantOutcome{}, err
	}

	l := logging.With(ctx, u.log)
	if out.duplicate {
		ev := l.Info()
		if original.UserID != resp.UserID() {
			ev = l.Warn().Str("recorded_user_id", original.UserID)
		}
		ev.Str("txnid", resp.TxnID).Str("user_id", resp.UserID()).Time("processed_at", original.ProcessedAt).Msg("payu callback already processed")
	} else {
		l.Info().Str("txnid", resp.TxnID).Str("user_id", resp.UserID()).Str("plan", string(plan)).Time("premium_until", out.until).Msg("premium granted")
	}
	return out, nil
}

func (u *paymentUC) successURL(txnID string) string {
	return u.urls.Frontend + "/payment-success?txnid=" + url.QueryEscape(txnID)
}

func (u *paymentUC) failureURL() string {
	return u.urls.Frontend + "/payment-failure"
}

func firstNonBlank(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
