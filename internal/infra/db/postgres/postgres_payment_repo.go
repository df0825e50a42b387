package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"jobflow/internal/domain"
	"jobflow/internal/domain/model"
	"jobflow/internal/domain/ports/repository"
)

var _ repository.PaymentLedger = (*paymentLedger)(nil)

type paymentLedger struct{ pool *pgxpool.Pool }

func NewPaymentLedger(pool *pgxpool.Pool) *paymentLedger {
	return &paymentLedger{pool: pool}
}

func (r *paymentLedger) Record(ctx context.Context, tx repository.Tx, t *model.PayUTransaction) (bool, error) {
	const q = `
INSERT INTO payu_transactions (txnid, user_id, plan, amount, status, premium_until, processed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (txnid) DO NOTHING;`
	tag, err := execSQL(ctx, r.pool, tx, q, t.TxnID, t.UserID, string(t.Plan), t.Amount, t.Status, t.PremiumUntil, t.ProcessedAt)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return false, err
		}
		return false, fmt.Errorf("record payu txn: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *paymentLedger) FindByTxnID(ctx context.Context, tx repository.Tx, txnID string) (*model.PayUTransaction, error) {
	q := `SELECT txnid, user_id, plan, amount, status, premium_until, processed_at FROM payu_transactions WHERE txnid=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, txnID)
	if err != nil {
		return nil, err
	}

	var (
		t    model.PayUTransaction
		plan string
	)
	if err := row.Scan(&t.TxnID, &t.UserID, &plan, &t.Amount, &t.Status, &t.PremiumUntil, &t.ProcessedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find payu txn: %w", err)
	}
	t.Plan = model.PremiumPlan(plan)
	return &t, nil
}
