package repository

import (
	"context"

	"jobflow/internal/domain/model"
)

// PaymentLedger records processed gateway transactions.
type PaymentLedger interface {
	// Record inserts t unless its txnid was already recorded. It reports
	// whether this call inserted the row.
	Record(ctx context.Context, tx Tx, t *model.PayUTransaction) (bool, error)
	FindByTxnID(ctx context.Context, tx Tx, txnID string) (*model.PayUTransaction, error)
}
