package ports

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/tgmarket/escrowd/internal/core/domain"
)

// Ledger is the boundary towards the component that actually moves funds.
// The engine invokes it only after a transition has been committed, therefore
// every method must be idempotent for the same transaction: the engine may
// call it more than once for the same committed transition during retries or
// reconciliation.
type Ledger interface {
	// Hold acknowledges that the total amount of the transaction is held in
	// escrow, once both parties confirmed.
	Hold(ctx context.Context, tx domain.Transaction) error
	// Release pays out amount to party for a completed transaction.
	Release(
		ctx context.Context, tx domain.Transaction, party string, amount decimal.Decimal,
	) error
	// Freeze blocks the held funds of a disputed transaction.
	Freeze(ctx context.Context, tx domain.Transaction) error
	// Refund returns amount to party for a cancelled or refunded transaction.
	Refund(
		ctx context.Context, tx domain.Transaction, party string, amount decimal.Decimal,
	) error
}
