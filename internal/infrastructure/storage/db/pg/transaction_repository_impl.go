package postgresdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/tgmarket/escrowd/internal/core/domain"
)

const (
	transactionColumns = `id, buyer, seller, amount::text, description,
	escrow_fee::text, total_amount::text, status, buyer_confirmed,
	seller_confirmed, created_at, updated_at, completion_deadline,
	dispute_reason, disputed_by, disputed_at, cancel_reason, cancelled_by,
	cancelled_at, completed_at, resolved_by, resolution_note, resolved_at,
	version`

	insertTransactionQuery = `INSERT INTO transactions (
	id, buyer, seller, amount, description, escrow_fee, total_amount, status,
	buyer_confirmed, seller_confirmed, created_at, updated_at,
	completion_deadline, dispute_reason, disputed_by, disputed_at,
	cancel_reason, cancelled_by, cancelled_at, completed_at, resolved_by,
	resolution_note, resolved_at, version
) VALUES (
	$1, $2, $3, $4::numeric, $5, $6::numeric, $7::numeric, $8, $9, $10, $11,
	$12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, 1
) ON CONFLICT (id) DO NOTHING`

	updateTransactionQuery = `UPDATE transactions SET
	status = $3, buyer_confirmed = $4, seller_confirmed = $5, updated_at = $6,
	dispute_reason = $7, disputed_by = $8, disputed_at = $9,
	cancel_reason = $10, cancelled_by = $11, cancelled_at = $12,
	completed_at = $13, resolved_by = $14, resolution_note = $15,
	resolved_at = $16, version = version + 1
WHERE id = $1 AND version = $2
RETURNING version`

	selectTransactionByIdQuery = `SELECT ` + transactionColumns +
		` FROM transactions WHERE id = $1`

	selectVersionByIdQuery = `SELECT version FROM transactions WHERE id = $1`

	selectTransactionsForPartyQuery = `SELECT ` + transactionColumns +
		` FROM transactions WHERE buyer = $1 OR seller = $1
	ORDER BY created_at DESC, id ASC`

	selectAllTransactionsQuery = `SELECT ` + transactionColumns +
		` FROM transactions ORDER BY created_at DESC, id ASC`
)

type transactionRepositoryImpl struct {
	pool   *pgxpool.Pool
	execTx func(ctx context.Context, txBody func(pgx.Tx) error) error
}

// NewTransactionRepositoryImpl returns a postgres based TransactionRepository.
// Updates are guarded by the version column, so that a concurrent write makes
// the UPDATE match no rows.
func NewTransactionRepositoryImpl(
	pool *pgxpool.Pool,
	execTx func(ctx context.Context, txBody func(pgx.Tx) error) error,
) domain.TransactionRepository {
	return &transactionRepositoryImpl{
		pool:   pool,
		execTx: execTx,
	}
}

func (r *transactionRepositoryImpl) AddTransaction(
	ctx context.Context, tx *domain.Transaction,
) error {
	if err := tx.Validate(); err != nil {
		return err
	}

	tag, err := r.pool.Exec(
		ctx, insertTransactionQuery,
		tx.ID, tx.Buyer, tx.Seller, tx.Amount.String(), tx.Description,
		tx.EscrowFee.String(), tx.TotalAmount.String(), tx.Status.String(),
		tx.BuyerConfirmed, tx.SellerConfirmed, tx.CreatedAt, tx.UpdatedAt,
		tx.CompletionDeadline, tx.DisputeReason, tx.DisputedBy, tx.DisputedAt,
		tx.CancelReason, tx.CancelledBy, tx.CancelledAt, tx.CompletedAt,
		tx.ResolvedBy, tx.ResolutionNote, tx.ResolvedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrTransactionAlreadyExists, tx.ID)
	}

	tx.Version = 1
	return nil
}

func (r *transactionRepositoryImpl) GetTransaction(
	ctx context.Context, id string,
) (*domain.Transaction, error) {
	tx, err := scanTransaction(r.pool.QueryRow(ctx, selectTransactionByIdQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, id)
		}
		return nil, err
	}
	return tx, nil
}

func (r *transactionRepositoryImpl) CompareAndSwap(
	ctx context.Context, id string, expectedVersion uint64,
	tx *domain.Transaction,
) error {
	if tx.ID != id {
		return fmt.Errorf("%w: transaction id mismatch", domain.ErrInvalidInput)
	}
	if err := tx.Validate(); err != nil {
		return err
	}

	var newVersion int64
	txBody := func(dbTx pgx.Tx) error {
		err := dbTx.QueryRow(
			ctx, updateTransactionQuery,
			id, int64(expectedVersion), tx.Status.String(), tx.BuyerConfirmed,
			tx.SellerConfirmed, tx.UpdatedAt, tx.DisputeReason, tx.DisputedBy,
			tx.DisputedAt, tx.CancelReason, tx.CancelledBy, tx.CancelledAt,
			tx.CompletedAt, tx.ResolvedBy, tx.ResolutionNote, tx.ResolvedAt,
		).Scan(&newVersion)
		if err == nil {
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		var currentVersion int64
		if err := dbTx.QueryRow(
			ctx, selectVersionByIdQuery, id,
		).Scan(&currentVersion); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, id)
			}
			return err
		}
		return fmt.Errorf(
			"%w: expected version %d, got %d",
			domain.ErrVersionConflict, expectedVersion, currentVersion,
		)
	}

	if err := r.execTx(ctx, txBody); err != nil {
		return err
	}

	tx.Version = uint64(newVersion)
	return nil
}

func (r *transactionRepositoryImpl) GetTransactionsForParty(
	ctx context.Context, party string,
) ([]domain.Transaction, error) {
	return r.queryTransactions(ctx, selectTransactionsForPartyQuery, party)
}

func (r *transactionRepositoryImpl) GetAllTransactions(
	ctx context.Context,
) ([]domain.Transaction, error) {
	return r.queryTransactions(ctx, selectAllTransactionsQuery)
}

func (r *transactionRepositoryImpl) queryTransactions(
	ctx context.Context, query string, args ...interface{},
) ([]domain.Transaction, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txs := make([]domain.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	domain.SortTransactions(txs)
	return txs, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		tx                             domain.Transaction
		amount, fee, total, status     string
		createdAt, updatedAt, deadline time.Time
		version                        int64
	)

	if err := row.Scan(
		&tx.ID, &tx.Buyer, &tx.Seller, &amount, &tx.Description, &fee, &total,
		&status, &tx.BuyerConfirmed, &tx.SellerConfirmed, &createdAt,
		&updatedAt, &deadline, &tx.DisputeReason, &tx.DisputedBy,
		&tx.DisputedAt, &tx.CancelReason, &tx.CancelledBy, &tx.CancelledAt,
		&tx.CompletedAt, &tx.ResolvedBy, &tx.ResolutionNote, &tx.ResolvedAt,
		&version,
	); err != nil {
		return nil, err
	}

	var err error
	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	if tx.EscrowFee, err = decimal.NewFromString(fee); err != nil {
		return nil, err
	}
	if tx.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, err
	}
	st, ok := domain.TransactionStatusFromString(status)
	if !ok {
		return nil, fmt.Errorf("unknown transaction status %q", status)
	}
	tx.Status = st
	tx.CreatedAt = createdAt.UTC()
	tx.UpdatedAt = updatedAt.UTC()
	tx.CompletionDeadline = deadline.UTC()
	tx.Version = uint64(version)

	return &tx, nil
}
