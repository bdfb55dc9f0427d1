package domain

import (
	"context"
	"sort"
)

// TransactionRepository is the abstraction for any kind of database intended
// to persist escrow transactions. Every write assigns a new, strictly greater
// Version to the stored record.
type TransactionRepository interface {
	// AddTransaction stores a new transaction. It returns
	// ErrTransactionAlreadyExists if the id is already in use. On success the
	// version of the given transaction is updated with the stored one.
	AddTransaction(ctx context.Context, tx *Transaction) error
	// GetTransaction returns the transaction with the given id, or
	// ErrTransactionNotFound.
	GetTransaction(ctx context.Context, id string) (*Transaction, error)
	// CompareAndSwap replaces the stored transaction only if its version still
	// equals expectedVersion, otherwise it returns ErrVersionConflict. On
	// success the version of the given transaction is updated with the stored
	// one.
	CompareAndSwap(
		ctx context.Context, id string, expectedVersion uint64, tx *Transaction,
	) error
	// GetTransactionsForParty returns all transactions where party is either
	// buyer or seller, most recent first.
	GetTransactionsForParty(ctx context.Context, party string) ([]Transaction, error)
	// GetAllTransactions returns every stored transaction, most recent first.
	GetAllTransactions(ctx context.Context) ([]Transaction, error)
}

// SortTransactions orders the list by creation time, most recent first. Ties
// are broken by id so that the order is deterministic.
func SortTransactions(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if txs[i].CreatedAt.Equal(txs[j].CreatedAt) {
			return txs[i].ID < txs[j].ID
		}
		return txs[i].CreatedAt.After(txs[j].CreatedAt)
	})
}
