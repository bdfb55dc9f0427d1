package dbbadger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"
	"github.com/tgmarket/escrowd/internal/core/domain"
	"github.com/timshannon/badgerhold/v4"
)

type transactionRepositoryImpl struct {
	store *badgerhold.Store
}

// NewTransactionRepositoryImpl returns a badger based TransactionRepository.
// Writes run in badger optimistic transactions: a concurrent write to the same
// key makes the commit fail with badger.ErrConflict, which is reported as
// domain.ErrVersionConflict.
func NewTransactionRepositoryImpl(store *badgerhold.Store) domain.TransactionRepository {
	return &transactionRepositoryImpl{store}
}

func (r *transactionRepositoryImpl) AddTransaction(
	_ context.Context, tx *domain.Transaction,
) error {
	if err := tx.Validate(); err != nil {
		return err
	}

	record := *tx.Clone()
	record.Version = 1

	err := r.store.Badger().Update(func(txn *badger.Txn) error {
		return r.store.TxInsert(txn, record.ID, record)
	})
	if err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) || errors.Is(err, badger.ErrConflict) {
			return fmt.Errorf("%w: %s", domain.ErrTransactionAlreadyExists, tx.ID)
		}
		return err
	}

	tx.Version = record.Version
	return nil
}

func (r *transactionRepositoryImpl) GetTransaction(
	_ context.Context, id string,
) (*domain.Transaction, error) {
	var tx domain.Transaction
	if err := r.store.Get(id, &tx); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, id)
		}
		return nil, err
	}
	return &tx, nil
}

func (r *transactionRepositoryImpl) CompareAndSwap(
	_ context.Context, id string, expectedVersion uint64, tx *domain.Transaction,
) error {
	if tx.ID != id {
		return fmt.Errorf("%w: transaction id mismatch", domain.ErrInvalidInput)
	}
	if err := tx.Validate(); err != nil {
		return err
	}

	record := *tx.Clone()

	err := r.store.Badger().Update(func(txn *badger.Txn) error {
		var current domain.Transaction
		if err := r.store.TxGet(txn, id, &current); err != nil {
			if errors.Is(err, badgerhold.ErrNotFound) {
				return fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, id)
			}
			return err
		}
		if current.Version != expectedVersion {
			return fmt.Errorf(
				"%w: expected version %d, got %d",
				domain.ErrVersionConflict, expectedVersion, current.Version,
			)
		}
		record.Version = current.Version + 1
		return r.store.TxUpdate(txn, id, record)
	})
	if err != nil {
		if errors.Is(err, badger.ErrConflict) {
			return fmt.Errorf("%w: %s", domain.ErrVersionConflict, err)
		}
		return err
	}

	tx.Version = record.Version
	return nil
}

func (r *transactionRepositoryImpl) GetTransactionsForParty(
	_ context.Context, party string,
) ([]domain.Transaction, error) {
	query := badgerhold.Where("Buyer").Eq(party).Or(
		badgerhold.Where("Seller").Eq(party),
	)
	return r.findTransactions(query)
}

func (r *transactionRepositoryImpl) GetAllTransactions(
	_ context.Context,
) ([]domain.Transaction, error) {
	return r.findTransactions(nil)
}

func (r *transactionRepositoryImpl) findTransactions(
	query *badgerhold.Query,
) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	if err := r.store.Find(&txs, query); err != nil {
		return nil, err
	}
	if txs == nil {
		txs = make([]domain.Transaction, 0)
	}
	domain.SortTransactions(txs)
	return txs, nil
}
