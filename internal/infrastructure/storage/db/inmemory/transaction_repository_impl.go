package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/tgmarket/escrowd/internal/core/domain"
)

type transactionInmemoryStore struct {
	transactions        map[string]domain.Transaction
	transactionsByParty map[string][]string
	locker              *sync.RWMutex
}

type transactionRepositoryImpl struct {
	store *transactionInmemoryStore
}

// NewTransactionRepositoryImpl returns a new inmemory TransactionRepository
// implementation. The lock is held only for the duration of a single map
// operation, never across a read-modify-write cycle of the caller.
func NewTransactionRepositoryImpl() domain.TransactionRepository {
	return &transactionRepositoryImpl{
		store: &transactionInmemoryStore{
			transactions:        make(map[string]domain.Transaction),
			transactionsByParty: make(map[string][]string),
			locker:              &sync.RWMutex{},
		},
	}
}

func (r *transactionRepositoryImpl) AddTransaction(
	_ context.Context, tx *domain.Transaction,
) error {
	if err := tx.Validate(); err != nil {
		return err
	}

	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	if _, ok := r.store.transactions[tx.ID]; ok {
		return fmt.Errorf("%w: %s", domain.ErrTransactionAlreadyExists, tx.ID)
	}

	tx.Version = 1
	r.store.transactions[tx.ID] = *tx.Clone()
	r.addTransactionByParty(tx.Buyer, tx.ID)
	r.addTransactionByParty(tx.Seller, tx.ID)
	return nil
}

func (r *transactionRepositoryImpl) GetTransaction(
	_ context.Context, id string,
) (*domain.Transaction, error) {
	r.store.locker.RLock()
	defer r.store.locker.RUnlock()

	tx, ok := r.store.transactions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, id)
	}
	return tx.Clone(), nil
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

	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	current, ok := r.store.transactions[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, id)
	}
	if current.Version != expectedVersion {
		return fmt.Errorf(
			"%w: expected version %d, got %d",
			domain.ErrVersionConflict, expectedVersion, current.Version,
		)
	}

	tx.Version = current.Version + 1
	r.store.transactions[id] = *tx.Clone()
	return nil
}

func (r *transactionRepositoryImpl) GetTransactionsForParty(
	_ context.Context, party string,
) ([]domain.Transaction, error) {
	r.store.locker.RLock()
	defer r.store.locker.RUnlock()

	ids := r.store.transactionsByParty[party]
	txs := make([]domain.Transaction, 0, len(ids))
	for _, id := range ids {
		tx := r.store.transactions[id]
		txs = append(txs, *tx.Clone())
	}
	domain.SortTransactions(txs)
	return txs, nil
}

func (r *transactionRepositoryImpl) GetAllTransactions(
	_ context.Context,
) ([]domain.Transaction, error) {
	r.store.locker.RLock()
	defer r.store.locker.RUnlock()

	txs := make([]domain.Transaction, 0, len(r.store.transactions))
	for _, tx := range r.store.transactions {
		txs = append(txs, *tx.Clone())
	}
	domain.SortTransactions(txs)
	return txs, nil
}

func (r *transactionRepositoryImpl) addTransactionByParty(party, id string) {
	ids := r.store.transactionsByParty[party]
	for _, v := range ids {
		if v == id {
			return
		}
	}
	r.store.transactionsByParty[party] = append(ids, id)
}
