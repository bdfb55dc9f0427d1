package escrow_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/tgmarket/escrowd/internal/core/domain"
	"github.com/tgmarket/escrowd/internal/core/ports"
	ledgerinfra "github.com/tgmarket/escrowd/internal/infrastructure/ledger"
)

// **** Ledger ****

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) Hold(ctx context.Context, tx domain.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *mockLedger) Release(
	ctx context.Context, tx domain.Transaction, party string, amount decimal.Decimal,
) error {
	args := m.Called(ctx, tx, party, amount)
	return args.Error(0)
}

func (m *mockLedger) Freeze(ctx context.Context, tx domain.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *mockLedger) Refund(
	ctx context.Context, tx domain.Transaction, party string, amount decimal.Decimal,
) error {
	args := m.Called(ctx, tx, party, amount)
	return args.Error(0)
}

// flakyLedger is a Bookkeeper whose first Hold of every transaction fails.
type flakyLedger struct {
	*ledgerinfra.Bookkeeper

	lock   sync.Mutex
	failed map[string]bool
}

func newFlakyLedger() *flakyLedger {
	return &flakyLedger{
		Bookkeeper: ledgerinfra.NewBookkeeper(),
		failed:     make(map[string]bool),
	}
}

func (l *flakyLedger) Hold(ctx context.Context, tx domain.Transaction) error {
	l.lock.Lock()
	first := !l.failed[tx.ID]
	l.failed[tx.ID] = true
	l.lock.Unlock()

	if first {
		return errors.New("ledger offline")
	}
	return l.Bookkeeper.Hold(ctx, tx)
}

// **** Notifier ****

type stateChange struct {
	txID      string
	oldStatus domain.TransactionStatus
	newStatus domain.TransactionStatus
}

type notifierRecorder struct {
	changes chan stateChange
}

func newNotifierRecorder() *notifierRecorder {
	return &notifierRecorder{make(chan stateChange, 100)}
}

func (n *notifierRecorder) OnStateChange(
	txID string, oldStatus, newStatus domain.TransactionStatus,
) {
	n.changes <- stateChange{txID, oldStatus, newStatus}
}

func (n *notifierRecorder) next(timeout time.Duration) (stateChange, error) {
	select {
	case c := <-n.changes:
		return c, nil
	case <-time.After(timeout):
		return stateChange{}, fmt.Errorf("no state change notified within %s", timeout)
	}
}

// slowNotifier takes less time to handle every following state change.
type slowNotifier struct {
	*notifierRecorder
	count int32
}

func (n *slowNotifier) OnStateChange(
	txID string, oldStatus, newStatus domain.TransactionStatus,
) {
	count := atomic.AddInt32(&n.count, 1)
	if delay := 20 - 5*int(count); delay > 0 {
		time.Sleep(time.Duration(delay) * time.Millisecond)
	}
	n.notifierRecorder.OnStateChange(txID, oldStatus, newStatus)
}

// **** Metrics ****

type mockMetrics struct {
	mock.Mock
}

func (m *mockMetrics) TransitionCommitted(op string, from, to domain.TransactionStatus) {
	m.Called(op, from, to)
}

func (m *mockMetrics) VersionConflict(op string) {
	m.Called(op)
}

func (m *mockMetrics) SideEffectFailed(effect string) {
	m.Called(effect)
}

// **** Repositories ****

// conflictingRepoManager wraps a RepoManager making every compare-and-swap
// fail with a version conflict.
type conflictingRepoManager struct {
	ports.RepoManager
}

func (r conflictingRepoManager) TransactionRepository() domain.TransactionRepository {
	return conflictingRepository{r.RepoManager.TransactionRepository()}
}

type conflictingRepository struct {
	domain.TransactionRepository
}

func (r conflictingRepository) CompareAndSwap(
	_ context.Context, id string, _ uint64, _ *domain.Transaction,
) error {
	return fmt.Errorf("%w: %s", domain.ErrVersionConflict, id)
}
