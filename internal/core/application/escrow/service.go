package escrow

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/tgmarket/escrowd/internal/core/domain"
	"github.com/tgmarket/escrowd/internal/core/ports"
)

const (
	opCreate    = "create"
	opConfirm   = "confirm"
	opComplete  = "complete"
	opDispute   = "dispute"
	opCancel    = "cancel"
	opResolve   = "resolve"
	opReconcile = "reconcile"

	effectHold    = "hold"
	effectRelease = "release"
	effectFreeze  = "freeze"
	effectRefund  = "refund"

	stateChangesBuffer = 1024
)

type stateChange struct {
	txID      string
	oldStatus domain.TransactionStatus
	newStatus domain.TransactionStatus
}

// Service is the escrow state machine. It validates every request against
// the current record, commits the transition with an optimistic
// compare-and-swap and, only once committed, drives the ledger and the
// notifier. State changes are handed to the notifier by a single goroutine,
// in commit order.
type Service struct {
	repoManager ports.RepoManager
	ledger      ports.Ledger
	notifier    ports.Notifier
	metrics     ports.Metrics
	cfg         Config

	lock    sync.RWMutex
	nowFunc func() time.Time

	queueLock    sync.RWMutex
	closed       bool
	stateChanges chan stateChange
	dispatched   chan struct{}
}

func NewService(
	repoManager ports.RepoManager,
	ledger ports.Ledger,
	notifier ports.Notifier,
	metrics ports.Metrics,
	cfg Config,
) (*Service, error) {
	if repoManager == nil {
		return nil, fmt.Errorf("missing repo manager")
	}
	if ledger == nil {
		return nil, fmt.Errorf("missing ledger")
	}
	if notifier == nil {
		return nil, fmt.Errorf("missing notifier")
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if cfg.FeeRate.Valid && cfg.FeeRate.Decimal.IsNegative() {
		return nil, fmt.Errorf("fee rate must not be negative")
	}

	svc := &Service{
		repoManager:  repoManager,
		ledger:       ledger,
		notifier:     notifier,
		metrics:      metrics,
		cfg:          cfg.withDefaults(),
		nowFunc:      time.Now,
		stateChanges: make(chan stateChange, stateChangesBuffer),
		dispatched:   make(chan struct{}),
	}
	go svc.dispatchStateChanges()

	return svc, nil
}

// Close stops accepting state changes and waits for the queued ones to be
// handed to the notifier. It is safe to call more than once.
func (s *Service) Close() {
	s.queueLock.Lock()
	if !s.closed {
		s.closed = true
		close(s.stateChanges)
	}
	s.queueLock.Unlock()

	<-s.dispatched
}

// SetNowFunc overrides the clock used to timestamp transitions.
func (s *Service) SetNowFunc(now func() time.Time) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if now == nil {
		now = time.Now
	}
	s.nowFunc = now
}

func (s *Service) now() time.Time {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.nowFunc().UTC()
}

func (s *Service) CreateTransaction(
	ctx context.Context,
	buyer, seller string, amount decimal.Decimal, description string,
) (*domain.Transaction, error) {
	tx, err := domain.NewTransaction(
		buyer, seller, amount, description,
		s.cfg.FeeRate.Decimal, s.cfg.CompletionWindow, s.now(),
	)
	if err != nil {
		return nil, err
	}

	repo := s.repoManager.TransactionRepository()
	for attempt := 0; ; attempt++ {
		err = repo.AddTransaction(ctx, tx)
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrTransactionAlreadyExists) ||
			attempt >= s.cfg.MaxRetries {
			return nil, err
		}
		tx.ID = uuid.New().String()
	}

	log.WithFields(log.Fields{
		"tx_id":  tx.ID,
		"buyer":  tx.Buyer,
		"seller": tx.Seller,
		"amount": tx.Amount.String(),
		"fee":    tx.EscrowFee.String(),
	}).Info("escrow transaction created")

	s.metrics.TransitionCommitted(
		opCreate, domain.TransactionStatusUndefined, tx.Status,
	)
	s.notify(tx.ID, domain.TransactionStatusUndefined, tx.Status)

	return tx.Clone(), nil
}

// ConfirmTransaction records the confirmation of actor acting as role
// ("buyer" or "seller"). Once both parties confirmed the funds are held.
func (s *Service) ConfirmTransaction(
	ctx context.Context, id, actor, role string,
) (domain.TransactionStatus, error) {
	partyRole, ok := domain.PartyRoleFromString(strings.ToLower(strings.TrimSpace(role)))
	if !ok {
		return domain.TransactionStatusUndefined, fmt.Errorf(
			"%w: unknown role %q", domain.ErrInvalidInput, role,
		)
	}

	now := s.now()
	tx, oldStatus, changed, err := s.mutate(
		ctx, opConfirm, id,
		func(tx *domain.Transaction) (bool, error) {
			return tx.Confirm(actor, partyRole, now)
		},
	)
	if err != nil {
		return domain.TransactionStatusUndefined, err
	}
	if changed {
		log.WithFields(log.Fields{
			"tx_id": id,
			"actor": actor,
			"role":  partyRole.String(),
		}).Debug("escrow transaction confirmation recorded")
	}

	if oldStatus != tx.Status {
		s.afterCommit(ctx, opConfirm, *tx, oldStatus)
	}
	return tx.Status, nil
}

// CompleteTransaction settles a confirmed transaction, releasing the amount
// to the seller. Only the buyer can complete.
func (s *Service) CompleteTransaction(
	ctx context.Context, id, actor string,
) (*Confirmation, error) {
	now := s.now()
	tx, oldStatus, _, err := s.mutate(
		ctx, opComplete, id,
		func(tx *domain.Transaction) (bool, error) {
			return true, tx.Complete(actor, now)
		},
	)
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, opComplete, *tx, oldStatus)
	return &Confirmation{tx.Status, msgCompleted}, nil
}

// DisputeTransaction flags a pending or confirmed transaction as disputed
// and freezes its funds.
func (s *Service) DisputeTransaction(
	ctx context.Context, id, actor, reason string,
) (*Confirmation, error) {
	now := s.now()
	tx, oldStatus, _, err := s.mutate(
		ctx, opDispute, id,
		func(tx *domain.Transaction) (bool, error) {
			return true, tx.Dispute(actor, reason, now)
		},
	)
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, opDispute, *tx, oldStatus)
	return &Confirmation{tx.Status, msgDisputed}, nil
}

// CancelTransaction cancels a pending transaction and refunds the buyer.
func (s *Service) CancelTransaction(
	ctx context.Context, id, actor, reason string,
) (*Confirmation, error) {
	now := s.now()
	tx, oldStatus, _, err := s.mutate(
		ctx, opCancel, id,
		func(tx *domain.Transaction) (bool, error) {
			return true, tx.Cancel(actor, reason, now)
		},
	)
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, opCancel, *tx, oldStatus)
	return &Confirmation{tx.Status, msgCancelled}, nil
}

// ResolveDispute settles a disputed transaction in favour of the buyer, on
// behalf of arbiter.
func (s *Service) ResolveDispute(
	ctx context.Context, id, arbiter, note string,
) (*Confirmation, error) {
	now := s.now()
	tx, oldStatus, _, err := s.mutate(
		ctx, opResolve, id,
		func(tx *domain.Transaction) (bool, error) {
			return true, tx.Refund(arbiter, note, now)
		},
	)
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, opResolve, *tx, oldStatus)
	return &Confirmation{tx.Status, msgRefunded}, nil
}

// ReconcileTransaction re-issues, in order, every ledger operation implied by
// the stored transaction: the hold once both parties confirmed, the freeze
// once disputed and the settling operation of its status. Ledger operations
// are idempotent, so this recovers from failures occurred after a commit,
// even those preventing later operations from succeeding.
func (s *Service) ReconcileTransaction(
	ctx context.Context, id string,
) (*Confirmation, error) {
	tx, err := s.repoManager.TransactionRepository().GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}

	effects := ledgerEffects(*tx)
	if len(effects) <= 0 {
		return &Confirmation{tx.Status, msgNoEffect}, nil
	}

	for _, effect := range effects {
		if err := s.applyLedgerEffect(ctx, effect, *tx); err != nil {
			s.metrics.SideEffectFailed(effect)
			log.WithError(err).WithFields(log.Fields{
				"tx_id":  id,
				"effect": effect,
			}).Warn("ledger reconciliation failed")
			return nil, fmt.Errorf("%w: %s", ErrLedgerUnavailable, err)
		}
	}

	log.WithFields(log.Fields{
		"tx_id":   id,
		"status":  tx.Status.String(),
		"effects": strings.Join(effects, ","),
	}).Info("ledger reconciled")
	return &Confirmation{tx.Status, msgReconciled}, nil
}

// GetTransaction returns the transaction with the given id. The boolean is
// false if no such transaction exists.
func (s *Service) GetTransaction(
	ctx context.Context, id string,
) (*domain.Transaction, bool, error) {
	tx, err := s.repoManager.TransactionRepository().GetTransaction(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return tx, true, nil
}

// GetTransactionsForParty returns the transactions where party is either
// buyer or seller, most recent first.
func (s *Service) GetTransactionsForParty(
	ctx context.Context, party string,
) ([]domain.Transaction, error) {
	party = strings.TrimSpace(party)
	if party == "" {
		return nil, fmt.Errorf("%w: missing party", domain.ErrInvalidInput)
	}
	return s.repoManager.TransactionRepository().GetTransactionsForParty(ctx, party)
}

// mutate applies transition to a copy of the stored transaction and commits
// it with a compare-and-swap, retrying from a fresh read whenever another
// writer got there first. The transition is re-validated against every fresh
// read. It returns the committed record, the status before the transition
// and whether anything was written.
func (s *Service) mutate(
	ctx context.Context, op, id string,
	transition func(tx *domain.Transaction) (bool, error),
) (*domain.Transaction, domain.TransactionStatus, bool, error) {
	repo := s.repoManager.TransactionRepository()

	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, backoff(attempt)); err != nil {
				return nil, domain.TransactionStatusUndefined, false, err
			}
		}

		current, err := repo.GetTransaction(ctx, id)
		if err != nil {
			return nil, domain.TransactionStatusUndefined, false, err
		}

		next := current.Clone()
		changed, err := transition(next)
		if err != nil {
			return nil, current.Status, false, err
		}
		if !changed {
			return current, current.Status, false, nil
		}

		err = repo.CompareAndSwap(ctx, id, current.Version, next)
		if err == nil {
			return next, current.Status, true, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return nil, current.Status, false, err
		}

		s.metrics.VersionConflict(op)
		log.WithFields(log.Fields{
			"tx_id":   id,
			"op":      op,
			"attempt": attempt + 1,
		}).Debug("version conflict, retrying")
	}

	return nil, domain.TransactionStatusUndefined, false, fmt.Errorf(
		"%w: %s of transaction %s", ErrContention, op, id,
	)
}

// afterCommit drives the side effects of a committed transition. Ledger
// failures are logged and counted, they never undo the transition.
func (s *Service) afterCommit(
	ctx context.Context, op string, tx domain.Transaction,
	oldStatus domain.TransactionStatus,
) {
	log.WithFields(log.Fields{
		"tx_id": tx.ID,
		"op":    op,
		"from":  oldStatus.String(),
		"to":    tx.Status.String(),
	}).Info("escrow transaction status changed")

	s.metrics.TransitionCommitted(op, oldStatus, tx.Status)

	if effect, ok := statusEffect[tx.Status]; ok {
		if err := s.applyLedgerEffect(ctx, effect, tx); err != nil {
			s.metrics.SideEffectFailed(effect)
			log.WithError(err).WithFields(log.Fields{
				"tx_id":  tx.ID,
				"effect": effect,
			}).Warn("ledger operation failed, transaction must be reconciled")
		}
	}

	s.notify(tx.ID, oldStatus, tx.Status)
}

var statusEffect = map[domain.TransactionStatus]string{
	domain.TransactionStatusConfirmed: effectHold,
	domain.TransactionStatusCompleted: effectRelease,
	domain.TransactionStatusDisputed:  effectFreeze,
	domain.TransactionStatusCancelled: effectRefund,
	domain.TransactionStatusRefunded:  effectRefund,
}

// ledgerEffects returns the ledger operations implied by the history of tx,
// in the order they were due.
func ledgerEffects(tx domain.Transaction) []string {
	effects := make([]string, 0, 3)
	if tx.BuyerConfirmed && tx.SellerConfirmed {
		effects = append(effects, effectHold)
	}
	if tx.DisputedAt != nil {
		effects = append(effects, effectFreeze)
	}
	if effect, ok := statusEffect[tx.Status]; ok && tx.Status.IsTerminal() {
		effects = append(effects, effect)
	}
	return effects
}

func (s *Service) applyLedgerEffect(
	ctx context.Context, effect string, tx domain.Transaction,
) error {
	switch effect {
	case effectHold:
		return s.ledger.Hold(ctx, tx)
	case effectRelease:
		return s.ledger.Release(ctx, tx, tx.Seller, tx.Amount)
	case effectFreeze:
		return s.ledger.Freeze(ctx, tx)
	case effectRefund:
		return s.ledger.Refund(ctx, tx, tx.Buyer, tx.TotalAmount)
	default:
		return fmt.Errorf("unknown ledger effect %s", effect)
	}
}

// notify queues the state change for the dispatcher. Changes notified after
// Close are dropped.
func (s *Service) notify(id string, oldStatus, newStatus domain.TransactionStatus) {
	s.queueLock.RLock()
	defer s.queueLock.RUnlock()

	if s.closed {
		log.WithField("tx_id", id).Warn(
			"escrow service closed, state change not notified",
		)
		return
	}
	s.stateChanges <- stateChange{id, oldStatus, newStatus}
}

func (s *Service) dispatchStateChanges() {
	defer close(s.dispatched)

	for change := range s.stateChanges {
		s.deliver(change)
	}
}

func (s *Service) deliver(change stateChange) {
	defer func() {
		if r := recover(); r != nil {
			log.Warnf("notifier panicked for transaction %s: %v", change.txID, r)
		}
	}()
	s.notifier.OnStateChange(change.txID, change.oldStatus, change.newStatus)
}

func backoff(attempt int) time.Duration {
	delay := minBackoff << uint(attempt-1)
	if delay <= 0 || delay > maxBackoff {
		delay = maxBackoff
	}
	// jitter in [delay/2, delay]
	half := int64(delay / 2)
	return time.Duration(half + rand.Int63n(half+1))
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
