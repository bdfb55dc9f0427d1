package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/tgmarket/escrowd/internal/core/domain"
	"github.com/tgmarket/escrowd/internal/core/ports"
)

var (
	// ErrFundsNotHeld is returned when settling a transaction confirmed by both
	// parties whose funds were never held.
	ErrFundsNotHeld = errors.New("funds not held in escrow")
	// ErrFundsFrozen is returned when releasing a transaction whose funds are
	// frozen by a dispute.
	ErrFundsFrozen = errors.New("funds frozen by dispute")
)

type Operation string

const (
	OperationHold    Operation = "hold"
	OperationRelease Operation = "release"
	OperationFreeze  Operation = "freeze"
	OperationRefund  Operation = "refund"
)

// Entry is a record of the ledger journal.
type Entry struct {
	Key       string
	Seq       uint64
	TxID      string
	Operation Operation
	Party     string
	Amount    decimal.Decimal
	Timestamp time.Time
}

// Bookkeeper is a ledger that keeps a journal of the operations requested by
// the escrow engine along with the resulting balances. Every operation is
// recorded at most once per transaction, repeated calls are no-ops.
//
// Balances are derived from the journal: when opened with a datadir the
// journal is persisted and replayed at startup.
type Bookkeeper struct {
	lock  sync.RWMutex
	store *journalStore

	seq      uint64
	journal  map[string]Entry
	byTx     map[string][]string
	escrowed map[string]decimal.Decimal
	frozen   map[string]bool
	balances map[string]decimal.Decimal
	revenue  decimal.Decimal

	nowFunc func() time.Time
}

// NewBookkeeper returns a Bookkeeper whose journal lives in memory only.
func NewBookkeeper() *Bookkeeper {
	return &Bookkeeper{
		journal:  make(map[string]Entry),
		byTx:     make(map[string][]string),
		escrowed: make(map[string]decimal.Decimal),
		frozen:   make(map[string]bool),
		balances: make(map[string]decimal.Decimal),
		revenue:  decimal.Zero,
		nowFunc:  time.Now,
	}
}

// NewPersistentBookkeeper returns a Bookkeeper whose journal is stored in a
// badger db under datadir. The balances are rebuilt from the stored journal.
func NewPersistentBookkeeper(
	datadir string, logger badger.Logger,
) (*Bookkeeper, error) {
	if len(datadir) <= 0 {
		return nil, fmt.Errorf("missing ledger datadir")
	}

	store, err := newJournalStore(datadir, logger)
	if err != nil {
		return nil, fmt.Errorf("opening ledger db: %w", err)
	}
	entries, err := store.entries()
	if err != nil {
		store.close()
		return nil, fmt.Errorf("loading ledger journal: %w", err)
	}

	b := NewBookkeeper()
	b.store = store
	for _, entry := range entries {
		b.apply(entry)
	}

	log.WithField("entries", len(entries)).Debug("ledger journal restored")
	return b, nil
}

var _ ports.Ledger = (*Bookkeeper)(nil)

// Hold moves the total amount of the transaction into escrow.
func (b *Bookkeeper) Hold(_ context.Context, tx domain.Transaction) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.isRecorded(tx.ID, OperationHold) {
		return nil
	}
	return b.commit(tx.ID, OperationHold, tx.Buyer, tx.TotalAmount)
}

// Release pays amount out of escrow to party, the remainder of the held
// funds is retained as escrow fee.
func (b *Bookkeeper) Release(
	_ context.Context, tx domain.Transaction, party string, amount decimal.Decimal,
) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.isRecorded(tx.ID, OperationRelease) {
		return nil
	}

	held, ok := b.escrowed[tx.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrFundsNotHeld, tx.ID)
	}
	if b.frozen[tx.ID] {
		return fmt.Errorf("%w: %s", ErrFundsFrozen, tx.ID)
	}
	if amount.GreaterThan(held) {
		return fmt.Errorf(
			"release amount %s exceeds held funds %s for %s", amount, held, tx.ID,
		)
	}

	return b.commit(tx.ID, OperationRelease, party, amount)
}

// Freeze blocks the funds held for the transaction. A transaction disputed
// before being confirmed by both parties has nothing to freeze.
func (b *Bookkeeper) Freeze(_ context.Context, tx domain.Transaction) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.isRecorded(tx.ID, OperationFreeze) {
		return nil
	}
	if err := b.requireHeld(tx); err != nil {
		return err
	}
	return b.commit(tx.ID, OperationFreeze, "", b.escrowed[tx.ID])
}

// Refund returns amount to party. Only what is actually held in escrow is
// credited: a transaction cancelled before being confirmed has nothing held.
func (b *Bookkeeper) Refund(
	_ context.Context, tx domain.Transaction, party string, amount decimal.Decimal,
) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.isRecorded(tx.ID, OperationRefund) {
		return nil
	}
	if err := b.requireHeld(tx); err != nil {
		return err
	}
	return b.commit(tx.ID, OperationRefund, party, amount)
}

// Entries returns the journal entries of the given transaction in the order
// they were recorded.
func (b *Bookkeeper) Entries(txID string) []Entry {
	b.lock.RLock()
	defer b.lock.RUnlock()

	keys := b.byTx[txID]
	entries := make([]Entry, 0, len(keys))
	for _, key := range keys {
		entries = append(entries, b.journal[key])
	}
	return entries
}

// Balance returns the funds credited to party.
func (b *Bookkeeper) Balance(party string) decimal.Decimal {
	b.lock.RLock()
	defer b.lock.RUnlock()

	if balance, ok := b.balances[party]; ok {
		return balance
	}
	return decimal.Zero
}

// Escrowed returns the funds currently held for the transaction.
func (b *Bookkeeper) Escrowed(txID string) decimal.Decimal {
	b.lock.RLock()
	defer b.lock.RUnlock()

	if held, ok := b.escrowed[txID]; ok {
		return held
	}
	return decimal.Zero
}

func (b *Bookkeeper) IsFrozen(txID string) bool {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return b.frozen[txID]
}

// Revenue returns the escrow fees retained so far.
func (b *Bookkeeper) Revenue() decimal.Decimal {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return b.revenue
}

// Close releases the journal db, if any.
func (b *Bookkeeper) Close() error {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.store == nil {
		return nil
	}
	err := b.store.close()
	b.store = nil
	return err
}

func (b *Bookkeeper) isRecorded(txID string, op Operation) bool {
	_, ok := b.journal[journalKey(txID, op)]
	return ok
}

// requireHeld fails if the transaction has been confirmed by both parties,
// hence must have its funds held, but no hold was recorded.
func (b *Bookkeeper) requireHeld(tx domain.Transaction) error {
	if !tx.BuyerConfirmed || !tx.SellerConfirmed {
		return nil
	}
	if _, ok := b.escrowed[tx.ID]; ok {
		return nil
	}
	if b.isRecorded(tx.ID, OperationHold) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrFundsNotHeld, tx.ID)
}

// commit persists the entry, if a journal db is in use, and only then
// applies it to the balances.
func (b *Bookkeeper) commit(
	txID string, op Operation, party string, amount decimal.Decimal,
) error {
	entry := Entry{
		Key:       journalKey(txID, op),
		Seq:       b.seq + 1,
		TxID:      txID,
		Operation: op,
		Party:     party,
		Amount:    amount,
		Timestamp: b.nowFunc().UTC(),
	}
	if b.store != nil {
		if err := b.store.add(entry); err != nil {
			return fmt.Errorf("recording %s of %s: %w", op, txID, err)
		}
	}
	b.apply(entry)

	log.WithFields(log.Fields{
		"tx_id":  txID,
		"op":     string(op),
		"party":  party,
		"amount": amount.String(),
	}).Debug("ledger entry recorded")
	return nil
}

// apply updates the balances with the given journal entry. It must be
// deterministic since it also replays the persisted journal.
func (b *Bookkeeper) apply(entry Entry) {
	txID := entry.TxID
	switch entry.Operation {
	case OperationHold:
		b.escrowed[txID] = entry.Amount
	case OperationRelease:
		held := b.escrowed[txID]
		b.credit(entry.Party, entry.Amount)
		b.revenue = b.revenue.Add(held.Sub(entry.Amount))
		delete(b.escrowed, txID)
	case OperationFreeze:
		b.frozen[txID] = true
	case OperationRefund:
		if held, ok := b.escrowed[txID]; ok {
			refunded := decimal.Min(held, entry.Amount)
			b.credit(entry.Party, refunded)
			b.revenue = b.revenue.Add(held.Sub(refunded))
			delete(b.escrowed, txID)
		}
		delete(b.frozen, txID)
	}

	b.journal[entry.Key] = entry
	b.byTx[txID] = append(b.byTx[txID], entry.Key)
	if entry.Seq > b.seq {
		b.seq = entry.Seq
	}
}

func (b *Bookkeeper) credit(party string, amount decimal.Decimal) {
	balance, ok := b.balances[party]
	if !ok {
		balance = decimal.Zero
	}
	b.balances[party] = balance.Add(amount)
}

func journalKey(txID string, op Operation) string {
	return fmt.Sprintf("%s/%s", txID, op)
}
