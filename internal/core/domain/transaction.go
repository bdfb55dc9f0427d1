package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// FeePrecision is the number of decimal places the escrow fee is rounded to.
	FeePrecision = 8
)

var (
	// DefaultFeeRate is the share of the amount retained as escrow fee.
	DefaultFeeRate = decimal.NewFromFloat(0.05)
	// DefaultCompletionWindow is the advisory time frame within which a
	// transaction is expected to be completed.
	DefaultCompletionWindow = 7 * 24 * time.Hour
)

// Transaction is the data structure representing an escrow agreement between
// a buyer and a seller.
type Transaction struct {
	ID          string
	Buyer       string
	Seller      string
	Amount      decimal.Decimal
	Description string
	EscrowFee   decimal.Decimal
	TotalAmount decimal.Decimal
	Status      TransactionStatus

	BuyerConfirmed  bool
	SellerConfirmed bool

	CreatedAt          time.Time
	UpdatedAt          time.Time
	CompletionDeadline time.Time

	DisputeReason string
	DisputedBy    string
	DisputedAt    *time.Time

	CancelReason string
	CancelledBy  string
	CancelledAt  *time.Time

	CompletedAt *time.Time

	ResolvedBy     string
	ResolutionNote string
	ResolvedAt     *time.Time

	// Version is assigned by the store on every write and is used to detect
	// concurrent modifications.
	Version uint64
}

// NewTransaction returns a Pending transaction with a random id, after
// validating the provided arguments and deriving fee, total and deadline.
func NewTransaction(
	buyer, seller string, amount decimal.Decimal, description string,
	feeRate decimal.Decimal, completionWindow time.Duration, now time.Time,
) (*Transaction, error) {
	buyer = strings.TrimSpace(buyer)
	seller = strings.TrimSpace(seller)

	if buyer == "" || seller == "" {
		return nil, fmt.Errorf("%w: buyer and seller must not be empty", ErrInvalidInput)
	}
	if buyer == seller {
		return nil, fmt.Errorf("%w: buyer and seller must differ", ErrInvalidInput)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if feeRate.IsNegative() {
		return nil, fmt.Errorf("%w: fee rate must not be negative", ErrInvalidInput)
	}

	fee := amount.Mul(feeRate).Round(FeePrecision)
	createdAt := now.UTC()

	return &Transaction{
		ID:                 uuid.New().String(),
		Buyer:              buyer,
		Seller:             seller,
		Amount:             amount,
		Description:        strings.TrimSpace(description),
		EscrowFee:          fee,
		TotalAmount:        amount.Add(fee),
		Status:             TransactionStatusPending,
		CreatedAt:          createdAt,
		UpdatedAt:          createdAt,
		CompletionDeadline: createdAt.Add(completionWindow),
	}, nil
}

// Confirm records the confirmation of the party identified by role. Once both
// buyer and seller confirmed, the transaction moves to the Confirmed status.
// Confirming again by an already confirmed party is a no-op, in which case
// the returned flag is false.
func (t *Transaction) Confirm(
	actor string, role PartyRole, now time.Time,
) (bool, error) {
	if t.Status.IsTerminal() {
		return false, t.invalidState("confirm")
	}

	switch role {
	case PartyRoleBuyer:
		if actor != t.Buyer {
			return false, fmt.Errorf("%w: actor is not the buyer", ErrUnauthorized)
		}
	case PartyRoleSeller:
		if actor != t.Seller {
			return false, fmt.Errorf("%w: actor is not the seller", ErrUnauthorized)
		}
	default:
		return false, fmt.Errorf("%w: unknown party role", ErrUnauthorized)
	}

	if !t.IsPending() {
		return false, t.invalidState("confirm")
	}

	if role == PartyRoleBuyer {
		if t.BuyerConfirmed {
			return false, nil
		}
		t.BuyerConfirmed = true
	} else {
		if t.SellerConfirmed {
			return false, nil
		}
		t.SellerConfirmed = true
	}

	if t.BuyerConfirmed && t.SellerConfirmed {
		t.Status = TransactionStatusConfirmed
	}
	t.UpdatedAt = now.UTC()
	return true, nil
}

// Complete brings a Confirmed transaction to the Completed status. Only the
// buyer is allowed to complete.
func (t *Transaction) Complete(actor string, now time.Time) error {
	if t.Status.IsTerminal() {
		return t.invalidState("complete")
	}
	if actor != t.Buyer {
		return fmt.Errorf("%w: only the buyer can complete the transaction", ErrUnauthorized)
	}
	if !t.IsConfirmed() {
		return t.invalidState("complete")
	}

	ts := now.UTC()
	t.Status = TransactionStatusCompleted
	t.CompletedAt = &ts
	t.UpdatedAt = ts
	return nil
}

// Dispute flags a Pending or Confirmed transaction as Disputed. Either party
// can raise a dispute, and a reason is mandatory.
func (t *Transaction) Dispute(actor, reason string, now time.Time) error {
	if t.Status.IsTerminal() {
		return t.invalidState("dispute")
	}
	if !t.IsParty(actor) {
		return fmt.Errorf("%w: actor is not a party of the transaction", ErrUnauthorized)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return fmt.Errorf("%w: dispute reason must not be empty", ErrInvalidInput)
	}
	if !t.IsPending() && !t.IsConfirmed() {
		return t.invalidState("dispute")
	}

	ts := now.UTC()
	t.Status = TransactionStatusDisputed
	t.DisputeReason = reason
	t.DisputedBy = actor
	t.DisputedAt = &ts
	t.UpdatedAt = ts
	return nil
}

// Cancel brings a Pending transaction to the Cancelled status. Either party
// can cancel, the reason is optional.
func (t *Transaction) Cancel(actor, reason string, now time.Time) error {
	if t.Status.IsTerminal() {
		return t.invalidState("cancel")
	}
	if !t.IsParty(actor) {
		return fmt.Errorf("%w: actor is not a party of the transaction", ErrUnauthorized)
	}
	if !t.IsPending() {
		return t.invalidState("cancel")
	}

	ts := now.UTC()
	t.Status = TransactionStatusCancelled
	t.CancelReason = strings.TrimSpace(reason)
	t.CancelledBy = actor
	t.CancelledAt = &ts
	t.UpdatedAt = ts
	return nil
}

// Refund settles a Disputed transaction in favour of the buyer, as decided by
// an external arbiter.
func (t *Transaction) Refund(arbiter, note string, now time.Time) error {
	if t.Status.IsTerminal() {
		return t.invalidState("refund")
	}
	arbiter = strings.TrimSpace(arbiter)
	if arbiter == "" {
		return fmt.Errorf("%w: arbiter must not be empty", ErrInvalidInput)
	}
	if !t.IsDisputed() {
		return t.invalidState("refund")
	}

	ts := now.UTC()
	t.Status = TransactionStatusRefunded
	t.ResolvedBy = arbiter
	t.ResolutionNote = strings.TrimSpace(note)
	t.ResolvedAt = &ts
	t.UpdatedAt = ts
	return nil
}

// IsParty returns whether actor is either the buyer or the seller.
func (t *Transaction) IsParty(actor string) bool {
	return actor != "" && (actor == t.Buyer || actor == t.Seller)
}

// IsPending returns whether the transaction is in Pending status.
func (t *Transaction) IsPending() bool {
	return t.Status == TransactionStatusPending
}

// IsConfirmed returns whether the transaction is in Confirmed status.
func (t *Transaction) IsConfirmed() bool {
	return t.Status == TransactionStatusConfirmed
}

// IsCompleted returns whether the transaction is in Completed status.
func (t *Transaction) IsCompleted() bool {
	return t.Status == TransactionStatusCompleted
}

// IsDisputed returns whether the transaction is in Disputed status.
func (t *Transaction) IsDisputed() bool {
	return t.Status == TransactionStatusDisputed
}

// IsOverdue returns whether the advisory completion deadline has passed for a
// transaction that is not settled yet.
func (t *Transaction) IsOverdue(now time.Time) bool {
	if t.Status.IsTerminal() || t.CompletionDeadline.IsZero() {
		return false
	}
	return now.After(t.CompletionDeadline)
}

// Validate checks the invariants that must hold for every stored record.
func (t *Transaction) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: nil transaction", ErrInvalidInput)
	}
	if t.ID == "" {
		return fmt.Errorf("%w: missing transaction id", ErrInvalidInput)
	}
	if t.Buyer == "" || t.Seller == "" || t.Buyer == t.Seller {
		return fmt.Errorf("%w: buyer and seller must be set and differ", ErrInvalidInput)
	}
	if !t.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if !t.TotalAmount.Equal(t.Amount.Add(t.EscrowFee)) {
		return fmt.Errorf("%w: total amount does not match amount plus fee", ErrInvalidInput)
	}
	if !t.Status.Valid() {
		return fmt.Errorf("%w: invalid status %d", ErrInvalidInput, t.Status)
	}
	bothConfirmed := t.BuyerConfirmed && t.SellerConfirmed
	if t.IsPending() && bothConfirmed {
		return fmt.Errorf("%w: pending transaction confirmed by both parties", ErrInvalidInput)
	}
	if (t.IsConfirmed() || t.IsCompleted()) && !bothConfirmed {
		return fmt.Errorf("%w: %s transaction lacks confirmations", ErrInvalidInput, t.Status)
	}
	return nil
}

// Clone returns a deep copy of the transaction so that callers can mutate it
// without affecting the original.
func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	clone := *t
	clone.DisputedAt = cloneTime(t.DisputedAt)
	clone.CancelledAt = cloneTime(t.CancelledAt)
	clone.CompletedAt = cloneTime(t.CompletedAt)
	clone.ResolvedAt = cloneTime(t.ResolvedAt)
	return &clone
}

func (t *Transaction) invalidState(op string) error {
	return fmt.Errorf("%w: cannot %s transaction in status %s", ErrInvalidState, op, t.Status)
}

func cloneTime(ts *time.Time) *time.Time {
	if ts == nil {
		return nil
	}
	v := *ts
	return &v
}
