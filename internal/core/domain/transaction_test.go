package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/tgmarket/escrowd/internal/core/domain"
)

const (
	buyer  = "alice"
	seller = "bob"
)

var now = time.Date(2023, 6, 1, 10, 0, 0, 0, time.UTC)

func TestNewTransaction(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		tests := []struct {
			amount        string
			feeRate       string
			expectedFee   string
			expectedTotal string
		}{
			{"100", "0.05", "5", "105"},
			{"0.01", "0.05", "0.0005", "0.0105"},
			{"0.000001", "0.05", "0.00000005", "0.00000105"},
			{"0.0000001", "0.05", "0.00000001", "0.00000011"},
			{"250", "0", "0", "250"},
			{"10", "0.025", "0.25", "10.25"},
		}

		for _, tt := range tests {
			tt := tt
			t.Run(tt.amount+"@"+tt.feeRate, func(t *testing.T) {
				tx, err := domain.NewTransaction(
					" "+buyer+" ", seller, decimal.RequireFromString(tt.amount),
					" lamp ", decimal.RequireFromString(tt.feeRate),
					domain.DefaultCompletionWindow, now,
				)
				require.NoError(t, err)
				require.NotEmpty(t, tx.ID)
				require.Equal(t, buyer, tx.Buyer)
				require.Equal(t, "lamp", tx.Description)
				require.Equal(t, domain.TransactionStatusPending, tx.Status)
				require.True(t, decimal.RequireFromString(tt.expectedFee).Equal(tx.EscrowFee))
				require.True(t, decimal.RequireFromString(tt.expectedTotal).Equal(tx.TotalAmount))
				require.True(t, tx.TotalAmount.Equal(tx.Amount.Add(tx.EscrowFee)))
				require.Equal(t, now, tx.CreatedAt)
				require.Equal(t, now, tx.UpdatedAt)
				require.Equal(t, now.Add(7*24*time.Hour), tx.CompletionDeadline)
				require.False(t, tx.BuyerConfirmed)
				require.False(t, tx.SellerConfirmed)
				require.NoError(t, tx.Validate())
			})
		}
	})

	t.Run("invalid", func(t *testing.T) {
		tests := []struct {
			name    string
			buyer   string
			seller  string
			amount  decimal.Decimal
			feeRate decimal.Decimal
		}{
			{"empty buyer", "", seller, decimal.NewFromInt(1), domain.DefaultFeeRate},
			{"blank seller", buyer, "   ", decimal.NewFromInt(1), domain.DefaultFeeRate},
			{"same party", buyer, buyer, decimal.NewFromInt(1), domain.DefaultFeeRate},
			{"same party after trim", buyer, " " + buyer, decimal.NewFromInt(1), domain.DefaultFeeRate},
			{"zero amount", buyer, seller, decimal.Zero, domain.DefaultFeeRate},
			{"negative amount", buyer, seller, decimal.NewFromInt(-5), domain.DefaultFeeRate},
			{"negative fee rate", buyer, seller, decimal.NewFromInt(1), decimal.NewFromFloat(-0.1)},
		}

		for _, tt := range tests {
			tt := tt
			t.Run(tt.name, func(t *testing.T) {
				tx, err := domain.NewTransaction(
					tt.buyer, tt.seller, tt.amount, "", tt.feeRate,
					domain.DefaultCompletionWindow, now,
				)
				require.Nil(t, tx)
				require.True(t, errors.Is(err, domain.ErrInvalidInput), err)
			})
		}
	})
}

func TestConfirm(t *testing.T) {
	t.Run("mutual confirmation", func(t *testing.T) {
		tx := newTestTransaction(t)
		later := now.Add(time.Minute)

		changed, err := tx.Confirm(seller, domain.PartyRoleSeller, later)
		require.NoError(t, err)
		require.True(t, changed)
		require.Equal(t, domain.TransactionStatusPending, tx.Status)
		require.True(t, tx.SellerConfirmed)
		require.Equal(t, later, tx.UpdatedAt)

		changed, err = tx.Confirm(seller, domain.PartyRoleSeller, later)
		require.NoError(t, err)
		require.False(t, changed)

		changed, err = tx.Confirm(buyer, domain.PartyRoleBuyer, later)
		require.NoError(t, err)
		require.True(t, changed)
		require.Equal(t, domain.TransactionStatusConfirmed, tx.Status)
		require.NoError(t, tx.Validate())
	})

	t.Run("invalid", func(t *testing.T) {
		tests := []struct {
			name        string
			prepare     func(tx *domain.Transaction)
			actor       string
			role        domain.PartyRole
			expectedErr error
		}{
			{"seller as buyer", nil, seller, domain.PartyRoleBuyer, domain.ErrUnauthorized},
			{"buyer as seller", nil, buyer, domain.PartyRoleSeller, domain.ErrUnauthorized},
			{"stranger", nil, "carol", domain.PartyRoleBuyer, domain.ErrUnauthorized},
			{"unspecified role", nil, buyer, domain.PartyRoleUnspecified, domain.ErrUnauthorized},
			{"confirmed", confirm, buyer, domain.PartyRoleBuyer, domain.ErrInvalidState},
			{"cancelled", cancel, buyer, domain.PartyRoleBuyer, domain.ErrInvalidState},
			{"disputed", dispute, seller, domain.PartyRoleSeller, domain.ErrInvalidState},
		}

		for _, tt := range tests {
			tt := tt
			t.Run(tt.name, func(t *testing.T) {
				tx := newTestTransaction(t)
				if tt.prepare != nil {
					tt.prepare(tx)
				}
				before := *tx.Clone()

				changed, err := tx.Confirm(tt.actor, tt.role, now.Add(time.Hour))
				require.False(t, changed)
				require.True(t, errors.Is(err, tt.expectedErr), err)
				require.Equal(t, before, *tx)
			})
		}
	})
}

func TestComplete(t *testing.T) {
	tx := newTestTransaction(t)
	require.True(t, errors.Is(tx.Complete(buyer, now), domain.ErrInvalidState))

	confirm(tx)
	require.True(t, errors.Is(tx.Complete(seller, now), domain.ErrUnauthorized))

	later := now.Add(time.Hour)
	require.NoError(t, tx.Complete(buyer, later))
	require.Equal(t, domain.TransactionStatusCompleted, tx.Status)
	require.Equal(t, later, *tx.CompletedAt)
	require.True(t, tx.Status.IsTerminal())
	require.NoError(t, tx.Validate())
}

func TestDispute(t *testing.T) {
	t.Run("from pending and confirmed", func(t *testing.T) {
		for _, prepare := range []func(*domain.Transaction){nil, confirm} {
			tx := newTestTransaction(t)
			if prepare != nil {
				prepare(tx)
			}
			require.NoError(t, tx.Dispute(seller, "  damaged item ", now))
			require.Equal(t, domain.TransactionStatusDisputed, tx.Status)
			require.Equal(t, "damaged item", tx.DisputeReason)
			require.Equal(t, seller, tx.DisputedBy)
			require.NotNil(t, tx.DisputedAt)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		tests := []struct {
			name        string
			prepare     func(tx *domain.Transaction)
			actor       string
			reason      string
			expectedErr error
		}{
			{"stranger", nil, "carol", "reason", domain.ErrUnauthorized},
			{"empty reason", nil, buyer, " ", domain.ErrInvalidInput},
			{"already disputed", dispute, buyer, "reason", domain.ErrInvalidState},
			{"cancelled", cancel, buyer, "reason", domain.ErrInvalidState},
			{"completed", complete, buyer, "reason", domain.ErrInvalidState},
		}

		for _, tt := range tests {
			tt := tt
			t.Run(tt.name, func(t *testing.T) {
				tx := newTestTransaction(t)
				if tt.prepare != nil {
					tt.prepare(tx)
				}
				err := tx.Dispute(tt.actor, tt.reason, now)
				require.True(t, errors.Is(err, tt.expectedErr), err)
			})
		}
	})
}

func TestCancel(t *testing.T) {
	tx := newTestTransaction(t)
	require.True(t, errors.Is(tx.Cancel("carol", "", now), domain.ErrUnauthorized))

	require.NoError(t, tx.Cancel(buyer, "", now))
	require.Equal(t, domain.TransactionStatusCancelled, tx.Status)
	require.Equal(t, buyer, tx.CancelledBy)
	require.Empty(t, tx.CancelReason)

	confirmed := newTestTransaction(t)
	confirm(confirmed)
	require.True(t, errors.Is(confirmed.Cancel(buyer, "", now), domain.ErrInvalidState))
}

func TestRefund(t *testing.T) {
	tx := newTestTransaction(t)
	require.True(t, errors.Is(tx.Refund("support", "", now), domain.ErrInvalidState))

	dispute(tx)
	require.True(t, errors.Is(tx.Refund(" ", "", now), domain.ErrInvalidInput))

	require.NoError(t, tx.Refund("support", "refund approved", now))
	require.Equal(t, domain.TransactionStatusRefunded, tx.Status)
	require.Equal(t, "support", tx.ResolvedBy)
	require.Equal(t, "refund approved", tx.ResolutionNote)
	require.NotNil(t, tx.ResolvedAt)
}

func TestTerminalImmutability(t *testing.T) {
	terminal := map[string]func(*domain.Transaction){
		"completed": complete,
		"cancelled": cancel,
		"refunded": func(tx *domain.Transaction) {
			dispute(tx)
			//nolint
			tx.Refund("support", "", now)
		},
	}

	for name, prepare := range terminal {
		prepare := prepare
		t.Run(name, func(t *testing.T) {
			tx := newTestTransaction(t)
			prepare(tx)
			before := *tx.Clone()

			_, err := tx.Confirm(buyer, domain.PartyRoleBuyer, now)
			require.True(t, errors.Is(err, domain.ErrInvalidState))
			require.True(t, errors.Is(tx.Complete(buyer, now), domain.ErrInvalidState))
			require.True(t, errors.Is(tx.Dispute(buyer, "reason", now), domain.ErrInvalidState))
			require.True(t, errors.Is(tx.Cancel(buyer, "", now), domain.ErrInvalidState))
			require.True(t, errors.Is(tx.Refund("support", "", now), domain.ErrInvalidState))
			require.Equal(t, before, *tx)
		})
	}
}

func TestIsOverdue(t *testing.T) {
	tx := newTestTransaction(t)
	require.False(t, tx.IsOverdue(now))
	require.False(t, tx.IsOverdue(tx.CompletionDeadline))
	require.True(t, tx.IsOverdue(tx.CompletionDeadline.Add(time.Second)))

	cancel(tx)
	require.False(t, tx.IsOverdue(tx.CompletionDeadline.Add(time.Second)))
}

func TestClone(t *testing.T) {
	tx := newTestTransaction(t)
	dispute(tx)

	clone := tx.Clone()
	require.Equal(t, *tx, *clone)

	*clone.DisputedAt = clone.DisputedAt.Add(time.Hour)
	clone.Status = domain.TransactionStatusRefunded
	require.NotEqual(t, *tx.DisputedAt, *clone.DisputedAt)
	require.Equal(t, domain.TransactionStatusDisputed, tx.Status)

	var nilTx *domain.Transaction
	require.Nil(t, nilTx.Clone())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(tx *domain.Transaction)
	}{
		{"missing id", func(tx *domain.Transaction) { tx.ID = "" }},
		{"same parties", func(tx *domain.Transaction) { tx.Seller = tx.Buyer }},
		{"non positive amount", func(tx *domain.Transaction) { tx.Amount = decimal.Zero }},
		{"wrong total", func(tx *domain.Transaction) { tx.TotalAmount = tx.Amount }},
		{"unknown status", func(tx *domain.Transaction) { tx.Status = domain.TransactionStatus(42) }},
		{"pending confirmed by both", func(tx *domain.Transaction) {
			tx.BuyerConfirmed, tx.SellerConfirmed = true, true
		}},
		{"confirmed lacking confirmations", func(tx *domain.Transaction) {
			tx.Status = domain.TransactionStatusConfirmed
		}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			tx := newTestTransaction(t)
			tt.modify(tx)
			require.True(t, errors.Is(tx.Validate(), domain.ErrInvalidInput))
		})
	}

	var nilTx *domain.Transaction
	require.Error(t, nilTx.Validate())
}

func newTestTransaction(t *testing.T) *domain.Transaction {
	t.Helper()

	tx, err := domain.NewTransaction(
		buyer, seller, decimal.NewFromInt(100), "lamp", domain.DefaultFeeRate,
		domain.DefaultCompletionWindow, now,
	)
	require.NoError(t, err)
	return tx
}

//nolint
func confirm(tx *domain.Transaction) {
	tx.Confirm(buyer, domain.PartyRoleBuyer, now)
	tx.Confirm(seller, domain.PartyRoleSeller, now)
}

//nolint
func cancel(tx *domain.Transaction) {
	tx.Cancel(buyer, "changed my mind", now)
}

//nolint
func dispute(tx *domain.Transaction) {
	tx.Dispute(buyer, "never shipped", now)
}

//nolint
func complete(tx *domain.Transaction) {
	confirm(tx)
	tx.Complete(buyer, now)
}
