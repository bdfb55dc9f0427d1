package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tgmarket/escrowd/internal/core/domain"
)

func TestTransactionStatusTransitions(t *testing.T) {
	tests := []struct {
		from    domain.TransactionStatus
		allowed []domain.TransactionStatus
	}{
		{domain.TransactionStatusUndefined, []domain.TransactionStatus{
			domain.TransactionStatusPending,
		}},
		{domain.TransactionStatusPending, []domain.TransactionStatus{
			domain.TransactionStatusConfirmed,
			domain.TransactionStatusDisputed,
			domain.TransactionStatusCancelled,
		}},
		{domain.TransactionStatusConfirmed, []domain.TransactionStatus{
			domain.TransactionStatusCompleted,
			domain.TransactionStatusDisputed,
		}},
		{domain.TransactionStatusDisputed, []domain.TransactionStatus{
			domain.TransactionStatusRefunded,
		}},
		{domain.TransactionStatusCompleted, nil},
		{domain.TransactionStatusCancelled, nil},
		{domain.TransactionStatusRefunded, nil},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.from.String(), func(t *testing.T) {
			for _, next := range domain.AllTransactionStatuses() {
				expected := false
				for _, st := range tt.allowed {
					if st == next {
						expected = true
					}
				}
				require.Equal(
					t, expected, tt.from.CanTransitionTo(next), "%s -> %s", tt.from, next,
				)
			}
			require.Equal(t, len(tt.allowed) == 0, tt.from.IsTerminal())
		})
	}
}

func TestTransactionStatusText(t *testing.T) {
	for _, status := range domain.AllTransactionStatuses() {
		require.True(t, status.Valid())

		buf, err := json.Marshal(status)
		require.NoError(t, err)
		require.Equal(t, `"`+status.String()+`"`, string(buf))

		var parsed domain.TransactionStatus
		require.NoError(t, json.Unmarshal(buf, &parsed))
		require.Equal(t, status, parsed)
	}

	require.False(t, domain.TransactionStatusUndefined.Valid())
	require.Equal(t, "UNKNOWN(42)", domain.TransactionStatus(42).String())

	var status domain.TransactionStatus
	require.Error(t, json.Unmarshal([]byte(`"SHIPPED"`), &status))
}

func TestPartyRoleFromString(t *testing.T) {
	tests := []struct {
		str      string
		expected domain.PartyRole
		ok       bool
	}{
		{"buyer", domain.PartyRoleBuyer, true},
		{"seller", domain.PartyRoleSeller, true},
		{"arbiter", domain.PartyRoleUnspecified, false},
		{"", domain.PartyRoleUnspecified, false},
	}

	for _, tt := range tests {
		role, ok := domain.PartyRoleFromString(tt.str)
		require.Equal(t, tt.expected, role)
		require.Equal(t, tt.ok, ok)
		if ok {
			require.Equal(t, tt.str, role.String())
		}
	}
}
