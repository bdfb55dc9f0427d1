package db_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/tgmarket/escrowd/internal/core/domain"
)

var baseTime = time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)

func makeRandomTransaction(
	t *testing.T, buyer, seller string, createdAt time.Time,
) *domain.Transaction {
	tx, err := domain.NewTransaction(
		buyer, seller, decimal.RequireFromString("100.5"),
		"vintage lamp", domain.DefaultFeeRate, domain.DefaultCompletionWindow,
		createdAt,
	)
	require.NoError(t, err)
	return tx
}

func randomParty(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.New().String())
}
