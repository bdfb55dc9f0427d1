package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tgmarket/escrowd/internal/core/domain"
	"github.com/tgmarket/escrowd/internal/core/ports"
)

// Snapshot is a point in time summary of all escrow transactions.
type Snapshot struct {
	TotalTransactions       int
	TotalVolume             decimal.Decimal
	TotalFees               decimal.Decimal
	CompletionRate          decimal.Decimal
	DisputeRate             decimal.Decimal
	AverageTransactionValue decimal.Decimal
	// OverdueTransactions counts unsettled transactions past their advisory
	// completion deadline.
	OverdueTransactions int
	StatusCounts        map[domain.TransactionStatus]int
}

// Service aggregates statistics over the transaction store. It never writes.
type Service struct {
	repoManager ports.RepoManager
	nowFunc     func() time.Time
}

func NewService(repoManager ports.RepoManager) (*Service, error) {
	if repoManager == nil {
		return nil, fmt.Errorf("missing repo manager")
	}
	return &Service{repoManager, time.Now}, nil
}

// Snapshot computes the statistics over every stored transaction. Rates are
// relative to the total number of transactions and are zero if there is none.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	txs, err := s.repoManager.TransactionRepository().GetAllTransactions(ctx)
	if err != nil {
		return nil, err
	}

	snapshot := &Snapshot{
		TotalTransactions:       len(txs),
		TotalVolume:             decimal.Zero,
		TotalFees:               decimal.Zero,
		CompletionRate:          decimal.Zero,
		DisputeRate:             decimal.Zero,
		AverageTransactionValue: decimal.Zero,
		StatusCounts:            make(map[domain.TransactionStatus]int),
	}
	for _, st := range domain.AllTransactionStatuses() {
		snapshot.StatusCounts[st] = 0
	}

	if len(txs) == 0 {
		return snapshot, nil
	}

	now := s.nowFunc()
	for _, tx := range txs {
		snapshot.TotalVolume = snapshot.TotalVolume.Add(tx.Amount)
		snapshot.TotalFees = snapshot.TotalFees.Add(tx.EscrowFee)
		snapshot.StatusCounts[tx.Status]++
		if tx.IsOverdue(now) {
			snapshot.OverdueTransactions++
		}
	}

	total := decimal.NewFromInt(int64(len(txs)))
	snapshot.CompletionRate = decimal.NewFromInt(
		int64(snapshot.StatusCounts[domain.TransactionStatusCompleted]),
	).Div(total)
	snapshot.DisputeRate = decimal.NewFromInt(
		int64(snapshot.StatusCounts[domain.TransactionStatusDisputed]),
	).Div(total)
	snapshot.AverageTransactionValue = snapshot.TotalVolume.Div(total)

	return snapshot, nil
}
