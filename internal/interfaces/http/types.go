package httpinterface

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tgmarket/escrowd/internal/core/application/escrow"
	"github.com/tgmarket/escrowd/internal/core/application/stats"
	"github.com/tgmarket/escrowd/internal/core/domain"
	"github.com/tgmarket/escrowd/internal/core/ports"
)

// EscrowService is the set of escrow operations exposed over HTTP.
type EscrowService interface {
	CreateTransaction(
		ctx context.Context,
		buyer, seller string, amount decimal.Decimal, description string,
	) (*domain.Transaction, error)
	ConfirmTransaction(
		ctx context.Context, id, actor, role string,
	) (domain.TransactionStatus, error)
	CompleteTransaction(ctx context.Context, id, actor string) (*escrow.Confirmation, error)
	DisputeTransaction(ctx context.Context, id, actor, reason string) (*escrow.Confirmation, error)
	CancelTransaction(ctx context.Context, id, actor, reason string) (*escrow.Confirmation, error)
	ResolveDispute(ctx context.Context, id, arbiter, note string) (*escrow.Confirmation, error)
	ReconcileTransaction(ctx context.Context, id string) (*escrow.Confirmation, error)
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, bool, error)
	GetTransactionsForParty(ctx context.Context, party string) ([]domain.Transaction, error)
}

type StatsService interface {
	Snapshot(ctx context.Context) (*stats.Snapshot, error)
}

type WebhookService interface {
	AddWebhook(ctx context.Context, webhook ports.Webhook) (string, error)
	RemoveWebhook(ctx context.Context, id string) error
	ListWebhooks(ctx context.Context, event ports.WebhookEvent) ([]ports.WebhookInfo, error)
	NewWebhookSecret() string
}

type createTransactionRequest struct {
	Buyer       string          `json:"buyer"`
	Seller      string          `json:"seller"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

type createTransactionResponse struct {
	ID string `json:"id"`
}

type confirmTransactionRequest struct {
	Actor string `json:"actor"`
	Role  string `json:"role"`
}

type confirmTransactionResponse struct {
	Status domain.TransactionStatus `json:"status"`
}

type actionRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

type resolveDisputeRequest struct {
	Arbiter string `json:"arbiter"`
	Note    string `json:"note"`
}

type confirmationResponse struct {
	Status  domain.TransactionStatus `json:"status"`
	Message string                   `json:"message"`
}

type transactionResponse struct {
	ID                 string                   `json:"id"`
	Buyer              string                   `json:"buyer"`
	Seller             string                   `json:"seller"`
	Amount             decimal.Decimal          `json:"amount"`
	Description        string                   `json:"description,omitempty"`
	EscrowFee          decimal.Decimal          `json:"escrow_fee"`
	TotalAmount        decimal.Decimal          `json:"total_amount"`
	Status             domain.TransactionStatus `json:"status"`
	BuyerConfirmed     bool                     `json:"buyer_confirmed"`
	SellerConfirmed    bool                     `json:"seller_confirmed"`
	CreatedAt          time.Time                `json:"created_at"`
	UpdatedAt          time.Time                `json:"updated_at"`
	CompletionDeadline time.Time                `json:"completion_deadline"`
	DisputeReason      string                   `json:"dispute_reason,omitempty"`
	DisputedBy         string                   `json:"disputed_by,omitempty"`
	DisputedAt         *time.Time               `json:"disputed_at,omitempty"`
	CancelReason       string                   `json:"cancel_reason,omitempty"`
	CancelledBy        string                   `json:"cancelled_by,omitempty"`
	CancelledAt        *time.Time               `json:"cancelled_at,omitempty"`
	CompletedAt        *time.Time               `json:"completed_at,omitempty"`
	ResolvedBy         string                   `json:"resolved_by,omitempty"`
	ResolutionNote     string                   `json:"resolution_note,omitempty"`
	ResolvedAt         *time.Time               `json:"resolved_at,omitempty"`
	Version            uint64                   `json:"version"`
}

func newTransactionResponse(tx domain.Transaction) transactionResponse {
	return transactionResponse{
		ID:                 tx.ID,
		Buyer:              tx.Buyer,
		Seller:             tx.Seller,
		Amount:             tx.Amount,
		Description:        tx.Description,
		EscrowFee:          tx.EscrowFee,
		TotalAmount:        tx.TotalAmount,
		Status:             tx.Status,
		BuyerConfirmed:     tx.BuyerConfirmed,
		SellerConfirmed:    tx.SellerConfirmed,
		CreatedAt:          tx.CreatedAt,
		UpdatedAt:          tx.UpdatedAt,
		CompletionDeadline: tx.CompletionDeadline,
		DisputeReason:      tx.DisputeReason,
		DisputedBy:         tx.DisputedBy,
		DisputedAt:         tx.DisputedAt,
		CancelReason:       tx.CancelReason,
		CancelledBy:        tx.CancelledBy,
		CancelledAt:        tx.CancelledAt,
		CompletedAt:        tx.CompletedAt,
		ResolvedBy:         tx.ResolvedBy,
		ResolutionNote:     tx.ResolutionNote,
		ResolvedAt:         tx.ResolvedAt,
		Version:            tx.Version,
	}
}

type statisticsResponse struct {
	TotalTransactions       int             `json:"total_transactions"`
	TotalVolume             decimal.Decimal `json:"total_volume"`
	TotalFees               decimal.Decimal `json:"total_fees"`
	CompletionRate          decimal.Decimal `json:"completion_rate"`
	DisputeRate             decimal.Decimal `json:"dispute_rate"`
	AverageTransactionValue decimal.Decimal `json:"average_transaction_value"`
	OverdueTransactions     int             `json:"overdue_transactions"`
	StatusCounts            map[string]int  `json:"status_counts"`
}

func newStatisticsResponse(s stats.Snapshot) statisticsResponse {
	counts := make(map[string]int, len(s.StatusCounts))
	for status, count := range s.StatusCounts {
		counts[status.String()] = count
	}
	return statisticsResponse{
		TotalTransactions:       s.TotalTransactions,
		TotalVolume:             s.TotalVolume,
		TotalFees:               s.TotalFees,
		CompletionRate:          s.CompletionRate,
		DisputeRate:             s.DisputeRate,
		AverageTransactionValue: s.AverageTransactionValue,
		OverdueTransactions:     s.OverdueTransactions,
		StatusCounts:            counts,
	}
}

type addWebhookRequest struct {
	Event          string `json:"event"`
	Endpoint       string `json:"endpoint"`
	Secret         string `json:"secret"`
	GenerateSecret bool   `json:"generate_secret"`
}

type addWebhookResponse struct {
	ID     string `json:"id"`
	Secret string `json:"secret,omitempty"`
}

type webhookResponse struct {
	ID        string `json:"id"`
	Event     string `json:"event"`
	Endpoint  string `json:"endpoint"`
	IsSecured bool   `json:"is_secured"`
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}
