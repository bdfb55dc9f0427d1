package escrow

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tgmarket/escrowd/internal/core/domain"
)

const (
	DefaultMaxRetries = 16

	minBackoff = time.Millisecond
	maxBackoff = 50 * time.Millisecond
)

// Config holds the tunables of the escrow service. An unset FeeRate and zero
// values of the other fields are replaced with defaults, while a set zero
// FeeRate disables the escrow fee.
type Config struct {
	FeeRate          decimal.NullDecimal
	CompletionWindow time.Duration
	MaxRetries       int
}

func (c Config) withDefaults() Config {
	if !c.FeeRate.Valid {
		c.FeeRate = decimal.NewNullDecimal(domain.DefaultFeeRate)
	}
	if c.CompletionWindow <= 0 {
		c.CompletionWindow = domain.DefaultCompletionWindow
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	return c
}

// Confirmation is the outcome of a settling operation.
type Confirmation struct {
	Status  domain.TransactionStatus
	Message string
}

const (
	msgCompleted  = "Transaction completed, funds released to seller"
	msgDisputed   = "Dispute raised, funds frozen pending resolution"
	msgCancelled  = "Transaction cancelled, funds refunded to buyer"
	msgRefunded   = "Dispute resolved, funds refunded to buyer"
	msgReconciled = "Ledger reconciled with transaction status"
	msgNoEffect   = "No ledger effect for transaction status"
)

type noopMetrics struct{}

func (noopMetrics) TransitionCommitted(string, domain.TransactionStatus, domain.TransactionStatus) {
}
func (noopMetrics) VersionConflict(string)  {}
func (noopMetrics) SideEffectFailed(string) {}
