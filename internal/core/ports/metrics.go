package ports

import "github.com/tgmarket/escrowd/internal/core/domain"

// Metrics collects counters about the escrow engine activity.
type Metrics interface {
	// TransitionCommitted is called once per committed status change.
	TransitionCommitted(op string, from, to domain.TransactionStatus)
	// VersionConflict is called every time a write loses a race and is retried.
	VersionConflict(op string)
	// SideEffectFailed is called when a ledger operation fails after commit.
	SideEffectFailed(effect string)
}
