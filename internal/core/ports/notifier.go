package ports

import "github.com/tgmarket/escrowd/internal/core/domain"

// Notifier is notified of every committed state change. Implementations must
// return immediately and must never fail the owning transition: delivery is
// best effort.
type Notifier interface {
	OnStateChange(txID string, oldStatus, newStatus domain.TransactionStatus)
}
