package escrow

import (
	"errors"

	"github.com/tgmarket/escrowd/internal/core/domain"
)

var (
	// ErrContention is returned when a transition could not be committed
	// because of concurrent writes, even after all retries.
	ErrContention = errors.New("too many concurrent modifications, retry later")
	// ErrLedgerUnavailable is returned by reconciliation when the ledger
	// rejects the re-issued operation.
	ErrLedgerUnavailable = errors.New("ledger unavailable")
)

// Error kinds returned by ErrorKind.
const (
	KindInvalidInput = "InvalidInput"
	KindNotFound     = "NotFound"
	KindUnauthorized = "Unauthorized"
	KindInvalidState = "InvalidState"
	KindConflict     = "Conflict"
	KindContention   = "Contention"
	KindInternal     = "Internal"
)

// ErrorKind maps an error returned by the service to its kind name.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, domain.ErrTransactionNotFound):
		return KindNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, domain.ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, domain.ErrVersionConflict),
		errors.Is(err, domain.ErrTransactionAlreadyExists):
		return KindConflict
	case errors.Is(err, ErrContention):
		return KindContention
	default:
		return KindInternal
	}
}
