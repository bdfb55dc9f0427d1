package ports

import "github.com/tgmarket/escrowd/internal/core/domain"

// RepoManager interface defines the methods to access the repositories of the
// escrow engine and to release the underlying resources.
type RepoManager interface {
	TransactionRepository() domain.TransactionRepository
	Close()
}
