package inmemory

import (
	"github.com/tgmarket/escrowd/internal/core/domain"
	"github.com/tgmarket/escrowd/internal/core/ports"
)

type repoManager struct {
	transactionRepository domain.TransactionRepository
}

func NewRepoManager() ports.RepoManager {
	return &repoManager{
		transactionRepository: NewTransactionRepositoryImpl(),
	}
}

func (d *repoManager) TransactionRepository() domain.TransactionRepository {
	return d.transactionRepository
}

func (d *repoManager) Close() {}
