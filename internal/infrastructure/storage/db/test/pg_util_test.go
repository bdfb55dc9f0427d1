package db_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tgmarket/escrowd/internal/core/ports"
	postgresdb "github.com/tgmarket/escrowd/internal/infrastructure/storage/db/pg"
)

const pgDataSourceEnv = "ESCROW_TEST_PG_CONNECT_ADDR"

// newPgRepoManager returns a postgres backed repo manager if a test database
// is configured via env, nil otherwise.
func newPgRepoManager(t *testing.T) ports.RepoManager {
	dataSource := os.Getenv(pgDataSourceEnv)
	if dataSource == "" {
		return nil
	}

	repoManager, err := postgresdb.NewService(postgresdb.DbConfig{
		DataSourceURL:      dataSource,
		MigrationSourceURL: "file://../pg/migration",
	})
	require.NoError(t, err)
	return repoManager
}
