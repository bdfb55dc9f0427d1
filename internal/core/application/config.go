package application

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/tgmarket/escrowd/internal/core/application/escrow"
	"github.com/tgmarket/escrowd/internal/core/application/pubsub"
	"github.com/tgmarket/escrowd/internal/core/application/stats"
	"github.com/tgmarket/escrowd/internal/core/ports"
	dbbadger "github.com/tgmarket/escrowd/internal/infrastructure/storage/db/badger"
	"github.com/tgmarket/escrowd/internal/infrastructure/storage/db/inmemory"
	postgresdb "github.com/tgmarket/escrowd/internal/infrastructure/storage/db/pg"
)

const (
	DBInmemory = "inmemory"
	DBBadger   = "badger"
	DBPostgres = "postgres"
)

var (
	SupportedDBType = map[string]struct{}{
		DBInmemory: {},
		DBBadger:   {},
		DBPostgres: {},
	}
)

// Config collects the dependencies of the application services and builds
// them lazily. DBConfig is the base directory for badger, a
// postgresdb.DbConfig for postgres and is ignored for inmemory.
type Config struct {
	DBType   string
	DBConfig interface{}

	Ledger           ports.Ledger
	PubSub           ports.PubSub
	Metrics          ports.Metrics
	FeeRate          decimal.NullDecimal
	CompletionWindow time.Duration
	MaxRetries       int

	repo    ports.RepoManager
	webhook *pubsub.Service
	escrow  *escrow.Service
	stats   *stats.Service
}

func (c *Config) Validate() error {
	if _, ok := SupportedDBType[c.DBType]; !ok {
		return fmt.Errorf("unsupported db type %s", c.DBType)
	}
	if c.Ledger == nil {
		return fmt.Errorf("missing ledger")
	}
	if c.PubSub == nil {
		return fmt.Errorf("missing pubsub")
	}
	if _, err := c.repoManager(); err != nil {
		return err
	}
	if _, err := c.escrowService(); err != nil {
		return err
	}
	return nil
}

func (c *Config) RepoManager() ports.RepoManager {
	repo, _ := c.repoManager()
	return repo
}

func (c *Config) WebhookService() *pubsub.Service {
	svc, _ := c.webhookService()
	return svc
}

func (c *Config) EscrowService() *escrow.Service {
	svc, _ := c.escrowService()
	return svc
}

func (c *Config) StatsService() *stats.Service {
	svc, _ := c.statsService()
	return svc
}

// Close flushes the pending state changes to the webhooks and releases the
// stores.
func (c *Config) Close() {
	if c.escrow != nil {
		c.escrow.Close()
	}
	if c.webhook != nil {
		if err := c.webhook.Close(); err != nil {
			log.WithError(err).Warn("error while closing webhook service")
		}
	}
	if c.repo != nil {
		c.repo.Close()
	}
}

func (c *Config) repoManager() (ports.RepoManager, error) {
	if c.repo != nil {
		return c.repo, nil
	}

	var (
		repoManager ports.RepoManager
		err         error
	)
	switch c.DBType {
	case DBInmemory:
		repoManager = inmemory.NewRepoManager()
	case DBBadger:
		datadir, _ := c.DBConfig.(string)
		repoManager, err = dbbadger.NewRepoManager(datadir, log.New())
	case DBPostgres:
		dbConfig, ok := c.DBConfig.(postgresdb.DbConfig)
		if !ok {
			return nil, fmt.Errorf("invalid postgres db config")
		}
		repoManager, err = postgresdb.NewService(dbConfig)
	default:
		return nil, fmt.Errorf("unsupported db type %s", c.DBType)
	}
	if err != nil {
		return nil, err
	}

	c.repo = repoManager
	return c.repo, nil
}

func (c *Config) webhookService() (*pubsub.Service, error) {
	if c.webhook == nil {
		svc, err := pubsub.NewService(c.PubSub)
		if err != nil {
			return nil, err
		}
		c.webhook = svc
	}
	return c.webhook, nil
}

func (c *Config) escrowService() (*escrow.Service, error) {
	if c.escrow == nil {
		repo, err := c.repoManager()
		if err != nil {
			return nil, err
		}
		notifier, err := c.webhookService()
		if err != nil {
			return nil, err
		}
		svc, err := escrow.NewService(repo, c.Ledger, notifier, c.Metrics, escrow.Config{
			FeeRate:          c.FeeRate,
			CompletionWindow: c.CompletionWindow,
			MaxRetries:       c.MaxRetries,
		})
		if err != nil {
			return nil, err
		}
		c.escrow = svc
	}
	return c.escrow, nil
}

func (c *Config) statsService() (*stats.Service, error) {
	if c.stats == nil {
		repo, err := c.repoManager()
		if err != nil {
			return nil, err
		}
		svc, err := stats.NewService(repo)
		if err != nil {
			return nil, err
		}
		c.stats = svc
	}
	return c.stats, nil
}
