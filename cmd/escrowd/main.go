package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/tgmarket/escrowd/internal/config"
	"github.com/tgmarket/escrowd/internal/core/application"
	"github.com/tgmarket/escrowd/internal/core/application/pubsub"
	"github.com/tgmarket/escrowd/internal/infrastructure/ledger"
	"github.com/tgmarket/escrowd/internal/infrastructure/metrics"
	pubsubinfra "github.com/tgmarket/escrowd/internal/infrastructure/pubsub"
	postgresdb "github.com/tgmarket/escrowd/internal/infrastructure/storage/db/pg"
	httpinterface "github.com/tgmarket/escrowd/internal/interfaces/http"
)

func main() {
	if err := config.InitConfig(); err != nil {
		log.WithError(err).Fatal("invalid config")
	}
	log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))

	dbType := config.GetString(config.DBTypeKey)

	var dbConfig interface{}
	switch dbType {
	case config.DBTypeBadger:
		dbConfig = config.GetDbDir()
	case config.DBTypePostgres:
		dbConfig = postgresdb.DbConfig{
			DataSourceURL:      config.GetString(config.PgConnectAddrKey),
			MigrationSourceURL: config.GetString(config.PgMigrationSourceKey),
		}
	}

	pubsubSvc, err := pubsubinfra.NewService(pubsubinfra.Options{
		DataDir:           config.GetDatadir(),
		Logger:            log.New(),
		RequestTimeout:    config.GetDuration(config.WebhookTimeoutKey),
		RequestsPerSecond: config.GetInt(config.WebhookRateLimitKey),
	})
	if err != nil {
		log.WithError(err).Fatal("error while opening webhooks db")
	}

	// the ledger journal must outlive restarts whenever transactions do.
	bookkeeper := ledger.NewBookkeeper()
	if dbType != config.DBTypeInmemory {
		bookkeeper, err = ledger.NewPersistentBookkeeper(
			config.GetLedgerDir(), log.New(),
		)
		if err != nil {
			log.WithError(err).Fatal("error while opening ledger db")
		}
	}
	defer bookkeeper.Close()

	collector := metrics.NewCollector()
	appConfig := &application.Config{
		DBType:           dbType,
		DBConfig:         dbConfig,
		Ledger:           bookkeeper,
		PubSub:           pubsubSvc,
		Metrics:          collector,
		FeeRate:          decimal.NewNullDecimal(config.GetDecimal(config.FeeRateKey)),
		CompletionWindow: config.GetDuration(config.CompletionWindowKey),
		MaxRetries:       config.GetInt(config.MaxRetriesKey),
	}
	if err := appConfig.Validate(); err != nil {
		log.WithError(err).Fatal("error while initializing services")
	}
	defer appConfig.Close()

	if err := registerWebhooks(
		appConfig.WebhookService(), config.GetStringSlice(config.WebhookEndpointsKey),
	); err != nil {
		log.WithError(err).Fatal("error while registering webhooks")
	}

	svc, err := httpinterface.NewService(httpinterface.ServiceOpts{
		Port:           config.GetInt(config.HTTPListeningPortKey),
		EscrowSvc:      appConfig.EscrowService(),
		StatsSvc:       appConfig.StatsService(),
		WebhookSvc:     appConfig.WebhookService(),
		MetricsHandler: collector.Handler(),
	})
	if err != nil {
		log.WithError(err).Fatal("error while initializing http interface")
	}

	log.RegisterExitHandler(svc.Stop)

	log.Info("starting daemon")
	if err := svc.Start(); err != nil {
		log.WithError(err).Fatal("error while starting daemon")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	<-sigChan

	log.Info("shutting down daemon")
	svc.Stop()
	log.Info("exiting")
}

// registerWebhooks subscribes the <event>@<url> webhooks given by config,
// skipping those already persisted by a previous run.
func registerWebhooks(svc *pubsub.Service, endpoints []string) error {
	ctx := context.Background()

	for _, str := range endpoints {
		parts := strings.SplitN(strings.TrimSpace(str), "@", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid webhook %s, must be in the form <event>@<url>", str)
		}
		event, ok := pubsub.WebhookEventFromString(parts[0])
		if !ok {
			return fmt.Errorf("invalid webhook event %s", parts[0])
		}
		endpoint := parts[1]

		hooks, err := svc.ListWebhooks(ctx, event)
		if err != nil {
			return err
		}
		registered := false
		for _, hook := range hooks {
			if hook.GetEvent().String() == event.String() &&
				hook.GetEndpoint() == endpoint {
				registered = true
				break
			}
		}
		if registered {
			continue
		}

		id, err := svc.AddWebhook(ctx, pubsub.Webhook{
			Event:    event,
			Endpoint: endpoint,
		})
		if err != nil {
			return err
		}
		log.WithFields(log.Fields{
			"id":       id,
			"event":    event,
			"endpoint": endpoint,
		}).Info("registered webhook")
	}
	return nil
}
