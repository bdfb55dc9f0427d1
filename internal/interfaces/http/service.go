package httpinterface

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	interfaces "github.com/tgmarket/escrowd/internal/interfaces"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 5 * time.Second
)

type service struct {
	opts   ServiceOpts
	server *http.Server
}

type ServiceOpts struct {
	Port int

	EscrowSvc      EscrowService
	StatsSvc       StatsService
	WebhookSvc     WebhookService
	MetricsHandler http.Handler
}

func (o ServiceOpts) validate() error {
	if o.Port <= 0 || o.Port > 65535 {
		return fmt.Errorf("%d: port must be in range [1, 65535]", o.Port)
	}
	if o.EscrowSvc == nil {
		return fmt.Errorf("escrow app service must not be null")
	}
	if o.StatsSvc == nil {
		return fmt.Errorf("stats app service must not be null")
	}
	if o.WebhookSvc == nil {
		return fmt.Errorf("webhook app service must not be null")
	}
	return nil
}

func (o ServiceOpts) address() string {
	return fmt.Sprintf(":%d", o.Port)
}

// NewService returns the HTTP JSON interface of the daemon.
func NewService(opts ServiceOpts) (interfaces.Service, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid opts: %s", err)
	}

	router := newRouter(
		newHandler(opts.EscrowSvc, opts.StatsSvc, opts.WebhookSvc),
		opts.MetricsHandler,
	)

	return &service{
		opts: opts,
		server: &http.Server{
			Addr:              opts.address(),
			Handler:           router,
			ReadHeaderTimeout: readHeaderTimeout,
		},
	}, nil
}

func (s *service) Start() error {
	go func() {
		if err := s.server.ListenAndServe(); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server stopped unexpectedly")
		}
	}()

	log.Infof("http server listening on %s", s.opts.address())
	return nil
}

func (s *service) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("error while shutting down http server")
		return
	}
	log.Debug("stopped http server")
}
