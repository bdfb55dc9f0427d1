package pubsub

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/golang-jwt/jwt"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/tgmarket/escrowd/internal/core/ports"
	"github.com/tgmarket/escrowd/pkg/circuitbreaker"
	"go.uber.org/ratelimit"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultRequestTimeout = 15 * time.Second

	tokenTTL = 5 * time.Minute
)

// Options tunes the outgoing webhook requests. A zero RequestsPerSecond
// disables throttling.
type Options struct {
	DataDir           string
	Logger            badger.Logger
	RequestTimeout    time.Duration
	RequestsPerSecond int
}

type service struct {
	store      *store
	client     *webhookClient
	cb         *gobreaker.CircuitBreaker
	limiter    ratelimit.Limiter
}

// NewService returns a PubSub that delivers published messages as HTTP POST
// requests to the subscribed webhook endpoints. Subscriptions are persisted
// in a badger db under opts.DataDir, or kept in memory if not defined.
func NewService(opts Options) (ports.PubSub, error) {
	st, err := newStore(opts.DataDir, opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("opening subscriptions db: %w", err)
	}

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	limiter := ratelimit.NewUnlimited()
	if opts.RequestsPerSecond > 0 {
		limiter = ratelimit.New(opts.RequestsPerSecond)
	}

	return &service{
		store:      st,
		client:     newWebhookClient(timeout),
		cb:         circuitbreaker.NewCircuitBreaker(),
		limiter:    limiter,
	}, nil
}

func (ws *service) Subscribe(topic, endpoint, secret string) (string, error) {
	sub, err := NewSubscription(topic, endpoint, secret)
	if err != nil {
		return "", err
	}

	if err := ws.store.add(*sub); err != nil {
		return "", err
	}
	return sub.ID, nil
}

func (ws *service) Unsubscribe(_, id string) error {
	return ws.store.remove(id)
}

func (ws *service) ListSubscriptionsForTopic(topic string) []ports.Subscription {
	subs, err := ws.listSubscriptionsForTopic(topic)
	if err != nil {
		log.WithError(err).Warn("failed to list webhooks")
		return nil
	}
	return subs.toPortable()
}

func (ws *service) Publish(topic string, message string) error {
	subs, err := ws.listSubscriptionsForTopic(topic)
	if err != nil {
		return err
	}

	eg := &errgroup.Group{}
	for i := range subs {
		sub := subs[i]
		eg.Go(func() error { return ws.doRequest(sub, message) })
	}
	return eg.Wait()
}

func (ws *service) Close() error {
	return ws.store.close()
}

func (ws *service) listSubscriptionsForTopic(topic string) (subscriptions, error) {
	subs, err := ws.store.listForTopic(topic)
	if err != nil {
		return nil, err
	}
	if topic != ports.AnyTopic && topic != ports.UnspecifiedTopic {
		subsForAnyTopic, err := ws.store.listForTopic(ports.AnyTopic)
		if err != nil {
			return nil, err
		}
		subs = append(subs, subsForAnyTopic...)
	}
	return subs, nil
}

func (ws *service) doRequest(sub Subscription, payload string) error {
	ws.limiter.Take()

	_, err := ws.cb.Execute(func() (interface{}, error) {
		var token string
		if sub.IsSecured() {
			var err error
			if token, err = signToken(sub); err != nil {
				return nil, err
			}
		}
		return nil, ws.client.deliver(
			context.Background(), sub.Endpoint, payload, token,
		)
	})
	if err != nil {
		log.WithError(err).WithField("endpoint", sub.Endpoint).Debug(
			"webhook delivery failed",
		)
	}

	return err
}

// signToken returns a short lived HS256 token identifying the subscription,
// signed with its secret.
func signToken(sub Subscription) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{
		Subject:   sub.ID,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(tokenTTL).Unix(),
	})
	return token.SignedString([]byte(sub.Secret))
}
