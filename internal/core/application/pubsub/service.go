package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tgmarket/escrowd/internal/core/domain"
	"github.com/tgmarket/escrowd/internal/core/ports"
	"github.com/thanhpk/randstr"
)

var (
	ErrInvalidWebhookEvent = fmt.Errorf("%w: invalid event type", ports.ErrInvalidSubscription)
	ErrMissingEndpoint     = fmt.Errorf("%w: missing endpoint", ports.ErrInvalidSubscription)
)

const secretLen = 32

// Service manages webhooks and forwards every escrow state change to the
// subscribers of the matching event. It implements ports.Notifier.
type Service struct {
	pubsub ports.PubSub

	lock    sync.RWMutex
	closed  bool
	nowFunc func() time.Time
}

func NewService(pubsub ports.PubSub) (*Service, error) {
	if pubsub == nil {
		return nil, fmt.Errorf("missing pubsub")
	}
	return &Service{pubsub: pubsub, nowFunc: time.Now}, nil
}

func (s *Service) AddWebhook(
	_ context.Context, webhook ports.Webhook,
) (string, error) {
	if webhook.GetEvent() == nil || webhook.GetEvent().IsUnspecified() {
		return "", ErrInvalidWebhookEvent
	}
	if len(webhook.GetEndpoint()) <= 0 {
		return "", ErrMissingEndpoint
	}
	topic := webhook.GetEvent().String()
	return s.pubsub.Subscribe(topic, webhook.GetEndpoint(), webhook.GetSecret())
}

func (s *Service) RemoveWebhook(_ context.Context, id string) error {
	return s.pubsub.Unsubscribe(ports.UnspecifiedTopic, id)
}

// ListWebhooks returns the webhooks subscribed for the given event. A nil or
// unspecified event lists them all.
func (s *Service) ListWebhooks(
	_ context.Context, event ports.WebhookEvent,
) ([]ports.WebhookInfo, error) {
	topic := ports.UnspecifiedTopic
	if event != nil {
		topic = event.String()
	}
	subs := s.pubsub.ListSubscriptionsForTopic(topic)
	webhooks := make([]ports.WebhookInfo, 0, len(subs))
	for _, s := range subs {
		webhooks = append(webhooks, webhookInfo{s})
	}
	return webhooks, nil
}

// NewWebhookSecret returns a random secret to sign the requests of a
// webhook with.
func (s *Service) NewWebhookSecret() string {
	return randstr.Hex(secretLen)
}

// OnStateChange publishes the state change and waits for the deliveries.
// Callers are expected to serialize the changes of a transaction. Delivery
// errors are only logged, changes notified after Close are dropped.
func (s *Service) OnStateChange(
	txID string, oldStatus, newStatus domain.TransactionStatus,
) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.closed {
		log.WithField("tx_id", txID).Warn(
			"webhook service closed, state change not notified",
		)
		return
	}

	if err := s.PublishStateChangeEvent(txID, oldStatus, newStatus); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"tx_id":  txID,
			"status": newStatus.String(),
		}).Warn("failed to notify state change to webhooks")
	}
}

// PublishStateChangeEvent publishes the state change to the subscribers of
// the related event and waits for all deliveries.
func (s *Service) PublishStateChangeEvent(
	txID string, oldStatus, newStatus domain.TransactionStatus,
) error {
	event, ok := statusToEvent[newStatus]
	if !ok {
		return fmt.Errorf("no event for status %s", newStatus)
	}

	var from string
	if oldStatus.Valid() {
		from = oldStatus.String()
	}
	payload := map[string]interface{}{
		"event":          event,
		"transaction_id": txID,
		"old_status":     from,
		"new_status":     newStatus.String(),
		"timestamp":      s.nowFunc().Unix(),
	}
	message, _ := json.Marshal(payload)

	return s.pubsub.Publish(event, string(message))
}

// Close waits for the in-flight deliveries and releases the pubsub. It is
// safe to call more than once.
func (s *Service) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.pubsub.Close()
}
