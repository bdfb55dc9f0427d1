package pubsub

import (
	"github.com/tgmarket/escrowd/internal/core/domain"
	"github.com/tgmarket/escrowd/internal/core/ports"
)

const (
	EventTransactionCreated   = "TRANSACTION_CREATED"
	EventTransactionConfirmed = "TRANSACTION_CONFIRMED"
	EventTransactionCompleted = "TRANSACTION_COMPLETED"
	EventTransactionDisputed  = "TRANSACTION_DISPUTED"
	EventTransactionCancelled = "TRANSACTION_CANCELLED"
	EventTransactionRefunded  = "TRANSACTION_REFUNDED"
)

var statusToEvent = map[domain.TransactionStatus]string{
	domain.TransactionStatusPending:   EventTransactionCreated,
	domain.TransactionStatusConfirmed: EventTransactionConfirmed,
	domain.TransactionStatusCompleted: EventTransactionCompleted,
	domain.TransactionStatusDisputed:  EventTransactionDisputed,
	domain.TransactionStatusCancelled: EventTransactionCancelled,
	domain.TransactionStatusRefunded:  EventTransactionRefunded,
}

// WebhookEvent is the type of event a webhook can subscribe for.
type WebhookEvent string

// WebhookEventFromString parses the given label, either one of the
// TRANSACTION_* events or "*" for any.
func WebhookEventFromString(str string) (WebhookEvent, bool) {
	if str == ports.AnyTopic {
		return WebhookEvent(str), true
	}
	for _, event := range statusToEvent {
		if event == str {
			return WebhookEvent(str), true
		}
	}
	return WebhookEvent(ports.UnspecifiedTopic), false
}

func (e WebhookEvent) IsUnspecified() bool {
	return e == ports.UnspecifiedTopic
}

func (e WebhookEvent) IsAny() bool {
	return e == ports.AnyTopic
}

func (e WebhookEvent) String() string {
	return string(e)
}

// Webhook is the request to subscribe an endpoint for an event.
type Webhook struct {
	Event    WebhookEvent
	Endpoint string
	Secret   string
}

func (w Webhook) GetEvent() ports.WebhookEvent {
	return w.Event
}

func (w Webhook) GetEndpoint() string {
	return w.Endpoint
}

func (w Webhook) GetSecret() string {
	return w.Secret
}

type webhookInfo struct {
	ports.Subscription
}

func (i webhookInfo) GetId() string {
	return i.Subscription.Id()
}

func (i webhookInfo) GetEvent() ports.WebhookEvent {
	return WebhookEvent(i.Subscription.Topic())
}

func (i webhookInfo) GetEndpoint() string {
	return i.Subscription.NotifyAt()
}

func (i webhookInfo) IsSecured() bool {
	return i.Subscription.IsSecured()
}
