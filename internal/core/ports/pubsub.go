package ports

import "errors"

const AnyTopic = "*"
const UnspecifiedTopic = ""

var (
	// ErrSubscriptionNotFound is returned when unsubscribing an unknown id.
	ErrSubscriptionNotFound = errors.New("webhook not found")
	// ErrInvalidSubscription is returned when subscribing with a malformed
	// topic or endpoint.
	ErrInvalidSubscription = errors.New("invalid webhook")
)

type Subscription interface {
	Topic() string
	Id() string
	IsSecured() bool
	NotifyAt() string
}

// PubSub defines the methods of a pubsub service used to forward escrow events
// to external subscribers.
type PubSub interface {
	// Subscribe adds a new subscription for the requested topic.
	Subscribe(topic, endpoint, secret string) (string, error)
	// Unsubscribe removes the subscription identified by its id.
	Unsubscribe(topic, id string) error
	// ListSubscriptionsForTopic returns the info of all clients subscribed for
	// a certain topic, including those subscribed to any topic.
	ListSubscriptionsForTopic(topic string) []Subscription
	// Publish publishes a message for a certain topic. All clients subscribed
	// for such topic will receive the message.
	Publish(topic string, message string) error
	// Close releases the resources of the service.
	Close() error
}

type Webhook interface {
	GetEvent() WebhookEvent
	GetEndpoint() string
	GetSecret() string
}

type WebhookInfo interface {
	GetId() string
	GetEvent() WebhookEvent
	GetEndpoint() string
	IsSecured() bool
}

type WebhookEvent interface {
	IsUnspecified() bool
	IsAny() bool
	String() string
}
