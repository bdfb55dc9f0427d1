package pubsub_test

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tgmarket/escrowd/internal/core/application/pubsub"
	"github.com/tgmarket/escrowd/internal/core/domain"
	"github.com/tgmarket/escrowd/internal/core/ports"
)

var ctx = context.Background()

func TestAddWebhook(t *testing.T) {
	ps := &mockPubSub{}
	ps.On(
		"Subscribe", pubsub.EventTransactionDisputed, "http://localhost/hook", "secret",
	).Return("hook-id", nil)

	svc, err := pubsub.NewService(ps)
	require.NoError(t, err)

	id, err := svc.AddWebhook(ctx, pubsub.Webhook{
		Event:    pubsub.EventTransactionDisputed,
		Endpoint: "http://localhost/hook",
		Secret:   "secret",
	})
	require.NoError(t, err)
	require.Equal(t, "hook-id", id)

	_, err = svc.AddWebhook(ctx, pubsub.Webhook{Endpoint: "http://localhost/hook"})
	require.ErrorIs(t, err, pubsub.ErrInvalidWebhookEvent)

	_, err = svc.AddWebhook(ctx, pubsub.Webhook{Event: pubsub.EventTransactionCreated})
	require.ErrorIs(t, err, pubsub.ErrMissingEndpoint)

	ps.AssertNumberOfCalls(t, "Subscribe", 1)
}

func TestWebhookEventFromString(t *testing.T) {
	tests := []struct {
		str   string
		valid bool
	}{
		{"TRANSACTION_CREATED", true},
		{"TRANSACTION_REFUNDED", true},
		{"*", true},
		{"", false},
		{"TRADE_SETTLED", false},
	}

	for _, tt := range tests {
		event, ok := pubsub.WebhookEventFromString(tt.str)
		require.Equal(t, tt.valid, ok, tt.str)
		if ok {
			require.Equal(t, tt.str, event.String())
		}
	}
}

func TestOnStateChange(t *testing.T) {
	published := make(chan string, 1)
	ps := &mockPubSub{}
	ps.On("Publish", pubsub.EventTransactionConfirmed, mock.Anything).
		Run(func(args mock.Arguments) {
			published <- args.String(1)
		}).
		Return(nil)
	ps.On("Close").Return(nil)

	svc, err := pubsub.NewService(ps)
	require.NoError(t, err)

	svc.OnStateChange(
		"tx-id", domain.TransactionStatusPending, domain.TransactionStatusConfirmed,
	)

	var message string
	select {
	case message = <-published:
	default:
		t.Fatal("state change not published")
	}

	payload := map[string]interface{}{}
	require.NoError(t, json.Unmarshal([]byte(message), &payload))
	require.Equal(t, pubsub.EventTransactionConfirmed, payload["event"])
	require.Equal(t, "tx-id", payload["transaction_id"])
	require.Equal(t, "PENDING", payload["old_status"])
	require.Equal(t, "CONFIRMED", payload["new_status"])

	require.NoError(t, svc.Close())
}

func TestOnStateChangeAfterClose(t *testing.T) {
	ps := &mockPubSub{}
	ps.On("Publish", mock.Anything, mock.Anything).Return(nil)
	ps.On("Close").Return(nil).Once()

	svc, err := pubsub.NewService(ps)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.OnStateChange(
				"tx-id", domain.TransactionStatusConfirmed,
				domain.TransactionStatusCompleted,
			)
		}()
	}
	require.NoError(t, svc.Close())
	wg.Wait()

	calls := len(ps.Calls)
	svc.OnStateChange(
		"tx-id", domain.TransactionStatusPending, domain.TransactionStatusCancelled,
	)
	require.Len(t, ps.Calls, calls)

	require.NoError(t, svc.Close())
	ps.AssertNumberOfCalls(t, "Close", 1)
}

func TestPublishCreationEvent(t *testing.T) {
	ps := &mockPubSub{}
	ps.On("Publish", pubsub.EventTransactionCreated, mock.MatchedBy(
		func(message string) bool {
			payload := map[string]interface{}{}
			if err := json.Unmarshal([]byte(message), &payload); err != nil {
				return false
			}
			return payload["old_status"] == "" && payload["new_status"] == "PENDING"
		},
	)).Return(nil)

	svc, err := pubsub.NewService(ps)
	require.NoError(t, err)

	err = svc.PublishStateChangeEvent(
		"tx-id", domain.TransactionStatusUndefined, domain.TransactionStatusPending,
	)
	require.NoError(t, err)
	ps.AssertExpectations(t)
}

func TestListWebhooks(t *testing.T) {
	ps := &mockPubSub{}
	ps.On("ListSubscriptionsForTopic", ports.UnspecifiedTopic).Return(
		[]ports.Subscription{
			testSubscription{"id1", pubsub.EventTransactionCompleted, "http://a", true},
			testSubscription{"id2", ports.AnyTopic, "http://b", false},
		},
	)

	svc, err := pubsub.NewService(ps)
	require.NoError(t, err)

	hooks, err := svc.ListWebhooks(ctx, nil)
	require.NoError(t, err)
	require.Len(t, hooks, 2)
	require.Equal(t, "id1", hooks[0].GetId())
	require.Equal(t, pubsub.EventTransactionCompleted, hooks[0].GetEvent().String())
	require.True(t, hooks[0].IsSecured())
	require.True(t, hooks[1].GetEvent().IsAny())
}

func TestNewWebhookSecret(t *testing.T) {
	svc, err := pubsub.NewService(&mockPubSub{})
	require.NoError(t, err)

	first, second := svc.NewWebhookSecret(), svc.NewWebhookSecret()
	require.NotEmpty(t, first)
	require.NotEqual(t, first, second)
	_, err = hex.DecodeString(strings.Repeat(first, 2))
	require.NoError(t, err)
}

type mockPubSub struct {
	mock.Mock
}

func (m *mockPubSub) Subscribe(topic, endpoint, secret string) (string, error) {
	args := m.Called(topic, endpoint, secret)
	return args.String(0), args.Error(1)
}

func (m *mockPubSub) Unsubscribe(topic, id string) error {
	args := m.Called(topic, id)
	return args.Error(0)
}

func (m *mockPubSub) ListSubscriptionsForTopic(topic string) []ports.Subscription {
	args := m.Called(topic)

	var res []ports.Subscription
	if a := args.Get(0); a != nil {
		res = a.([]ports.Subscription)
	}
	return res
}

func (m *mockPubSub) Publish(topic string, message string) error {
	args := m.Called(topic, message)
	return args.Error(0)
}

func (m *mockPubSub) Close() error {
	args := m.Called()
	return args.Error(0)
}

type testSubscription struct {
	id       string
	topic    string
	endpoint string
	secured  bool
}

func (s testSubscription) Topic() string    { return s.topic }
func (s testSubscription) Id() string       { return s.id }
func (s testSubscription) IsSecured() bool  { return s.secured }
func (s testSubscription) NotifyAt() string { return s.endpoint }
