package pubsub

import (
	"errors"
	"fmt"

	"github.com/tgmarket/escrowd/internal/core/ports"
)

var (
	ErrMissingTopic         = fmt.Errorf("%w: missing topic", ports.ErrInvalidSubscription)
	ErrInvalidEndpoint      = fmt.Errorf("%w: endpoint must be a valid http(s) URI", ports.ErrInvalidSubscription)
	ErrSubscriptionNotFound = ports.ErrSubscriptionNotFound
	ErrUnexpectedHTTPStatus = errors.New("unexpected webhook response status")
)
