package pubsub

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	userAgent = "escrowd-webhook"

	// maxResponseExcerpt bounds how much of a response body is read back from
	// a webhook endpoint.
	maxResponseExcerpt = 512
)

// webhookClient posts webhook payloads. Any response outside the 2xx range
// is reported as ErrUnexpectedHTTPStatus along with an excerpt of its body.
type webhookClient struct {
	httpClient *http.Client
}

func newWebhookClient(requestTimeout time.Duration) *webhookClient {
	return &webhookClient{&http.Client{Timeout: requestTimeout}}
}

// deliver posts payload to endpoint, authenticated with the given bearer
// token if not empty.
func (c *webhookClient) deliver(
	ctx context.Context, endpoint, payload, token string,
) error {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, endpoint, strings.NewReader(payload),
	)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if len(token) > 0 {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseExcerpt))
	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}
	return fmt.Errorf(
		"%w %d: %s", ErrUnexpectedHTTPStatus, resp.StatusCode,
		strings.TrimSpace(string(excerpt)),
	)
}
