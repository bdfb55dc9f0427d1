package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
)

const requestTimeout = 30 * time.Second

type client struct {
	baseURL    string
	httpClient *http.Client
}

type errorResponse struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

func newClient(address string) *client {
	if !strings.HasPrefix(address, "http://") &&
		!strings.HasPrefix(address, "https://") {
		address = "http://" + address
	}
	return &client{
		baseURL:    strings.TrimSuffix(address, "/"),
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

func getClient(_ *cli.Context) (*client, error) {
	state, err := getState()
	if err != nil {
		return nil, err
	}
	address, ok := state[rpcServerKey]
	if !ok {
		return nil, errors.New("set rpcserver with `config set rpcserver`")
	}
	return newClient(address), nil
}

// do sends the request and returns the raw body of a successful response.
// Error responses of the daemon are returned as errors.
func (c *client) do(
	ctx context.Context, method, path string, body interface{},
) ([]byte, error) {
	var payload []byte
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		payload = buf
	}

	req, err := http.NewRequestWithContext(
		ctx, method, c.baseURL+path, bytes.NewReader(payload),
	)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to escrowd: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var errResp errorResponse
		if err := json.Unmarshal(respBody, &errResp); err != nil ||
			errResp.Error.Kind == "" {
			return nil, fmt.Errorf("request failed with status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("%s: %s", errResp.Error.Kind, errResp.Error.Message)
	}

	return respBody, nil
}
