package main

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			switch r.URL.Path {
			case "/v1/transactions":
				body, _ := ioutil.ReadAll(r.Body)
				var req map[string]string
				if err := json.Unmarshal(body, &req); err != nil || req["buyer"] == "" {
					w.WriteHeader(http.StatusBadRequest)
					w.Write([]byte(`{"error":{"kind":"InvalidInput","message":"invalid input: missing buyer"}}`))
					return
				}
				w.WriteHeader(http.StatusCreated)
				w.Write([]byte(`{"id":"a3f1"}`))
			default:
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`oops`))
			}
		},
	))
	t.Cleanup(server.Close)

	c := newClient(server.URL)
	ctx := context.Background()

	resp, err := c.do(ctx, http.MethodPost, "/v1/transactions", map[string]string{
		"buyer": "alice", "seller": "bob", "amount": "10",
	})
	require.NoError(t, err)
	require.JSONEq(t, `{"id":"a3f1"}`, string(resp))

	_, err = c.do(ctx, http.MethodPost, "/v1/transactions", map[string]string{})
	require.EqualError(t, err, "InvalidInput: invalid input: missing buyer")

	_, err = c.do(ctx, http.MethodGet, "/v1/statistics", nil)
	require.EqualError(t, err, "request failed with status 500")
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		address  string
		expected string
	}{
		{"localhost:9090", "http://localhost:9090"},
		{"http://localhost:9090/", "http://localhost:9090"},
		{"https://escrow.example.com", "https://escrow.example.com"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.address, func(t *testing.T) {
			require.Equal(t, tt.expected, newClient(tt.address).baseURL)
		})
	}
}

func TestState(t *testing.T) {
	datadir := t.TempDir()
	escrowDataDir = datadir
	statePath = filepath.Join(datadir, "state.json")

	_, err := getState()
	require.Error(t, err)

	require.NoError(t, setState(map[string]string{rpcServerKey: defaultRPCServer}))
	require.NoError(t, setState(map[string]string{"other": "value"}))

	state, err := getState()
	require.NoError(t, err)
	require.Equal(t, map[string]string{
		rpcServerKey: defaultRPCServer,
		"other":      "value",
	}, state)
}
