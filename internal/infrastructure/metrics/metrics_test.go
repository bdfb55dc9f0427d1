package metrics_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tgmarket/escrowd/internal/core/domain"
	"github.com/tgmarket/escrowd/internal/infrastructure/metrics"
)

func TestCollector(t *testing.T) {
	c := metrics.NewCollector()

	c.TransitionCommitted(
		"create", domain.TransactionStatusUndefined, domain.TransactionStatusPending,
	)
	c.TransitionCommitted(
		"confirm", domain.TransactionStatusPending, domain.TransactionStatusConfirmed,
	)
	c.VersionConflict("confirm")
	c.VersionConflict("confirm")
	c.SideEffectFailed("hold")

	srv := httptest.NewServer(c.Handler())
	t.Cleanup(srv.Close)

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	exposition := string(body)
	require.True(t, strings.Contains(
		exposition,
		`escrow_engine_transitions_total{from="NONE",op="create",to="PENDING"} 1`,
	))
	require.True(t, strings.Contains(
		exposition, `escrow_engine_version_conflicts_total{op="confirm"} 2`,
	))
	require.True(t, strings.Contains(
		exposition, `escrow_engine_side_effect_failures_total{effect="hold"} 1`,
	))
}
