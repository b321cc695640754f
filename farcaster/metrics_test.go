package farcaster

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMetricsExposesSetValues(t *testing.T) {
	m := NewMetrics()
	m.setPeerCount(3)
	m.setActiveSwaps(2)
	m.setOfferCount(5)
	m.setSyncerCount(1)
	m.incSwapStarted()
	m.incSwapStarted()
	m.incSwapAborted()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	require.Contains(t, body, "swapd_connected_peers 3")
	require.Contains(t, body, "swapd_active_swaps 2")
	require.Contains(t, body, "swapd_open_offers 5")
	require.Contains(t, body, "swapd_running_syncers 1")
	require.Contains(t, body, "swapd_swaps_started_total 2")
	require.Contains(t, body, "swapd_swaps_aborted_total 1")
	require.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
}
