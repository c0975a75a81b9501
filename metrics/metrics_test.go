package metrics

import (
	"io"
	"math/big"
	"net/http/httptest"
	"strings"
	"testing"
)

func scrape(t *testing.T, c *Collector) string {
	t.Helper()

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func TestCollectorExposesMetrics(t *testing.T) {
	c := NewCollector()

	c.RequestCreated(big.NewInt(500))
	c.RequestCreated(nil)
	c.RequestProcessed("completed")
	c.RequestProcessed("failed")
	c.RequestCancelled()
	c.SettlementTransition("pending")
	c.DisputeOpened()
	c.SetFeePool(big.NewInt(25))
	c.Rejected("unauthorized")

	body := scrape(t, c)

	for _, want := range []string{
		"gamebridge_bridge_requests_created_total 2",
		`gamebridge_bridge_requests_processed_total{outcome="completed"} 1`,
		`gamebridge_bridge_requests_processed_total{outcome="failed"} 1`,
		"gamebridge_bridge_requests_cancelled_total 1",
		"gamebridge_bridge_volume_wei_total 500",
		`gamebridge_settlements_total{status="pending"} 1`,
		"gamebridge_disputes_opened_total 1",
		"gamebridge_fee_pool_wei 25",
		`gamebridge_rejected_operations_total{reason="unauthorized"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape missing %q", want)
		}
	}
}

func TestCollectorsIsolated(t *testing.T) {
	// each collector has its own registry; two instances must not collide
	a := NewCollector()
	b := NewCollector()

	a.RequestCancelled()

	if body := scrape(t, b); strings.Contains(body, "gamebridge_bridge_requests_cancelled_total 1") {
		t.Error("collectors share state")
	}
}
