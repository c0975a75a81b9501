package oracle

import (
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStaticOracle(t *testing.T) {
	o := &StaticOracle{Bridge: big.NewInt(10), Dispute: big.NewInt(50)}

	if got := o.BridgeFee(137); got.Cmp(big.NewInt(10)) != 0 {
		t.Errorf("bridge fee = %s, want 10", got)
	}
	if got := o.DisputeFee(); got.Cmp(big.NewInt(50)) != 0 {
		t.Errorf("dispute fee = %s, want 50", got)
	}
}

func TestRPCOracle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     interface{}   `json:"id"`
			Method string        `json:"method"`
			Params []interface{} `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}

		result := "0"
		switch req.Method {
		case "oracle_bridgeFee":
			result = "777"
		case "oracle_disputeFee":
			result = "55"
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		})
	}))
	defer srv.Close()

	o := NewRPCOracle(srv.URL, &StaticOracle{Bridge: big.NewInt(1), Dispute: big.NewInt(2)})

	if got := o.BridgeFee(137); got.Cmp(big.NewInt(777)) != 0 {
		t.Errorf("bridge fee = %s, want 777", got)
	}
	if got := o.DisputeFee(); got.Cmp(big.NewInt(55)) != 0 {
		t.Errorf("dispute fee = %s, want 55", got)
	}
}

func TestRPCOracleFallback(t *testing.T) {
	// unreachable endpoint falls back to the static defaults
	o := NewRPCOracle("http://127.0.0.1:1", &StaticOracle{Bridge: big.NewInt(11), Dispute: big.NewInt(22)})

	if got := o.BridgeFee(137); got.Cmp(big.NewInt(11)) != 0 {
		t.Errorf("bridge fee = %s, want fallback 11", got)
	}
	if got := o.DisputeFee(); got.Cmp(big.NewInt(22)) != 0 {
		t.Errorf("dispute fee = %s, want fallback 22", got)
	}
}

func TestRPCOracleGarbageResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"not-a-number"}`))
	}))
	defer srv.Close()

	o := NewRPCOracle(srv.URL, &StaticOracle{Bridge: big.NewInt(11), Dispute: big.NewInt(22)})
	if got := o.BridgeFee(1); got.Cmp(big.NewInt(11)) != 0 {
		t.Errorf("bridge fee = %s, want fallback 11", got)
	}
}
