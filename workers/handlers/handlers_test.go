package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gamebridge/bridge"
	"gamebridge/custody"
	"gamebridge/events"
	"gamebridge/identity"
	"gamebridge/oracle"
	"gamebridge/proof"
	"gamebridge/settlement"
	"gamebridge/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi"
)

const testHomeChain = 777001

var (
	custodyAddr = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	tokenAddr   = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	senderAddr  = common.HexToAddress("0x0000000000000000000000000000000000000101")
	recipAddr   = common.HexToAddress("0x0000000000000000000000000000000000000102")
	relayerAddr = common.HexToAddress("0x0000000000000000000000000000000000000103")
	escrowAddr  = common.HexToAddress("0x0000000000000000000000000000000000000201")
)

type testServer struct {
	srv    *httptest.Server
	assets *custody.MemoryLedger
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	assets := custody.NewMemoryLedger(custodyAddr)
	assets.Mint(types.AssetToken, tokenAddr, senderAddr, big.NewInt(1_000_000))
	assets.Mint(types.AssetToken, common.Address{}, escrowAddr, big.NewInt(1_000_000))

	bus := events.NewBus(nil)
	chains := bridge.NewChainRegistry(testHomeChain, nil, bus)
	relayers := bridge.NewRelayerRegistry(big.NewInt(1000), nil, bus)
	custodian := bridge.NewCustodian(assets)
	feeOracle := &oracle.StaticOracle{Bridge: big.NewInt(10), Dispute: big.NewInt(50)}

	proc := bridge.NewProcessor(bridge.ProcessorOptions{
		Chains:    chains,
		Relayers:  relayers,
		Custodian: custodian,
		Oracle:    feeOracle,
		Bus:       bus,
		MaxAmount: big.NewInt(500_000),
	})
	ledger := settlement.NewLedger(settlement.LedgerOptions{
		Custodian: custodian,
		Verifier:  proof.StaticVerifier{Accept: true},
		Bus:       bus,
		Window:    72 * time.Hour,
		MaxAmount: big.NewInt(500_000),
	})
	resolver := settlement.NewResolver(ledger, feeOracle)

	h := New(Handler{
		Processor: proc,
		Chains:    chains,
		Relayers:  relayers,
		Ledger:    ledger,
		Resolver:  resolver,
		Identity:  identity.NewResolver([]string{"admin-key"}, []string{"conf-key"}, []string{"res-key"}),
		Bus:       bus,
	})

	r := chi.NewRouter()
	r.Get("/state", h.State)
	r.Get("/events", h.RecentEvents)
	r.Post("/bridge/requests", h.CreateRequest)
	r.Post("/bridge/requests/{id}/process", h.ProcessRequest)
	r.Post("/bridge/requests/{id}/cancel", h.CancelRequest)
	r.Get("/bridge/requests/{id}", h.GetRequest)
	r.Get("/bridge/requests", h.ListRequests)
	r.Post("/relayers", h.RegisterRelayer)
	r.Post("/relayers/stake", h.AddStake)
	r.Post("/relayers/stake/withdraw", h.WithdrawStake)
	r.Post("/relayers/{address}/deactivate", h.DeactivateRelayer)
	r.Get("/relayers/{address}", h.GetRelayer)
	r.Post("/chains", h.AddChain)
	r.Post("/chains/{id}/active", h.SetChainActive)
	r.Get("/chains/{id}", h.GetChain)
	r.Get("/chains", h.ListChains)
	r.Post("/settlements", h.CreateSettlement)
	r.Post("/settlements/{id}/confirm", h.ConfirmSettlement)
	r.Post("/settlements/{id}/dispute", h.InitiateDispute)
	r.Post("/settlements/{id}/resolve", h.ResolveDispute)
	r.Get("/settlements/{id}", h.GetSettlement)
	r.Get("/settlements/{id}/dispute", h.GetDispute)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, assets: assets}
}

func (ts *testServer) do(t *testing.T, method, path, apiKey string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if apiKey != "" {
		req.Header.Set("X-Api-Key", apiKey)
	}

	resp, err := ts.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var decoded map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func (ts *testServer) addChain(t *testing.T, chainID uint64) {
	t.Helper()

	resp, out := ts.do(t, "POST", "/chains", "admin-key", map[string]interface{}{
		"address": senderAddr.Hex(),
		"chainId": chainID,
		"name":    "Testchain",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add chain: %d %v", resp.StatusCode, out)
	}
	resp, out = ts.do(t, "POST", fmt.Sprintf("/chains/%d/active", chainID), "admin-key", map[string]interface{}{
		"address": senderAddr.Hex(),
		"active":  true,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("activate chain: %d %v", resp.StatusCode, out)
	}
}

func (ts *testServer) createRequest(t *testing.T) uint64 {
	t.Helper()

	resp, out := ts.do(t, "POST", "/bridge/requests", "", map[string]interface{}{
		"address":            senderAddr.Hex(),
		"recipient":          recipAddr.Hex(),
		"destinationChainId": 137,
		"assetType":          "token",
		"assetAddress":       tokenAddr.Hex(),
		"amount":             "1000",
		"feePaid":            "10",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create request: %d %v", resp.StatusCode, out)
	}
	return uint64(out["id"].(float64))
}

func TestBridgeRequestLifecycle(t *testing.T) {
	ts := newTestServer(t)
	ts.addChain(t, 137)

	resp, out := ts.do(t, "POST", "/relayers", "", map[string]interface{}{
		"address": relayerAddr.Hex(),
		"chainId": 137,
		"stake":   "5000",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register relayer: %d %v", resp.StatusCode, out)
	}

	id := ts.createRequest(t)

	resp, out = ts.do(t, "GET", fmt.Sprintf("/bridge/requests/%d", id), "", nil)
	if resp.StatusCode != http.StatusOK || out["status"] != "pending" {
		t.Fatalf("get request: %d %v", resp.StatusCode, out)
	}

	resp, out = ts.do(t, "POST", fmt.Sprintf("/bridge/requests/%d/process", id), "", map[string]interface{}{
		"address": relayerAddr.Hex(),
		"success": true,
	})
	if resp.StatusCode != http.StatusOK || out["status"] != "completed" {
		t.Fatalf("process request: %d %v", resp.StatusCode, out)
	}

	// the index view reflects the transition
	resp, _ = ts.do(t, "GET", "/bridge/requests?chain=137&status=completed", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list requests: %d", resp.StatusCode)
	}

	// second process attempt conflicts
	resp, _ = ts.do(t, "POST", fmt.Sprintf("/bridge/requests/%d/process", id), "", map[string]interface{}{
		"address": relayerAddr.Hex(),
		"success": true,
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("replayed process = %d, want 409", resp.StatusCode)
	}
}

func TestCancelEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.addChain(t, 137)
	id := ts.createRequest(t)

	// a non-sender is refused
	resp, _ := ts.do(t, "POST", fmt.Sprintf("/bridge/requests/%d/cancel", id), "", map[string]interface{}{
		"address": recipAddr.Hex(),
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign cancel = %d, want 403", resp.StatusCode)
	}

	resp, out := ts.do(t, "POST", fmt.Sprintf("/bridge/requests/%d/cancel", id), "", map[string]interface{}{
		"address": senderAddr.Hex(),
	})
	if resp.StatusCode != http.StatusOK || out["status"] != "cancelled" {
		t.Fatalf("cancel = %d %v", resp.StatusCode, out)
	}
}

func TestCreateRequestErrors(t *testing.T) {
	ts := newTestServer(t)
	ts.addChain(t, 137)

	// unknown destination chain
	resp, _ := ts.do(t, "POST", "/bridge/requests", "", map[string]interface{}{
		"address":            senderAddr.Hex(),
		"recipient":          recipAddr.Hex(),
		"destinationChainId": 999,
		"assetType":          "token",
		"assetAddress":       tokenAddr.Hex(),
		"amount":             "1000",
		"feePaid":            "10",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown chain = %d, want 400", resp.StatusCode)
	}

	// malformed amount
	resp, _ = ts.do(t, "POST", "/bridge/requests", "", map[string]interface{}{
		"address":            senderAddr.Hex(),
		"recipient":          recipAddr.Hex(),
		"destinationChainId": 137,
		"assetType":          "token",
		"assetAddress":       tokenAddr.Hex(),
		"amount":             "12.5",
		"feePaid":            "10",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad amount = %d, want 400", resp.StatusCode)
	}

	// unknown asset type
	resp, _ = ts.do(t, "POST", "/bridge/requests", "", map[string]interface{}{
		"address":            senderAddr.Hex(),
		"recipient":          recipAddr.Hex(),
		"destinationChainId": 137,
		"assetType":          "bond",
		"assetAddress":       tokenAddr.Hex(),
		"amount":             "1000",
		"feePaid":            "10",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad asset type = %d, want 400", resp.StatusCode)
	}

	// missing request
	resp, _ = ts.do(t, "GET", "/bridge/requests/12345", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing request = %d, want 404", resp.StatusCode)
	}
}

func TestChainAdminEndpoints(t *testing.T) {
	ts := newTestServer(t)

	// no admin key
	resp, _ := ts.do(t, "POST", "/chains", "", map[string]interface{}{
		"address": senderAddr.Hex(),
		"chainId": 137,
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("add chain without key = %d, want 403", resp.StatusCode)
	}

	ts.addChain(t, 137)

	resp, out := ts.do(t, "GET", "/chains/137", "", nil)
	if resp.StatusCode != http.StatusOK || out["isActive"] != true {
		t.Fatalf("get chain: %d %v", resp.StatusCode, out)
	}

	resp, _ = ts.do(t, "GET", "/chains", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list chains: %d", resp.StatusCode)
	}
}

func TestRelayerStakeEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ts.addChain(t, 137)

	resp, _ := ts.do(t, "POST", "/relayers", "", map[string]interface{}{
		"address": relayerAddr.Hex(),
		"chainId": 137,
		"stake":   "100",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("understaked register = %d, want 400", resp.StatusCode)
	}

	resp, _ = ts.do(t, "POST", "/relayers", "", map[string]interface{}{
		"address": relayerAddr.Hex(),
		"chainId": 137,
		"stake":   "2000",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register = %d, want 201", resp.StatusCode)
	}

	resp, _ = ts.do(t, "POST", "/relayers/stake", "", map[string]interface{}{
		"address": relayerAddr.Hex(),
		"amount":  "500",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add stake = %d, want 200", resp.StatusCode)
	}

	// pulling below the floor is refused
	resp, _ = ts.do(t, "POST", "/relayers/stake/withdraw", "", map[string]interface{}{
		"address": relayerAddr.Hex(),
		"amount":  "2000",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("floor withdraw = %d, want 400", resp.StatusCode)
	}

	resp, out := ts.do(t, "GET", "/relayers/"+relayerAddr.Hex(), "", nil)
	if resp.StatusCode != http.StatusOK || out["stake"] != "2500" {
		t.Fatalf("get relayer: %d %v", resp.StatusCode, out)
	}

	// a stranger cannot retire someone else's relayer
	resp, _ = ts.do(t, "POST", "/relayers/"+relayerAddr.Hex()+"/deactivate", "", map[string]interface{}{
		"address": recipAddr.Hex(),
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign deactivate = %d, want 403", resp.StatusCode)
	}

	resp, out = ts.do(t, "POST", "/relayers/"+relayerAddr.Hex()+"/deactivate", "", map[string]interface{}{
		"address": relayerAddr.Hex(),
	})
	if resp.StatusCode != http.StatusOK || out["isActive"] != false {
		t.Fatalf("self deactivate: %d %v", resp.StatusCode, out)
	}

	// a deactivated relayer may pull the full stake out
	resp, out = ts.do(t, "POST", "/relayers/stake/withdraw", "", map[string]interface{}{
		"address": relayerAddr.Hex(),
		"amount":  "2500",
	})
	if resp.StatusCode != http.StatusOK || out["stake"] != "0" {
		t.Fatalf("full withdraw after deactivate: %d %v", resp.StatusCode, out)
	}
}

func TestSettlementEndpoints(t *testing.T) {
	ts := newTestServer(t)

	body := map[string]interface{}{
		"address":             senderAddr.Hex(),
		"from":                escrowAddr.Hex(),
		"to":                  recipAddr.Hex(),
		"amount":              "3000",
		"sourceTransactionId": "l3-tx-1",
	}

	// confirmer key required
	resp, _ := ts.do(t, "POST", "/settlements", "", body)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("create without key = %d, want 403", resp.StatusCode)
	}

	resp, out := ts.do(t, "POST", "/settlements", "conf-key", body)
	if resp.StatusCode != http.StatusCreated || out["status"] != "pending" {
		t.Fatalf("create settlement: %d %v", resp.StatusCode, out)
	}
	id := uint64(out["id"].(float64))

	// replayed source tx conflicts
	resp, _ = ts.do(t, "POST", "/settlements", "conf-key", body)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("replayed source = %d, want 409", resp.StatusCode)
	}

	resp, out = ts.do(t, "POST", fmt.Sprintf("/settlements/%d/confirm", id), "conf-key", map[string]interface{}{
		"address": senderAddr.Hex(),
	})
	if resp.StatusCode != http.StatusOK || out["status"] != "confirmed" {
		t.Fatalf("confirm: %d %v", resp.StatusCode, out)
	}
	if got := ts.assets.Balance(types.AssetToken, common.Address{}, recipAddr); got.Cmp(big.NewInt(3000)) != 0 {
		t.Errorf("recipient balance = %s, want 3000", got)
	}
}

func TestDisputeEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp, out := ts.do(t, "POST", "/settlements", "conf-key", map[string]interface{}{
		"address":             senderAddr.Hex(),
		"from":                escrowAddr.Hex(),
		"to":                  recipAddr.Hex(),
		"amount":              "3000",
		"sourceTransactionId": "l3-tx-1",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create settlement: %d %v", resp.StatusCode, out)
	}
	id := uint64(out["id"].(float64))

	resp, out = ts.do(t, "POST", fmt.Sprintf("/settlements/%d/dispute", id), "", map[string]interface{}{
		"address": recipAddr.Hex(),
		"reason":  "amount mismatch",
		"details": "expected 3500",
		"feePaid": "50",
	})
	if resp.StatusCode != http.StatusOK || out["status"] != "disputed" {
		t.Fatalf("dispute: %d %v", resp.StatusCode, out)
	}

	resp, out = ts.do(t, "GET", fmt.Sprintf("/settlements/%d/dispute", id), "", nil)
	if resp.StatusCode != http.StatusOK || out["reason"] != "amount mismatch" {
		t.Fatalf("get dispute: %d %v", resp.StatusCode, out)
	}

	// resolver key required
	resp, _ = ts.do(t, "POST", fmt.Sprintf("/settlements/%d/resolve", id), "conf-key", map[string]interface{}{
		"address":    senderAddr.Hex(),
		"resolution": "checked",
		"approve":    true,
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("resolve without key = %d, want 403", resp.StatusCode)
	}

	resp, out = ts.do(t, "POST", fmt.Sprintf("/settlements/%d/resolve", id), "res-key", map[string]interface{}{
		"address":    senderAddr.Hex(),
		"resolution": "verified, credit released",
		"approve":    true,
	})
	if resp.StatusCode != http.StatusOK || out["status"] != "resolved" {
		t.Fatalf("resolve: %d %v", resp.StatusCode, out)
	}
}

func TestStateEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.addChain(t, 137)
	ts.createRequest(t)

	resp, out := ts.do(t, "GET", "/state", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("state = %d", resp.StatusCode)
	}
	if out["status"] != "ok" {
		t.Errorf("status = %v, want ok", out["status"])
	}
	if out["homeChainId"] != float64(testHomeChain) {
		t.Errorf("home chain = %v, want %d", out["homeChainId"], testHomeChain)
	}
	if out["totalRequests"] != float64(1) {
		t.Errorf("total requests = %v, want 1", out["totalRequests"])
	}
	if out["totalVolume"] != "1000" {
		t.Errorf("total volume = %v, want 1000", out["totalVolume"])
	}
	if out["feePool"] != "10" {
		t.Errorf("fee pool = %v, want 10", out["feePool"])
	}
}

func TestSignatureBinding(t *testing.T) {
	ts := newTestServer(t)
	ts.addChain(t, 137)

	// a signature that does not recover to the claimed address is refused
	resp, out := ts.do(t, "POST", "/bridge/requests", "", map[string]interface{}{
		"address":            senderAddr.Hex(),
		"signature":          "0x" + string(bytes.Repeat([]byte("ab"), 65)),
		"recipient":          recipAddr.Hex(),
		"destinationChainId": 137,
		"assetType":          "token",
		"assetAddress":       tokenAddr.Hex(),
		"amount":             "1000",
		"feePaid":            "10",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad signature = %d %v, want 400", resp.StatusCode, out)
	}
}
