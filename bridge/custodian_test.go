package bridge

import (
	"errors"
	"testing"

	"gamebridge/custody"
	"gamebridge/types"

	"github.com/ethereum/go-ethereum/common"
)

func TestCustodianPerRequestIsolation(t *testing.T) {
	assets := custody.NewMemoryLedger(custodyAddr)
	c := NewCustodian(assets)

	a := common.HexToAddress("0x0000000000000000000000000000000000000201")
	b := common.HexToAddress("0x0000000000000000000000000000000000000202")
	assets.Mint(types.AssetToken, tokenAddr, a, wei(100))
	assets.Mint(types.AssetToken, tokenAddr, b, wei(100))

	if err := c.LockForRequest(1, types.AssetToken, tokenAddr, a, wei(60)); err != nil {
		t.Fatalf("LockForRequest: %v", err)
	}
	if err := c.LockForRequest(2, types.AssetToken, tokenAddr, b, wei(40)); err != nil {
		t.Fatalf("LockForRequest: %v", err)
	}

	// request 1's release pays out exactly its own holding
	if err := c.ReleaseRequest(1, b); err != nil {
		t.Fatalf("ReleaseRequest: %v", err)
	}
	if got := assets.Balance(types.AssetToken, tokenAddr, b); got.Cmp(wei(120)) != 0 {
		t.Errorf("balance = %s, want 120", got)
	}
	if c.Held(1) != nil {
		t.Error("holding 1 not cleared")
	}
	if c.Held(2) == nil || c.Held(2).Cmp(wei(40)) != 0 {
		t.Errorf("holding 2 = %v, want 40", c.Held(2))
	}

	// double release fails
	if err := c.ReleaseRequest(1, b); !errors.Is(err, types.ErrCustody) {
		t.Fatalf("err = %v, want ErrCustody on double release", err)
	}
}

func TestCustodianDuplicateLock(t *testing.T) {
	assets := custody.NewMemoryLedger(custodyAddr)
	c := NewCustodian(assets)
	assets.Mint(types.AssetToken, tokenAddr, senderAddr, wei(100))

	if err := c.LockForRequest(1, types.AssetToken, tokenAddr, senderAddr, wei(10)); err != nil {
		t.Fatalf("LockForRequest: %v", err)
	}
	if err := c.LockForRequest(1, types.AssetToken, tokenAddr, senderAddr, wei(10)); !errors.Is(err, types.ErrCustody) {
		t.Fatalf("err = %v, want ErrCustody on duplicate lock", err)
	}
}

func TestCustodianFailedReleaseKeepsHolding(t *testing.T) {
	assets := custody.NewMemoryLedger(custodyAddr)
	c := NewCustodian(assets)
	assets.Mint(types.AssetToken, tokenAddr, senderAddr, wei(100))

	if err := c.LockForRequest(1, types.AssetToken, tokenAddr, senderAddr, wei(50)); err != nil {
		t.Fatalf("LockForRequest: %v", err)
	}

	// drain the custody account behind the custodian's back
	if err := assets.Release(types.AssetToken, tokenAddr, senderAddr, wei(50)); err != nil {
		t.Fatalf("drain: %v", err)
	}

	if err := c.ReleaseRequest(1, recipAddr); !errors.Is(err, types.ErrCustody) {
		t.Fatalf("err = %v, want ErrCustody", err)
	}
	// holding survives for a retry after the ledger recovers
	if c.Held(1) == nil {
		t.Fatal("holding dropped on failed release")
	}

	assets.Mint(types.AssetToken, tokenAddr, custodyAddr, wei(50))
	if err := c.ReleaseRequest(1, recipAddr); err != nil {
		t.Fatalf("retry ReleaseRequest: %v", err)
	}
}

func TestCustodianSettlementHoldings(t *testing.T) {
	assets := custody.NewMemoryLedger(custodyAddr)
	c := NewCustodian(assets)

	escrow := common.HexToAddress("0x0000000000000000000000000000000000000301")
	assets.Mint(types.AssetToken, common.Address{}, escrow, wei(500))

	if err := c.LockForSettlement(1, common.Address{}, escrow, wei(200)); err != nil {
		t.Fatalf("LockForSettlement: %v", err)
	}
	// settlement and request id spaces do not collide
	if c.Held(1) != nil {
		t.Error("settlement holding visible under request key")
	}
	if err := c.ReleaseSettlement(1, recipAddr); err != nil {
		t.Fatalf("ReleaseSettlement: %v", err)
	}
	if got := assets.Balance(types.AssetToken, common.Address{}, recipAddr); got.Cmp(wei(200)) != 0 {
		t.Errorf("balance = %s, want 200", got)
	}
}
