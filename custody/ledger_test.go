package custody

import (
	"errors"
	"math/big"
	"testing"

	"gamebridge/types"

	"github.com/ethereum/go-ethereum/common"
)

var (
	custodyAddr = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	tokenAddr   = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	nftAddr     = common.HexToAddress("0x0000000000000000000000000000000000000a02")
	alice       = common.HexToAddress("0x0000000000000000000000000000000000000101")
	bob         = common.HexToAddress("0x0000000000000000000000000000000000000102")
)

func TestFungibleLockRelease(t *testing.T) {
	l := NewMemoryLedger(custodyAddr)
	l.Mint(types.AssetToken, tokenAddr, alice, big.NewInt(100))

	if err := l.Lock(types.AssetToken, tokenAddr, alice, big.NewInt(60)); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if got := l.Balance(types.AssetToken, tokenAddr, custodyAddr); got.Cmp(big.NewInt(60)) != 0 {
		t.Errorf("custody balance = %s, want 60", got)
	}

	if err := l.Release(types.AssetToken, tokenAddr, bob, big.NewInt(60)); err != nil {
		t.Fatalf("Release: %v", err)
	}

	// conservation: total supply unchanged
	total := new(big.Int)
	for _, addr := range []common.Address{alice, bob, custodyAddr} {
		total.Add(total, l.Balance(types.AssetToken, tokenAddr, addr))
	}
	if total.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("total supply = %s, want 100", total)
	}
}

func TestLockInsufficientBalance(t *testing.T) {
	l := NewMemoryLedger(custodyAddr)
	l.Mint(types.AssetToken, tokenAddr, alice, big.NewInt(10))

	err := l.Lock(types.AssetToken, tokenAddr, alice, big.NewInt(11))
	if !errors.Is(err, ErrTransferRejected) {
		t.Fatalf("err = %v, want ErrTransferRejected", err)
	}
	if got := l.Balance(types.AssetToken, tokenAddr, alice); got.Cmp(big.NewInt(10)) != 0 {
		t.Errorf("balance = %s, want untouched 10", got)
	}

	if err := l.Lock(types.AssetToken, tokenAddr, alice, big.NewInt(0)); !errors.Is(err, ErrTransferRejected) {
		t.Fatalf("err = %v, want ErrTransferRejected for zero amount", err)
	}
}

func TestNFTOwnership(t *testing.T) {
	l := NewMemoryLedger(custodyAddr)
	tokenID := big.NewInt(7)
	l.Mint(types.AssetNFT, nftAddr, alice, tokenID)

	// bob does not own the token
	if err := l.Lock(types.AssetNFT, nftAddr, bob, tokenID); !errors.Is(err, ErrTransferRejected) {
		t.Fatalf("err = %v, want ErrTransferRejected", err)
	}

	if err := l.Lock(types.AssetNFT, nftAddr, alice, tokenID); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if got := l.OwnerOf(nftAddr, tokenID); got != custodyAddr {
		t.Errorf("owner = %s, want custody", got.Hex())
	}

	if err := l.Refund(types.AssetNFT, nftAddr, alice, tokenID); err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if got := l.OwnerOf(nftAddr, tokenID); got != alice {
		t.Errorf("owner = %s, want alice", got.Hex())
	}
}

func TestGamingAssetIsFungible(t *testing.T) {
	l := NewMemoryLedger(custodyAddr)
	l.Mint(types.AssetGamingAsset, tokenAddr, alice, big.NewInt(5))

	if err := l.Lock(types.AssetGamingAsset, tokenAddr, alice, big.NewInt(5)); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if got := l.Balance(types.AssetGamingAsset, tokenAddr, custodyAddr); got.Cmp(big.NewInt(5)) != 0 {
		t.Errorf("custody balance = %s, want 5", got)
	}

	// asset types are separate namespaces even on the same address
	if got := l.Balance(types.AssetToken, tokenAddr, custodyAddr); got.Sign() != 0 {
		t.Errorf("token balance = %s, want 0", got)
	}
}
