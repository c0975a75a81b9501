// Package custody talks to the per-chain asset ledgers that actually hold
// balances. The bridge core never owns asset state directly; it locks funds
// into the custodian account here and releases/refunds them later.
package custody

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"gamebridge/types"

	"github.com/ethereum/go-ethereum/common"
)

// the external ledger declined the transfer (insufficient balance/allowance,
// or ownership mismatch for NFTs)
var ErrTransferRejected = errors.New("transfer rejected by asset ledger")

// Ledger is the outbound asset-custody collaborator. All calls are
// synchronous and all-or-nothing; retries belong to the caller.
type Ledger interface {
	// Lock moves value from the holder into bridge custody.
	Lock(assetType types.AssetType, assetAddress, from common.Address, value *big.Int) error
	// Release moves previously locked value out of custody to the recipient.
	Release(assetType types.AssetType, assetAddress, to common.Address, value *big.Int) error
	// Refund is Release back towards the original sender.
	Refund(assetType types.AssetType, assetAddress, to common.Address, value *big.Int) error
}

// MemoryLedger is an in-process asset ledger used for tests and local mode.
// Fungible assets are per-address balances, NFTs are per-token owners; the
// custody account is just another address on the ledger.
type MemoryLedger struct {
	mu        sync.Mutex
	custodian common.Address
	balances  map[string]map[common.Address]*big.Int
	owners    map[string]map[string]common.Address
}

func NewMemoryLedger(custodian common.Address) *MemoryLedger {
	return &MemoryLedger{
		custodian: custodian,
		balances:  make(map[string]map[common.Address]*big.Int),
		owners:    make(map[string]map[string]common.Address),
	}
}

func assetKey(assetType types.AssetType, assetAddress common.Address) string {
	return fmt.Sprintf("%d:%s", assetType, assetAddress.Hex())
}

// Mint credits an address for test/local setup.
func (l *MemoryLedger) Mint(assetType types.AssetType, assetAddress, to common.Address, value *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := assetKey(assetType, assetAddress)
	if assetType == types.AssetNFT {
		if l.owners[key] == nil {
			l.owners[key] = make(map[string]common.Address)
		}
		l.owners[key][value.String()] = to
		return
	}
	if l.balances[key] == nil {
		l.balances[key] = make(map[common.Address]*big.Int)
	}
	cur := l.balances[key][to]
	if cur == nil {
		cur = new(big.Int)
	}
	l.balances[key][to] = new(big.Int).Add(cur, value)
}

// Balance returns the fungible balance of an address (zero if none).
func (l *MemoryLedger) Balance(assetType types.AssetType, assetAddress, owner common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()

	bals := l.balances[assetKey(assetType, assetAddress)]
	if bals == nil || bals[owner] == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(bals[owner])
}

// OwnerOf returns the current owner of an NFT, or the zero address.
func (l *MemoryLedger) OwnerOf(assetAddress common.Address, tokenID *big.Int) common.Address {
	l.mu.Lock()
	defer l.mu.Unlock()

	owners := l.owners[assetKey(types.AssetNFT, assetAddress)]
	if owners == nil {
		return common.Address{}
	}
	return owners[tokenID.String()]
}

func (l *MemoryLedger) transfer(assetType types.AssetType, assetAddress, from, to common.Address, value *big.Int) error {
	key := assetKey(assetType, assetAddress)

	if assetType == types.AssetNFT {
		owners := l.owners[key]
		if owners == nil || owners[value.String()] != from {
			return fmt.Errorf("%w: token %s not owned by %s", ErrTransferRejected, value.String(), from.Hex())
		}
		owners[value.String()] = to
		return nil
	}

	if value == nil || value.Sign() <= 0 {
		return fmt.Errorf("%w: non-positive amount", ErrTransferRejected)
	}
	bals := l.balances[key]
	if bals == nil || bals[from] == nil || bals[from].Cmp(value) < 0 {
		return fmt.Errorf("%w: insufficient balance for %s", ErrTransferRejected, from.Hex())
	}
	bals[from] = new(big.Int).Sub(bals[from], value)
	if bals[to] == nil {
		bals[to] = new(big.Int)
	}
	bals[to] = new(big.Int).Add(bals[to], value)
	return nil
}

func (l *MemoryLedger) Lock(assetType types.AssetType, assetAddress, from common.Address, value *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transfer(assetType, assetAddress, from, l.custodian, value)
}

func (l *MemoryLedger) Release(assetType types.AssetType, assetAddress, to common.Address, value *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transfer(assetType, assetAddress, l.custodian, to, value)
}

func (l *MemoryLedger) Refund(assetType types.AssetType, assetAddress, to common.Address, value *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transfer(assetType, assetAddress, l.custodian, to, value)
}
