package bridge

import (
	"fmt"
	"math/big"
	"sync"

	"gamebridge/custody"
	"gamebridge/types"

	"github.com/ethereum/go-ethereum/common"
)

// Custodian tracks locked holdings per entity id on top of the external
// asset ledger. Tracking by id rather than pooled balance keeps one request
// from ever releasing another's funds.
type Custodian struct {
	mu       sync.Mutex
	ledger   custody.Ledger
	holdings map[string]*holding
}

type holding struct {
	assetType    types.AssetType
	assetAddress common.Address
	value        *big.Int
}

func NewCustodian(ledger custody.Ledger) *Custodian {
	return &Custodian{
		ledger:   ledger,
		holdings: make(map[string]*holding),
	}
}

func requestHoldingKey(id uint64) string    { return fmt.Sprintf("req:%d", id) }
func settlementHoldingKey(id uint64) string { return fmt.Sprintf("settle:%d", id) }

func (c *Custodian) lock(key string, assetType types.AssetType, assetAddress, from common.Address, value *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.holdings[key]; ok {
		return fmt.Errorf("%w: holding %s already exists", types.ErrCustody, key)
	}
	if err := c.ledger.Lock(assetType, assetAddress, from, value); err != nil {
		return fmt.Errorf("%w: %v", types.ErrCustody, err)
	}
	c.holdings[key] = &holding{
		assetType:    assetType,
		assetAddress: assetAddress,
		value:        new(big.Int).Set(value),
	}
	return nil
}

func (c *Custodian) out(key string, to common.Address, refund bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.holdings[key]
	if !ok {
		return fmt.Errorf("%w: no locked holding for %s", types.ErrCustody, key)
	}

	var err error
	if refund {
		err = c.ledger.Refund(h.assetType, h.assetAddress, to, h.value)
	} else {
		err = c.ledger.Release(h.assetType, h.assetAddress, to, h.value)
	}
	if err != nil {
		// holding stays, caller may retry the whole operation
		return fmt.Errorf("%w: %v", types.ErrCustody, err)
	}
	delete(c.holdings, key)
	return nil
}

// LockForRequest escrows the asset backing a bridge request.
func (c *Custodian) LockForRequest(id uint64, assetType types.AssetType, assetAddress, from common.Address, value *big.Int) error {
	return c.lock(requestHoldingKey(id), assetType, assetAddress, from, value)
}

// ReleaseRequest pays the locked asset out to the recipient.
func (c *Custodian) ReleaseRequest(id uint64, to common.Address) error {
	return c.out(requestHoldingKey(id), to, false)
}

// RefundRequest returns the locked asset to the sender.
func (c *Custodian) RefundRequest(id uint64, to common.Address) error {
	return c.out(requestHoldingKey(id), to, true)
}

// LockForSettlement escrows the settled amount from the confirmer escrow.
func (c *Custodian) LockForSettlement(id uint64, assetAddress, from common.Address, value *big.Int) error {
	return c.lock(settlementHoldingKey(id), types.AssetToken, assetAddress, from, value)
}

// ReleaseSettlement pays a confirmed/resolved settlement out.
func (c *Custodian) ReleaseSettlement(id uint64, to common.Address) error {
	return c.out(settlementHoldingKey(id), to, false)
}

// RefundSettlement returns a settlement lock to the escrow account.
func (c *Custodian) RefundSettlement(id uint64, to common.Address) error {
	return c.out(settlementHoldingKey(id), to, true)
}

// Held reports the value currently locked for a request (nil if none).
func (c *Custodian) Held(id uint64) *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.holdings[requestHoldingKey(id)]
	if !ok {
		return nil
	}
	return new(big.Int).Set(h.value)
}
