package bridge

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"gamebridge/events"
	"gamebridge/identity"
	"gamebridge/types"

	"github.com/ethereum/go-ethereum/common"
)

// RelayerRegistry is the stake-weighted authorization table. Relayer records
// are never deleted; a relayer that leaves is deactivated and its history
// kept for accounting.
type RelayerRegistry struct {
	mu       sync.RWMutex
	minStake *big.Int
	relayers map[common.Address]*types.RelayerInfo
	store    Store
	bus      *events.Bus
	now      func() time.Time
}

func NewRelayerRegistry(minStake *big.Int, store Store, bus *events.Bus) *RelayerRegistry {
	return &RelayerRegistry{
		minStake: minStake,
		relayers: make(map[common.Address]*types.RelayerInfo),
		store:    store,
		bus:      bus,
		now:      time.Now,
	}
}

// Register activates the caller as a relayer for one destination chain.
func (r *RelayerRegistry) Register(caller *identity.Caller, chainID uint64, stake *big.Int) error {
	if err := caller.Require(identity.CapRelayer); err != nil {
		return err
	}
	if stake == nil || stake.Cmp(r.minStake) < 0 {
		return fmt.Errorf("%w: need at least %s", types.ErrInsufficientStake, r.minStake.String())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if rel, ok := r.relayers[caller.Address]; ok && rel.IsActive {
		return fmt.Errorf("%w: %s", types.ErrAlreadyRegistered, caller.Address.Hex())
	}

	rel := &types.RelayerInfo{
		Address:      caller.Address,
		ChainID:      chainID,
		Stake:        new(big.Int).Set(stake),
		TotalVolume:  new(big.Int),
		IsActive:     true,
		RegisteredAt: r.now().Unix(),
	}
	if prev, ok := r.relayers[caller.Address]; ok {
		// reactivation keeps lifetime accounting
		rel.TotalProcessed = prev.TotalProcessed
		rel.TotalVolume = prev.TotalVolume
	}
	r.relayers[caller.Address] = rel

	if err := r.persist(rel); err != nil {
		return err
	}
	if r.bus != nil {
		r.bus.Publish(types.EventRelayer, rel.ChainID, "", "registered", caller.Address)
	}
	return nil
}

func (r *RelayerRegistry) AddStake(caller *identity.Caller, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: non-positive stake amount", types.ErrValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rel, ok := r.relayers[caller.Address]
	if !ok {
		return fmt.Errorf("%w: relayer %s", types.ErrNotFound, caller.Address.Hex())
	}
	rel.Stake = new(big.Int).Add(rel.Stake, amount)
	return r.persist(rel)
}

// WithdrawStake lowers the stake, never past the minimum while the relayer
// stays active. There is no time delay on withdrawal.
func (r *RelayerRegistry) WithdrawStake(caller *identity.Caller, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: non-positive stake amount", types.ErrValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rel, ok := r.relayers[caller.Address]
	if !ok {
		return fmt.Errorf("%w: relayer %s", types.ErrNotFound, caller.Address.Hex())
	}
	remaining := new(big.Int).Sub(rel.Stake, amount)
	if remaining.Sign() < 0 {
		return fmt.Errorf("%w: stake is %s", types.ErrValidation, rel.Stake.String())
	}
	if rel.IsActive && remaining.Cmp(r.minStake) < 0 {
		return fmt.Errorf("%w: %s < %s", types.ErrBelowMinimumStake, remaining.String(), r.minStake.String())
	}
	rel.Stake = remaining
	return r.persist(rel)
}

// Deactivate retires a relayer; admin capability or the relayer itself.
func (r *RelayerRegistry) Deactivate(caller *identity.Caller, address common.Address) error {
	if caller.Address != address {
		if err := caller.Require(identity.CapAdmin); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rel, ok := r.relayers[address]
	if !ok {
		return fmt.Errorf("%w: relayer %s", types.ErrNotFound, address.Hex())
	}
	if !rel.IsActive {
		return nil
	}
	rel.IsActive = false

	if err := r.persist(rel); err != nil {
		return err
	}
	if r.bus != nil {
		r.bus.Publish(types.EventRelayer, rel.ChainID, "registered", "deactivated", caller.Address)
	}
	return nil
}

// Get returns a copy of the relayer record.
func (r *RelayerRegistry) Get(address common.Address) (types.RelayerInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rel, ok := r.relayers[address]
	if !ok {
		return types.RelayerInfo{}, false
	}
	out := *rel
	out.Stake = new(big.Int).Set(rel.Stake)
	out.TotalVolume = new(big.Int).Set(rel.TotalVolume)
	return out, true
}

// authorize checks that the relayer may process requests towards chainID.
func (r *RelayerRegistry) authorize(address common.Address, chainID uint64) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rel, ok := r.relayers[address]
	if !ok || !rel.IsActive || rel.Stake.Cmp(r.minStake) < 0 {
		return fmt.Errorf("%w: relayer %s not active or understaked", types.ErrUnauthorized, address.Hex())
	}
	if rel.ChainID != chainID {
		return fmt.Errorf("%w: relayer %s serves chain %d, not %d", types.ErrUnauthorized, address.Hex(), rel.ChainID, chainID)
	}
	return nil
}

// recordActivity updates throughput/volume accounting after a processed
// request. Only the processor calls this, never external callers.
func (r *RelayerRegistry) recordActivity(address common.Address, volume *big.Int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rel, ok := r.relayers[address]
	if !ok {
		return
	}
	rel.TotalProcessed++
	if volume != nil {
		rel.TotalVolume = new(big.Int).Add(rel.TotalVolume, volume)
	}
	rel.LastActivityTs = r.now().Unix()
	if err := r.persist(rel); err != nil {
		// accounting write-through failure is not fatal to the transition
		return
	}
}

// Restore re-inserts a persisted relayer record on startup.
func (r *RelayerRegistry) Restore(rel *types.RelayerInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rel.Stake == nil {
		rel.Stake = new(big.Int)
	}
	if rel.TotalVolume == nil {
		rel.TotalVolume = new(big.Int)
	}
	r.relayers[rel.Address] = rel
}

func (r *RelayerRegistry) persist(rel *types.RelayerInfo) error {
	if r.store == nil {
		return nil
	}
	return r.store.SaveRelayer(rel)
}
