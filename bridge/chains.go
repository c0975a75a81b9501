package bridge

import (
	"fmt"
	"math/big"
	"sort"
	"sync"

	"gamebridge/events"
	"gamebridge/identity"
	"gamebridge/types"
)

// ChainRegistry is the configuration store for destination chains. Chains are
// added by admins and deactivated, never deleted; the home chain is seeded at
// construction and always supported.
type ChainRegistry struct {
	mu          sync.RWMutex
	homeChainID uint64
	chains      map[uint64]*types.ChainConfig
	store       Store
	bus         *events.Bus
}

func NewChainRegistry(homeChainID uint64, store Store, bus *events.Bus) *ChainRegistry {
	r := &ChainRegistry{
		homeChainID: homeChainID,
		chains:      make(map[uint64]*types.ChainConfig),
		store:       store,
		bus:         bus,
	}
	r.chains[homeChainID] = &types.ChainConfig{
		ChainID:     homeChainID,
		Name:        "home",
		IsSupported: true,
		IsActive:    true,
		BridgeFee:   new(big.Int),
	}
	return r
}

func (r *ChainRegistry) HomeChainID() uint64 {
	return r.homeChainID
}

// AddChain registers a new destination chain, inactive until SetActive.
func (r *ChainRegistry) AddChain(caller *identity.Caller, cc types.ChainConfig) error {
	if err := caller.Require(identity.CapAdmin); err != nil {
		return err
	}
	if cc.ChainID == r.homeChainID {
		return fmt.Errorf("%w: chain %d is the home chain", types.ErrValidation, cc.ChainID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.chains[cc.ChainID]; ok {
		return fmt.Errorf("%w: chain %d", types.ErrAlreadySupported, cc.ChainID)
	}

	cc.IsSupported = true
	if cc.BridgeFee == nil {
		cc.BridgeFee = new(big.Int)
	}
	stored := cc
	r.chains[cc.ChainID] = &stored

	if r.store != nil {
		if err := r.store.SaveChain(&stored); err != nil {
			return err
		}
	}
	if r.bus != nil {
		r.bus.Publish(types.EventChain, cc.ChainID, "", "supported", caller.Address)
	}
	return nil
}

// SetActive flips the active flag of a supported chain.
func (r *ChainRegistry) SetActive(caller *identity.Caller, chainID uint64, active bool) error {
	if err := caller.Require(identity.CapAdmin); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cc, ok := r.chains[chainID]
	if !ok {
		return fmt.Errorf("%w: chain %d", types.ErrUnknownChain, chainID)
	}

	old := "inactive"
	if cc.IsActive {
		old = "active"
	}
	cc.IsActive = active
	next := "inactive"
	if active {
		next = "active"
	}

	if r.store != nil {
		if err := r.store.SaveChain(cc); err != nil {
			return err
		}
	}
	if r.bus != nil && old != next {
		r.bus.Publish(types.EventChain, chainID, old, next, caller.Address)
	}
	return nil
}

// Get returns a copy of the chain config.
func (r *ChainRegistry) Get(chainID uint64) (types.ChainConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cc, ok := r.chains[chainID]
	if !ok {
		return types.ChainConfig{}, false
	}
	return *cc, true
}

// List returns all known chains ordered by chain id.
func (r *ChainRegistry) List() []types.ChainConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.ChainConfig, 0, len(r.chains))
	for _, cc := range r.chains {
		out = append(out, *cc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChainID < out[j].ChainID })
	return out
}

// Restore re-inserts a persisted chain config on startup. The home chain
// record seeded at construction is never replaced.
func (r *ChainRegistry) Restore(cc *types.ChainConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cc.ChainID == r.homeChainID {
		return
	}
	if cc.BridgeFee == nil {
		cc.BridgeFee = new(big.Int)
	}
	r.chains[cc.ChainID] = cc
}

// usable reports whether a chain can receive new bridge requests.
func (r *ChainRegistry) usable(chainID uint64) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cc, ok := r.chains[chainID]
	if !ok || !cc.IsSupported {
		return fmt.Errorf("%w: chain %d", types.ErrUnsupportedChain, chainID)
	}
	if !cc.IsActive {
		return fmt.Errorf("%w: chain %d", types.ErrInactiveChain, chainID)
	}
	return nil
}
