// Package bridge holds the cross-chain request state machine and its
// supporting registries. Every transition is a compare-and-swap under the
// processor lock: concurrent attempts on the same request see exactly one
// winner, the rest observe an invalid transition.
package bridge

import (
	"errors"
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"

	"gamebridge/events"
	"gamebridge/identity"
	"gamebridge/metrics"
	"gamebridge/oracle"
	"gamebridge/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Processor is the single authoritative entry point for bridge requests.
type Processor struct {
	chains    *ChainRegistry
	relayers  *RelayerRegistry
	custodian *Custodian
	oracle    oracle.FeeOracle
	store     Store
	bus       *events.Bus
	collector *metrics.Collector
	now       func() time.Time

	maxAmount *big.Int

	mu            sync.Mutex
	nextID        uint64
	requests      map[uint64]*types.BridgeRequest
	bySender      map[common.Address][]uint64
	byChainStatus map[chainStatus]map[uint64]struct{}
	seenHashes    map[common.Hash]struct{}
	feePool       *big.Int
	totalRequests uint64
	totalVolume   *big.Int
}

type chainStatus struct {
	chainID uint64
	status  types.BridgeStatus
}

type ProcessorOptions struct {
	Chains    *ChainRegistry
	Relayers  *RelayerRegistry
	Custodian *Custodian
	Oracle    oracle.FeeOracle
	Store     Store
	Bus       *events.Bus
	Collector *metrics.Collector
	MaxAmount *big.Int
	Now       func() time.Time
}

func NewProcessor(opts ProcessorOptions) *Processor {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Processor{
		chains:        opts.Chains,
		relayers:      opts.Relayers,
		custodian:     opts.Custodian,
		oracle:        opts.Oracle,
		store:         opts.Store,
		bus:           opts.Bus,
		collector:     opts.Collector,
		now:           now,
		maxAmount:     opts.MaxAmount,
		requests:      make(map[uint64]*types.BridgeRequest),
		bySender:      make(map[common.Address][]uint64),
		byChainStatus: make(map[chainStatus]map[uint64]struct{}),
		seenHashes:    make(map[common.Hash]struct{}),
		feePool:       new(big.Int),
		totalVolume:   new(big.Int),
	}
}

// CreateParams carries everything createRequest validates. FeePaid is the
// value the sender attached for the bridge fee.
type CreateParams struct {
	Recipient          common.Address
	DestinationChainID uint64
	AssetType          types.AssetType
	AssetAddress       common.Address
	Amount             *big.Int
	TokenID            *big.Int
	FeePaid            *big.Int
}

// contentHash is the deterministic fingerprint of a request, computed once
// at creation and never recomputed.
func contentHash(id uint64, sender, recipient common.Address, sourceChain, destChain uint64, assetType types.AssetType, assetAddress common.Address, value *big.Int, createdAt int64) common.Hash {
	enc := fmt.Sprintf("%d|%s|%s|%d|%d|%d|%s|%s|%d",
		id, sender.Hex(), recipient.Hex(), sourceChain, destChain,
		assetType, assetAddress.Hex(), value.String(), createdAt)
	return crypto.Keccak256Hash([]byte(enc))
}

// CreateRequest validates, locks custody and inserts a PENDING request.
// Validation and fee checks run before any asset movement.
func (p *Processor) CreateRequest(caller *identity.Caller, params CreateParams) (*types.BridgeRequest, error) {
	if err := caller.Require(identity.CapSender); err != nil {
		return nil, err
	}

	value, err := p.validate(&params)
	if err != nil {
		p.reject(err)
		return nil, err
	}

	fee := p.oracle.BridgeFee(params.DestinationChainID)
	if params.FeePaid == nil || params.FeePaid.Cmp(fee) < 0 {
		err = fmt.Errorf("%w: required %s", types.ErrInsufficientFee, fee.String())
		p.reject(err)
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextID + 1
	createdAt := p.now().Unix()
	hash := contentHash(id, caller.Address, params.Recipient, p.chains.HomeChainID(),
		params.DestinationChainID, params.AssetType, params.AssetAddress, value, createdAt)

	if _, seen := p.seenHashes[hash]; seen {
		err = fmt.Errorf("%w: %s", types.ErrDuplicateRequest, hash.Hex())
		p.reject(err)
		return nil, err
	}

	if err = p.custodian.LockForRequest(id, params.AssetType, params.AssetAddress, caller.Address, value); err != nil {
		p.reject(err)
		return nil, err
	}

	// durable replay mark only after custody accepted the lock; a declined
	// lock must not poison the hash for an identical retry
	if p.store != nil {
		inserted, serr := p.store.MarkContentHash(hash.Hex())
		if serr != nil || !inserted {
			if rerr := p.custodian.RefundRequest(id, caller.Address); rerr != nil {
				log.Printf("Error unwinding escrow for request %d: %v", id, rerr)
			}
			if serr != nil {
				return nil, serr
			}
			err = fmt.Errorf("%w: %s", types.ErrDuplicateRequest, hash.Hex())
			p.reject(err)
			return nil, err
		}
	}

	req := &types.BridgeRequest{
		ID:                 id,
		Sender:             caller.Address,
		Recipient:          params.Recipient,
		SourceChainID:      p.chains.HomeChainID(),
		DestinationChainID: params.DestinationChainID,
		AssetType:          params.AssetType,
		AssetAddress:       params.AssetAddress,
		Amount:             params.Amount,
		TokenID:            params.TokenID,
		ContentHash:        hash,
		Status:             types.BridgePending,
		CreatedAt:          createdAt,
	}

	p.nextID = id
	p.seenHashes[hash] = struct{}{}
	p.requests[id] = req
	p.bySender[req.Sender] = append(p.bySender[req.Sender], id)
	p.indexAdd(req)

	p.totalRequests++
	if req.AssetType.Fungible() {
		p.totalVolume = new(big.Int).Add(p.totalVolume, value)
	}
	p.feePool = new(big.Int).Add(p.feePool, fee)

	// funds are locked and the request exists; persistence past this point
	// is write-behind so a redis hiccup cannot strand a live request
	if p.store != nil {
		if serr := p.store.SaveBridgeRequest(req); serr != nil {
			log.Printf("Error persisting request %d: %v", id, serr)
		}
		if serr := p.store.SetFeePool(p.feePool.String()); serr != nil {
			log.Printf("Error persisting fee pool: %v", serr)
		}
	}
	if p.collector != nil {
		if req.AssetType.Fungible() {
			p.collector.RequestCreated(value)
		} else {
			p.collector.RequestCreated(nil)
		}
		p.collector.SetFeePool(p.feePool)
	}
	if p.bus != nil {
		p.bus.Publish(types.EventBridgeRequest, id, "", string(types.BridgePending), caller.Address)
	}

	out := *req
	return &out, nil
}

// validate runs the cheap precondition checks before any custody call. Returns the escrowed value (amount or token id).
func (p *Processor) validate(params *CreateParams) (*big.Int, error) {
	if params.AssetType.Fungible() {
		if params.Amount == nil || params.Amount.Sign() <= 0 {
			return nil, fmt.Errorf("%w: amount must be positive", types.ErrValidation)
		}
		if p.maxAmount != nil && params.Amount.Cmp(p.maxAmount) > 0 {
			return nil, fmt.Errorf("%w: %s", types.ErrAmountTooLarge, params.Amount.String())
		}
	} else if params.TokenID == nil {
		return nil, fmt.Errorf("%w: token id required for NFT transfers", types.ErrValidation)
	}
	if params.Recipient == (common.Address{}) {
		return nil, fmt.Errorf("%w: recipient is zero address", types.ErrValidation)
	}
	if params.DestinationChainID == p.chains.HomeChainID() {
		return nil, fmt.Errorf("%w: destination is the home chain", types.ErrValidation)
	}
	if err := p.chains.usable(params.DestinationChainID); err != nil {
		return nil, err
	}
	if params.AssetType.Fungible() {
		return params.Amount, nil
	}
	return params.TokenID, nil
}

// ProcessRequest reports the destination-side outcome of a pending request.
// Exactly one concurrent call on the same id wins; the transition and the
// custody movement share the processor lock so a custody failure leaves the
// status unchanged for retry.
func (p *Processor) ProcessRequest(caller *identity.Caller, requestID uint64, success bool) (*types.BridgeRequest, error) {
	if err := caller.Require(identity.CapRelayer); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	req, ok := p.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("%w: request %d", types.ErrNotFound, requestID)
	}

	if err := p.relayers.authorize(caller.Address, req.DestinationChainID); err != nil {
		p.rejectTransition(req, caller.Address, err)
		return nil, err
	}
	if req.Status != types.BridgePending {
		err := fmt.Errorf("%w: request %d is %s, not pending", types.ErrInvalidTransition, requestID, req.Status)
		p.rejectTransition(req, caller.Address, err)
		return nil, err
	}

	// claim, then move funds; the claim is rolled back on custody failure
	p.transition(req, types.BridgeProcessing)

	var custodyErr error
	if success {
		custodyErr = p.custodian.ReleaseRequest(req.ID, req.Recipient)
	} else {
		custodyErr = p.custodian.RefundRequest(req.ID, req.Sender)
	}
	if custodyErr != nil {
		p.transition(req, types.BridgePending)
		p.rejectTransition(req, caller.Address, custodyErr)
		return nil, custodyErr
	}

	final := types.BridgeFailed
	outcome := "failed"
	if success {
		final = types.BridgeCompleted
		outcome = "completed"
	}
	req.ProcessedAt = p.now().Unix()
	req.ProcessingRelayer = caller.Address
	p.transition(req, final)

	var volume *big.Int
	if req.AssetType.Fungible() {
		volume = req.Amount
	}
	p.relayers.recordActivity(caller.Address, volume)

	if p.store != nil {
		if serr := p.store.ChangeBridgeRequestStatus(req, types.BridgePending); serr != nil {
			log.Printf("Error persisting status of request %d: %v", req.ID, serr)
		}
	}
	if p.collector != nil {
		p.collector.RequestProcessed(outcome)
	}
	if p.bus != nil {
		p.bus.Publish(types.EventBridgeRequest, req.ID, string(types.BridgePending), string(final), caller.Address)
	}

	out := *req
	return &out, nil
}

// CancelRequest lets the original sender abort a still-pending request that
// originated on the home chain. Full refund, no fee return.
func (p *Processor) CancelRequest(caller *identity.Caller, requestID uint64) (*types.BridgeRequest, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	req, ok := p.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("%w: request %d", types.ErrNotFound, requestID)
	}
	if req.Sender != caller.Address {
		err := fmt.Errorf("%w: only the sender may cancel", types.ErrUnauthorized)
		p.rejectTransition(req, caller.Address, err)
		return nil, err
	}
	if req.SourceChainID != p.chains.HomeChainID() {
		err := fmt.Errorf("%w: request did not originate here", types.ErrValidation)
		p.rejectTransition(req, caller.Address, err)
		return nil, err
	}
	if req.Status != types.BridgePending {
		err := fmt.Errorf("%w: request %d is %s, not pending", types.ErrInvalidTransition, requestID, req.Status)
		p.rejectTransition(req, caller.Address, err)
		return nil, err
	}

	if err := p.custodian.RefundRequest(req.ID, req.Sender); err != nil {
		p.rejectTransition(req, caller.Address, err)
		return nil, err
	}

	req.ProcessedAt = p.now().Unix()
	p.transition(req, types.BridgeCancelled)

	if p.store != nil {
		if serr := p.store.ChangeBridgeRequestStatus(req, types.BridgePending); serr != nil {
			log.Printf("Error persisting status of request %d: %v", req.ID, serr)
		}
	}
	if p.collector != nil {
		p.collector.RequestCancelled()
	}
	if p.bus != nil {
		p.bus.Publish(types.EventBridgeRequest, req.ID, string(types.BridgePending), string(types.BridgeCancelled), caller.Address)
	}

	out := *req
	return &out, nil
}

// GetRequest returns a copy of a request.
func (p *Processor) GetRequest(requestID uint64) (types.BridgeRequest, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	req, ok := p.requests[requestID]
	if !ok {
		return types.BridgeRequest{}, false
	}
	return *req, true
}

// RequestsBySender returns copies of all requests created by sender.
func (p *Processor) RequestsBySender(sender common.Address) []types.BridgeRequest {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := p.bySender[sender]
	out := make([]types.BridgeRequest, 0, len(ids))
	for _, id := range ids {
		out = append(out, *p.requests[id])
	}
	return out
}

// RequestsByChainStatus serves the (destinationChainId, status) secondary
// index, maintained incrementally on every transition.
func (p *Processor) RequestsByChainStatus(chainID uint64, status types.BridgeStatus) []types.BridgeRequest {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]types.BridgeRequest, 0)
	for id := range p.byChainStatus[chainStatus{chainID, status}] {
		out = append(out, *p.requests[id])
	}
	return out
}

// FeePool returns the current withdrawable admin fee pool.
func (p *Processor) FeePool() *big.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(big.Int).Set(p.feePool)
}

// WithdrawFees drains the admin fee pool. The pool is accounting only; the
// actual payout happens on the fee ledger outside this core.
func (p *Processor) WithdrawFees(caller *identity.Caller) (*big.Int, error) {
	if err := caller.Require(identity.CapAdmin); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	out := p.feePool
	p.feePool = new(big.Int)
	if p.store != nil {
		if err := p.store.SetFeePool("0"); err != nil {
			p.feePool = out
			return nil, err
		}
	}
	if p.collector != nil {
		p.collector.SetFeePool(p.feePool)
	}
	return out, nil
}

// Totals returns the aggregate request count and fungible volume.
func (p *Processor) Totals() (uint64, *big.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalRequests, new(big.Int).Set(p.totalVolume)
}

// Restore re-inserts a persisted request on startup. Not for use after the
// processor starts serving traffic.
func (p *Processor) Restore(req *types.BridgeRequest) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cp := *req
	p.requests[cp.ID] = &cp
	p.bySender[cp.Sender] = append(p.bySender[cp.Sender], cp.ID)
	p.indexAdd(&cp)
	p.seenHashes[cp.ContentHash] = struct{}{}
	if cp.ID > p.nextID {
		p.nextID = cp.ID
	}
	p.totalRequests++
	if cp.AssetType.Fungible() && cp.Amount != nil {
		p.totalVolume = new(big.Int).Add(p.totalVolume, cp.Amount)
	}
}

// RestoreFeePool sets the fee pool from a persisted snapshot on startup.
func (p *Processor) RestoreFeePool(amount *big.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if amount != nil {
		p.feePool = new(big.Int).Set(amount)
	}
}

func (p *Processor) transition(req *types.BridgeRequest, next types.BridgeStatus) {
	p.indexRemove(req)
	req.Status = next
	p.indexAdd(req)
}

func (p *Processor) indexAdd(req *types.BridgeRequest) {
	key := chainStatus{req.DestinationChainID, req.Status}
	if p.byChainStatus[key] == nil {
		p.byChainStatus[key] = make(map[uint64]struct{})
	}
	p.byChainStatus[key][req.ID] = struct{}{}
}

func (p *Processor) indexRemove(req *types.BridgeRequest) {
	key := chainStatus{req.DestinationChainID, req.Status}
	delete(p.byChainStatus[key], req.ID)
}

func (p *Processor) reject(err error) {
	if p.collector != nil {
		p.collector.Rejected(rejectReason(err))
	}
}

func (p *Processor) rejectTransition(req *types.BridgeRequest, actor common.Address, err error) {
	p.reject(err)
	if p.bus != nil {
		p.bus.PublishRejected(types.EventBridgeRequest, req.ID, string(req.Status), actor, err.Error())
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, types.ErrValidation):
		return "validation"
	case errors.Is(err, types.ErrUnsupportedChain):
		return "unsupported_chain"
	case errors.Is(err, types.ErrInactiveChain):
		return "inactive_chain"
	case errors.Is(err, types.ErrInsufficientFee):
		return "insufficient_fee"
	case errors.Is(err, types.ErrDuplicateRequest):
		return "duplicate"
	case errors.Is(err, types.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, types.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, types.ErrCustody):
		return "custody"
	case errors.Is(err, types.ErrAmountTooLarge):
		return "amount_too_large"
	}
	return "other"
}
