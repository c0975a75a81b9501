// Package settlement reconciles L3 transactions into the authoritative L2
// ledger. A settlement sits in escrow behind a dispute window; confirmation
// is an explicit confirmer action, never a background timer.
package settlement

import (
	"errors"
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"

	"gamebridge/bridge"
	"gamebridge/events"
	"gamebridge/identity"
	"gamebridge/metrics"
	"gamebridge/proof"
	"gamebridge/types"

	"github.com/ethereum/go-ethereum/common"
)

// Store is the write-through persistence surface for settlements.
type Store interface {
	SaveSettlement(st *types.Settlement) error
	ChangeSettlementStatus(st *types.Settlement, prevStatus types.SettlementStatus) error
	SaveDispute(d *types.Dispute) error
	MarkSourceTx(sourceTxID string) (bool, error)
}

// Archive is the durable L2 row store (postgres). Write-behind: archive
// failures are logged, never fail the originating transition.
type Archive interface {
	RecordSettlement(st *types.Settlement) error
	RecordDispute(d *types.Dispute) error
}

// Ledger owns settlement state. Like the bridge processor it is a single
// writer: every transition is status-checked and applied under one lock.
type Ledger struct {
	custodian *bridge.Custodian
	verifier  proof.Verifier
	store     Store
	archive   Archive
	bus       *events.Bus
	collector *metrics.Collector
	now       func() time.Time

	window     time.Duration
	maxAmount  *big.Int
	assetToken common.Address // L2 settlement token, zero for native

	mu          sync.Mutex
	nextID      uint64
	settlements map[uint64]*types.Settlement
	disputes    map[uint64]*types.Dispute
	seenSources map[string]struct{}
}

type LedgerOptions struct {
	Custodian  *bridge.Custodian
	Verifier   proof.Verifier
	Store      Store
	Archive    Archive
	Bus        *events.Bus
	Collector  *metrics.Collector
	Window     time.Duration
	MaxAmount  *big.Int
	AssetToken common.Address
	Now        func() time.Time
}

func NewLedger(opts LedgerOptions) *Ledger {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		custodian:   opts.Custodian,
		verifier:    opts.Verifier,
		store:       opts.Store,
		archive:     opts.Archive,
		bus:         opts.Bus,
		collector:   opts.Collector,
		now:         now,
		window:      opts.Window,
		maxAmount:   opts.MaxAmount,
		assetToken:  opts.AssetToken,
		settlements: make(map[uint64]*types.Settlement),
		disputes:    make(map[uint64]*types.Dispute),
		seenSources: make(map[string]struct{}),
	}
}

// CreateParams carries one L3 transaction to reconcile. From is the escrow
// account funds settle out of; ProofPath feeds the opaque verifier.
type CreateParams struct {
	From                common.Address
	To                  common.Address
	Amount              *big.Int
	SourceTransactionID string
	VerificationRoot    common.Hash
	ProofPath           []common.Hash
}

// CreateSettlement registers a PENDING settlement with its dispute deadline.
// Confirmer capability only; the source transaction id is a one-shot.
func (l *Ledger) CreateSettlement(caller *identity.Caller, params CreateParams) (*types.Settlement, error) {
	if err := caller.Require(identity.CapConfirmer); err != nil {
		return nil, err
	}
	if params.Amount == nil || params.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", types.ErrValidation)
	}
	if l.maxAmount != nil && params.Amount.Cmp(l.maxAmount) > 0 {
		return nil, fmt.Errorf("%w: %s", types.ErrAmountTooLarge, params.Amount.String())
	}
	if params.To == (common.Address{}) {
		return nil, fmt.Errorf("%w: recipient is zero address", types.ErrValidation)
	}
	if params.SourceTransactionID == "" {
		return nil, fmt.Errorf("%w: empty source transaction id", types.ErrValidation)
	}
	if l.verifier != nil && !l.verifier.Verify(params.VerificationRoot, params.SourceTransactionID, params.ProofPath) {
		return nil, fmt.Errorf("%w: source tx %s", types.ErrProofRejected, params.SourceTransactionID)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, seen := l.seenSources[params.SourceTransactionID]; seen {
		return nil, fmt.Errorf("%w: %s", types.ErrDuplicateSource, params.SourceTransactionID)
	}

	id := l.nextID + 1
	if err := l.custodian.LockForSettlement(id, l.assetToken, params.From, params.Amount); err != nil {
		return nil, err
	}

	// the durable one-shot mark happens only after custody accepted the
	// lock; a declined lock must leave the source id settleable on retry
	if l.store != nil {
		inserted, err := l.store.MarkSourceTx(params.SourceTransactionID)
		if err != nil || !inserted {
			if rerr := l.custodian.RefundSettlement(id, params.From); rerr != nil {
				log.Printf("Error unwinding escrow for settlement %d: %v", id, rerr)
			}
			if err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %s", types.ErrDuplicateSource, params.SourceTransactionID)
		}
	}

	createdAt := l.now()
	st := &types.Settlement{
		ID:                  id,
		From:                params.From,
		To:                  params.To,
		Amount:              params.Amount,
		SourceTransactionID: params.SourceTransactionID,
		VerificationRoot:    params.VerificationRoot,
		Status:              types.SettlementPending,
		CreatedAt:           createdAt.Unix(),
		DisputeDeadline:     createdAt.Add(l.window).Unix(),
	}

	l.nextID = id
	l.seenSources[params.SourceTransactionID] = struct{}{}
	l.settlements[id] = st

	// funds are escrowed and the settlement exists; persistence past this
	// point is write-behind so a redis hiccup cannot strand it
	if l.store != nil {
		if err := l.store.SaveSettlement(st); err != nil {
			log.Printf("Error persisting settlement %d: %v", id, err)
		}
	}
	l.archiveSettlement(st)
	if l.collector != nil {
		l.collector.SettlementTransition(string(types.SettlementPending))
	}
	if l.bus != nil {
		l.bus.Publish(types.EventSettlement, id, "", string(types.SettlementPending), caller.Address)
	}

	out := *st
	return &out, nil
}

// ConfirmSettlement finalizes a pending settlement and releases escrow to
// the recipient. Fails once the dispute window has elapsed; the settlement
// then needs operator attention, it is never auto-finalized.
func (l *Ledger) ConfirmSettlement(caller *identity.Caller, id uint64) (*types.Settlement, error) {
	if err := caller.Require(identity.CapConfirmer); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.settlements[id]
	if !ok {
		return nil, fmt.Errorf("%w: settlement %d", types.ErrNotFound, id)
	}
	if st.Status != types.SettlementPending {
		err := fmt.Errorf("%w: settlement %d is %s, not pending", types.ErrInvalidTransition, id, st.Status)
		l.rejectTransition(st, caller.Address, err)
		return nil, err
	}
	if l.now().Unix() > st.DisputeDeadline {
		err := fmt.Errorf("%w: deadline was %d", types.ErrWindowExpired, st.DisputeDeadline)
		l.rejectTransition(st, caller.Address, err)
		return nil, err
	}

	if err := l.custodian.ReleaseSettlement(id, st.To); err != nil {
		// status unchanged, caller may retry
		l.rejectTransition(st, caller.Address, err)
		return nil, err
	}

	return l.finish(st, types.SettlementPending, types.SettlementConfirmed, caller.Address)
}

// Get returns a copy of a settlement.
func (l *Ledger) Get(id uint64) (types.Settlement, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.settlements[id]
	if !ok {
		return types.Settlement{}, false
	}
	return *st, true
}

// GetDispute returns a copy of the dispute attached to a settlement.
func (l *Ledger) GetDispute(id uint64) (types.Dispute, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	d, ok := l.disputes[id]
	if !ok {
		return types.Dispute{}, false
	}
	return *d, true
}

// Restore re-inserts a persisted settlement on startup.
func (l *Ledger) Restore(st *types.Settlement) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cp := *st
	l.settlements[cp.ID] = &cp
	l.seenSources[cp.SourceTransactionID] = struct{}{}
	if cp.ID > l.nextID {
		l.nextID = cp.ID
	}
}

// finish applies a terminal transition and fans out persistence/telemetry.
// Caller holds l.mu.
func (l *Ledger) finish(st *types.Settlement, prev, next types.SettlementStatus, actor common.Address) (*types.Settlement, error) {
	st.Status = next

	if l.store != nil {
		if err := l.store.ChangeSettlementStatus(st, prev); err != nil {
			log.Printf("Error persisting status of settlement %d: %v", st.ID, err)
		}
	}
	l.archiveSettlement(st)
	if l.collector != nil {
		l.collector.SettlementTransition(string(next))
	}
	if l.bus != nil {
		l.bus.Publish(types.EventSettlement, st.ID, string(prev), string(next), actor)
	}

	out := *st
	return &out, nil
}

func (l *Ledger) archiveSettlement(st *types.Settlement) {
	if l.archive == nil {
		return
	}
	if err := l.archive.RecordSettlement(st); err != nil {
		log.Printf("Error archiving settlement %d: %v", st.ID, err)
	}
}

func (l *Ledger) archiveDispute(d *types.Dispute) {
	if l.archive == nil {
		return
	}
	if err := l.archive.RecordDispute(d); err != nil {
		log.Printf("Error archiving dispute for settlement %d: %v", d.SettlementID, err)
	}
}

func (l *Ledger) rejectTransition(st *types.Settlement, actor common.Address, err error) {
	if l.collector != nil {
		reason := "invalid_transition"
		switch {
		case errors.Is(err, types.ErrWindowExpired):
			reason = "window_expired"
		case errors.Is(err, types.ErrCustody):
			reason = "custody"
		case errors.Is(err, types.ErrUnauthorized):
			reason = "unauthorized"
		}
		l.collector.Rejected(reason)
	}
	if l.bus != nil {
		l.bus.PublishRejected(types.EventSettlement, st.ID, string(st.Status), actor, err.Error())
	}
}
