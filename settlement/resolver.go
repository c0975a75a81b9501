package settlement

import (
	"fmt"
	"log"
	"math/big"

	"gamebridge/identity"
	"gamebridge/oracle"
	"gamebridge/types"
)

// Resolver manages the dispute sub-lifecycle attached to a settlement.
type Resolver struct {
	ledger *Ledger
	oracle oracle.FeeOracle
}

func NewResolver(ledger *Ledger, feeOracle oracle.FeeOracle) *Resolver {
	return &Resolver{ledger: ledger, oracle: feeOracle}
}

// InitiateDispute contests a pending settlement before its deadline. Only
// the settlement's recipient or a resolver capability may open it, and the
// dispute fee must be attached.
func (r *Resolver) InitiateDispute(caller *identity.Caller, id uint64, reason, details string, feePaid *big.Int) (*types.Settlement, error) {
	fee := r.oracle.DisputeFee()
	if feePaid == nil || feePaid.Cmp(fee) < 0 {
		return nil, fmt.Errorf("%w: dispute fee is %s", types.ErrInsufficientFee, fee.String())
	}
	if reason == "" {
		return nil, fmt.Errorf("%w: empty dispute reason", types.ErrValidation)
	}

	l := r.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.settlements[id]
	if !ok {
		return nil, fmt.Errorf("%w: settlement %d", types.ErrNotFound, id)
	}
	if caller.Address != st.To && !caller.Has(identity.CapResolver) {
		err := fmt.Errorf("%w: only the recipient or a resolver may dispute", types.ErrUnauthorized)
		l.rejectTransition(st, caller.Address, err)
		return nil, err
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

	st.DisputeInitiator = caller.Address
	st.DisputeReason = reason
	st.DisputeDetails = details

	d := &types.Dispute{
		SettlementID: id,
		Initiator:    caller.Address,
		Reason:       reason,
		Details:      details,
		CreatedAt:    l.now().Unix(),
	}
	l.disputes[id] = d

	prev := st.Status
	st.Status = types.SettlementDisputed
	if l.store != nil {
		if err := l.store.ChangeSettlementStatus(st, prev); err != nil {
			log.Printf("Error persisting status of settlement %d: %v", id, err)
		}
		if err := l.store.SaveDispute(d); err != nil {
			log.Printf("Error persisting dispute for settlement %d: %v", id, err)
		}
	}
	l.archiveSettlement(st)
	l.archiveDispute(d)
	if l.collector != nil {
		l.collector.DisputeOpened()
		l.collector.SettlementTransition(string(types.SettlementDisputed))
	}
	if l.bus != nil {
		l.bus.Publish(types.EventDispute, id, string(prev), string(types.SettlementDisputed), caller.Address)
	}

	out := *st
	return &out, nil
}

// ResolveDispute closes a dispute exactly once. Approve releases escrow to
// the recipient; reject cancels the settlement and leaves the funds in the
// confirmer-controlled escrow for manual recovery (the original L3 sender is
// off-system and cannot be auto-refunded here).
func (r *Resolver) ResolveDispute(caller *identity.Caller, id uint64, resolution string, approve bool) (*types.Settlement, error) {
	if err := caller.Require(identity.CapResolver); err != nil {
		return nil, err
	}

	l := r.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.settlements[id]
	if !ok {
		return nil, fmt.Errorf("%w: settlement %d", types.ErrNotFound, id)
	}
	d, ok := l.disputes[id]
	if !ok {
		err := fmt.Errorf("%w: settlement %d has no dispute", types.ErrInvalidTransition, id)
		l.rejectTransition(st, caller.Address, err)
		return nil, err
	}
	if d.Resolved || st.Status != types.SettlementDisputed {
		err := fmt.Errorf("%w: dispute for settlement %d already resolved", types.ErrInvalidTransition, id)
		l.rejectTransition(st, caller.Address, err)
		return nil, err
	}

	next := types.SettlementCancelled
	if approve {
		if err := l.custodian.ReleaseSettlement(id, st.To); err != nil {
			// dispute stays open, caller may retry
			l.rejectTransition(st, caller.Address, err)
			return nil, err
		}
		next = types.SettlementResolved
	}

	d.Resolved = true
	d.Resolver = caller.Address
	d.Resolution = resolution
	d.ResolvedAt = l.now().Unix()

	if l.store != nil {
		if err := l.store.SaveDispute(d); err != nil {
			log.Printf("Error persisting dispute for settlement %d: %v", id, err)
		}
	}
	l.archiveDispute(d)

	return l.finish(st, types.SettlementDisputed, next, caller.Address)
}
