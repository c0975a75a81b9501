package types

import "github.com/ethereum/go-ethereum/common"

type EventKind string

const (
	EventBridgeRequest EventKind = "bridge_request"
	EventSettlement    EventKind = "settlement"
	EventDispute       EventKind = "dispute"
	EventRelayer       EventKind = "relayer"
	EventChain         EventKind = "chain"
)

// TransitionEvent is published on every state transition (and on every
// rejected transition, with Rejected set) so operators can tell relayer
// misbehavior apart from legitimate contention.
type TransitionEvent struct {
	EventID   string         `json:"eventId"`
	Kind      EventKind      `json:"kind"`
	EntityID  uint64         `json:"entityId"`
	OldStatus string         `json:"oldStatus"`
	NewStatus string         `json:"newStatus"`
	Actor     common.Address `json:"actor"`
	Rejected  bool           `json:"rejected,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Timestamp int64          `json:"timestamp"`
}
