package bridge

import "gamebridge/types"

// Store is the write-through persistence surface the bridge components use.
// A nil Store runs the bridge memory-only (tests, local mode); the redis
// package provides the production implementation.
type Store interface {
	SaveBridgeRequest(req *types.BridgeRequest) error
	ChangeBridgeRequestStatus(req *types.BridgeRequest, prevStatus types.BridgeStatus) error
	SaveRelayer(rel *types.RelayerInfo) error
	SaveChain(cc *types.ChainConfig) error
	MarkContentHash(hash string) (bool, error)
	SetFeePool(amount string) error
}
