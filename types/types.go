package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// chain ids follow the EVM numbering convention; the home chain id
// (the execution layer this service is deployed next to) is set in config

type AssetType int

const (
	AssetToken       AssetType = 0
	AssetNFT         AssetType = 1
	AssetGamingAsset AssetType = 2
)

func (a AssetType) String() string {
	switch a {
	case AssetToken:
		return "token"
	case AssetNFT:
		return "nft"
	case AssetGamingAsset:
		return "gaming_asset"
	}
	return "unknown"
}

// Fungible reports whether amounts (rather than token ids) apply.
func (a AssetType) Fungible() bool {
	return a == AssetToken || a == AssetGamingAsset
}

type BridgeStatus string

const (
	BridgePending    BridgeStatus = "pending"
	BridgeProcessing BridgeStatus = "processing"
	BridgeCompleted  BridgeStatus = "completed"
	BridgeFailed     BridgeStatus = "failed"
	BridgeCancelled  BridgeStatus = "cancelled"
)

// Terminal statuses never transition again.
func (s BridgeStatus) Terminal() bool {
	return s == BridgeCompleted || s == BridgeFailed || s == BridgeCancelled
}

type SettlementStatus string

const (
	SettlementPending   SettlementStatus = "pending"
	SettlementConfirmed SettlementStatus = "confirmed"
	SettlementDisputed  SettlementStatus = "disputed"
	SettlementResolved  SettlementStatus = "resolved"
	SettlementCancelled SettlementStatus = "cancelled"
)

func (s SettlementStatus) Terminal() bool {
	return s == SettlementConfirmed || s == SettlementResolved || s == SettlementCancelled
}

// BridgeRequest is one cross-chain transfer, identified by a monotonic id.
// ContentHash is computed exactly once at creation and backs the anti-replay
// set; the record is immutable once the status is terminal.
type BridgeRequest struct {
	ID                 uint64
	Sender             common.Address
	Recipient          common.Address
	SourceChainID      uint64
	DestinationChainID uint64
	AssetType          AssetType
	AssetAddress       common.Address
	Amount             *big.Int // fungible assets, nil for NFTs
	TokenID            *big.Int // NFTs only
	ContentHash        common.Hash
	Status             BridgeStatus
	CreatedAt          int64
	ProcessedAt        int64
	ProcessingRelayer  common.Address
	Message            string // processing/error breadcrumbs
}

// Value returns the fungible amount or, for NFTs, the token id. Never nil.
func (r *BridgeRequest) Value() *big.Int {
	if r.AssetType.Fungible() {
		if r.Amount == nil {
			return new(big.Int)
		}
		return r.Amount
	}
	if r.TokenID == nil {
		return new(big.Int)
	}
	return r.TokenID
}

// Settlement reconciles one L3 transaction into the L2 ledger. The source
// transaction id is globally unique (replay guard); funds stay escrowed until
// the settlement reaches a terminal status.
type Settlement struct {
	ID                  uint64
	From                common.Address
	To                  common.Address
	Amount              *big.Int
	SourceTransactionID string
	VerificationRoot    common.Hash
	Status              SettlementStatus
	CreatedAt           int64
	DisputeDeadline     int64
	DisputeInitiator    common.Address
	DisputeReason       string
	DisputeDetails      string
}

// Dispute is the 1:1 sub-record attached to a disputed settlement.
type Dispute struct {
	SettlementID uint64
	Initiator    common.Address
	Reason       string
	Details      string
	CreatedAt    int64
	Resolved     bool
	Resolver     common.Address
	Resolution   string
	ResolvedAt   int64
}

// RelayerInfo tracks a stake-gated relayer. Records are never deleted, only
// deactivated; stake cannot be withdrawn below the configured minimum while
// the relayer stays active.
type RelayerInfo struct {
	Address        common.Address
	ChainID        uint64 // destination chain the relayer serves
	Stake          *big.Int
	TotalProcessed uint64
	TotalVolume    *big.Int
	LastActivityTs int64
	IsActive       bool
	RegisteredAt   int64
}

// ChainConfig is one supported destination chain. The home chain is seeded at
// registry initialization and is always supported; chains are deactivated,
// never deleted.
type ChainConfig struct {
	ChainID          uint64
	Name             string
	IsSupported      bool
	IsActive         bool
	MinConfirmations int
	MaxThroughput    uint64
	BridgeFee        *big.Int
}
