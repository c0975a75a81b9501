// Package oracle supplies the current bridge and dispute fees. Fees are
// admin-set constants by default; a remote pricing service can be plugged in.
package oracle

import (
	"fmt"
	"log"
	"math/big"

	"github.com/ybbus/jsonrpc"
)

type FeeOracle interface {
	// BridgeFee is the fee required to create a request towards chainID.
	BridgeFee(chainID uint64) *big.Int
	// DisputeFee is the fee required to open a dispute.
	DisputeFee() *big.Int
}

// StaticOracle serves admin-configured constants.
type StaticOracle struct {
	Bridge  *big.Int
	Dispute *big.Int
}

func (o *StaticOracle) BridgeFee(uint64) *big.Int { return o.Bridge }
func (o *StaticOracle) DisputeFee() *big.Int      { return o.Dispute }

// RPCOracle asks a remote pricing service, falling back to the static
// defaults when the service is unreachable or answers garbage.
type RPCOracle struct {
	client   jsonrpc.RPCClient
	fallback *StaticOracle
}

func NewRPCOracle(url string, fallback *StaticOracle) *RPCOracle {
	return &RPCOracle{client: jsonrpc.NewClient(url), fallback: fallback}
}

func (o *RPCOracle) fetch(method string, params ...interface{}) (*big.Int, error) {
	resp, err := o.client.Call(method, params...)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("oracle error: %s", resp.Error.Message)
	}
	s, err := resp.GetString()
	if err != nil {
		return nil, err
	}
	fee, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("oracle returned non-decimal fee %q", s)
	}
	return fee, nil
}

func (o *RPCOracle) BridgeFee(chainID uint64) *big.Int {
	fee, err := o.fetch("oracle_bridgeFee", chainID)
	if err != nil {
		log.Printf("Error fetching bridge fee for chain %d: %v", chainID, err)
		return o.fallback.BridgeFee(chainID)
	}
	return fee
}

func (o *RPCOracle) DisputeFee() *big.Int {
	fee, err := o.fetch("oracle_disputeFee")
	if err != nil {
		log.Printf("Error fetching dispute fee: %v", err)
		return o.fallback.DisputeFee()
	}
	return fee
}
