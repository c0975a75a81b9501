package custody

import (
	"fmt"
	"math/big"

	"gamebridge/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ybbus/jsonrpc"
)

// RPCLedger drives a remote asset-custody backend over JSON-RPC. Calls are
// fail-fast, no retry; the backend reports success or declines synchronously
// and must not allow partial transfers.
type RPCLedger struct {
	client jsonrpc.RPCClient
}

func NewRPCLedger(url string) *RPCLedger {
	return &RPCLedger{client: jsonrpc.NewClient(url)}
}

type transferParams struct {
	AssetType    int    `json:"assetType"`
	AssetAddress string `json:"assetAddress"`
	Account      string `json:"account"`
	Value        string `json:"value"`
}

func (l *RPCLedger) call(method string, assetType types.AssetType, assetAddress, account common.Address, value *big.Int) error {
	resp, err := l.client.Call(method, &transferParams{
		AssetType:    int(assetType),
		AssetAddress: assetAddress.Hex(),
		Account:      account.Hex(),
		Value:        value.String(),
	})
	if err != nil {
		return fmt.Errorf("asset ledger %s: %w", method, err)
	}
	if resp.Error != nil {
		return fmt.Errorf("%w: %s", ErrTransferRejected, resp.Error.Message)
	}
	ok, err := resp.GetBool()
	if err != nil {
		return fmt.Errorf("asset ledger %s: bad response: %w", method, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s declined", ErrTransferRejected, method)
	}
	return nil
}

func (l *RPCLedger) Lock(assetType types.AssetType, assetAddress, from common.Address, value *big.Int) error {
	return l.call("custody_lock", assetType, assetAddress, from, value)
}

func (l *RPCLedger) Release(assetType types.AssetType, assetAddress, to common.Address, value *big.Int) error {
	return l.call("custody_release", assetType, assetAddress, to, value)
}

func (l *RPCLedger) Refund(assetType types.AssetType, assetAddress, to common.Address, value *big.Int) error {
	return l.call("custody_refund", assetType, assetAddress, to, value)
}
