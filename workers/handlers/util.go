package handlers

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"gamebridge/identity"
	"gamebridge/types"

	"github.com/ethereum/go-ethereum/common"
)

func responseJSON(w http.ResponseWriter, data interface{}, code int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

// caller resolves the acting identity for a request: the claimed address
// plus any operator capabilities attached to the API key. When a signature
// is supplied it must recover to the claimed address.
func (h *Handler) caller(r *http.Request, address, signature string) (*identity.Caller, error) {
	var addr common.Address
	if address != "" {
		if !common.IsHexAddress(address) {
			return nil, fmt.Errorf("invalid address %q", address)
		}
		addr = common.HexToAddress(address)
	}

	if signature != "" {
		recovered, err := identity.RecoverSigner(addr.Hex(), signature)
		if err != nil {
			return nil, err
		}
		if recovered == nil || !strings.EqualFold(recovered.Hex(), addr.Hex()) {
			return nil, fmt.Errorf("signature does not match the address provided")
		}
	}

	return h.Identity.Resolve(addr, r.Header.Get("X-Api-Key")), nil
}

func parseAmount(s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid decimal amount %q", s)
	}
	return v, nil
}

func parseAssetType(s string) (types.AssetType, error) {
	switch s {
	case "token":
		return types.AssetToken, nil
	case "nft":
		return types.AssetNFT, nil
	case "gaming_asset":
		return types.AssetGamingAsset, nil
	}
	return 0, fmt.Errorf("unknown asset type %q", s)
}

func bigString(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}
