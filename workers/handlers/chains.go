package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"gamebridge/types"

	"github.com/go-chi/chi"
)

type chainView struct {
	ChainID          uint64 `json:"chainId"`
	Name             string `json:"name"`
	IsSupported      bool   `json:"isSupported"`
	IsActive         bool   `json:"isActive"`
	MinConfirmations int    `json:"minConfirmations"`
	MaxThroughput    uint64 `json:"maxThroughput"`
	BridgeFee        string `json:"bridgeFee"`
}

func viewOfChain(cc *types.ChainConfig) *chainView {
	return &chainView{
		ChainID:          cc.ChainID,
		Name:             cc.Name,
		IsSupported:      cc.IsSupported,
		IsActive:         cc.IsActive,
		MinConfirmations: cc.MinConfirmations,
		MaxThroughput:    cc.MaxThroughput,
		BridgeFee:        bigString(cc.BridgeFee),
	}
}

type addChainBody struct {
	Address          string `json:"address"`
	ChainID          uint64 `json:"chainId"`
	Name             string `json:"name"`
	MinConfirmations int    `json:"minConfirmations"`
	MaxThroughput    uint64 `json:"maxThroughput"`
	BridgeFee        string `json:"bridgeFee"`
}

func (h *Handler) AddChain(w http.ResponseWriter, r *http.Request) {
	var body addChainBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		responseJSON(w, &APIResponse{Status: "error", Message: "Cannot unmarshal input JSON"}, http.StatusBadRequest)
		return
	}

	caller, err := h.caller(r, body.Address, "")
	if err != nil {
		responseJSON(w, &APIResponse{Status: "error", Field: "address", Message: err.Error()}, http.StatusBadRequest)
		return
	}

	fee, err := parseAmount(body.BridgeFee)
	if err != nil {
		responseJSON(w, &APIResponse{Status: "error", Field: "bridgeFee", Message: err.Error()}, http.StatusBadRequest)
		return
	}

	if err := h.Chains.AddChain(caller, types.ChainConfig{
		ChainID:          body.ChainID,
		Name:             body.Name,
		MinConfirmations: body.MinConfirmations,
		MaxThroughput:    body.MaxThroughput,
		BridgeFee:        fee,
	}); err != nil {
		log.Printf("Error adding chain %d: %s", body.ChainID, err.Error())
		responseError(w, err)
		return
	}

	cc, _ := h.Chains.Get(body.ChainID)
	responseJSON(w, viewOfChain(&cc), http.StatusCreated)
}

type setActiveBody struct {
	Address string `json:"address"`
	Active  bool   `json:"active"`
}

func (h *Handler) SetChainActive(w http.ResponseWriter, r *http.Request) {
	chainID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		responseJSON(w, &APIResponse{Status: "error", Field: "id", Message: "invalid chain id"}, http.StatusBadRequest)
		return
	}

	var body setActiveBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		responseJSON(w, &APIResponse{Status: "error", Message: "Cannot unmarshal input JSON"}, http.StatusBadRequest)
		return
	}

	caller, err := h.caller(r, body.Address, "")
	if err != nil {
		responseJSON(w, &APIResponse{Status: "error", Field: "address", Message: err.Error()}, http.StatusBadRequest)
		return
	}

	if err := h.Chains.SetActive(caller, chainID, body.Active); err != nil {
		log.Printf("Error setting chain %d active=%v: %s", chainID, body.Active, err.Error())
		responseError(w, err)
		return
	}

	cc, _ := h.Chains.Get(chainID)
	responseJSON(w, viewOfChain(&cc), http.StatusOK)
}

func (h *Handler) GetChain(w http.ResponseWriter, r *http.Request) {
	chainID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		responseJSON(w, &APIResponse{Status: "error", Field: "id", Message: "invalid chain id"}, http.StatusBadRequest)
		return
	}

	cc, ok := h.Chains.Get(chainID)
	if !ok {
		responseJSON(w, &APIResponse{Status: "error", Message: "chain not found"}, http.StatusNotFound)
		return
	}

	responseJSON(w, viewOfChain(&cc), http.StatusOK)
}

func (h *Handler) ListChains(w http.ResponseWriter, r *http.Request) {
	chains := h.Chains.List()
	views := make([]*chainView, 0, len(chains))
	for i := range chains {
		views = append(views, viewOfChain(&chains[i]))
	}
	responseJSON(w, views, http.StatusOK)
}
