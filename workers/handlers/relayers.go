package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"gamebridge/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi"
)

type relayerView struct {
	Address        string `json:"address"`
	ChainID        uint64 `json:"chainId"`
	Stake          string `json:"stake"`
	TotalProcessed uint64 `json:"totalProcessed"`
	TotalVolume    string `json:"totalVolume"`
	LastActivityTs int64  `json:"lastActivityTs,omitempty"`
	IsActive       bool   `json:"isActive"`
	RegisteredAt   int64  `json:"registeredAt"`
}

func viewOfRelayer(rel *types.RelayerInfo) *relayerView {
	return &relayerView{
		Address:        rel.Address.Hex(),
		ChainID:        rel.ChainID,
		Stake:          bigString(rel.Stake),
		TotalProcessed: rel.TotalProcessed,
		TotalVolume:    bigString(rel.TotalVolume),
		LastActivityTs: rel.LastActivityTs,
		IsActive:       rel.IsActive,
		RegisteredAt:   rel.RegisteredAt,
	}
}

type registerRelayerBody struct {
	Address   string `json:"address"`
	Signature string `json:"signature,omitempty"`
	ChainID   uint64 `json:"chainId"`
	Stake     string `json:"stake"`
}

func (h *Handler) RegisterRelayer(w http.ResponseWriter, r *http.Request) {
	var body registerRelayerBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		responseJSON(w, &APIResponse{Status: "error", Message: "Cannot unmarshal input JSON"}, http.StatusBadRequest)
		return
	}

	caller, err := h.caller(r, body.Address, body.Signature)
	if err != nil {
		responseJSON(w, &APIResponse{Status: "error", Field: "signature", Message: err.Error()}, http.StatusBadRequest)
		return
	}

	stake, err := parseAmount(body.Stake)
	if err != nil {
		responseJSON(w, &APIResponse{Status: "error", Field: "stake", Message: err.Error()}, http.StatusBadRequest)
		return
	}

	if err := h.Relayers.Register(caller, body.ChainID, stake); err != nil {
		log.Printf("Error registering relayer %s: %s", body.Address, err.Error())
		responseError(w, err)
		return
	}

	rel, _ := h.Relayers.Get(caller.Address)
	responseJSON(w, viewOfRelayer(&rel), http.StatusCreated)
}

type stakeBody struct {
	Address   string `json:"address"`
	Signature string `json:"signature,omitempty"`
	Amount    string `json:"amount"`
}

func (h *Handler) AddStake(w http.ResponseWriter, r *http.Request) {
	h.stakeOp(w, r, false)
}

func (h *Handler) WithdrawStake(w http.ResponseWriter, r *http.Request) {
	h.stakeOp(w, r, true)
}

func (h *Handler) stakeOp(w http.ResponseWriter, r *http.Request, withdraw bool) {
	var body stakeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		responseJSON(w, &APIResponse{Status: "error", Message: "Cannot unmarshal input JSON"}, http.StatusBadRequest)
		return
	}

	caller, err := h.caller(r, body.Address, body.Signature)
	if err != nil {
		responseJSON(w, &APIResponse{Status: "error", Field: "signature", Message: err.Error()}, http.StatusBadRequest)
		return
	}

	amount, err := parseAmount(body.Amount)
	if err != nil {
		responseJSON(w, &APIResponse{Status: "error", Field: "amount", Message: err.Error()}, http.StatusBadRequest)
		return
	}

	if withdraw {
		err = h.Relayers.WithdrawStake(caller, amount)
	} else {
		err = h.Relayers.AddStake(caller, amount)
	}
	if err != nil {
		log.Printf("Error updating stake for %s: %s", body.Address, err.Error())
		responseError(w, err)
		return
	}

	rel, _ := h.Relayers.Get(caller.Address)
	responseJSON(w, viewOfRelayer(&rel), http.StatusOK)
}

type deactivateRelayerBody struct {
	Address   string `json:"address"`
	Signature string `json:"signature,omitempty"`
}

func (h *Handler) DeactivateRelayer(w http.ResponseWriter, r *http.Request) {
	target := chi.URLParam(r, "address")
	if !common.IsHexAddress(target) {
		responseJSON(w, &APIResponse{Status: "error", Field: "address", Message: "invalid address"}, http.StatusBadRequest)
		return
	}

	var body deactivateRelayerBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		responseJSON(w, &APIResponse{Status: "error", Message: "Cannot unmarshal input JSON"}, http.StatusBadRequest)
		return
	}

	caller, err := h.caller(r, body.Address, body.Signature)
	if err != nil {
		responseJSON(w, &APIResponse{Status: "error", Field: "signature", Message: err.Error()}, http.StatusBadRequest)
		return
	}

	if err := h.Relayers.Deactivate(caller, common.HexToAddress(target)); err != nil {
		log.Printf("Error deactivating relayer %s: %s", target, err.Error())
		responseError(w, err)
		return
	}

	rel, _ := h.Relayers.Get(common.HexToAddress(target))
	responseJSON(w, viewOfRelayer(&rel), http.StatusOK)
}

func (h *Handler) GetRelayer(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "address")
	if !common.IsHexAddress(addr) {
		responseJSON(w, &APIResponse{Status: "error", Field: "address", Message: "invalid address"}, http.StatusBadRequest)
		return
	}

	rel, ok := h.Relayers.Get(common.HexToAddress(addr))
	if !ok {
		responseJSON(w, &APIResponse{Status: "error", Message: "relayer not found"}, http.StatusNotFound)
		return
	}

	responseJSON(w, viewOfRelayer(&rel), http.StatusOK)
}
