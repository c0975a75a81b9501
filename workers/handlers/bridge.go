package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"gamebridge/bridge"
	"gamebridge/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi"
)

type bridgeRequestView struct {
	ID                 uint64 `json:"id"`
	Sender             string `json:"sender"`
	Recipient          string `json:"recipient"`
	SourceChainID      uint64 `json:"sourceChainId"`
	DestinationChainID uint64 `json:"destinationChainId"`
	AssetType          string `json:"assetType"`
	AssetAddress       string `json:"assetAddress"`
	Amount             string `json:"amount,omitempty"`
	TokenID            string `json:"tokenId,omitempty"`
	ContentHash        string `json:"contentHash"`
	Status             string `json:"status"`
	CreatedAt          int64  `json:"createdAt"`
	ProcessedAt        int64  `json:"processedAt,omitempty"`
	ProcessingRelayer  string `json:"processingRelayer,omitempty"`
}

func viewOfRequest(req *types.BridgeRequest) *bridgeRequestView {
	v := &bridgeRequestView{
		ID:                 req.ID,
		Sender:             req.Sender.Hex(),
		Recipient:          req.Recipient.Hex(),
		SourceChainID:      req.SourceChainID,
		DestinationChainID: req.DestinationChainID,
		AssetType:          req.AssetType.String(),
		AssetAddress:       req.AssetAddress.Hex(),
		Amount:             bigString(req.Amount),
		TokenID:            bigString(req.TokenID),
		ContentHash:        req.ContentHash.Hex(),
		Status:             string(req.Status),
		CreatedAt:          req.CreatedAt,
		ProcessedAt:        req.ProcessedAt,
	}
	if req.ProcessingRelayer != (common.Address{}) {
		v.ProcessingRelayer = req.ProcessingRelayer.Hex()
	}
	return v
}

type createRequestBody struct {
	Address            string `json:"address"`
	Signature          string `json:"signature,omitempty"`
	Recipient          string `json:"recipient"`
	DestinationChainID uint64 `json:"destinationChainId"`
	AssetType          string `json:"assetType"`
	AssetAddress       string `json:"assetAddress"`
	Amount             string `json:"amount,omitempty"`
	TokenID            string `json:"tokenId,omitempty"`
	FeePaid            string `json:"feePaid"`
}

func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var body createRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		log.Printf("Error unmarshalling request body: %s\n", err.Error())
		responseJSON(w, &APIResponse{Status: "error", Message: "Cannot unmarshal input JSON"}, http.StatusBadRequest)
		return
	}

	caller, err := h.caller(r, body.Address, body.Signature)
	if err != nil {
		responseJSON(w, &APIResponse{Status: "error", Field: "signature", Message: err.Error()}, http.StatusBadRequest)
		return
	}

	assetType, err := parseAssetType(body.AssetType)
	if err != nil {
		responseJSON(w, &APIResponse{Status: "error", Field: "assetType", Message: err.Error()}, http.StatusBadRequest)
		return
	}
	amount, err := parseAmount(body.Amount)
	if err != nil {
		responseJSON(w, &APIResponse{Status: "error", Field: "amount", Message: err.Error()}, http.StatusBadRequest)
		return
	}
	tokenID, err := parseAmount(body.TokenID)
	if err != nil {
		responseJSON(w, &APIResponse{Status: "error", Field: "tokenId", Message: err.Error()}, http.StatusBadRequest)
		return
	}
	feePaid, err := parseAmount(body.FeePaid)
	if err != nil {
		responseJSON(w, &APIResponse{Status: "error", Field: "feePaid", Message: err.Error()}, http.StatusBadRequest)
		return
	}

	req, err := h.Processor.CreateRequest(caller, bridge.CreateParams{
		Recipient:          common.HexToAddress(body.Recipient),
		DestinationChainID: body.DestinationChainID,
		AssetType:          assetType,
		AssetAddress:       common.HexToAddress(body.AssetAddress),
		Amount:             amount,
		TokenID:            tokenID,
		FeePaid:            feePaid,
	})
	if err != nil {
		log.Printf("Error creating bridge request: %s", err.Error())
		responseError(w, err)
		return
	}

	responseJSON(w, viewOfRequest(req), http.StatusCreated)
}

type processRequestBody struct {
	Address   string `json:"address"`
	Signature string `json:"signature,omitempty"`
	Success   bool   `json:"success"`
}

func (h *Handler) ProcessRequest(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		responseJSON(w, &APIResponse{Status: "error", Field: "id", Message: "invalid request id"}, http.StatusBadRequest)
		return
	}

	var body processRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		responseJSON(w, &APIResponse{Status: "error", Message: "Cannot unmarshal input JSON"}, http.StatusBadRequest)
		return
	}

	caller, err := h.caller(r, body.Address, body.Signature)
	if err != nil {
		responseJSON(w, &APIResponse{Status: "error", Field: "signature", Message: err.Error()}, http.StatusBadRequest)
		return
	}

	req, err := h.Processor.ProcessRequest(caller, id, body.Success)
	if err != nil {
		log.Printf("Error processing bridge request %d: %s", id, err.Error())
		responseError(w, err)
		return
	}

	responseJSON(w, viewOfRequest(req), http.StatusOK)
}

type cancelRequestBody struct {
	Address   string `json:"address"`
	Signature string `json:"signature,omitempty"`
}

func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		responseJSON(w, &APIResponse{Status: "error", Field: "id", Message: "invalid request id"}, http.StatusBadRequest)
		return
	}

	var body cancelRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		responseJSON(w, &APIResponse{Status: "error", Message: "Cannot unmarshal input JSON"}, http.StatusBadRequest)
		return
	}

	caller, err := h.caller(r, body.Address, body.Signature)
	if err != nil {
		responseJSON(w, &APIResponse{Status: "error", Field: "signature", Message: err.Error()}, http.StatusBadRequest)
		return
	}

	req, err := h.Processor.CancelRequest(caller, id)
	if err != nil {
		log.Printf("Error cancelling bridge request %d: %s", id, err.Error())
		responseError(w, err)
		return
	}

	responseJSON(w, viewOfRequest(req), http.StatusOK)
}

func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		responseJSON(w, &APIResponse{Status: "error", Field: "id", Message: "invalid request id"}, http.StatusBadRequest)
		return
	}

	req, ok := h.Processor.GetRequest(id)
	if !ok {
		responseJSON(w, &APIResponse{Status: "error", Message: "request not found"}, http.StatusNotFound)
		return
	}

	responseJSON(w, viewOfRequest(&req), http.StatusOK)
}

// ListRequests serves either the sender view or the (chain, status) index.
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	sender := r.URL.Query().Get("sender")
	chainStr := r.URL.Query().Get("chain")
	status := r.URL.Query().Get("status")

	var reqs []types.BridgeRequest
	switch {
	case sender != "":
		if !common.IsHexAddress(sender) {
			responseJSON(w, &APIResponse{Status: "error", Field: "sender", Message: "invalid address"}, http.StatusBadRequest)
			return
		}
		reqs = h.Processor.RequestsBySender(common.HexToAddress(sender))
	case chainStr != "" && status != "":
		chainID, err := strconv.ParseUint(chainStr, 10, 64)
		if err != nil {
			responseJSON(w, &APIResponse{Status: "error", Field: "chain", Message: "invalid chain id"}, http.StatusBadRequest)
			return
		}
		reqs = h.Processor.RequestsByChainStatus(chainID, types.BridgeStatus(status))
	default:
		responseJSON(w, &APIResponse{Status: "error", Message: "need sender= or chain=&status="}, http.StatusBadRequest)
		return
	}

	views := make([]*bridgeRequestView, 0, len(reqs))
	for i := range reqs {
		views = append(views, viewOfRequest(&reqs[i]))
	}
	responseJSON(w, views, http.StatusOK)
}
