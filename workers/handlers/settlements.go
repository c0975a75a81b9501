package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"gamebridge/settlement"
	"gamebridge/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi"
)

type settlementView struct {
	ID                  uint64 `json:"id"`
	From                string `json:"from"`
	To                  string `json:"to"`
	Amount              string `json:"amount"`
	SourceTransactionID string `json:"sourceTransactionId"`
	VerificationRoot    string `json:"verificationRoot"`
	Status              string `json:"status"`
	CreatedAt           int64  `json:"createdAt"`
	DisputeDeadline     int64  `json:"disputeDeadline"`
	DisputeInitiator    string `json:"disputeInitiator,omitempty"`
	DisputeReason       string `json:"disputeReason,omitempty"`
}

func viewOfSettlement(st *types.Settlement) *settlementView {
	v := &settlementView{
		ID:                  st.ID,
		From:                st.From.Hex(),
		To:                  st.To.Hex(),
		Amount:              bigString(st.Amount),
		SourceTransactionID: st.SourceTransactionID,
		VerificationRoot:    st.VerificationRoot.Hex(),
		Status:              string(st.Status),
		CreatedAt:           st.CreatedAt,
		DisputeDeadline:     st.DisputeDeadline,
		DisputeReason:       st.DisputeReason,
	}
	if st.DisputeInitiator != (common.Address{}) {
		v.DisputeInitiator = st.DisputeInitiator.Hex()
	}
	return v
}

type disputeView struct {
	SettlementID uint64 `json:"settlementId"`
	Initiator    string `json:"initiator"`
	Reason       string `json:"reason"`
	Details      string `json:"details,omitempty"`
	CreatedAt    int64  `json:"createdAt"`
	Resolved     bool   `json:"resolved"`
	Resolver     string `json:"resolver,omitempty"`
	Resolution   string `json:"resolution,omitempty"`
	ResolvedAt   int64  `json:"resolvedAt,omitempty"`
}

func viewOfDispute(d *types.Dispute) *disputeView {
	v := &disputeView{
		SettlementID: d.SettlementID,
		Initiator:    d.Initiator.Hex(),
		Reason:       d.Reason,
		Details:      d.Details,
		CreatedAt:    d.CreatedAt,
		Resolved:     d.Resolved,
		Resolution:   d.Resolution,
		ResolvedAt:   d.ResolvedAt,
	}
	if d.Resolver != (common.Address{}) {
		v.Resolver = d.Resolver.Hex()
	}
	return v
}

type createSettlementBody struct {
	Address             string   `json:"address"`
	From                string   `json:"from"`
	To                  string   `json:"to"`
	Amount              string   `json:"amount"`
	SourceTransactionID string   `json:"sourceTransactionId"`
	VerificationRoot    string   `json:"verificationRoot"`
	ProofPath           []string `json:"proofPath,omitempty"`
}

func (h *Handler) CreateSettlement(w http.ResponseWriter, r *http.Request) {
	var body createSettlementBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		responseJSON(w, &APIResponse{Status: "error", Message: "Cannot unmarshal input JSON"}, http.StatusBadRequest)
		return
	}

	caller, err := h.caller(r, body.Address, "")
	if err != nil {
		responseJSON(w, &APIResponse{Status: "error", Field: "address", Message: err.Error()}, http.StatusBadRequest)
		return
	}

	amount, err := parseAmount(body.Amount)
	if err != nil {
		responseJSON(w, &APIResponse{Status: "error", Field: "amount", Message: err.Error()}, http.StatusBadRequest)
		return
	}

	path := make([]common.Hash, 0, len(body.ProofPath))
	for _, p := range body.ProofPath {
		path = append(path, common.HexToHash(p))
	}

	st, err := h.Ledger.CreateSettlement(caller, settlement.CreateParams{
		From:                common.HexToAddress(body.From),
		To:                  common.HexToAddress(body.To),
		Amount:              amount,
		SourceTransactionID: body.SourceTransactionID,
		VerificationRoot:    common.HexToHash(body.VerificationRoot),
		ProofPath:           path,
	})
	if err != nil {
		log.Printf("Error creating settlement for source tx %s: %s", body.SourceTransactionID, err.Error())
		responseError(w, err)
		return
	}

	responseJSON(w, viewOfSettlement(st), http.StatusCreated)
}

type confirmSettlementBody struct {
	Address string `json:"address"`
}

func (h *Handler) ConfirmSettlement(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		responseJSON(w, &APIResponse{Status: "error", Field: "id", Message: "invalid settlement id"}, http.StatusBadRequest)
		return
	}

	var body confirmSettlementBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		responseJSON(w, &APIResponse{Status: "error", Message: "Cannot unmarshal input JSON"}, http.StatusBadRequest)
		return
	}

	caller, err := h.caller(r, body.Address, "")
	if err != nil {
		responseJSON(w, &APIResponse{Status: "error", Field: "address", Message: err.Error()}, http.StatusBadRequest)
		return
	}

	st, err := h.Ledger.ConfirmSettlement(caller, id)
	if err != nil {
		log.Printf("Error confirming settlement %d: %s", id, err.Error())
		responseError(w, err)
		return
	}

	responseJSON(w, viewOfSettlement(st), http.StatusOK)
}

type disputeBody struct {
	Address   string `json:"address"`
	Signature string `json:"signature,omitempty"`
	Reason    string `json:"reason"`
	Details   string `json:"details,omitempty"`
	FeePaid   string `json:"feePaid"`
}

func (h *Handler) InitiateDispute(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		responseJSON(w, &APIResponse{Status: "error", Field: "id", Message: "invalid settlement id"}, http.StatusBadRequest)
		return
	}

	var body disputeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		responseJSON(w, &APIResponse{Status: "error", Message: "Cannot unmarshal input JSON"}, http.StatusBadRequest)
		return
	}

	caller, err := h.caller(r, body.Address, body.Signature)
	if err != nil {
		responseJSON(w, &APIResponse{Status: "error", Field: "signature", Message: err.Error()}, http.StatusBadRequest)
		return
	}

	feePaid, err := parseAmount(body.FeePaid)
	if err != nil {
		responseJSON(w, &APIResponse{Status: "error", Field: "feePaid", Message: err.Error()}, http.StatusBadRequest)
		return
	}

	st, err := h.Resolver.InitiateDispute(caller, id, body.Reason, body.Details, feePaid)
	if err != nil {
		log.Printf("Error disputing settlement %d: %s", id, err.Error())
		responseError(w, err)
		return
	}

	responseJSON(w, viewOfSettlement(st), http.StatusOK)
}

type resolveBody struct {
	Address    string `json:"address"`
	Resolution string `json:"resolution"`
	Approve    bool   `json:"approve"`
}

func (h *Handler) ResolveDispute(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		responseJSON(w, &APIResponse{Status: "error", Field: "id", Message: "invalid settlement id"}, http.StatusBadRequest)
		return
	}

	var body resolveBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		responseJSON(w, &APIResponse{Status: "error", Message: "Cannot unmarshal input JSON"}, http.StatusBadRequest)
		return
	}

	caller, err := h.caller(r, body.Address, "")
	if err != nil {
		responseJSON(w, &APIResponse{Status: "error", Field: "address", Message: err.Error()}, http.StatusBadRequest)
		return
	}

	st, err := h.Resolver.ResolveDispute(caller, id, body.Resolution, body.Approve)
	if err != nil {
		log.Printf("Error resolving dispute for settlement %d: %s", id, err.Error())
		responseError(w, err)
		return
	}

	responseJSON(w, viewOfSettlement(st), http.StatusOK)
}

func (h *Handler) GetSettlement(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		responseJSON(w, &APIResponse{Status: "error", Field: "id", Message: "invalid settlement id"}, http.StatusBadRequest)
		return
	}

	st, ok := h.Ledger.Get(id)
	if !ok {
		responseJSON(w, &APIResponse{Status: "error", Message: "settlement not found"}, http.StatusNotFound)
		return
	}

	responseJSON(w, viewOfSettlement(&st), http.StatusOK)
}

func (h *Handler) GetDispute(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		responseJSON(w, &APIResponse{Status: "error", Field: "id", Message: "invalid settlement id"}, http.StatusBadRequest)
		return
	}

	d, ok := h.Ledger.GetDispute(id)
	if !ok {
		responseJSON(w, &APIResponse{Status: "error", Message: "dispute not found"}, http.StatusNotFound)
		return
	}

	responseJSON(w, viewOfDispute(&d), http.StatusOK)
}
