package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
)

func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	total, volume := h.Processor.Totals()
	responseJSON(w, &APIStateResponse{
		Status:        "ok",
		HomeChainID:   h.Chains.HomeChainID(),
		TotalRequests: total,
		TotalVolume:   volume.String(),
		FeePool:       h.Processor.FeePool().String(),
	}, http.StatusOK)
}

// RecentEvents exposes the tail of the transition log for dashboards.
func (h *Handler) RecentEvents(w http.ResponseWriter, r *http.Request) {
	n := 100
	if s := r.URL.Query().Get("n"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil || parsed <= 0 {
			responseJSON(w, &APIResponse{Status: "error", Field: "n", Message: "invalid count"}, http.StatusBadRequest)
			return
		}
		n = parsed
	}
	responseJSON(w, h.Bus.Recent(n), http.StatusOK)
}

type withdrawFeesBody struct {
	Address string `json:"address"`
}

// WithdrawFees drains the admin fee pool (accounting only).
func (h *Handler) WithdrawFees(w http.ResponseWriter, r *http.Request) {
	var body withdrawFeesBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		responseJSON(w, &APIResponse{Status: "error", Message: "Cannot unmarshal input JSON"}, http.StatusBadRequest)
		return
	}

	caller, err := h.caller(r, body.Address, "")
	if err != nil {
		responseJSON(w, &APIResponse{Status: "error", Field: "address", Message: err.Error()}, http.StatusBadRequest)
		return
	}

	amount, err := h.Processor.WithdrawFees(caller)
	if err != nil {
		log.Printf("Error withdrawing fees: %s", err.Error())
		responseError(w, err)
		return
	}

	responseJSON(w, map[string]string{"status": "ok", "withdrawn": amount.String()}, http.StatusOK)
}
