package handlers

import (
	"errors"
	"net/http"

	"gamebridge/bridge"
	"gamebridge/events"
	"gamebridge/identity"
	"gamebridge/settlement"
	"gamebridge/types"
)

type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type APIStateResponse struct {
	Status        string `json:"status"`
	HomeChainID   uint64 `json:"homeChainId"`
	TotalRequests uint64 `json:"totalRequests"`
	TotalVolume   string `json:"totalVolume"`
	FeePool       string `json:"feePool"`
}

// Handler carries the core components the HTTP surface drives.
type Handler struct {
	Processor *bridge.Processor
	Chains    *bridge.ChainRegistry
	Relayers  *bridge.RelayerRegistry
	Ledger    *settlement.Ledger
	Resolver  *settlement.Resolver
	Identity  *identity.Resolver
	Bus       *events.Bus
}

func New(h Handler) *Handler {
	return &h
}

// statusFor maps the core error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, types.ErrInvalidTransition),
		errors.Is(err, types.ErrDuplicateRequest),
		errors.Is(err, types.ErrDuplicateSource),
		errors.Is(err, types.ErrAlreadySupported),
		errors.Is(err, types.ErrAlreadyRegistered),
		errors.Is(err, types.ErrWindowExpired):
		return http.StatusConflict
	case errors.Is(err, types.ErrCustody):
		return http.StatusBadGateway
	case errors.Is(err, types.ErrValidation),
		errors.Is(err, types.ErrUnsupportedChain),
		errors.Is(err, types.ErrInactiveChain),
		errors.Is(err, types.ErrInsufficientFee),
		errors.Is(err, types.ErrInsufficientStake),
		errors.Is(err, types.ErrBelowMinimumStake),
		errors.Is(err, types.ErrUnknownChain),
		errors.Is(err, types.ErrAmountTooLarge),
		errors.Is(err, types.ErrProofRejected):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func responseError(w http.ResponseWriter, err error) {
	responseJSON(w, &APIResponse{
		Status:  "error",
		Message: err.Error(),
	}, statusFor(err))
}
