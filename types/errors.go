package types

import "errors"

// Error taxonomy for the bridge/settlement core. Every rejected operation
// maps to exactly one of these; callers branch with errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrUnsupportedChain  = errors.New("chain not supported")
	ErrInactiveChain     = errors.New("chain not active")
	ErrAlreadySupported  = errors.New("chain already supported")
	ErrUnknownChain      = errors.New("unknown chain")
	ErrInsufficientFee   = errors.New("insufficient fee")
	ErrInsufficientStake = errors.New("insufficient stake")
	ErrBelowMinimumStake = errors.New("stake would fall below minimum")
	ErrAlreadyRegistered = errors.New("relayer already registered")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrDuplicateRequest  = errors.New("duplicate request content hash")
	ErrDuplicateSource   = errors.New("duplicate source transaction")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrWindowExpired     = errors.New("dispute window expired")
	ErrCustody           = errors.New("custody operation failed")
	ErrNotFound          = errors.New("not found")
	ErrAmountTooLarge    = errors.New("amount exceeds ceiling")
	ErrProofRejected     = errors.New("proof verification failed")
)
