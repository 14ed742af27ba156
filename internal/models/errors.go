package models

import "errors"

var (
	ErrEventNotFound        = errors.New("event not found")
	ErrTicketNotFound       = errors.New("ticket not found")
	ErrCapacityExhausted    = errors.New("event capacity exhausted")
	ErrIssuanceFailed       = errors.New("ticket issuance failed")
	ErrInvalidTransition    = errors.New("invalid ticket status transition")
	ErrIssuanceInProgress   = errors.New("issuance already in progress for idempotency key")
	ErrIdempotencyKeyReused = errors.New("idempotency key already used for another event")
	ErrInvalidPrice         = errors.New("price must be non-negative with at most two decimals")
	ErrInvalidEvent         = errors.New("invalid event")
)
