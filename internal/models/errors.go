package models

import "errors"

// Pipeline error taxonomy. Handlers and the reconciler match these with
// errors.Is to decide between skip, triage and hard failure.
var (
	// ErrNoReferenceFound: the transfer description carries no order reference.
	ErrNoReferenceFound = errors.New("no order reference found in description")

	// ErrOrderNotFound: a reference was extracted but no such order exists.
	ErrOrderNotFound = errors.New("order not found")

	// ErrAlreadyResolved: the order already left pending; benign no-op.
	ErrAlreadyResolved = errors.New("order already resolved")

	// ErrAmountMismatch: transferred amount differs from the order price.
	// Never auto-confirmed; routed to manual review.
	ErrAmountMismatch = errors.New("transfer amount does not match order price")

	// ErrInvalidTransition: the order was not pending when a transition was
	// attempted. Callers racing on the same order treat this as benign.
	ErrInvalidTransition = errors.New("invalid order state transition")

	// ErrDuplicateTransaction: the external id was already claimed; the
	// redelivery is acknowledged without reprocessing.
	ErrDuplicateTransaction = errors.New("transaction already processed")

	// ErrFallbackNotReached: buyer asked for manual confirmation before the
	// fallback threshold elapsed.
	ErrFallbackNotReached = errors.New("manual confirmation not yet available")
)
