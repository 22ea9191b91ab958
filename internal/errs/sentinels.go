// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers. All of them are business
// errors surfaced to the caller; none is retryable.
var (
	// ErrNotFound indicates the requested item, account, or loan does not exist.
	ErrNotFound = errors.New("not found")

	// ErrItemUnavailable indicates another unresolved loan already references the item.
	ErrItemUnavailable = errors.New("item unavailable")

	// ErrAccountIneligible indicates the account is locked or deactivated.
	ErrAccountIneligible = errors.New("account ineligible")

	// ErrAlreadyResolved indicates the loan was already closed by another transition.
	ErrAlreadyResolved = errors.New("loan already resolved")

	// ErrAlreadyPending indicates a return request is already in flight for the loan.
	ErrAlreadyPending = errors.New("return request already pending")

	// ErrNoPendingRequest indicates the loan has no return request to approve or reject.
	ErrNoPendingRequest = errors.New("no pending return request")

	// ErrForbidden indicates the actor may not operate on a loan it does not own.
	ErrForbidden = errors.New("forbidden")
)
