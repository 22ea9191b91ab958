// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"
	"time"

	"github.com/ekaradag/circulation/internal/model"
	"github.com/gofrs/uuid/v5"
)

// LoanRepository provides transactional access to loans and to the item
// availability they control. Every mutating method runs in its own
// transaction with the loan row locked first, so of two writers racing to
// resolve the same loan exactly one wins and the other fails with a
// sentinel from errs.
type LoanRepository interface {
	// CreateLoan inserts an unresolved loan and flips its item to unavailable.
	// Fails with ErrNotFound if the item is missing and ErrItemUnavailable if
	// another unresolved loan references it.
	CreateLoan(ctx context.Context, loan *model.Loan) error

	// Get loads a loan by ID.
	Get(ctx context.Context, id uuid.UUID) (*model.Loan, error)

	// MarkReturnRequested moves the return request state None -> Pending.
	// Fails with ErrAlreadyResolved or ErrAlreadyPending.
	MarkReturnRequested(ctx context.Context, id uuid.UUID) error

	// CloseApproved resolves a pending-request loan as approved and releases
	// the item. Fails with ErrAlreadyResolved or ErrNoPendingRequest.
	CloseApproved(ctx context.Context, id uuid.UUID, returnedAt time.Time) error

	// CloseRejected resolves a pending-request loan as rejected, releases the
	// item, and applies one penalty warning to the owning account, all in the
	// same transaction. Returns the account as of after the warning.
	CloseRejected(ctx context.Context, id uuid.UUID, returnedAt time.Time) (model.Account, error)

	// Close resolves a loan that has no return request in flight and releases
	// its item. Used by the direct-return path and the reconciliation sweep.
	// Fails with ErrAlreadyResolved or ErrAlreadyPending.
	Close(ctx context.Context, id uuid.UUID, returnedAt time.Time) error

	// ListOverdue returns unresolved loans past due at the given instant that
	// have no return request in flight, soonest-due first.
	ListOverdue(ctx context.Context, now time.Time) ([]model.Loan, error)

	// ListActiveByAccount returns unresolved loans for an account, soonest-due first.
	ListActiveByAccount(ctx context.Context, accountID uuid.UUID) ([]model.Loan, error)

	// ListByAccount returns the full loan history for an account, most recent checkout first.
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]model.Loan, error)

	// ListPendingReturnRequests returns unresolved loans awaiting an
	// administrator decision across all accounts, soonest-due first.
	ListPendingReturnRequests(ctx context.Context) ([]model.Loan, error)
}
