// Package service contains the lending state machine and read-only loan projections.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/ekaradag/circulation/internal/clock"
	"github.com/ekaradag/circulation/internal/errs"
	"github.com/ekaradag/circulation/internal/model"
	"github.com/ekaradag/circulation/internal/penalty"
	"github.com/ekaradag/circulation/internal/repository"
)

// LendingService validates and applies loan state transitions. Every
// operation is atomic with respect to the underlying store; precondition
// races surface as sentinels from errs rather than double-applied effects.
type LendingService interface {
	// Checkout creates an unresolved loan for the actor's account and makes
	// the item unavailable.
	Checkout(ctx context.Context, actor model.Actor, itemID uuid.UUID) (*model.Loan, error)
	// RequestReturn opens a return request awaiting administrator decision.
	RequestReturn(ctx context.Context, actor model.Actor, loanID uuid.UUID) error
	// ApproveReturn accepts a pending return request and closes the loan.
	ApproveReturn(ctx context.Context, actor model.Actor, loanID uuid.UUID) error
	// RejectReturn declines a pending return request, closes the loan (the
	// item is physically back) and issues one warning to the owning account.
	RejectReturn(ctx context.Context, actor model.Actor, loanID uuid.UUID) (model.Account, error)
	// DirectReturn closes a loan immediately, without the approval workflow.
	DirectReturn(ctx context.Context, actor model.Actor, loanID uuid.UUID) error
	// UnlockAccount clears the locked flag of a non-deactivated account.
	UnlockAccount(ctx context.Context, actor model.Actor, accountID uuid.UUID) error
}

type LendingServiceImpl struct {
	loans        repository.LoanRepository
	accounts     repository.AccountRepository
	clk          clock.Clock
	loanDuration time.Duration
}

// NewLendingService constructs LendingService with the given loan duration.
func NewLendingService(loans repository.LoanRepository, accounts repository.AccountRepository, clk clock.Clock, loanDuration time.Duration) *LendingServiceImpl {
	if clk == nil {
		clk = clock.System{}
	}
	if loanDuration <= 0 {
		loanDuration = 7 * 24 * time.Hour
	}
	return &LendingServiceImpl{loans: loans, accounts: accounts, clk: clk, loanDuration: loanDuration}
}

// Checkout verifies account eligibility, then creates the loan in a single
// store transaction that re-checks item availability under lock.
func (s *LendingServiceImpl) Checkout(ctx context.Context, actor model.Actor, itemID uuid.UUID) (*model.Loan, error) {
	if actor.AccountID == uuid.Nil || itemID == uuid.Nil {
		return nil, errors.New("validation: empty accountID/itemID")
	}

	acct, err := s.accounts.GetByID(ctx, actor.AccountID)
	if err != nil {
		return nil, err
	}
	if !penalty.Eligible(acct) {
		return nil, errs.ErrAccountIneligible
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	now := s.clk.Now()
	loan := &model.Loan{
		ID:           id,
		ItemID:       itemID,
		AccountID:    actor.AccountID,
		CheckedOutAt: now,
		DueAt:        now.Add(s.loanDuration),
	}
	if err := s.loans.CreateLoan(ctx, loan); err != nil {
		return nil, err
	}
	return loan, nil
}

// RequestReturn opens a return request on a loan the actor owns.
// Administrators may file one on behalf of any account.
func (s *LendingServiceImpl) RequestReturn(ctx context.Context, actor model.Actor, loanID uuid.UUID) error {
	if err := s.checkOwnership(ctx, actor, loanID); err != nil {
		return err
	}
	return s.loans.MarkReturnRequested(ctx, loanID)
}

// ApproveReturn closes a pending-request loan and releases its item.
func (s *LendingServiceImpl) ApproveReturn(ctx context.Context, actor model.Actor, loanID uuid.UUID) error {
	if loanID == uuid.Nil {
		return errors.New("validation: empty loanID")
	}
	if !actor.Role.Can(model.CapResolveReturns) {
		return errs.ErrForbidden
	}
	return s.loans.CloseApproved(ctx, loanID, s.clk.Now())
}

// RejectReturn closes a pending-request loan with a penalty. The item is
// taken back regardless, so no overdue penalty can accrue on top.
func (s *LendingServiceImpl) RejectReturn(ctx context.Context, actor model.Actor, loanID uuid.UUID) (model.Account, error) {
	if loanID == uuid.Nil {
		return model.Account{}, errors.New("validation: empty loanID")
	}
	if !actor.Role.Can(model.CapResolveReturns) {
		return model.Account{}, errs.ErrForbidden
	}
	return s.loans.CloseRejected(ctx, loanID, s.clk.Now())
}

// DirectReturn closes a loan immediately, skipping the approval workflow.
// Preconditions match RequestReturn; a loan with a request in flight must be
// settled by an administrator instead.
func (s *LendingServiceImpl) DirectReturn(ctx context.Context, actor model.Actor, loanID uuid.UUID) error {
	if err := s.checkOwnership(ctx, actor, loanID); err != nil {
		return err
	}
	return s.loans.Close(ctx, loanID, s.clk.Now())
}

// UnlockAccount clears a manual lock. Deactivation is terminal and cannot be
// cleared; the warning count is never reset.
func (s *LendingServiceImpl) UnlockAccount(ctx context.Context, actor model.Actor, accountID uuid.UUID) error {
	if accountID == uuid.Nil {
		return errors.New("validation: empty accountID")
	}
	if !actor.Role.Can(model.CapUnlockAccounts) {
		return errs.ErrForbidden
	}
	return s.accounts.Unlock(ctx, accountID)
}

// checkOwnership loads the loan and verifies the actor owns it, unless the
// actor's role bypasses ownership.
func (s *LendingServiceImpl) checkOwnership(ctx context.Context, actor model.Actor, loanID uuid.UUID) error {
	if actor.AccountID == uuid.Nil || loanID == uuid.Nil {
		return errors.New("validation: empty accountID/loanID")
	}
	loan, err := s.loans.Get(ctx, loanID)
	if err != nil {
		return err
	}
	if loan.AccountID != actor.AccountID && !actor.Role.Can(model.CapBypassOwnership) {
		return errs.ErrForbidden
	}
	return nil
}
