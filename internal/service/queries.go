package service

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"

	"github.com/ekaradag/circulation/internal/model"
	"github.com/ekaradag/circulation/internal/repository"
)

// LoanQueryService exposes read-only projections over loans for the
// presentation layer. No mutation happens here.
type LoanQueryService interface {
	// ActiveLoans returns an account's unresolved loans, soonest-due first.
	ActiveLoans(ctx context.Context, accountID uuid.UUID) ([]model.Loan, error)
	// History returns an account's full loan history, most recent checkout first.
	History(ctx context.Context, accountID uuid.UUID) ([]model.Loan, error)
	// PendingReturnRequests returns loans awaiting an administrator decision
	// across all accounts, soonest-due first.
	PendingReturnRequests(ctx context.Context) ([]model.Loan, error)
}

type LoanQueryServiceImpl struct {
	loans    repository.LoanRepository
	accounts repository.AccountRepository
}

// NewLoanQueryService constructs LoanQueryService.
func NewLoanQueryService(loans repository.LoanRepository, accounts repository.AccountRepository) *LoanQueryServiceImpl {
	return &LoanQueryServiceImpl{loans: loans, accounts: accounts}
}

// ActiveLoans lists unresolved loans for a known account.
func (s *LoanQueryServiceImpl) ActiveLoans(ctx context.Context, accountID uuid.UUID) ([]model.Loan, error) {
	if err := s.checkAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return s.loans.ListActiveByAccount(ctx, accountID)
}

// History lists all loans ever taken by a known account.
func (s *LoanQueryServiceImpl) History(ctx context.Context, accountID uuid.UUID) ([]model.Loan, error) {
	if err := s.checkAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return s.loans.ListByAccount(ctx, accountID)
}

// PendingReturnRequests lists loans with a return request awaiting decision.
func (s *LoanQueryServiceImpl) PendingReturnRequests(ctx context.Context) ([]model.Loan, error) {
	return s.loans.ListPendingReturnRequests(ctx)
}

func (s *LoanQueryServiceImpl) checkAccount(ctx context.Context, accountID uuid.UUID) error {
	if accountID == uuid.Nil {
		return errors.New("validation: empty accountID")
	}
	_, err := s.accounts.GetByID(ctx, accountID)
	return err
}
