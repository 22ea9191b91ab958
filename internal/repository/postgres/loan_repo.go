package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/ekaradag/circulation/internal/errs"
	"github.com/ekaradag/circulation/internal/model"
)

// LoanRepo implements LoanRepository using PostgreSQL.
type LoanRepo struct{ db *DB }

// NewLoanRepo constructs a loan repository.
func NewLoanRepo(db *DB) *LoanRepo { return &LoanRepo{db: db} }

const (
	qLockLoan = `SELECT item_id, account_id, resolved, return_request FROM loans WHERE id=$1 FOR UPDATE`

	qResolveLoan = `UPDATE loans SET resolved=true, return_request=$2, returned_at=$3 WHERE id=$1`

	qReleaseItem = `UPDATE items SET available=true, returned_at=$2 WHERE id=$1`

	loanColumns = `id, item_id, account_id, checked_out_at, due_at, returned_at, resolved, return_request`
)

// lockedLoan is the row state read under FOR UPDATE before a transition.
type lockedLoan struct {
	itemID    uuid.UUID
	accountID uuid.UUID
	resolved  bool
	request   int16
}

// lockLoan locks the loan row for the remainder of the transaction.
func lockLoan(ctx context.Context, tx pgx.Tx, id uuid.UUID) (lockedLoan, error) {
	var ll lockedLoan
	err := tx.QueryRow(ctx, qLockLoan, id).Scan(&ll.itemID, &ll.accountID, &ll.resolved, &ll.request)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return lockedLoan{}, errs.ErrNotFound
		}
		return lockedLoan{}, err
	}
	return ll, nil
}

// CreateLoan inserts an unresolved loan and flips the item to unavailable.
// The item row is locked first so two concurrent checkouts of the same item
// serialize; the loser sees available=false and fails with ErrItemUnavailable.
func (r *LoanRepo) CreateLoan(ctx context.Context, loan *model.Loan) (err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	const sel = `SELECT available FROM items WHERE id=$1 FOR UPDATE`
	const ins = `INSERT INTO loans (id, item_id, account_id, checked_out_at, due_at, resolved, return_request) VALUES ($1,$2,$3,$4,$5,false,0)`
	const take = `UPDATE items SET available=false WHERE id=$1`

	var available bool
	if err = tx.QueryRow(ctx, sel, loan.ItemID).Scan(&available); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errs.ErrNotFound
		}
		return err
	}
	if !available {
		return errs.ErrItemUnavailable
	}
	_, err = tx.Exec(ctx, ins, loan.ID, loan.ItemID, loan.AccountID, loan.CheckedOutAt, loan.DueAt)
	if isUniqueViolation(err) {
		// Partial unique index on unresolved loans; belt for the availability flag.
		return errs.ErrItemUnavailable
	}
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, take, loan.ItemID)
	return err
}

// Get returns a single loan by id.
func (r *LoanRepo) Get(ctx context.Context, id uuid.UUID) (*model.Loan, error) {
	const q = `
SELECT id, item_id, account_id, checked_out_at, due_at, returned_at, resolved, return_request
FROM loans WHERE id=$1`
	row := r.db.Pool.QueryRow(ctx, q, id)
	var (
		ln  model.Loan
		req int16
	)
	err := row.Scan(&ln.ID, &ln.ItemID, &ln.AccountID, &ln.CheckedOutAt, &ln.DueAt, &ln.ReturnedAt, &ln.Resolved, &req)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	ln.ReturnRequest = model.ReturnRequestStatus(req)
	return &ln, nil
}

// MarkReturnRequested moves the return request state None -> Pending.
func (r *LoanRepo) MarkReturnRequested(ctx context.Context, id uuid.UUID) (err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	ll, err := lockLoan(ctx, tx, id)
	if err != nil {
		return err
	}
	if ll.resolved {
		return errs.ErrAlreadyResolved
	}
	if model.ReturnRequestStatus(ll.request) == model.RequestPending {
		return errs.ErrAlreadyPending
	}

	const upd = `UPDATE loans SET return_request=$2 WHERE id=$1`
	_, err = tx.Exec(ctx, upd, id, int16(model.RequestPending))
	return err
}

// CloseApproved resolves a pending-request loan as approved and releases the item.
func (r *LoanRepo) CloseApproved(ctx context.Context, id uuid.UUID, returnedAt time.Time) (err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	ll, err := lockLoan(ctx, tx, id)
	if err != nil {
		return err
	}
	if ll.resolved {
		return errs.ErrAlreadyResolved
	}
	if model.ReturnRequestStatus(ll.request) != model.RequestPending {
		return errs.ErrNoPendingRequest
	}

	if _, err = tx.Exec(ctx, qResolveLoan, id, int16(model.RequestApproved), returnedAt); err != nil {
		return err
	}
	_, err = tx.Exec(ctx, qReleaseItem, ll.itemID, returnedAt)
	return err
}

// CloseRejected resolves a pending-request loan as rejected. The item is
// physically back, so it is released, but the owning account is penalized
// with one warning inside the same transaction.
func (r *LoanRepo) CloseRejected(ctx context.Context, id uuid.UUID, returnedAt time.Time) (acct model.Account, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return model.Account{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	ll, err := lockLoan(ctx, tx, id)
	if err != nil {
		return model.Account{}, err
	}
	if ll.resolved {
		return model.Account{}, errs.ErrAlreadyResolved
	}
	if model.ReturnRequestStatus(ll.request) != model.RequestPending {
		return model.Account{}, errs.ErrNoPendingRequest
	}

	if _, err = tx.Exec(ctx, qResolveLoan, id, int16(model.RequestRejected), returnedAt); err != nil {
		return model.Account{}, err
	}
	if _, err = tx.Exec(ctx, qReleaseItem, ll.itemID, returnedAt); err != nil {
		return model.Account{}, err
	}
	return applyWarningTx(ctx, tx, ll.accountID)
}

// Close resolves a loan that has no return request in flight and releases its
// item. Shared by the direct-return path and the reconciliation sweep; both
// lose cleanly to a concurrent transition via the sentinels below.
func (r *LoanRepo) Close(ctx context.Context, id uuid.UUID, returnedAt time.Time) (err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	ll, err := lockLoan(ctx, tx, id)
	if err != nil {
		return err
	}
	if ll.resolved {
		return errs.ErrAlreadyResolved
	}
	if model.ReturnRequestStatus(ll.request) != model.RequestNone {
		return errs.ErrAlreadyPending
	}

	if _, err = tx.Exec(ctx, qResolveLoan, id, int16(model.RequestNone), returnedAt); err != nil {
		return err
	}
	_, err = tx.Exec(ctx, qReleaseItem, ll.itemID, returnedAt)
	return err
}

// ListOverdue returns unresolved loans past due with no return request in flight.
func (r *LoanRepo) ListOverdue(ctx context.Context, now time.Time) ([]model.Loan, error) {
	const q = `
SELECT ` + loanColumns + `
FROM loans
WHERE NOT resolved AND due_at < $1 AND return_request = 0
ORDER BY due_at ASC`
	rows, err := r.db.Pool.Query(ctx, q, now)
	if err != nil {
		return nil, err
	}
	return scanLoans(rows)
}

// ListActiveByAccount returns unresolved loans for an account, soonest-due first.
func (r *LoanRepo) ListActiveByAccount(ctx context.Context, accountID uuid.UUID) ([]model.Loan, error) {
	const q = `
SELECT ` + loanColumns + `
FROM loans
WHERE account_id=$1 AND NOT resolved
ORDER BY due_at ASC`
	rows, err := r.db.Pool.Query(ctx, q, accountID)
	if err != nil {
		return nil, err
	}
	return scanLoans(rows)
}

// ListByAccount returns the full loan history for an account, most recent checkout first.
func (r *LoanRepo) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]model.Loan, error) {
	const q = `
SELECT ` + loanColumns + `
FROM loans
WHERE account_id=$1
ORDER BY checked_out_at DESC`
	rows, err := r.db.Pool.Query(ctx, q, accountID)
	if err != nil {
		return nil, err
	}
	return scanLoans(rows)
}

// ListPendingReturnRequests returns loans awaiting an administrator decision.
func (r *LoanRepo) ListPendingReturnRequests(ctx context.Context) ([]model.Loan, error) {
	const q = `
SELECT ` + loanColumns + `
FROM loans
WHERE NOT resolved AND return_request = 1
ORDER BY due_at ASC`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	return scanLoans(rows)
}

// scanLoans drains a loan rows iterator.
func scanLoans(rows pgx.Rows) ([]model.Loan, error) {
	defer rows.Close()

	var out []model.Loan
	for rows.Next() {
		var (
			ln  model.Loan
			req int16
		)
		if err := rows.Scan(&ln.ID, &ln.ItemID, &ln.AccountID, &ln.CheckedOutAt, &ln.DueAt, &ln.ReturnedAt, &ln.Resolved, &req); err != nil {
			return nil, err
		}
		ln.ReturnRequest = model.ReturnRequestStatus(req)
		out = append(out, ln)
	}
	return out, rows.Err()
}
