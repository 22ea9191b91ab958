package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/ekaradag/circulation/internal/errs"
	"github.com/ekaradag/circulation/internal/model"
	"github.com/ekaradag/circulation/internal/penalty"
)

// AccountRepo implements AccountRepository using PostgreSQL.
type AccountRepo struct{ db *DB }

// NewAccountRepo constructs an account repository.
func NewAccountRepo(db *DB) *AccountRepo { return &AccountRepo{db: db} }

const (
	qLockAccount = `SELECT id, name, warning_count, locked, deactivated, created_at FROM accounts WHERE id=$1 FOR UPDATE`

	qStoreWarnings = `UPDATE accounts SET warning_count=$2, locked=$3, deactivated=$4 WHERE id=$1`
)

// GetByID selects an account by ID.
func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	const q = `
SELECT id, name, warning_count, locked, deactivated, created_at
FROM accounts WHERE id=$1`
	row := r.db.Pool.QueryRow(ctx, q, id)
	var a model.Account
	if err := row.Scan(&a.ID, &a.Name, &a.WarningCount, &a.Locked, &a.Deactivated, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// Unlock clears the locked flag of a non-deactivated account.
// The warning count is preserved; only deactivation is irreversible.
func (r *AccountRepo) Unlock(ctx context.Context, id uuid.UUID) (err error) {
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

	const sel = `SELECT deactivated FROM accounts WHERE id=$1 FOR UPDATE`
	const upd = `UPDATE accounts SET locked=false WHERE id=$1`

	var deactivated bool
	if err = tx.QueryRow(ctx, sel, id).Scan(&deactivated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errs.ErrNotFound
		}
		return err
	}
	if deactivated {
		return errs.ErrAccountIneligible
	}
	_, err = tx.Exec(ctx, upd, id)
	return err
}

// PenalizeOverdue applies one warning to the account unless it is already
// deactivated. Called once per account per reconciliation sweep, however
// many overdue loans the account holds.
func (r *AccountRepo) PenalizeOverdue(ctx context.Context, id uuid.UUID) (acct model.Account, applied bool, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return model.Account{}, false, err
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

	var a model.Account
	err = tx.QueryRow(ctx, qLockAccount, id).Scan(&a.ID, &a.Name, &a.WarningCount, &a.Locked, &a.Deactivated, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Account{}, false, errs.ErrNotFound
		}
		return model.Account{}, false, err
	}
	if a.Deactivated {
		return a, false, nil
	}

	penalty.Apply(&a)
	if _, err = tx.Exec(ctx, qStoreWarnings, a.ID, a.WarningCount, a.Locked, a.Deactivated); err != nil {
		return model.Account{}, false, err
	}
	return a, true, nil
}

// applyWarningTx penalizes an account inside a caller-owned transaction.
// Used by the reject-return transition, where the policy applies
// unconditionally.
func applyWarningTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (model.Account, error) {
	var a model.Account
	err := tx.QueryRow(ctx, qLockAccount, id).Scan(&a.ID, &a.Name, &a.WarningCount, &a.Locked, &a.Deactivated, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Account{}, errs.ErrNotFound
		}
		return model.Account{}, err
	}
	penalty.Apply(&a)
	if _, err := tx.Exec(ctx, qStoreWarnings, a.ID, a.WarningCount, a.Locked, a.Deactivated); err != nil {
		return model.Account{}, err
	}
	return a, nil
}
