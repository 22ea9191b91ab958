package repository

import (
	"context"

	"github.com/ekaradag/circulation/internal/model"
	"github.com/gofrs/uuid/v5"
)

// AccountRepository provides access to patron accounts and their penalty state.
type AccountRepository interface {
	// GetByID loads an account by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Account, error)

	// Unlock clears the locked flag. Fails with ErrAccountIneligible if the
	// account is deactivated. The warning count is left untouched.
	Unlock(ctx context.Context, id uuid.UUID) error

	// PenalizeOverdue applies one warning unless the account is already
	// deactivated. The returned bool reports whether a warning was applied.
	PenalizeOverdue(ctx context.Context, id uuid.UUID) (model.Account, bool, error)
}
