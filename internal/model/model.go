// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// ReturnRequestStatus tracks the interactive return workflow on a loan.
// Approved and Rejected are terminal; a loan never moves out of them.
type ReturnRequestStatus int16

const (
	RequestNone ReturnRequestStatus = iota
	RequestPending
	RequestApproved
	RequestRejected
)

// String returns a stable name for logging.
func (s ReturnRequestStatus) String() string {
	switch s {
	case RequestNone:
		return "none"
	case RequestPending:
		return "pending"
	case RequestApproved:
		return "approved"
	case RequestRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Item is a lendable unit from the catalog.
type Item struct {
	ID         uuid.UUID
	Title      string     // display title, used only for diagnostics here
	Available  bool       // false while exactly one unresolved loan references the item
	ReturnedAt *time.Time // last time the item came back; nil if never lent
}

// Loan is a single borrowing episode linking one item to one account.
type Loan struct {
	ID            uuid.UUID
	ItemID        uuid.UUID // FK -> items.id
	AccountID     uuid.UUID // FK -> accounts.id
	CheckedOutAt  time.Time
	DueAt         time.Time  // immutable after checkout
	ReturnedAt    *time.Time // set by the transition that resolved the loan
	Resolved      bool       // terminal once true
	ReturnRequest ReturnRequestStatus
}

// Overdue reports whether the loan is unresolved past its due time.
func (l *Loan) Overdue(now time.Time) bool {
	return !l.Resolved && l.DueAt.Before(now)
}

// Account is the patron whose standing the penalty policy tracks.
type Account struct {
	ID           uuid.UUID
	Name         string
	WarningCount int  // never decreases
	Locked       bool // set at two warnings; an administrator may clear it
	Deactivated  bool // set at three warnings; terminal
	CreatedAt    time.Time
}
