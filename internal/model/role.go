package model

import "github.com/gofrs/uuid/v5"

// Capability is a single permission checked by the lending state machine.
type Capability uint8

const (
	// CapBypassOwnership allows acting on loans owned by other accounts.
	CapBypassOwnership Capability = iota
	// CapResolveReturns allows approving and rejecting return requests.
	CapResolveReturns
	// CapUnlockAccounts allows clearing the locked flag on an account.
	CapUnlockAccounts
)

// Role is a closed enumeration of caller roles.
type Role uint8

const (
	RolePatron Role = iota
	RoleAdmin
)

var roleCaps = map[Role][]Capability{
	RolePatron: nil,
	RoleAdmin:  {CapBypassOwnership, CapResolveReturns, CapUnlockAccounts},
}

// Can reports whether the role holds the given capability.
func (r Role) Can(c Capability) bool {
	for _, rc := range roleCaps[r] {
		if rc == c {
			return true
		}
	}
	return false
}

// Actor identifies the already-authenticated caller of a lending operation.
// Authentication itself happens outside this core.
type Actor struct {
	AccountID uuid.UUID
	Role      Role
}
