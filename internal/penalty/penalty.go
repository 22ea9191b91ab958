// Package penalty implements the escalating warning policy on patron accounts.
package penalty

import "github.com/ekaradag/circulation/internal/model"

// Apply adds exactly one warning to the account and re-evaluates the
// lock/deactivation thresholds: two warnings lock the account, three
// deactivate it for good. Callers are responsible for invoking Apply at
// most once per qualifying event.
func Apply(a *model.Account) {
	a.WarningCount++

	if a.WarningCount >= 3 {
		a.Locked = true
		a.Deactivated = true
	} else if a.WarningCount >= 2 {
		a.Locked = true
	}
}

// Eligible reports whether the account may check out items.
func Eligible(a *model.Account) bool {
	return !a.Locked && !a.Deactivated
}
