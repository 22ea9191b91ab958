package penalty

import (
	"testing"

	"github.com/ekaradag/circulation/internal/model"
)

func TestApply_ThresholdLadder(t *testing.T) {
	a := &model.Account{}

	Apply(a)
	if a.WarningCount != 1 || a.Locked || a.Deactivated {
		t.Fatalf("after 1 warning: %+v", a)
	}

	Apply(a)
	if a.WarningCount != 2 || !a.Locked || a.Deactivated {
		t.Fatalf("after 2 warnings: %+v", a)
	}

	Apply(a)
	if a.WarningCount != 3 || !a.Locked || !a.Deactivated {
		t.Fatalf("after 3 warnings: %+v", a)
	}

	// Deactivation is terminal; further warnings only accumulate.
	Apply(a)
	if a.WarningCount != 4 || !a.Locked || !a.Deactivated {
		t.Fatalf("after 4 warnings: %+v", a)
	}
}

func TestApply_ManualUnlockDoesNotResetLadder(t *testing.T) {
	// An administrator cleared the lock after the second warning; the next
	// warning still deactivates.
	a := &model.Account{WarningCount: 2, Locked: false}

	Apply(a)
	if a.WarningCount != 3 || !a.Locked || !a.Deactivated {
		t.Fatalf("after 3rd warning post-unlock: %+v", a)
	}
}

func TestEligible(t *testing.T) {
	cases := []struct {
		name string
		acct model.Account
		want bool
	}{
		{"clean", model.Account{}, true},
		{"one warning", model.Account{WarningCount: 1}, true},
		{"locked", model.Account{WarningCount: 2, Locked: true}, false},
		{"deactivated", model.Account{WarningCount: 3, Locked: true, Deactivated: true}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Eligible(&tc.acct); got != tc.want {
				t.Fatalf("Eligible(%+v) = %v, want %v", tc.acct, got, tc.want)
			}
		})
	}
}
