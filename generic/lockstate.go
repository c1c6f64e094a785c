package generic

import "fmt"

// =============================================================================
// LOCK STATE - Open/Finalized lifecycle shared by production days and periods
// =============================================================================

// LockState is the two-state lifecycle of anything that freezes once
// approved: a production day or a payroll period.
//
//	Open --Finalize--> Finalized --Unlock--> Open
//
// Production days allow the Unlock edge (administrative override). Payroll
// periods never call it.
type LockState string

const (
	StateOpen      LockState = "Open"
	StateFinalized LockState = "Finalized"
)

// ParseLockState accepts the two canonical spellings.
func ParseLockState(s string) (LockState, error) {
	switch LockState(s) {
	case StateOpen, StateFinalized:
		return LockState(s), nil
	}
	return "", fmt.Errorf("unknown lock state %q", s)
}

// Finalize returns the Finalized state. ErrAlreadyFinalized reports that no
// transition happened; callers that treat re-finalizing as a no-op check for it.
func (s LockState) Finalize() (LockState, error) {
	if s == StateFinalized {
		return StateFinalized, ErrAlreadyFinalized
	}
	return StateFinalized, nil
}

// Unlock returns the Open state. ErrAlreadyOpen reports that no transition happened.
func (s LockState) Unlock() (LockState, error) {
	if s != StateFinalized {
		return StateOpen, ErrAlreadyOpen
	}
	return StateOpen, nil
}

// Mutable reports whether content under this state may change.
func (s LockState) Mutable() bool { return s != StateFinalized }
