/*
errors.go - Centralized error types for the payroll engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every structured error carries the context needed to act on it (which
  date, which worker, which product, which range) and unwraps to a
  sentinel so callers can branch with errors.Is.

ERROR CATEGORIES:
  1. Validation errors - Malformed input, rejected before any state is read
  2. Conflict errors   - Slab overlap, duplicate entry, overlapping period
  3. Lock errors       - Mutation attempted on a Finalized day or period
  4. Lookup errors     - Day, worker, line or period does not exist
  5. Lifecycle signals - ErrAlreadyFinalized / ErrAlreadyOpen from LockState

USAGE:
  var locked *generic.DayLockedError
  if errors.As(err, &locked) {
      fmt.Printf("day %s is finalized\n", locked.Date)
  }

  if errors.Is(err, generic.ErrNoMatchingSlab) { ... }

SEE ALSO:
  - lockstate.go: Emits ErrAlreadyFinalized / ErrAlreadyOpen
  - api/errors.go: Maps these errors to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrSlabOverlap is returned when a new slab's range intersects an existing
	// slab of the same product.
	ErrSlabOverlap = errors.New("slab range overlaps an existing slab")

	// ErrNoMatchingSlab is returned when no slab covers a quantity. There is no
	// fallback rate.
	ErrNoMatchingSlab = errors.New("no slab matches quantity")

	// ErrDuplicateEntry is returned for a second line with the same
	// (day, worker, product). Entries are never merged.
	ErrDuplicateEntry = errors.New("duplicate production entry")

	// ErrDayLocked is returned when mutating lines of a Finalized day.
	ErrDayLocked = errors.New("production day is finalized and locked")

	// ErrDayNotFound is returned when finalizing or unlocking a date with no day.
	ErrDayNotFound = errors.New("production day not found")

	// ErrNotFound is returned when a referenced worker, product, slab, line or
	// payroll period doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrPeriodOverlap is returned when a new payroll period intersects an existing one.
	ErrPeriodOverlap = errors.New("payroll period overlaps an existing period")

	// ErrPeriodLocked is returned when generating into a Finalized payroll period.
	ErrPeriodLocked = errors.New("payroll period is finalized")

	// ErrMissingSalaryProfile is returned in strict mode when an active worker
	// has no salary profile.
	ErrMissingSalaryProfile = errors.New("missing salary profile")

	// ErrDuplicateRecord is returned by stores when a (period, worker) record exists.
	ErrDuplicateRecord = errors.New("payroll record already exists")

	// ErrAlreadyFinalized and ErrAlreadyOpen signal a LockState transition that
	// did not change anything.
	ErrAlreadyFinalized = errors.New("already finalized")
	ErrAlreadyOpen      = errors.New("already open")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// SlabOverlapError reports the rejected range. Which existing slab it hit is
// deliberately not part of the contract.
type SlabOverlapError struct {
	ProductID ProductID
	QtyFrom   int
	QtyTo     int
}

func (e *SlabOverlapError) Error() string {
	return fmt.Sprintf("slab [%d, %d] overlaps an existing slab for product %s", e.QtyFrom, e.QtyTo, e.ProductID)
}

func (e *SlabOverlapError) Unwrap() error { return ErrSlabOverlap }

type NoMatchingSlabError struct {
	ProductID ProductID
	Quantity  int
}

func (e *NoMatchingSlabError) Error() string {
	return fmt.Sprintf("no incentive slab for product %s covers quantity %d", e.ProductID, e.Quantity)
}

func (e *NoMatchingSlabError) Unwrap() error { return ErrNoMatchingSlab }

type DuplicateEntryError struct {
	Date      Date
	WorkerID  WorkerID
	ProductID ProductID
	LineID    string // the line that already exists
}

func (e *DuplicateEntryError) Error() string {
	return fmt.Sprintf("worker %s already has an entry for product %s on %s", e.WorkerID, e.ProductID, e.Date)
}

func (e *DuplicateEntryError) Unwrap() error { return ErrDuplicateEntry }

type DayLockedError struct {
	Date Date
}

func (e *DayLockedError) Error() string {
	return fmt.Sprintf("production day %s is finalized and locked", e.Date)
}

func (e *DayLockedError) Unwrap() error { return ErrDayLocked }

type DayNotFoundError struct {
	Date Date
}

func (e *DayNotFoundError) Error() string {
	return fmt.Sprintf("no production day for %s", e.Date)
}

func (e *DayNotFoundError) Unwrap() error { return ErrDayNotFound }

// NotFoundError is the generic lookup failure.
type NotFoundError struct {
	Resource string // "worker", "product", "slab", "line", "payroll period"
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

type PeriodOverlapError struct {
	Requested Period
	Existing  PayrollPeriod
}

func (e *PeriodOverlapError) Error() string {
	return fmt.Sprintf("payroll period %s overlaps %q %s", e.Requested, e.Existing.Name, e.Existing.Period)
}

func (e *PeriodOverlapError) Unwrap() error { return ErrPeriodOverlap }

type PeriodLockedError struct {
	PeriodID string
}

func (e *PeriodLockedError) Error() string {
	return fmt.Sprintf("payroll period %s is finalized", e.PeriodID)
}

func (e *PeriodLockedError) Unwrap() error { return ErrPeriodLocked }

type MissingSalaryProfileError struct {
	WorkerIDs []WorkerID
}

func (e *MissingSalaryProfileError) Error() string {
	ids := make([]string, len(e.WorkerIDs))
	for i, id := range e.WorkerIDs {
		ids[i] = string(id)
	}
	return fmt.Sprintf("no salary profile for workers: %s", strings.Join(ids, ", "))
}

func (e *MissingSalaryProfileError) Unwrap() error { return ErrMissingSalaryProfile }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNoMatchingSlab) ||
		IsConflict(err) ||
		IsLocked(err) ||
		IsNotFound(err) ||
		errors.Is(err, ErrMissingSalaryProfile)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrDayNotFound)
}

// IsConflict returns true if the write collides with existing state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrSlabOverlap) ||
		errors.Is(err, ErrDuplicateEntry) ||
		errors.Is(err, ErrPeriodOverlap) ||
		errors.Is(err, ErrDuplicateRecord)
}

// IsLocked returns true if the target is Finalized.
func IsLocked(err error) bool {
	return errors.Is(err, ErrDayLocked) ||
		errors.Is(err, ErrPeriodLocked)
}
