// Package wcmerr defines the closed error taxonomy surfaced by the WCM
// core (spec §7). Every synchronous API validation failure returns one of
// these, optionally wrapped with github.com/pkg/errors for call-site
// context; the control task itself never panics, it logs and returns to a
// safe state.
package wcmerr

import "errors"

// Sentinel errors matching the taxonomy in spec.md §7. Use errors.Is to
// test for a category after unwrapping any github.com/pkg/errors context.
var (
	// ErrParam is returned for argument validation failures.
	ErrParam = errors.New("wcm: invalid parameter")
	// ErrNomem is returned when a fixed-capacity resource is exhausted.
	ErrNomem = errors.New("wcm: no room")
	// ErrState is returned when an operation is not permitted in the
	// current state.
	ErrState = errors.New("wcm: wrong state")
	// ErrAction is returned when a power-save toggle is attempted on a
	// sub-state-machine in the wrong sub-state.
	ErrAction = errors.New("wcm: wrong action")
	// ErrPsAction is returned when a power-save operation is rejected
	// because the µAP is running or the STA is mid-transition.
	ErrPsAction = errors.New("wcm: power-save action rejected")
	// ErrNotSupported is returned for features unavailable on this
	// firmware/build.
	ErrNotSupported = errors.New("wcm: not supported")

	// ErrNotFound is returned by Network Store lookups and remove() when
	// no profile matches.
	ErrNotFound = errors.New("wcm: not found")
	// ErrDuplicateName is returned by add() when the profile name is
	// already in use.
	ErrDuplicateName = errors.New("wcm: duplicate name")
	// ErrInvalidName is returned by add() for a name outside [1,32]
	// characters.
	ErrInvalidName = errors.New("wcm: invalid name")
	// ErrKeyInvalid is returned by add() for a malformed security key.
	ErrKeyInvalid = errors.New("wcm: invalid key")
)
