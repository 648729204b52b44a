package common

import (
	"errors"
	"fmt"
)

// Sentinel errors classifying every rejection the native engines can produce.
// Engines wrap these with operation context via fmt.Errorf("...: %w", err) so
// callers dispatch with errors.Is while still seeing the failing operation.
var (
	// ErrValidation marks malformed inputs: amounts below a floor, terms or
	// rates outside their bounds, zero or negative values.
	ErrValidation = errors.New("validation failed")

	// ErrAuthorization marks callers lacking the capability an operation
	// requires.
	ErrAuthorization = errors.New("caller not authorized")

	// ErrState marks operations invoked while the target record is in a
	// status that does not permit them.
	ErrState = errors.New("invalid state for operation")

	// ErrCapacity marks operations that would overfund a loan, exceed a pool
	// exposure cap, or draw more liquidity than is available.
	ErrCapacity = errors.New("capacity exceeded")

	// ErrTiming marks deadline and grace-period violations.
	ErrTiming = errors.New("timing constraint violated")

	// ErrArithmetic marks a checked-arithmetic trip. Balances are big
	// integers and cannot wrap, so this surfaces when an operation would
	// drive a ledger quantity negative.
	ErrArithmetic = errors.New("arithmetic bounds exceeded")
)

// ErrReentrancy marks a call that arrived while another operation on the same
// instance was still in flight. A reentrant call observes "operation in
// progress" and is rejected as a state violation.
var ErrReentrancy = fmt.Errorf("operation in progress: %w", ErrState)
