/*

Error taxonomy for the farm. Specific errors wrap their category so that callers can match either.

*/

package types

import (
	"errors"
	"fmt"
)

// Categories
var (
	ErrPreconditionViolation = errors.New("precondition violation")
	ErrExternalCallFailure   = errors.New("external call failure")
	ErrTimelockViolation     = errors.New("timelock violation")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrReentrantCall         = errors.New("reentrant call rejected")
)

// Precondition violations
var (
	ErrInvalidPool           = fmt.Errorf("%w: pool index out of range", ErrPreconditionViolation)
	ErrInsufficientShares    = fmt.Errorf("%w: insufficient shares", ErrPreconditionViolation)
	ErrInvalidFeeBasisPoints = fmt.Errorf("%w: deposit fee basis points above 10000", ErrPreconditionViolation)
	ErrDuplicatePool         = fmt.Errorf("%w: pool already registered for asset", ErrPreconditionViolation)
	ErrInvalidAmount         = fmt.Errorf("%w: amount is nil or negative", ErrPreconditionViolation)
	ErrInvalidDenom          = fmt.Errorf("%w: invalid denom", ErrPreconditionViolation)
	ErrInvalidAddress        = fmt.Errorf("%w: empty address", ErrPreconditionViolation)
	ErrProtectedAsset        = fmt.Errorf("%w: asset is protected", ErrPreconditionViolation)
	ErrUnknownStrategy       = fmt.Errorf("%w: unknown strategy", ErrPreconditionViolation)
	ErrStrategyAsset         = fmt.Errorf("%w: strategy underlying does not match pool asset", ErrPreconditionViolation)
	ErrNoShares              = fmt.Errorf("%w: pool has no shares", ErrPreconditionViolation)
	ErrZeroUnderlying        = fmt.Errorf("%w: pool has shares but no underlying", ErrPreconditionViolation)
)

// External call failures
var (
	ErrTransferFailed    = fmt.Errorf("%w: transfer failed", ErrExternalCallFailure)
	ErrTransferShortfall = fmt.Errorf("%w: transfer moved a different amount than requested", ErrExternalCallFailure)
	ErrStrategyCall      = fmt.Errorf("%w: strategy call failed", ErrExternalCallFailure)
	ErrStoreWrite        = fmt.Errorf("%w: store write failed", ErrExternalCallFailure)
)

// Timelock violations
var (
	ErrTimelockNotElapsed = fmt.Errorf("%w: strategy switch timelock has not elapsed", ErrTimelockViolation)
	ErrStrategyMismatch   = fmt.Errorf("%w: finalized strategy does not match queued candidate", ErrTimelockViolation)
	ErrNoPendingStrategy  = fmt.Errorf("%w: no strategy switch queued", ErrTimelockViolation)
)
