package domain

import "errors"

// Common domain errors
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInternalServer = errors.New("internal server error")
)

// Ledger errors
var (
	ErrTransactionNotFound        = errors.New("points transaction not found")
	ErrDuplicateIdempotencyKey    = errors.New("idempotency key already used")
	ErrEarningDeltaNotPositive    = errors.New("EARNING transactions must have a positive points delta")
	ErrRedeemDeltaNotNegative     = errors.New("REDEEM transactions must have a negative points delta")
	ErrRedeemRewardRequired       = errors.New("REDEEM transactions must reference a reward")
	ErrAdjustmentDeltaZero        = errors.New("ADJUSTMENT transactions must have a non-zero points delta")
	ErrExpirationDeltaNotNegative = errors.New("EXPIRATION transactions must have a negative points delta")
	ErrReasonCodeRequired         = errors.New("reason code is required")
	ErrInsufficientBalance        = errors.New("insufficient points balance")
)

// Reversal errors
var (
	ErrNotReversible   = errors.New("transaction type cannot be reversed")
	ErrAlreadyReversed = errors.New("transaction has already been reversed")
)

// Membership errors
var (
	ErrMembershipNotFound = errors.New("membership not found")
	ErrMembershipInactive = errors.New("membership is not active")
)

// Tier errors
var (
	ErrTierNotFound      = errors.New("tier not found")
	ErrTierPolicyMissing = errors.New("no active tier policy for tenant")
	ErrGraceBeforeSince  = errors.New("grace period cannot end before tier start")
	ErrUnknownWindow     = errors.New("unknown evaluation window")
)

// Auth errors
var (
	ErrUserNotFound       = errors.New("staff user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSystemActor        = errors.New("manual adjustments require a human actor")
)
