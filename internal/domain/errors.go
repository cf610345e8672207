package domain

import "errors"

// Ledger validation failures. These form a closed set: every engine operation
// either succeeds or returns exactly one of them, and none is retried
// internally -- a retry after success hits the corresponding guard
// (e.g. a repeated claim yields ErrAlreadyClaimed, never a double payout).
var (
	ErrInvalidQuestion       = errors.New("invalid question")
	ErrInvalidResolutionTime = errors.New("invalid resolution time")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrDuplicateMarket       = errors.New("market already exists")
	ErrMarketNotFound        = errors.New("market not found")
	ErrMarketAlreadyResolved = errors.New("market already resolved")
	ErrMarketExpired         = errors.New("market expired")
	ErrMarketNotExpired      = errors.New("market not expired")
	ErrMarketNotResolved     = errors.New("market not resolved")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrSideMismatch          = errors.New("prediction side mismatch")
	ErrNoPrediction          = errors.New("no prediction")
	ErrAlreadyClaimed        = errors.New("reward already claimed")
	ErrPredictionLost        = errors.New("prediction lost")
	ErrInsufficientOutput    = errors.New("insufficient output tokens")
	ErrArithmetic            = errors.New("arithmetic overflow")
)

// Infrastructure-level errors shared by the store and cache implementations.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrLockHeld      = errors.New("lock already held")
)
