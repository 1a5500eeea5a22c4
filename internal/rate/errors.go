package rate

import "errors"

var (
	// ErrRateLimited is returned once a window's budget is spent.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps any redis failure.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
