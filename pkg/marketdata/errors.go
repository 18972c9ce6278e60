package marketdata

import "errors"

var (
	// ErrDataNotFound means no feed exists for the requested
	// instrument-day on the configured source.
	ErrDataNotFound = errors.New("market data not found")
	// ErrCorruptData means the feed exists but cannot be decoded or
	// fails validation.
	ErrCorruptData = errors.New("corrupt market data")
)
