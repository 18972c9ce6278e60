package orderbook

import "errors"

var (
	errOrderNotFound = errors.New("order not found")
)

// IsNotFound reports whether err is the book's not-resting error.
func IsNotFound(err error) bool {
	return errors.Is(err, errOrderNotFound)
}
