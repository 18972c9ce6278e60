package backtest

import "errors"

var (
	// ErrInvalidTime rejects timestamps that are not valid 17-digit wire
	// stamps or that would move a component backward.
	ErrInvalidTime = errors.New("invalid timestamp")
	// ErrClockRegression rejects advancement targets before the current
	// clock. The engine state is untouched.
	ErrClockRegression = errors.New("clock cannot move backward")
	ErrOrderNotFound   = errors.New("order not found")
	// ErrOrderAlreadyTerminal is soft: cancelling a filled or cancelled
	// order reports it and changes nothing.
	ErrOrderAlreadyTerminal = errors.New("order already terminal")
	ErrUnknownInstrument    = errors.New("unknown instrument")
)
