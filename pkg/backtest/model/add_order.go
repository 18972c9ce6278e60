package model

import (
	"github.com/shopspring/decimal"
)

// AddOrder is a synthetic order submission.
type AddOrder struct {
	Symbol    string
	Timestamp int64 // 17-digit stamp, YYYYMMDDHHMMSSmmm
	Side      OrderSide
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	Account   string
}
