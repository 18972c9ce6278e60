package model

import (
	"github.com/shopspring/decimal"
)

// Fill is one resolved match. Records are append-only.
type Fill struct {
	Symbol      string
	BuyOrderID  int64
	SellOrderID int64
	Price       decimal.Decimal
	Quantity    decimal.Decimal
	Timestamp   int64
	Seq         int64 // exchange sequence for ground-truth fills, 0 otherwise
	TakerSide   OrderSide
	GroundTruth bool // replayed from the tape rather than simulated
}
