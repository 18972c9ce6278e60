package model

import (
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "New"
	OrderStatusPartiallyFilled OrderStatus = "PartiallyFilled"
	OrderStatusFilled          OrderStatus = "Filled"
	OrderStatusCanceled        OrderStatus = "Canceled"
)

type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// Opposite returns the other side of the book.
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

type OrderType string

const (
	OrderTypeLimit OrderType = "LIMIT"
	// OrderTypeMarket and OrderTypeBestOwn only occur in historical feeds.
	OrderTypeMarket  OrderType = "MARKET"
	OrderTypeBestOwn OrderType = "BEST_OWN"
)

type OrderOrigin string

const (
	OriginHistorical OrderOrigin = "HISTORICAL"
	OriginSynthetic  OrderOrigin = "SYNTHETIC"
)

type Order struct {
	ID int64

	// init info
	Symbol     string
	Side       OrderSide
	Type       OrderType
	Price      decimal.Decimal
	Quantity   decimal.Decimal
	Account    string
	SubmitTime int64
	Origin     OrderOrigin
	ExchangeNo int64 // exchange order number, 0 for synthetic orders

	// calculated info
	Status         OrderStatus
	CumQuantity    decimal.Decimal
	LeavesQuantity decimal.Decimal
	LastPrice      decimal.Decimal
	LastQuantity   decimal.Decimal
	UpdateTime     int64
	Seq            int64 // arrival sequence assigned at registration
}

// IsEnd reports whether the order reached a terminal status.
func (o *Order) IsEnd() bool {
	return o.Status == OrderStatusFilled || o.Status == OrderStatusCanceled
}
