// Package marketdata loads and normalizes historical exchange feeds
// into a replayable event stream. One Dataset holds a single
// instrument's trading day.
package marketdata

import (
	"github.com/shopspring/decimal"

	"github.com/joripage/marketreplay/pkg/backtest/model"
)

// Mode selects how the order stream is built.
type Mode string

const (
	// ModeOrder replays the order channel as recorded.
	ModeOrder Mode = "order"
	// ModeL2P replays the order channel plus orders implied from trade
	// participants the channel never delivered.
	ModeL2P Mode = "l2p"
	// ModeTrans rebuilds the whole order stream from the trade channel.
	ModeTrans Mode = "trans"
)

func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeOrder, ModeL2P, ModeTrans:
		return Mode(s), true
	case "":
		return ModeOrder, true
	}
	return "", false
}

type EventKind string

const (
	EventNewOrder EventKind = "NEW_ORDER"
	EventCancel   EventKind = "CANCEL"
	EventTrade    EventKind = "TRADE"
)

// OrderEvent is a new order entering the exchange book.
type OrderEvent struct {
	No       int64 // exchange order number
	Side     model.OrderSide
	Type     model.OrderType
	Price    decimal.Decimal
	Quantity decimal.Decimal
	Implied  bool // rebuilt from trade participants, not the order channel
}

// TradeEvent is a recorded execution between two exchange orders.
type TradeEvent struct {
	BuyNo     int64
	SellNo    int64
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	TakerSide model.OrderSide
}

// CancelEvent withdraws the remainder of an exchange order.
type CancelEvent struct {
	No   int64
	Side model.OrderSide
}

// Event is one normalized feed message. Exactly one of Order, Trade,
// Cancel is set, matching Kind.
type Event struct {
	Symbol   string
	Kind     EventKind
	Time     int64 // 17-digit timestamp the replayer orders by
	RecvTime int64
	ExchSeq  int64 // ApplSeqNum from the feed

	Order  *OrderEvent
	Trade  *TradeEvent
	Cancel *CancelEvent
}

// Dataset is one instrument-day of normalized events in replay order.
type Dataset struct {
	Symbol      string
	TradingDate int64 // yyyymmdd
	Kind        model.InstrumentKind
	Events      []Event
}

// OrderRow is a raw order-channel record after column normalization.
// Time is the intraday HHMMSSmmm part; sources keep the trading date
// separate.
type OrderRow struct {
	Date     int64   `json:"date"`
	Time     int64   `json:"time"`
	RecvTime int64   `json:"recv_time"`
	No       int64   `json:"no"`
	BSFlag   int32   `json:"bs_flag"`
	Type     int32   `json:"type"`
	Price    float64 `json:"price"`
	Qty      float64 `json:"qty"`
	Seq      int64   `json:"seq"`
	Implied  bool    `json:"-"`
}

// TradeRow is a raw trade-channel record after column normalization.
type TradeRow struct {
	Date     int64   `json:"date"`
	Time     int64   `json:"time"`
	RecvTime int64   `json:"recv_time"`
	BuyNo    int64   `json:"buy_no"`
	SellNo   int64   `json:"sell_no"`
	BSFlag   int32   `json:"bs_flag"`
	Type     int32   `json:"type"`
	Price    float64 `json:"price"`
	Qty      float64 `json:"qty"`
	Seq      int64   `json:"seq"`
}

// Raw feed codes from the exchange data vendor.
const (
	orderTypeLimit   = 2
	orderTypeMarket  = 1
	orderTypeBestOwn = 3
	orderTypeCancel  = 10

	tradeTypeCancel = 1

	bsFlagBuy = 1
)

func sideOf(bsFlag int32) model.OrderSide {
	if bsFlag == bsFlagBuy {
		return model.OrderSideBuy
	}
	return model.OrderSideSell
}
