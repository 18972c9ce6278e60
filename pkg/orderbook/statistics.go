package orderbook

import "math"

// Statistics accumulates per-session counters for one book. Prices are
// ticks and quantities are lots; turnover is tick*lots. High and low
// start at the int64 extremes until the first trade.
type Statistics struct {
	TotalBidOrders int64 `json:"total_bid_orders"`
	TotalAskOrders int64 `json:"total_ask_orders"`
	TotalCancels   int64 `json:"total_cancels"`
	BidTurnover    int64 `json:"bid_turnover"`
	AskTurnover    int64 `json:"ask_turnover"`
	BidVolume      int64 `json:"bid_volume"`
	AskVolume      int64 `json:"ask_volume"`
	BidTrades      int64 `json:"bid_trades"`
	AskTrades      int64 `json:"ask_trades"`
	HighTick       int64 `json:"high_tick"`
	LowTick        int64 `json:"low_tick"`
}

func NewStatistics() *Statistics {
	return &Statistics{
		HighTick: math.MinInt64,
		LowTick:  math.MaxInt64,
	}
}

func (s *Statistics) TotalVolume() int64 {
	return s.BidVolume + s.AskVolume
}

func (s *Statistics) TotalTurnover() int64 {
	return s.BidTurnover + s.AskTurnover
}

func (s *Statistics) TotalTrades() int64 {
	return s.BidTrades + s.AskTrades
}

func (s *Statistics) recordOrder(side Side) {
	if side == BUY {
		s.TotalBidOrders++
	} else {
		s.TotalAskOrders++
	}
}

func (s *Statistics) recordCancel() {
	s.TotalCancels++
}

// recordTrade attributes volume and turnover to the taker side and
// tracks the traded price range.
func (s *Statistics) recordTrade(takerSide Side, tick, lots int64) {
	if takerSide == BUY {
		s.BidVolume += lots
		s.BidTurnover += tick * lots
		s.BidTrades++
	} else {
		s.AskVolume += lots
		s.AskTurnover += tick * lots
		s.AskTrades++
	}
	if tick > s.HighTick {
		s.HighTick = tick
	}
	if tick < s.LowTick {
		s.LowTick = tick
	}
}
