package orderbook

import (
	"github.com/gammazero/deque"
	"github.com/shopspring/decimal"
)

// DepthRecord is a fixed-width aggregated view of the book captured
// after one replayed event. Arrays are zero padded to the configured
// level count so rows line up across a session.
type DepthRecord struct {
	Symbol    string          `json:"symbol"`
	Timestamp int64           `json:"timestamp"`
	Seq       int64           `json:"seq"`
	LastPrice decimal.Decimal `json:"last_price"`

	BidPrices     []decimal.Decimal `json:"bid_prices"`
	BidQuantities []decimal.Decimal `json:"bid_quantities"`
	BidCounts     []int64           `json:"bid_counts"`
	AskPrices     []decimal.Decimal `json:"ask_prices"`
	AskQuantities []decimal.Decimal `json:"ask_quantities"`
	AskCounts     []int64           `json:"ask_counts"`

	TotalVolume   int64 `json:"total_volume"`
	TotalTurnover int64 `json:"total_turnover"`
	TotalTrades   int64 `json:"total_trades"`
}

// Depth captures the top levels of both sides.
func (b *Book) Depth(timestamp, seq int64, levels int, tickSize, lotSize decimal.Decimal) DepthRecord {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec := DepthRecord{
		Symbol:        b.symbol,
		Timestamp:     timestamp,
		Seq:           seq,
		LastPrice:     tickSize.Mul(decimal.NewFromInt(b.lastTick)),
		TotalVolume:   b.stats.TotalVolume(),
		TotalTurnover: b.stats.TotalTurnover(),
		TotalTrades:   b.stats.TotalTrades(),
	}

	rec.BidPrices, rec.BidQuantities, rec.BidCounts = packSide(b.buyOrders, true, levels, tickSize, lotSize)
	rec.AskPrices, rec.AskQuantities, rec.AskCounts = packSide(b.sellOrders, false, levels, tickSize, lotSize)

	return rec
}

func packSide(book map[int64]*deque.Deque[*Entry], descending bool, levels int, tickSize, lotSize decimal.Decimal) ([]decimal.Decimal, []decimal.Decimal, []int64) {
	side := sideLevels(book, descending, levels, tickSize, lotSize)

	prices := make([]decimal.Decimal, levels)
	quantities := make([]decimal.Decimal, levels)
	counts := make([]int64, levels)
	for i, lvl := range side {
		prices[i] = lvl.Price
		quantities[i] = lvl.Quantity
		counts[i] = int64(lvl.OrderCount)
	}
	return prices, quantities, counts
}
