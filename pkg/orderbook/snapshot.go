package orderbook

import (
	"encoding/json"
	"sort"

	"github.com/gammazero/deque"
	"github.com/shopspring/decimal"
)

// L3Order is one resting order inside a snapshot level.
type L3Order struct {
	OrderID  int64           `json:"order_id"`
	Quantity decimal.Decimal `json:"quantity"`
	Time     int64           `json:"time"`
	Origin   Origin          `json:"origin"`
}

// L3Level is one price level, orders in queue priority order.
type L3Level struct {
	Price      decimal.Decimal `json:"price"`
	Quantity   decimal.Decimal `json:"quantity"`
	OrderCount int             `json:"order_count"`
	Orders     []L3Order       `json:"orders"`
}

// L3Snapshot is a full-depth view of one book at a point in simulated
// time. Bids are ordered best (highest) first, asks best (lowest) first.
type L3Snapshot struct {
	Symbol           string           `json:"symbol"`
	Timestamp        int64            `json:"timestamp"`
	LastPrice        decimal.Decimal  `json:"last_price"`
	TotalBidQuantity decimal.Decimal  `json:"total_bid_quantity"`
	TotalAskQuantity decimal.Decimal  `json:"total_ask_quantity"`
	Spread           *decimal.Decimal `json:"spread,omitempty"`
	MidPrice         *decimal.Decimal `json:"mid_price,omitempty"`
	Bids             []L3Level        `json:"bids"`
	Asks             []L3Level        `json:"asks"`
	Statistics       Statistics       `json:"statistics"`
}

func (s *L3Snapshot) Encode() (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// L3Snapshot builds a fresh snapshot from the live book. Nothing is
// cached; mutating the book afterwards does not affect the result.
func (b *Book) L3Snapshot(timestamp int64, tickSize, lotSize decimal.Decimal) *L3Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := &L3Snapshot{
		Symbol:     b.symbol,
		Timestamp:  timestamp,
		LastPrice:  tickSize.Mul(decimal.NewFromInt(b.lastTick)),
		Bids:       sideLevels(b.buyOrders, true, 0, tickSize, lotSize),
		Asks:       sideLevels(b.sellOrders, false, 0, tickSize, lotSize),
		Statistics: *b.stats,
	}
	if snap.Statistics.TotalVolume() == 0 {
		snap.Statistics.HighTick = 0
		snap.Statistics.LowTick = 0
	}

	snap.TotalBidQuantity = levelTotal(snap.Bids)
	snap.TotalAskQuantity = levelTotal(snap.Asks)

	if len(snap.Bids) > 0 && len(snap.Asks) > 0 {
		spread := snap.Asks[0].Price.Sub(snap.Bids[0].Price)
		mid := snap.Asks[0].Price.Add(snap.Bids[0].Price).Div(decimal.NewFromInt(2))
		snap.Spread = &spread
		snap.MidPrice = &mid
	}

	return snap
}

// sideLevels collects up to maxLevels live levels in priority order;
// maxLevels 0 means all of them.
func sideLevels(book map[int64]*deque.Deque[*Entry], descending bool, maxLevels int, tickSize, lotSize decimal.Decimal) []L3Level {
	ticks := make([]int64, 0, len(book))
	for tick, q := range book {
		if q != nil && q.Len() > 0 {
			ticks = append(ticks, tick)
		}
	}
	if descending {
		sort.Slice(ticks, func(i, j int) bool { return ticks[i] > ticks[j] })
	} else {
		sort.Slice(ticks, func(i, j int) bool { return ticks[i] < ticks[j] })
	}
	if maxLevels > 0 && len(ticks) > maxLevels {
		ticks = ticks[:maxLevels]
	}

	levels := make([]L3Level, 0, len(ticks))
	for _, tick := range ticks {
		q := book[tick]
		var levelLots int64
		orders := make([]L3Order, 0, q.Len())
		for i := 0; i < q.Len(); i++ {
			e := q.At(i)
			levelLots += e.Lots
			orders = append(orders, L3Order{
				OrderID:  e.OrderID,
				Quantity: lotSize.Mul(decimal.NewFromInt(e.Lots)),
				Time:     e.Time,
				Origin:   e.Origin,
			})
		}
		levels = append(levels, L3Level{
			Price:      tickSize.Mul(decimal.NewFromInt(tick)),
			Quantity:   lotSize.Mul(decimal.NewFromInt(levelLots)),
			OrderCount: len(orders),
			Orders:     orders,
		})
	}
	return levels
}

func levelTotal(levels []L3Level) decimal.Decimal {
	total := decimal.Zero
	for _, lvl := range levels {
		total = total.Add(lvl.Quantity)
	}
	return total
}
