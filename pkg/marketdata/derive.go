package marketdata

import (
	"sort"

	"github.com/joripage/marketreplay/pkg/timeutil"
)

type participant struct {
	no  int64
	buy bool
}

// deriveOrders rebuilds an order stream from the trade channel alone.
// Cancels and the opening call auction are dropped; each participant
// becomes one limit order carrying its total traded volume, priced at
// its most passive traded price (max for bids, min for asks) so the
// rebuilt order still crosses every trade it took part in.
func deriveOrders(trades []TradeRow) []OrderRow {
	groups := make(map[participant]*OrderRow)

	for _, t := range trades {
		if t.Type == tradeTypeCancel || t.Time < timeutil.ContinuousOpen {
			continue
		}
		fold := func(no int64, buy bool) {
			if no == 0 {
				return
			}
			key := participant{no: no, buy: buy}
			g, ok := groups[key]
			if !ok {
				bs := int32(bsFlagBuy)
				if !buy {
					bs = 0
				}
				groups[key] = &OrderRow{
					Date:     t.Date,
					Time:     t.Time,
					RecvTime: t.RecvTime,
					No:       no,
					BSFlag:   bs,
					Type:     orderTypeLimit,
					Price:    t.Price,
					Qty:      t.Qty,
					Seq:      t.Seq,
					Implied:  true,
				}
				return
			}
			g.Qty += t.Qty
			if buy && t.Price > g.Price {
				g.Price = t.Price
			}
			if !buy && t.Price < g.Price {
				g.Price = t.Price
			}
			if t.Time < g.Time {
				g.Time = t.Time
				g.RecvTime = t.RecvTime
			}
			if t.Seq < g.Seq {
				g.Seq = t.Seq
			}
		}
		fold(t.BuyNo, true)
		fold(t.SellNo, false)
	}

	out := make([]OrderRow, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].No < out[j].No
	})
	return out
}

// impliedOrders reconstructs the orders behind trade participants the
// order channel never delivered. Each missing participant becomes one
// limit order sized by everything the tape did to it, fills and cancels
// alike, stamped with its first appearance.
func impliedOrders(known map[int64]struct{}, trades []TradeRow) []OrderRow {
	groups := make(map[participant]*OrderRow)

	for _, t := range trades {
		fold := func(no int64, buy bool) {
			if no == 0 {
				return
			}
			if _, ok := known[no]; ok {
				return
			}
			key := participant{no: no, buy: buy}
			g, ok := groups[key]
			if !ok {
				bs := int32(bsFlagBuy)
				if !buy {
					bs = 0
				}
				groups[key] = &OrderRow{
					Date:     t.Date,
					Time:     t.Time,
					RecvTime: t.RecvTime,
					No:       no,
					BSFlag:   bs,
					Type:     orderTypeLimit,
					Price:    t.Price,
					Qty:      t.Qty,
					Seq:      t.Seq,
					Implied:  true,
				}
				return
			}
			g.Qty += t.Qty
		}
		fold(t.BuyNo, true)
		fold(t.SellNo, false)
	}

	out := make([]OrderRow, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].No < out[j].No
	})
	return out
}
