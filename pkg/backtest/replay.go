package backtest

import (
	"sort"

	"github.com/gammazero/deque"

	"github.com/joripage/marketreplay/pkg/backtest/model"
	"github.com/joripage/marketreplay/pkg/marketdata"
)

// timedEvent pairs a historical event with the global arrival sequence
// it was given when its dataset was registered.
type timedEvent struct {
	ev  *marketdata.Event
	seq int64
}

// cursor walks one instrument's dataset exactly once.
type cursor struct {
	symbol string
	events []timedEvent
	pos    int
}

func (c *cursor) peek() (*timedEvent, bool) {
	if c.pos >= len(c.events) {
		return nil, false
	}
	return &c.events[c.pos], true
}

// replayer merges per-instrument cursors and the waiting synthetic
// queue into a single (time, arrival sequence) stream.
type replayer struct {
	symbols []string
	cursors map[string]*cursor
	waiting *deque.Deque[*model.Order]
}

func newReplayer() *replayer {
	return &replayer{
		cursors: make(map[string]*cursor),
		waiting: &deque.Deque[*model.Order]{},
	}
}

func (r *replayer) addCursor(symbol string, events []timedEvent) {
	r.cursors[symbol] = &cursor{symbol: symbol, events: events}
	r.symbols = append(r.symbols, symbol)
	sort.Strings(r.symbols)
}

func (r *replayer) enqueue(o *model.Order) {
	r.waiting.PushBack(o)
}

// removeWaiting unlinks a synthetic order that has not been applied
// yet. Reports whether it was still queued.
func (r *replayer) removeWaiting(orderID int64) bool {
	for i := 0; i < r.waiting.Len(); i++ {
		if r.waiting.At(i).ID == orderID {
			r.waiting.Remove(i)
			return true
		}
	}
	return false
}

// drainWaiting empties the queue, for session-end expiry.
func (r *replayer) drainWaiting() []*model.Order {
	out := make([]*model.Order, 0, r.waiting.Len())
	for r.waiting.Len() > 0 {
		out = append(out, r.waiting.Front())
		r.waiting.PopFront()
	}
	return out
}

// dueOrder is a waiting synthetic order that falls inside the current
// step. Orders stamped in the past apply at the clock value the step
// started from, so a backdated stamp cannot run ahead of its
// submission turn.
type dueOrder struct {
	order   *model.Order
	applyAt int64
}

func (r *replayer) dueOrders(now, target int64) []dueOrder {
	var due []dueOrder
	for i := 0; i < r.waiting.Len(); {
		o := r.waiting.At(i)
		if o.SubmitTime <= target {
			applyAt := o.SubmitTime
			if applyAt < now {
				applyAt = now
			}
			due = append(due, dueOrder{order: o, applyAt: applyAt})
			r.waiting.Remove(i)
		} else {
			i++
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		if due[i].applyAt != due[j].applyAt {
			return due[i].applyAt < due[j].applyAt
		}
		return due[i].order.Seq < due[j].order.Seq
	})
	return due
}

// stepIter yields everything to apply in one advancement, merged across
// instruments and the synthetic queue.
type stepIter struct {
	r      *replayer
	target int64
	due    []dueOrder
	di     int
}

func (r *replayer) begin(now, target int64) *stepIter {
	return &stepIter{r: r, target: target, due: r.dueOrders(now, target)}
}

// next returns the next historical event or due synthetic order.
// Exactly one of the two returns is non-nil while ok is true.
func (it *stepIter) next() (*timedEvent, *dueOrder, bool) {
	var (
		bestEv  *timedEvent
		bestCur *cursor
	)
	for _, sym := range it.r.symbols {
		c := it.r.cursors[sym]
		te, ok := c.peek()
		if !ok || te.ev.Time > it.target {
			continue
		}
		if bestEv == nil || te.ev.Time < bestEv.ev.Time ||
			(te.ev.Time == bestEv.ev.Time && te.seq < bestEv.seq) {
			bestEv, bestCur = te, c
		}
	}

	if it.di < len(it.due) {
		d := &it.due[it.di]
		if bestEv == nil || d.applyAt < bestEv.ev.Time ||
			(d.applyAt == bestEv.ev.Time && d.order.Seq < bestEv.seq) {
			it.di++
			return nil, d, true
		}
	}
	if bestEv != nil {
		bestCur.pos++
		return bestEv, nil, true
	}
	return nil, nil, false
}
