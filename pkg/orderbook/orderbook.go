package orderbook

import (
	"container/heap"
	"sort"
	"sync"

	"github.com/gammazero/deque"
)

// Book is a single-instrument limit order book with price/time priority.
// Each price level is a FIFO queue in arrival order; best prices come
// from lazily cleaned heaps. Synthetic resting orders are additionally
// indexed in a side view sharing the same *Entry values, so historical
// takers can cross synthetic liquidity without scanning the full book.
type Book struct {
	symbol string
	mode   MatchMode

	buyOrders  map[int64]*deque.Deque[*Entry]
	sellOrders map[int64]*deque.Deque[*Entry]

	buyHeap  *PriceHeap
	sellHeap *PriceHeap

	synBuyOrders  map[int64]*deque.Deque[*Entry]
	synSellOrders map[int64]*deque.Deque[*Entry]

	synBuyHeap  *PriceHeap
	synSellHeap *PriceHeap

	entries map[int64]*Entry

	lastTick int64
	stats    *Statistics

	mu sync.Mutex
}

func NewBook(symbol string, mode MatchMode) *Book {
	maxFirst := func(i, j int64) bool { return i > j }
	minFirst := func(i, j int64) bool { return i < j }

	return &Book{
		symbol:        symbol,
		mode:          mode,
		buyOrders:     make(map[int64]*deque.Deque[*Entry]),
		sellOrders:    make(map[int64]*deque.Deque[*Entry]),
		buyHeap:       NewPriceHeap(maxFirst),
		sellHeap:      NewPriceHeap(minFirst),
		synBuyOrders:  make(map[int64]*deque.Deque[*Entry]),
		synSellOrders: make(map[int64]*deque.Deque[*Entry]),
		synBuyHeap:    NewPriceHeap(maxFirst),
		synSellHeap:   NewPriceHeap(minFirst),
		entries:       make(map[int64]*Entry),
		stats:         NewStatistics(),
	}
}

func (b *Book) Symbol() string {
	return b.symbol
}

// Submit crosses the incoming entry against eligible resting orders and
// rests any remainder. In backtest mode a historical entry only sees the
// synthetic view of the counter side.
func (b *Book) Submit(e *Entry) []MatchResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stats.recordOrder(e.Side)

	var results []MatchResult

	synOnly := b.mode == ModeBacktest && e.Origin == HISTORICAL
	if e.Side == BUY {
		crosses := func(own, counter int64) bool { return own >= counter }
		if synOnly {
			results = b.matchOrder(e, b.synSellOrders, b.synSellHeap, b.sellOrders, crosses)
		} else {
			results = b.matchOrder(e, b.sellOrders, b.sellHeap, b.synSellOrders, crosses)
		}
	} else {
		crosses := func(own, counter int64) bool { return own <= counter }
		if synOnly {
			results = b.matchOrder(e, b.synBuyOrders, b.synBuyHeap, b.buyOrders, crosses)
		} else {
			results = b.matchOrder(e, b.buyOrders, b.buyHeap, b.synBuyOrders, crosses)
		}
	}

	if e.Lots > 0 {
		b.rest(e)
	}

	return results
}

// matchOrder walks the counter book best price first, filling FIFO
// within each level at the resting order's tick. Fully filled makers are
// also purged from the mirror view when they are indexed there.
func (b *Book) matchOrder(
	order *Entry,
	counterBook map[int64]*deque.Deque[*Entry],
	counterHeap *PriceHeap,
	mirror map[int64]*deque.Deque[*Entry],
	crosses func(own, counter int64) bool,
) []MatchResult {
	var results []MatchResult

	for order.Lots > 0 {
		bestTick, ok := peekBest(counterBook, counterHeap)
		if !ok || !crosses(order.Tick, bestTick) {
			break
		}

		q := counterBook[bestTick]
		best := q.Front()
		q.PopFront()

		matchLots := min(order.Lots, best.Lots)
		order.Lots -= matchLots
		best.Lots -= matchLots

		results = append(results, newMatchResult(order, best, bestTick, matchLots))
		b.stats.recordTrade(order.Side, bestTick, matchLots)
		b.lastTick = bestTick

		if best.Lots > 0 {
			q.PushFront(best)
			continue
		}

		if best.Origin == SYNTHETIC {
			removeFromLevel(mirror, best)
		}
		delete(b.entries, best.OrderID)
	}

	return results
}

func newMatchResult(taker, maker *Entry, tick, lots int64) MatchResult {
	if taker.Side == BUY {
		return MatchResult{
			BuyOrderID:  taker.OrderID,
			SellOrderID: maker.OrderID,
			Tick:        tick,
			Lots:        lots,
			TakerSide:   BUY,
		}
	}
	return MatchResult{
		BuyOrderID:  maker.OrderID,
		SellOrderID: taker.OrderID,
		Tick:        tick,
		Lots:        lots,
		TakerSide:   SELL,
	}
}

func (b *Book) rest(e *Entry) {
	if e.Side == BUY {
		addToBook(b.buyOrders, b.buyHeap, e)
		if e.Origin == SYNTHETIC {
			addToBook(b.synBuyOrders, b.synBuyHeap, e)
		}
	} else {
		addToBook(b.sellOrders, b.sellHeap, e)
		if e.Origin == SYNTHETIC {
			addToBook(b.synSellOrders, b.synSellHeap, e)
		}
	}
	b.entries[e.OrderID] = e
}

func addToBook(book map[int64]*deque.Deque[*Entry], priceHeap *PriceHeap, e *Entry) {
	if book[e.Tick] == nil {
		book[e.Tick] = &deque.Deque[*Entry]{}
		heap.Push(priceHeap, e.Tick)
	}
	book[e.Tick].PushBack(e)
}

// peekBest returns the best live tick, popping heap entries whose level
// has been emptied by cancels or reductions.
func peekBest(book map[int64]*deque.Deque[*Entry], priceHeap *PriceHeap) (int64, bool) {
	for {
		tick, ok := priceHeap.Peek()
		if !ok {
			return 0, false
		}
		q := book[tick]
		if q == nil || q.Len() == 0 {
			heap.Pop(priceHeap)
			delete(book, tick)
			continue
		}
		return tick, true
	}
}

func removeFromLevel(book map[int64]*deque.Deque[*Entry], e *Entry) {
	q := book[e.Tick]
	if q == nil {
		return
	}
	for i := 0; i < q.Len(); i++ {
		if q.At(i).OrderID == e.OrderID {
			q.Remove(i)
			break
		}
	}
	if q.Len() == 0 {
		delete(book, e.Tick)
	}
}

// Cancel removes a resting order and returns it. The heap keeps a stale
// tick until peekBest next visits it.
func (b *Book) Cancel(orderID int64) (*Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[orderID]
	if !ok {
		return nil, errOrderNotFound
	}
	b.unlink(e)
	b.stats.recordCancel()
	return e, nil
}

// Reduce shrinks a resting order by up to lots, removing it when it
// reaches zero, and returns the quantity actually taken off. A missing
// order reduces nothing. Statistics are untouched.
func (b *Book) Reduce(orderID, lots int64) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[orderID]
	if !ok {
		return 0
	}
	applied := min(lots, e.Lots)
	e.Lots -= applied
	if e.Lots == 0 {
		b.unlink(e)
	}
	return applied
}

func (b *Book) unlink(e *Entry) {
	if e.Side == BUY {
		removeFromLevel(b.buyOrders, e)
		if e.Origin == SYNTHETIC {
			removeFromLevel(b.synBuyOrders, e)
		}
	} else {
		removeFromLevel(b.sellOrders, e)
		if e.Origin == SYNTHETIC {
			removeFromLevel(b.synSellOrders, e)
		}
	}
	delete(b.entries, e.OrderID)
}

// Lookup returns a copy of the resting entry for orderID.
func (b *Book) Lookup(orderID int64) (Entry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[orderID]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

func (b *Book) BestBid() (int64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return peekBest(b.buyOrders, b.buyHeap)
}

func (b *Book) BestAsk() (int64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return peekBest(b.sellOrders, b.sellHeap)
}

func (b *Book) LastTick() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastTick
}

func (b *Book) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// RecordTrade folds a ground-truth trade from the tape into the session
// statistics without touching resting quantity.
func (b *Book) RecordTrade(takerSide Side, tick, lots int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.recordTrade(takerSide, tick, lots)
	b.lastTick = tick
}

// RecordOrder counts a submission that never reaches the book, such as a
// historical market order.
func (b *Book) RecordOrder(side Side) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.recordOrder(side)
}

// RecordCancel counts a cancel that found nothing resting.
func (b *Book) RecordCancel() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.recordCancel()
}

// Statistics returns a copy of the session counters.
func (b *Book) Statistics() Statistics {
	b.mu.Lock()
	defer b.mu.Unlock()
	return *b.stats
}

// ExpireAll drains every resting order in arrival order and resets the
// book structures. Statistics and the last traded tick survive.
func (b *Book) ExpireAll() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Entry, 0, len(b.entries))
	for _, e := range b.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })

	maxFirst := func(i, j int64) bool { return i > j }
	minFirst := func(i, j int64) bool { return i < j }
	b.buyOrders = make(map[int64]*deque.Deque[*Entry])
	b.sellOrders = make(map[int64]*deque.Deque[*Entry])
	b.buyHeap = NewPriceHeap(maxFirst)
	b.sellHeap = NewPriceHeap(minFirst)
	b.synBuyOrders = make(map[int64]*deque.Deque[*Entry])
	b.synSellOrders = make(map[int64]*deque.Deque[*Entry])
	b.synBuyHeap = NewPriceHeap(maxFirst)
	b.synSellHeap = NewPriceHeap(minFirst)
	b.entries = make(map[int64]*Entry)

	return out
}
