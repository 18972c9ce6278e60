package backtest

import (
	"sort"
	"sync"

	"github.com/joripage/marketreplay/pkg/backtest/model"
)

// Registry is the authoritative store of every order the engine has
// seen, historical and synthetic. Query methods return copies; the
// live structs stay private to the engine.
type Registry struct {
	mu      sync.RWMutex
	orders  map[int64]*model.Order
	byExch  map[string]map[int64]int64 // symbol -> exchange number -> engine id
	nextID  int64
	touched map[int64]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		orders:  make(map[int64]*model.Order),
		byExch:  make(map[string]map[int64]int64),
		touched: make(map[int64]struct{}),
	}
}

// Register assigns the next engine id, stores the order, and indexes
// its exchange number when it has one.
func (r *Registry) Register(o *model.Order) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	o.ID = r.nextID
	r.orders[o.ID] = o
	if o.ExchangeNo != 0 {
		m, ok := r.byExch[o.Symbol]
		if !ok {
			m = make(map[int64]int64)
			r.byExch[o.Symbol] = m
		}
		m[o.ExchangeNo] = o.ID
	}
	r.touched[o.ID] = struct{}{}
	return o.ID
}

func (r *Registry) get(id int64) (*model.Order, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	return o, ok
}

// Resolve maps an exchange order number to the engine id it was
// registered under.
func (r *Registry) Resolve(symbol string, exchangeNo int64) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byExch[symbol][exchangeNo]
	return id, ok
}

// Touch marks an order as mutated during the current advancement step.
func (r *Registry) Touch(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touched[id] = struct{}{}
}

// BeginStep forgets the previous step's mutations.
func (r *Registry) BeginStep() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touched = make(map[int64]struct{})
}

func (r *Registry) collect(match func(*model.Order) bool) []model.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Order, 0, len(r.orders))
	for _, o := range r.orders {
		if match(o) {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetPendingOrders returns non-terminal orders, synthetic orders still
// waiting for their submission timestamp included. Empty symbol means
// all instruments.
func (r *Registry) GetPendingOrders(symbol string) []model.Order {
	return r.collect(func(o *model.Order) bool {
		return !o.IsEnd() && (symbol == "" || o.Symbol == symbol)
	})
}

// GetFinishedOrders returns filled and cancelled orders.
func (r *Registry) GetFinishedOrders(symbol string) []model.Order {
	return r.collect(func(o *model.Order) bool {
		return o.IsEnd() && (symbol == "" || o.Symbol == symbol)
	})
}

func (r *Registry) GetAllOrders() []model.Order {
	return r.collect(func(*model.Order) bool { return true })
}

// GetLatestOrders returns the orders created or changed since the start
// of the most recent advancement step.
func (r *Registry) GetLatestOrders() []model.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Order, 0, len(r.touched))
	for id := range r.touched {
		if o, ok := r.orders[id]; ok {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.orders)
}
