package backtest

import (
	"sync"

	"github.com/joripage/marketreplay/pkg/backtest/model"
)

// FillStore is the append-only ledger of resolved matches, simulated
// and ground truth alike.
type FillStore interface {
	Append(f *model.Fill)
	Fills(symbol string) []model.Fill
	All() []model.Fill
}

type InMemoryFillStore struct {
	mu       sync.RWMutex
	all      []*model.Fill
	bySymbol map[string][]*model.Fill
}

func NewInMemoryFillStore() *InMemoryFillStore {
	return &InMemoryFillStore{
		bySymbol: make(map[string][]*model.Fill),
	}
}

func (s *InMemoryFillStore) Append(f *model.Fill) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.all = append(s.all, f)
	s.bySymbol[f.Symbol] = append(s.bySymbol[f.Symbol], f)
}

// Fills returns the symbol's fills in application order.
func (s *InMemoryFillStore) Fills(symbol string) []model.Fill {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyFills(s.bySymbol[symbol])
}

func (s *InMemoryFillStore) All() []model.Fill {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyFills(s.all)
}

func copyFills(fills []*model.Fill) []model.Fill {
	out := make([]model.Fill, len(fills))
	for i, f := range fills {
		out[i] = *f
	}
	return out
}
