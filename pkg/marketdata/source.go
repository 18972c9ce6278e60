package marketdata

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/joripage/marketreplay/pkg/backtest/model"
)

// Source fetches raw feed rows for one instrument-day. Implementations
// return ErrDataNotFound when the day is absent and wrap decode
// failures in ErrCorruptData.
type Source interface {
	// InstrumentKind resolves whether the symbol trades as a stock or a
	// fund on this source.
	InstrumentKind(ctx context.Context, symbol string, date int64) (model.InstrumentKind, error)
	LoadOrders(ctx context.Context, symbol string, date int64) ([]OrderRow, error)
	LoadTrades(ctx context.Context, symbol string, date int64) ([]TradeRow, error)
	Close() error
}

// Archiver is the staging side of a remote source: one call persists a
// full instrument-day. The local file source is read-only and does not
// implement it.
type Archiver interface {
	Archive(ctx context.Context, symbol string, date int64, kind model.InstrumentKind, orders []OrderRow, trades []TradeRow) error
}

// wireRow is the envelope remote sources exchange rows in. Exactly one
// of Order and Trade is set.
type wireRow struct {
	Table string    `json:"table"` // "orders" or "trades"
	Kind  string    `json:"kind"`  // "stock" or "fund"
	Order *OrderRow `json:"order,omitempty"`
	Trade *TradeRow `json:"trade,omitempty"`
}

const (
	wireTableOrders = "orders"
	wireTableTrades = "trades"
)

func decodeWireRow(value []byte) (*wireRow, error) {
	var w wireRow
	if err := json.Unmarshal(value, &w); err != nil {
		return nil, err
	}
	switch w.Table {
	case wireTableOrders:
		if w.Order == nil {
			return nil, fmt.Errorf("orders envelope has no order row")
		}
	case wireTableTrades:
		if w.Trade == nil {
			return nil, fmt.Errorf("trades envelope has no trade row")
		}
	default:
		return nil, fmt.Errorf("unknown table %q", w.Table)
	}
	return &w, nil
}
