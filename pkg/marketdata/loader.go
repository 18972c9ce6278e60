package marketdata

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/joripage/marketreplay/pkg/backtest/model"
	"github.com/joripage/marketreplay/pkg/timeutil"
)

// LoaderConfig controls event assembly.
type LoaderConfig struct {
	Mode Mode `yaml:"mode"`
	// UseRecvTime orders events by vendor receive time instead of
	// exchange time.
	UseRecvTime bool `yaml:"use_recv_time"`
}

// Loader turns raw source rows into a sorted, validated Dataset.
type Loader struct {
	src         Source
	mode        Mode
	useRecvTime bool
}

func NewLoader(src Source, cfg *LoaderConfig) (*Loader, error) {
	mode, ok := ParseMode(string(cfg.Mode))
	if !ok {
		return nil, fmt.Errorf("unknown replay mode %q", cfg.Mode)
	}
	return &Loader{
		src:         src,
		mode:        mode,
		useRecvTime: cfg.UseRecvTime,
	}, nil
}

func (l *Loader) Close() error {
	return l.src.Close()
}

// Load assembles one instrument-day. Order events come from the order
// channel, from trade-participant reconstruction, or both, depending on
// the mode; trade and cancel events always come from the feeds.
func (l *Loader) Load(ctx context.Context, symbol string, date int64) (*Dataset, error) {
	kind, err := l.src.InstrumentKind(ctx, symbol, date)
	if err != nil {
		return nil, err
	}

	trades, err := l.src.LoadTrades(ctx, symbol, date)
	if err != nil {
		return nil, err
	}

	var orders []OrderRow
	switch l.mode {
	case ModeTrans:
		orders = deriveOrders(trades)
	default:
		orders, err = l.src.LoadOrders(ctx, symbol, date)
		if err != nil {
			if l.mode == ModeL2P && IsNotFoundErr(err) {
				zap.S().Debugf("no order channel for %s on %d, deriving from trades", symbol, date)
				orders = deriveOrders(trades)
			} else {
				return nil, err
			}
		} else if l.mode == ModeL2P {
			known := make(map[int64]struct{}, len(orders))
			for _, r := range orders {
				if r.Type != orderTypeCancel {
					known[r.No] = struct{}{}
				}
			}
			implied := impliedOrders(known, trades)
			for i := range implied {
				orders = append(orders, implied[i])
			}
			if len(implied) > 0 {
				zap.S().Debugf("implied %d orders from trade participants for %s", len(implied), symbol)
			}
		}
	}

	events := make([]Event, 0, len(orders)+len(trades))
	for i := range orders {
		ev, ok, err := l.orderEvent(symbol, date, &orders[i])
		if err != nil {
			return nil, err
		}
		if ok {
			events = append(events, ev)
		}
	}
	for i := range trades {
		ev, ok, err := l.tradeEvent(symbol, date, &trades[i])
		if err != nil {
			return nil, err
		}
		if ok {
			events = append(events, ev)
		}
	}

	if len(events) == 0 {
		return nil, fmt.Errorf("%w: no events for %s on %d", ErrDataNotFound, symbol, date)
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Time != events[j].Time {
			return events[i].Time < events[j].Time
		}
		if events[i].ExchSeq != events[j].ExchSeq {
			return events[i].ExchSeq < events[j].ExchSeq
		}
		return kindRank(events[i].Kind) < kindRank(events[j].Kind)
	})

	zap.S().Debugf("assembled %d events for %s on %d (mode=%s kind=%s)",
		len(events), symbol, date, l.mode, kind)

	return &Dataset{
		Symbol:      symbol,
		TradingDate: date,
		Kind:        kind,
		Events:      events,
	}, nil
}

// kindRank breaks exact (time, seq) ties: an implied order shares its
// first trade's stamp and must enter the book before that trade.
func kindRank(k EventKind) int {
	switch k {
	case EventNewOrder:
		return 0
	case EventCancel:
		return 1
	default:
		return 2
	}
}

func (l *Loader) orderEvent(symbol string, date int64, r *OrderRow) (Event, bool, error) {
	if r.Time >= timeutil.SessionEnd {
		return Event{}, false, nil
	}
	stamp := timeutil.Compose(date, r.Time)
	if !timeutil.IsValid(stamp) {
		return Event{}, false, fmt.Errorf("%w: order %d has bad time %d", ErrCorruptData, r.No, r.Time)
	}
	if err := checkMoney(r.Price, r.Qty); err != nil {
		return Event{}, false, fmt.Errorf("%w: order %d: %v", ErrCorruptData, r.No, err)
	}

	ev := Event{
		Symbol:   symbol,
		Time:     stamp,
		RecvTime: r.RecvTime,
		ExchSeq:  r.Seq,
	}
	if l.useRecvTime {
		if !timeutil.IsValid(r.RecvTime) {
			return Event{}, false, fmt.Errorf("%w: order %d has bad receive time %d", ErrCorruptData, r.No, r.RecvTime)
		}
		ev.Time = r.RecvTime
	}

	if r.Type == orderTypeCancel {
		ev.Kind = EventCancel
		ev.Cancel = &CancelEvent{No: r.No, Side: sideOf(r.BSFlag)}
		return ev, true, nil
	}

	var typ model.OrderType
	switch r.Type {
	case orderTypeLimit:
		typ = model.OrderTypeLimit
	case orderTypeMarket:
		typ = model.OrderTypeMarket
	case orderTypeBestOwn:
		typ = model.OrderTypeBestOwn
	default:
		return Event{}, false, fmt.Errorf("%w: order %d has unknown type %d", ErrCorruptData, r.No, r.Type)
	}
	if r.Qty <= 0 {
		return Event{}, false, fmt.Errorf("%w: order %d has non-positive quantity %v", ErrCorruptData, r.No, r.Qty)
	}

	ev.Kind = EventNewOrder
	ev.Order = &OrderEvent{
		No:       r.No,
		Side:     sideOf(r.BSFlag),
		Type:     typ,
		Price:    decimal.NewFromFloat(r.Price),
		Quantity: decimal.NewFromFloat(r.Qty),
		Implied:  r.Implied,
	}
	return ev, true, nil
}

func (l *Loader) tradeEvent(symbol string, date int64, r *TradeRow) (Event, bool, error) {
	if r.Time >= timeutil.SessionEnd {
		return Event{}, false, nil
	}
	stamp := timeutil.Compose(date, r.Time)
	if !timeutil.IsValid(stamp) {
		return Event{}, false, fmt.Errorf("%w: trade seq %d has bad time %d", ErrCorruptData, r.Seq, r.Time)
	}

	ev := Event{
		Symbol:   symbol,
		Time:     stamp,
		RecvTime: r.RecvTime,
		ExchSeq:  r.Seq,
	}
	if l.useRecvTime {
		if !timeutil.IsValid(r.RecvTime) {
			return Event{}, false, fmt.Errorf("%w: trade seq %d has bad receive time %d", ErrCorruptData, r.Seq, r.RecvTime)
		}
		ev.Time = r.RecvTime
	}

	if r.Type == tradeTypeCancel {
		no := r.BuyNo
		side := model.OrderSideBuy
		if no == 0 {
			no = r.SellNo
			side = model.OrderSideSell
		}
		if no == 0 {
			return Event{}, false, fmt.Errorf("%w: cancel at seq %d references no order", ErrCorruptData, r.Seq)
		}
		ev.Kind = EventCancel
		ev.Cancel = &CancelEvent{No: no, Side: side}
		return ev, true, nil
	}

	if err := checkMoney(r.Price, r.Qty); err != nil {
		return Event{}, false, fmt.Errorf("%w: trade seq %d: %v", ErrCorruptData, r.Seq, err)
	}
	if r.Qty <= 0 {
		return Event{}, false, fmt.Errorf("%w: trade seq %d has non-positive quantity %v", ErrCorruptData, r.Seq, r.Qty)
	}

	ev.Kind = EventTrade
	ev.Trade = &TradeEvent{
		BuyNo:     r.BuyNo,
		SellNo:    r.SellNo,
		Price:     decimal.NewFromFloat(r.Price),
		Quantity:  decimal.NewFromFloat(r.Qty),
		TakerSide: sideOf(r.BSFlag),
	}
	return ev, true, nil
}

func checkMoney(price, qty float64) error {
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return fmt.Errorf("bad price %v", price)
	}
	if math.IsNaN(qty) || math.IsInf(qty, 0) {
		return fmt.Errorf("bad quantity %v", qty)
	}
	return nil
}

// IsNotFoundErr reports whether err carries ErrDataNotFound.
func IsNotFoundErr(err error) bool {
	return errors.Is(err, ErrDataNotFound)
}
