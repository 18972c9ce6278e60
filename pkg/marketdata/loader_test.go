package marketdata

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/joripage/marketreplay/pkg/backtest/model"
)

// stubSource serves fixed rows so loader behavior can be tested without
// feed files.
type stubSource struct {
	kind      model.InstrumentKind
	orders    []OrderRow
	trades    []TradeRow
	ordersErr error
}

func (s *stubSource) InstrumentKind(_ context.Context, _ string, _ int64) (model.InstrumentKind, error) {
	if s.kind == "" {
		return model.KindStock, nil
	}
	return s.kind, nil
}

func (s *stubSource) LoadOrders(_ context.Context, _ string, _ int64) ([]OrderRow, error) {
	if s.ordersErr != nil {
		return nil, s.ordersErr
	}
	return s.orders, nil
}

func (s *stubSource) LoadTrades(_ context.Context, _ string, _ int64) ([]TradeRow, error) {
	return s.trades, nil
}

func (s *stubSource) Close() error { return nil }

func newTestLoader(t *testing.T, src Source, cfg *LoaderConfig) *Loader {
	t.Helper()
	l, err := NewLoader(src, cfg)
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	return l
}

func TestLoadOrderMode(t *testing.T) {
	src := &stubSource{
		orders: []OrderRow{
			{Date: 20231201, Time: 93100000, No: 1, BSFlag: 1, Type: orderTypeLimit, Price: 10.5, Qty: 200, Seq: 3},
			{Date: 20231201, Time: 93102000, No: 2, BSFlag: 0, Type: orderTypeLimit, Price: 10.6, Qty: 100, Seq: 4},
		},
		trades: []TradeRow{
			{Date: 20231201, Time: 93103000, BuyNo: 1, SellNo: 2, BSFlag: 0, Price: 10.5, Qty: 100, Seq: 5},
		},
	}
	l := newTestLoader(t, src, &LoaderConfig{})

	ds, err := l.Load(context.Background(), "000001.SZ", 20231201)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ds.Kind != model.KindStock {
		t.Errorf("expected stock, got %s", ds.Kind)
	}
	if len(ds.Events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(ds.Events))
	}

	first := ds.Events[0]
	if first.Kind != EventNewOrder {
		t.Fatalf("expected first event NEW_ORDER, got %s", first.Kind)
	}
	if first.Time != 20231201093100000 {
		t.Errorf("expected composed stamp 20231201093100000, got %d", first.Time)
	}
	if first.Order.No != 1 || first.Order.Side != model.OrderSideBuy {
		t.Errorf("expected buy order 1, got %+v", first.Order)
	}
	if !first.Order.Price.Equal(decimal.NewFromFloat(10.5)) {
		t.Errorf("expected price 10.5, got %s", first.Order.Price)
	}

	last := ds.Events[2]
	if last.Kind != EventTrade {
		t.Fatalf("expected last event TRADE, got %s", last.Kind)
	}
	if last.Trade.TakerSide != model.OrderSideSell {
		t.Errorf("expected sell taker, got %s", last.Trade.TakerSide)
	}
}

func TestLoadDropsPostSessionRows(t *testing.T) {
	src := &stubSource{
		orders: []OrderRow{
			{Date: 20231201, Time: 145959999, No: 1, BSFlag: 1, Type: orderTypeLimit, Price: 10.0, Qty: 100, Seq: 1},
			{Date: 20231201, Time: 150000000, No: 2, BSFlag: 1, Type: orderTypeLimit, Price: 10.0, Qty: 100, Seq: 2},
			{Date: 20231201, Time: 150300000, No: 3, BSFlag: 1, Type: orderTypeLimit, Price: 10.0, Qty: 100, Seq: 3},
		},
	}
	l := newTestLoader(t, src, &LoaderConfig{})

	ds, err := l.Load(context.Background(), "000001.SZ", 20231201)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(ds.Events) != 1 {
		t.Fatalf("expected only the pre-close row, got %d events", len(ds.Events))
	}
	if ds.Events[0].Order.No != 1 {
		t.Errorf("expected order 1 to survive, got %d", ds.Events[0].Order.No)
	}
}

func TestLoadSortsByTimeSeqKind(t *testing.T) {
	// an implied order shares its first trade's stamp and seq and must
	// still land before that trade
	src := &stubSource{
		orders: []OrderRow{
			{Date: 20231201, Time: 93200000, No: 9, BSFlag: 1, Type: orderTypeLimit, Price: 10.0, Qty: 100, Seq: 10, Implied: true},
			{Date: 20231201, Time: 93100000, No: 1, BSFlag: 0, Type: orderTypeLimit, Price: 10.0, Qty: 100, Seq: 2},
		},
		trades: []TradeRow{
			{Date: 20231201, Time: 93200000, BuyNo: 9, SellNo: 1, BSFlag: 1, Price: 10.0, Qty: 100, Seq: 10},
		},
	}
	l := newTestLoader(t, src, &LoaderConfig{})

	ds, err := l.Load(context.Background(), "000001.SZ", 20231201)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(ds.Events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(ds.Events))
	}
	if ds.Events[0].Kind != EventNewOrder || ds.Events[0].Order.No != 1 {
		t.Errorf("expected earliest order first, got %s %+v", ds.Events[0].Kind, ds.Events[0].Order)
	}
	if ds.Events[1].Kind != EventNewOrder || ds.Events[1].Order.No != 9 {
		t.Errorf("expected implied order before its trade, got %s", ds.Events[1].Kind)
	}
	if ds.Events[2].Kind != EventTrade {
		t.Errorf("expected trade last, got %s", ds.Events[2].Kind)
	}
}

func TestLoadTransMode(t *testing.T) {
	src := &stubSource{
		ordersErr: errors.New("order channel must not be read in trans mode"),
		trades: []TradeRow{
			{Date: 20231201, Time: 93200000, BuyNo: 7, SellNo: 8, BSFlag: 1, Price: 10.0, Qty: 100, Seq: 10},
		},
	}
	l := newTestLoader(t, src, &LoaderConfig{Mode: ModeTrans})

	ds, err := l.Load(context.Background(), "000001.SZ", 20231201)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// two derived orders plus the trade itself
	if len(ds.Events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(ds.Events))
	}
	for _, ev := range ds.Events[:2] {
		if ev.Kind != EventNewOrder || !ev.Order.Implied {
			t.Errorf("expected implied orders before the trade, got %s", ev.Kind)
		}
	}
}

func TestLoadL2PFallsBackToTrades(t *testing.T) {
	src := &stubSource{
		ordersErr: fmt.Errorf("%w: no order channel", ErrDataNotFound),
		trades: []TradeRow{
			{Date: 20231201, Time: 93200000, BuyNo: 7, SellNo: 8, BSFlag: 1, Price: 10.0, Qty: 100, Seq: 10},
		},
	}

	l := newTestLoader(t, src, &LoaderConfig{Mode: ModeL2P})
	ds, err := l.Load(context.Background(), "000001.SZ", 20231201)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(ds.Events) != 3 {
		t.Fatalf("expected derived events, got %d", len(ds.Events))
	}

	// order mode must surface the missing channel instead
	l = newTestLoader(t, src, &LoaderConfig{Mode: ModeOrder})
	if _, err := l.Load(context.Background(), "000001.SZ", 20231201); !IsNotFoundErr(err) {
		t.Fatalf("expected data-not-found, got %v", err)
	}
}

func TestLoadL2PImpliesMissingParticipants(t *testing.T) {
	src := &stubSource{
		orders: []OrderRow{
			{Date: 20231201, Time: 93100000, No: 1, BSFlag: 1, Type: orderTypeLimit, Price: 10.0, Qty: 100, Seq: 2},
		},
		trades: []TradeRow{
			{Date: 20231201, Time: 93200000, BuyNo: 1, SellNo: 55, BSFlag: 1, Price: 10.0, Qty: 100, Seq: 10},
		},
	}
	l := newTestLoader(t, src, &LoaderConfig{Mode: ModeL2P})

	ds, err := l.Load(context.Background(), "000001.SZ", 20231201)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	var implied *OrderEvent
	for i := range ds.Events {
		if ds.Events[i].Kind == EventNewOrder && ds.Events[i].Order.Implied {
			implied = ds.Events[i].Order
		}
	}
	if implied == nil {
		t.Fatalf("expected an implied order for participant 55")
	}
	if implied.No != 55 || implied.Side != model.OrderSideSell {
		t.Errorf("expected implied sell order 55, got %+v", implied)
	}
}

func TestLoadRejectsUnknownOrderType(t *testing.T) {
	src := &stubSource{
		orders: []OrderRow{
			{Date: 20231201, Time: 93100000, No: 1, BSFlag: 1, Type: 99, Price: 10.0, Qty: 100, Seq: 1},
		},
	}
	l := newTestLoader(t, src, &LoaderConfig{})

	_, err := l.Load(context.Background(), "000001.SZ", 20231201)
	if !errors.Is(err, ErrCorruptData) {
		t.Fatalf("expected corrupt-data, got %v", err)
	}
}

func TestLoadRejectsBadPrice(t *testing.T) {
	src := &stubSource{
		orders: []OrderRow{
			{Date: 20231201, Time: 93100000, No: 1, BSFlag: 1, Type: orderTypeLimit, Price: math.NaN(), Qty: 100, Seq: 1},
		},
	}
	l := newTestLoader(t, src, &LoaderConfig{})

	_, err := l.Load(context.Background(), "000001.SZ", 20231201)
	if !errors.Is(err, ErrCorruptData) {
		t.Fatalf("expected corrupt-data, got %v", err)
	}
}

func TestLoadEmptyDay(t *testing.T) {
	l := newTestLoader(t, &stubSource{}, &LoaderConfig{})

	_, err := l.Load(context.Background(), "000001.SZ", 20231201)
	if !IsNotFoundErr(err) {
		t.Fatalf("expected data-not-found, got %v", err)
	}
}

func TestLoadUseRecvTime(t *testing.T) {
	src := &stubSource{
		orders: []OrderRow{
			{Date: 20231201, Time: 93100000, RecvTime: 20231201093100250, No: 1, BSFlag: 1, Type: orderTypeLimit, Price: 10.0, Qty: 100, Seq: 1},
		},
	}
	l := newTestLoader(t, src, &LoaderConfig{UseRecvTime: true})

	ds, err := l.Load(context.Background(), "000001.SZ", 20231201)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ds.Events[0].Time != 20231201093100250 {
		t.Errorf("expected receive time ordering, got %d", ds.Events[0].Time)
	}
}

func TestLoadCancelFromTradeChannel(t *testing.T) {
	src := &stubSource{
		trades: []TradeRow{
			{Date: 20231201, Time: 93200000, SellNo: 42, Type: tradeTypeCancel, Qty: 100, Seq: 10},
		},
	}
	l := newTestLoader(t, src, &LoaderConfig{})

	ds, err := l.Load(context.Background(), "600000.SH", 20231201)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(ds.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(ds.Events))
	}
	ev := ds.Events[0]
	if ev.Kind != EventCancel {
		t.Fatalf("expected CANCEL, got %s", ev.Kind)
	}
	if ev.Cancel.No != 42 || ev.Cancel.Side != model.OrderSideSell {
		t.Errorf("expected sell cancel of 42, got %+v", ev.Cancel)
	}
}

func TestParseMode(t *testing.T) {
	cases := []struct {
		in   string
		want Mode
		ok   bool
	}{
		{"", ModeOrder, true},
		{"order", ModeOrder, true},
		{"l2p", ModeL2P, true},
		{"trans", ModeTrans, true},
		{"bogus", "", false},
	}
	for _, c := range cases {
		got, ok := ParseMode(c.in)
		if ok != c.ok || got != c.want {
			t.Errorf("ParseMode(%q) = (%q, %v), expected (%q, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}
