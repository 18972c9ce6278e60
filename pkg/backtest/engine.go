// Package backtest replays historical exchange order flow against a
// simulated clock and interleaves synthetic orders into it. One Engine
// owns the clock, the per-instrument books, and the order registry;
// all public entry points are serialized, and determinism is
// guaranteed for serial call sequences.
package backtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/joripage/marketreplay/pkg/backtest/model"
	"github.com/joripage/marketreplay/pkg/marketdata"
	"github.com/joripage/marketreplay/pkg/orderbook"
	"github.com/joripage/marketreplay/pkg/timeutil"
)

// Exchange interaction modes.
const (
	// ModeBacktest simulates synthetic matching only; historical crossings
	// arrive as ground-truth trades from the tape.
	ModeBacktest = "backtest"
	// ModeLiveShadow runs the full matching algorithm for historical
	// orders too and takes tape trades as statistics only.
	ModeLiveShadow = "live-shadow"
)

const defaultDepthLevels = 50

type Config struct {
	TradingDate int64           `yaml:"trading_date"` // yyyymmdd
	Mode        marketdata.Mode `yaml:"mode"`
	// ExchangeMode selects backtest (default) or live-shadow matching.
	ExchangeMode string `yaml:"exchange_mode"`
	UseRecvTime  bool   `yaml:"use_recv_time"`
	// EnhancedOutput records an aggregated depth snapshot after every
	// applied event.
	EnhancedOutput bool                    `yaml:"enhanced_output"`
	DepthLevels    int                     `yaml:"depth_levels"`
	Source         marketdata.SourceConfig `yaml:"source"`
}

type instrumentState struct {
	inst  *model.Instrument
	book  *orderbook.Book
	depth []orderbook.DepthRecord
}

type Engine struct {
	mu sync.Mutex

	cfg    *Config
	loader *marketdata.Loader
	clock  *Clock
	reg    *Registry
	fills  FillStore
	rep    *replayer

	instruments map[string]*instrumentState

	matchMode   orderbook.MatchMode
	depthLevels int
	sessionEnd  int64 // 17-digit stamp of 15:00:00.000 on the trading date
	nextSeq     int64
	started     bool
}

// NewEngine opens the configured feed source and builds an engine with
// the clock at midnight of the trading date.
func NewEngine(cfg *Config) (*Engine, error) {
	src, err := marketdata.NewSource(&cfg.Source)
	if err != nil {
		return nil, err
	}
	return NewEngineWithSource(cfg, src)
}

// NewEngineWithSource is NewEngine over an already-open feed source.
func NewEngineWithSource(cfg *Config, src marketdata.Source) (*Engine, error) {
	start := timeutil.Compose(cfg.TradingDate, 0)
	if !timeutil.IsValid(start) {
		return nil, fmt.Errorf("%w: bad trading date %d", ErrInvalidTime, cfg.TradingDate)
	}

	var matchMode orderbook.MatchMode
	switch cfg.ExchangeMode {
	case "", ModeBacktest:
		matchMode = orderbook.ModeBacktest
	case ModeLiveShadow:
		matchMode = orderbook.ModeLiveShadow
	default:
		return nil, fmt.Errorf("unknown exchange mode %q", cfg.ExchangeMode)
	}

	loader, err := marketdata.NewLoader(src, &marketdata.LoaderConfig{
		Mode:        cfg.Mode,
		UseRecvTime: cfg.UseRecvTime,
	})
	if err != nil {
		return nil, err
	}

	levels := cfg.DepthLevels
	if levels <= 0 {
		levels = defaultDepthLevels
	}

	return &Engine{
		cfg:         cfg,
		loader:      loader,
		clock:       NewClock(start),
		reg:         NewRegistry(),
		fills:       NewInMemoryFillStore(),
		rep:         newReplayer(),
		instruments: make(map[string]*instrumentState),
		matchMode:   matchMode,
		depthLevels: levels,
		sessionEnd:  timeutil.Compose(cfg.TradingDate, timeutil.SessionEnd),
	}, nil
}

func (e *Engine) Close() error {
	return e.loader.Close()
}

// LoadInstrument loads and registers one instrument-day. It must be
// called before the clock first advances; loading later would skip the
// events already behind the clock.
func (e *Engine) LoadInstrument(ctx context.Context, symbol string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadInstrument(ctx, symbol)
}

func (e *Engine) loadInstrument(ctx context.Context, symbol string) error {
	if _, ok := e.instruments[symbol]; ok {
		return nil
	}
	if e.started {
		return fmt.Errorf("cannot load %s after the clock has advanced", symbol)
	}

	ds, err := e.loader.Load(ctx, symbol, e.cfg.TradingDate)
	if err != nil {
		return err
	}
	inst, err := model.NewInstrument(symbol, ds.Kind)
	if err != nil {
		return err
	}

	events := make([]timedEvent, len(ds.Events))
	for i := range ds.Events {
		e.nextSeq++
		events[i] = timedEvent{ev: &ds.Events[i], seq: e.nextSeq}
	}

	e.instruments[symbol] = &instrumentState{
		inst: inst,
		book: orderbook.NewBook(symbol, e.matchMode),
	}
	e.rep.addCursor(symbol, events)

	zap.S().Debugf("loaded %s: kind=%s events=%d", symbol, ds.Kind, len(events))
	return nil
}

// SendOrder registers a synthetic order. The order enters the flow at
// the start of the next advancement step covering its timestamp. An
// unknown instrument is loaded lazily while the clock has not advanced
// yet; afterwards it is ErrUnknownInstrument.
func (e *Engine) SendOrder(ctx context.Context, add *model.AddOrder) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.instruments[add.Symbol]
	if !ok {
		if e.started {
			return 0, fmt.Errorf("%w: %s", ErrUnknownInstrument, add.Symbol)
		}
		if err := e.loadInstrument(ctx, add.Symbol); err != nil {
			return 0, err
		}
		st = e.instruments[add.Symbol]
	}

	if err := validateAddOrder(st.inst, add); err != nil {
		return 0, err
	}

	o := e.newSyntheticOrder(add)
	e.reg.Register(o)
	e.rep.enqueue(o)
	return o.ID, nil
}

func (e *Engine) newSyntheticOrder(add *model.AddOrder) *model.Order {
	e.nextSeq++
	return &model.Order{
		Symbol:         add.Symbol,
		Side:           add.Side,
		Type:           model.OrderTypeLimit,
		Price:          add.Price,
		Quantity:       add.Quantity,
		Account:        add.Account,
		SubmitTime:     add.Timestamp,
		Origin:         model.OriginSynthetic,
		Status:         model.OrderStatusNew,
		LeavesQuantity: add.Quantity,
		UpdateTime:     add.Timestamp,
		Seq:            e.nextSeq,
	}
}

// CancelOrder cancels any non-terminal order, synthetic or historical,
// whether it is still waiting, resting, or never reached the book.
func (e *Engine) CancelOrder(orderID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, ok := e.reg.get(orderID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrOrderNotFound, orderID)
	}
	if o.IsEnd() {
		return fmt.Errorf("%w: %d is %s", ErrOrderAlreadyTerminal, orderID, o.Status)
	}

	st := e.instruments[o.Symbol]
	if !e.rep.removeWaiting(orderID) {
		if _, err := st.book.Cancel(orderID); err != nil {
			// never reached the book, count the cancel anyway
			st.book.RecordCancel()
		}
	}

	o.Status = model.OrderStatusCanceled
	o.UpdateTime = e.clock.Now()
	e.reg.Touch(orderID)
	return nil
}

// Elapse advances the clock by duration in wire-stamp units (10000 is
// ten seconds) and applies everything up to the new time.
func (e *Engine) Elapse(duration int64) ([]model.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.elapse(e.clock.Now()+duration, nil)
}

// ElapseWithOrders injects synthetic orders and advances to target.
// Order timestamps must be valid stamps at or before target. Returns
// copies of every order created or changed during the step.
func (e *Engine) ElapseWithOrders(target int64, orders []*model.AddOrder) ([]model.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.elapse(target, orders)
}

func (e *Engine) elapse(target int64, orders []*model.AddOrder) ([]model.Order, error) {
	now := e.clock.Now()
	if target < now {
		return nil, fmt.Errorf("%w: target %d is before %d", ErrClockRegression, target, now)
	}

	// validate the whole batch before touching any state
	for _, add := range orders {
		st, ok := e.instruments[add.Symbol]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownInstrument, add.Symbol)
		}
		if err := validateAddOrder(st.inst, add); err != nil {
			return nil, err
		}
		if add.Timestamp > target {
			return nil, fmt.Errorf("%w: order stamped %d past target %d", ErrInvalidTime, add.Timestamp, target)
		}
	}

	e.started = true
	e.reg.BeginStep()

	for _, add := range orders {
		o := e.newSyntheticOrder(add)
		e.reg.Register(o)
		e.rep.enqueue(o)
	}

	it := e.rep.begin(now, target)
	for {
		te, due, ok := it.next()
		if !ok {
			break
		}
		if te != nil {
			st := e.instruments[te.ev.Symbol]
			e.applyEvent(st, te)
			e.captureDepth(st, te.ev.Time, te.seq)
			continue
		}
		st := e.instruments[due.order.Symbol]
		e.applySynthetic(st, due)
		e.captureDepth(st, due.applyAt, due.order.Seq)
	}

	if err := e.clock.AdvanceTo(target); err != nil {
		return nil, err
	}
	if target >= e.sessionEnd {
		e.expireSession()
	}

	return e.reg.GetLatestOrders(), nil
}

func (e *Engine) applyEvent(st *instrumentState, te *timedEvent) {
	switch te.ev.Kind {
	case marketdata.EventNewOrder:
		e.applyHistoricalAdd(st, te)
	case marketdata.EventCancel:
		e.applyHistoricalCancel(st, te)
	case marketdata.EventTrade:
		e.applyTrade(st, te)
	}
}

func (e *Engine) applyHistoricalAdd(st *instrumentState, te *timedEvent) {
	ev := te.ev
	oe := ev.Order

	o := &model.Order{
		Symbol:         ev.Symbol,
		Side:           oe.Side,
		Type:           oe.Type,
		Price:          oe.Price,
		Quantity:       oe.Quantity,
		SubmitTime:     ev.Time,
		Origin:         model.OriginHistorical,
		ExchangeNo:     oe.No,
		Status:         model.OrderStatusNew,
		LeavesQuantity: oe.Quantity,
		UpdateTime:     ev.Time,
		Seq:            te.seq,
	}
	e.reg.Register(o)

	tick, booked := e.historicalTick(st, oe)
	if !booked {
		// priced off-book, tape trades will consume it from the registry
		st.book.RecordOrder(bookSide(o.Side))
		return
	}

	entry := &orderbook.Entry{
		OrderID: o.ID,
		Side:    bookSide(o.Side),
		Tick:    tick,
		Lots:    st.inst.QuantityToLots(o.Quantity),
		Time:    ev.Time,
		Seq:     te.seq,
		Origin:  orderbook.HISTORICAL,
	}
	for _, r := range st.book.Submit(entry) {
		e.settleMatch(st, r, ev.Time)
	}
}

// historicalTick resolves the price tick a historical add rests at.
// Market orders and best-own orders facing an empty side carry no
// usable price and stay off the book.
func (e *Engine) historicalTick(st *instrumentState, oe *marketdata.OrderEvent) (int64, bool) {
	switch oe.Type {
	case model.OrderTypeLimit:
		return st.inst.PriceToTick(oe.Price), true
	case model.OrderTypeBestOwn:
		if oe.Side == model.OrderSideBuy {
			if best, ok := st.book.BestBid(); ok {
				return best, true
			}
		} else {
			if best, ok := st.book.BestAsk(); ok {
				return best, true
			}
		}
		return 0, false
	default:
		return 0, false
	}
}

func (e *Engine) applyHistoricalCancel(st *instrumentState, te *timedEvent) {
	ce := te.ev.Cancel

	id, ok := e.reg.Resolve(te.ev.Symbol, ce.No)
	if !ok {
		zap.S().Debugf("cancel for unknown exchange order %d on %s", ce.No, te.ev.Symbol)
		st.book.RecordCancel()
		return
	}
	o, _ := e.reg.get(id)
	if o.IsEnd() {
		// remainder already consumed, the tape cancel has nothing left
		st.book.RecordCancel()
		return
	}

	if _, err := st.book.Cancel(id); err != nil {
		st.book.RecordCancel()
	}
	o.Status = model.OrderStatusCanceled
	o.UpdateTime = te.ev.Time
	e.reg.Touch(id)
}

// applyTrade replays a tape execution as ground truth: both referenced
// orders shrink by the trade quantity clamped to what each still has
// left, with no matching of our own. In live-shadow mode the tape only
// feeds statistics.
func (e *Engine) applyTrade(st *instrumentState, te *timedEvent) {
	tr := te.ev.Trade
	tick := st.inst.PriceToTick(tr.Price)
	lots := st.inst.QuantityToLots(tr.Quantity)

	st.book.RecordTrade(bookSide(tr.TakerSide), tick, lots)
	if e.matchMode == orderbook.ModeLiveShadow {
		return
	}

	buyID, buyOK := e.reg.Resolve(te.ev.Symbol, tr.BuyNo)
	sellID, sellOK := e.reg.Resolve(te.ev.Symbol, tr.SellNo)
	if !buyOK && !sellOK {
		return
	}

	if buyOK {
		e.applyTapeFill(st, buyID, tr.Price, tr.Quantity, te.ev.Time)
	} else {
		buyID = 0
	}
	if sellOK {
		e.applyTapeFill(st, sellID, tr.Price, tr.Quantity, te.ev.Time)
	} else {
		sellID = 0
	}

	e.fills.Append(&model.Fill{
		Symbol:      te.ev.Symbol,
		BuyOrderID:  buyID,
		SellOrderID: sellID,
		Price:       tr.Price,
		Quantity:    tr.Quantity,
		Timestamp:   te.ev.Time,
		Seq:         te.ev.ExchSeq,
		TakerSide:   tr.TakerSide,
		GroundTruth: true,
	})
}

func (e *Engine) applyTapeFill(st *instrumentState, id int64, price, qty decimal.Decimal, ts int64) {
	o, ok := e.reg.get(id)
	if !ok || o.IsEnd() {
		return
	}
	applied := qty
	if applied.GreaterThan(o.LeavesQuantity) {
		applied = o.LeavesQuantity
	}
	if !applied.IsPositive() {
		return
	}

	e.fillOrder(o, price, applied, ts)
	st.book.Reduce(id, st.inst.QuantityToLots(applied))
}

func (e *Engine) applySynthetic(st *instrumentState, due *dueOrder) {
	o := due.order
	if o.IsEnd() {
		return
	}
	e.reg.Touch(o.ID)

	entry := &orderbook.Entry{
		OrderID: o.ID,
		Side:    bookSide(o.Side),
		Tick:    st.inst.PriceToTick(o.Price),
		Lots:    st.inst.QuantityToLots(o.Quantity),
		Time:    o.SubmitTime,
		Seq:     o.Seq,
		Origin:  orderbook.SYNTHETIC,
	}
	for _, r := range st.book.Submit(entry) {
		e.settleMatch(st, r, due.applyAt)
	}
}

// settleMatch applies one simulated match to both orders and records
// the fill.
func (e *Engine) settleMatch(st *instrumentState, r orderbook.MatchResult, ts int64) {
	price := st.inst.TickToPrice(r.Tick)
	qty := st.inst.LotsToQuantity(r.Lots)

	if o, ok := e.reg.get(r.BuyOrderID); ok {
		e.fillOrder(o, price, qty, ts)
	}
	if o, ok := e.reg.get(r.SellOrderID); ok {
		e.fillOrder(o, price, qty, ts)
	}

	e.fills.Append(&model.Fill{
		Symbol:      st.inst.Symbol,
		BuyOrderID:  r.BuyOrderID,
		SellOrderID: r.SellOrderID,
		Price:       price,
		Quantity:    qty,
		Timestamp:   ts,
		TakerSide:   modelSide(r.TakerSide),
		GroundTruth: false,
	})
}

func (e *Engine) fillOrder(o *model.Order, price, qty decimal.Decimal, ts int64) {
	o.CumQuantity = o.CumQuantity.Add(qty)
	o.LeavesQuantity = o.LeavesQuantity.Sub(qty)
	o.LastPrice = price
	o.LastQuantity = qty
	o.UpdateTime = ts
	if o.LeavesQuantity.IsZero() {
		o.Status = model.OrderStatusFilled
	} else {
		o.Status = model.OrderStatusPartiallyFilled
	}
	e.reg.Touch(o.ID)
}

// expireSession cancels everything still open once the clock reaches
// 15:00:00.000. Idempotent; statistics are left alone.
func (e *Engine) expireSession() {
	for _, sym := range e.rep.symbols {
		e.instruments[sym].book.ExpireAll()
	}
	e.rep.drainWaiting()

	for _, o := range e.reg.GetPendingOrders("") {
		live, ok := e.reg.get(o.ID)
		if !ok {
			continue
		}
		live.Status = model.OrderStatusCanceled
		live.UpdateTime = e.sessionEnd
		e.reg.Touch(o.ID)
	}
}

func (e *Engine) captureDepth(st *instrumentState, ts, seq int64) {
	if !e.cfg.EnhancedOutput {
		return
	}
	st.depth = append(st.depth, st.book.Depth(ts, seq, e.depthLevels, st.inst.TickSize, st.inst.LotSize))
}

func (e *Engine) GetCurrentTime() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock.Now()
}

func (e *Engine) GetPendingOrders(symbol string) []model.Order {
	return e.reg.GetPendingOrders(symbol)
}

func (e *Engine) GetFinishedOrders(symbol string) []model.Order {
	return e.reg.GetFinishedOrders(symbol)
}

func (e *Engine) GetAllOrders() []model.Order {
	return e.reg.GetAllOrders()
}

func (e *Engine) GetLatestOrders() []model.Order {
	return e.reg.GetLatestOrders()
}

// GetCurrentL3Snapshot builds the instrument's full-depth JSON snapshot
// at the current clock. Nothing is cached.
func (e *Engine) GetCurrentL3Snapshot(symbol string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.instruments[symbol]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownInstrument, symbol)
	}
	return st.book.L3Snapshot(e.clock.Now(), st.inst.TickSize, st.inst.LotSize).Encode()
}

// Fills returns the symbol's fill ledger in application order.
func (e *Engine) Fills(symbol string) []model.Fill {
	return e.fills.Fills(symbol)
}

// Statistics returns the session counters of one book.
func (e *Engine) Statistics(symbol string) (orderbook.Statistics, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.instruments[symbol]
	if !ok {
		return orderbook.Statistics{}, fmt.Errorf("%w: %s", ErrUnknownInstrument, symbol)
	}
	return st.book.Statistics(), nil
}

// DepthRecords returns the per-event depth records captured so far.
// Empty unless enhanced output is enabled.
func (e *Engine) DepthRecords(symbol string) ([]orderbook.DepthRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.instruments[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownInstrument, symbol)
	}
	out := make([]orderbook.DepthRecord, len(st.depth))
	copy(out, st.depth)
	return out, nil
}

// Instrument returns a copy of a loaded instrument's static data.
func (e *Engine) Instrument(symbol string) (model.Instrument, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.instruments[symbol]
	if !ok {
		return model.Instrument{}, fmt.Errorf("%w: %s", ErrUnknownInstrument, symbol)
	}
	return *st.inst, nil
}

func bookSide(s model.OrderSide) orderbook.Side {
	if s == model.OrderSideBuy {
		return orderbook.BUY
	}
	return orderbook.SELL
}

func modelSide(s orderbook.Side) model.OrderSide {
	if s == orderbook.BUY {
		return model.OrderSideBuy
	}
	return model.OrderSideSell
}
