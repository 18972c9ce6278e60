package backtest

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/joripage/marketreplay/pkg/backtest/model"
)

func newOrder(symbol string, side model.OrderSide, exchangeNo int64) *model.Order {
	qty := decimal.NewFromInt(100)
	return &model.Order{
		Symbol:         symbol,
		Side:           side,
		Type:           model.OrderTypeLimit,
		Price:          decimal.NewFromFloat(10.5),
		Quantity:       qty,
		LeavesQuantity: qty,
		Status:         model.OrderStatusNew,
		Origin:         model.OriginSynthetic,
		ExchangeNo:     exchangeNo,
	}
}

func TestRegistryAssignsSequentialIDs(t *testing.T) {
	r := NewRegistry()

	a := r.Register(newOrder("000001.SZ", model.OrderSideBuy, 0))
	b := r.Register(newOrder("000001.SZ", model.OrderSideSell, 0))
	if a != 1 || b != 2 {
		t.Fatalf("expected ids 1 and 2, got %d and %d", a, b)
	}
}

func TestRegistryResolvesExchangeNumbers(t *testing.T) {
	r := NewRegistry()
	id := r.Register(newOrder("000001.SZ", model.OrderSideBuy, 4242))

	got, ok := r.Resolve("000001.SZ", 4242)
	if !ok || got != id {
		t.Fatalf("expected %d, got (%d, %v)", id, got, ok)
	}
	if _, ok := r.Resolve("600000.SH", 4242); ok {
		t.Errorf("expected resolution scoped per symbol")
	}
	if _, ok := r.Resolve("000001.SZ", 1); ok {
		t.Errorf("expected unknown number to miss")
	}
}

func TestRegistryPendingAndFinished(t *testing.T) {
	r := NewRegistry()
	aID := r.Register(newOrder("000001.SZ", model.OrderSideBuy, 0))
	r.Register(newOrder("600000.SH", model.OrderSideBuy, 0))

	a, _ := r.get(aID)
	a.Status = model.OrderStatusFilled

	pending := r.GetPendingOrders("")
	if len(pending) != 1 || pending[0].Symbol != "600000.SH" {
		t.Fatalf("expected one pending order on 600000.SH, got %+v", pending)
	}
	if got := r.GetPendingOrders("000001.SZ"); len(got) != 0 {
		t.Errorf("expected no pending orders for 000001.SZ, got %d", len(got))
	}

	finished := r.GetFinishedOrders("000001.SZ")
	if len(finished) != 1 || finished[0].ID != aID {
		t.Fatalf("expected order %d finished, got %+v", aID, finished)
	}

	if got := r.GetAllOrders(); len(got) != 2 {
		t.Errorf("expected 2 orders total, got %d", len(got))
	}
}

func TestRegistryReturnsCopies(t *testing.T) {
	r := NewRegistry()
	id := r.Register(newOrder("000001.SZ", model.OrderSideBuy, 0))

	out := r.GetAllOrders()
	out[0].Status = model.OrderStatusCanceled

	o, _ := r.get(id)
	if o.Status != model.OrderStatusNew {
		t.Fatalf("expected stored order untouched, got %s", o.Status)
	}
}

func TestRegistryLatestOrders(t *testing.T) {
	r := NewRegistry()
	aID := r.Register(newOrder("000001.SZ", model.OrderSideBuy, 0))

	r.BeginStep()
	if got := r.GetLatestOrders(); len(got) != 0 {
		t.Fatalf("expected no latest orders after BeginStep, got %d", len(got))
	}

	bID := r.Register(newOrder("000001.SZ", model.OrderSideSell, 0))
	r.Touch(aID)

	latest := r.GetLatestOrders()
	if len(latest) != 2 {
		t.Fatalf("expected 2 latest orders, got %d", len(latest))
	}
	if latest[0].ID != aID || latest[1].ID != bID {
		t.Errorf("expected ids (%d, %d), got (%d, %d)", aID, bID, latest[0].ID, latest[1].ID)
	}
}
