package backtest

import (
	"fmt"
	"testing"

	"github.com/joripage/marketreplay/pkg/backtest/model"
	"github.com/joripage/marketreplay/pkg/marketdata"
)

func histEvent(symbol string, tm, seq int64) timedEvent {
	return timedEvent{
		ev:  &marketdata.Event{Symbol: symbol, Kind: marketdata.EventTrade, Time: tm},
		seq: seq,
	}
}

func waitingOrder(id, seq, submitTime int64) *model.Order {
	return &model.Order{
		ID:         id,
		Symbol:     "688007.SH",
		Status:     model.OrderStatusNew,
		SubmitTime: submitTime,
		Seq:        seq,
	}
}

func TestStepIterMergesCursorsAndQueue(t *testing.T) {
	base := int64(20231201093000000)

	r := newReplayer()
	r.addCursor("688007.SH", []timedEvent{
		histEvent("688007.SH", base+1000, 1),
		histEvent("688007.SH", base+2000, 2),
	})
	r.addCursor("000858.SZ", []timedEvent{
		histEvent("000858.SZ", base+1000, 3),
		histEvent("000858.SZ", base+9000, 4),
	})
	r.enqueue(waitingOrder(1, 10, base+1500))

	var got []string
	it := r.begin(base, base+5000)
	for {
		te, due, ok := it.next()
		if !ok {
			break
		}
		if te != nil {
			got = append(got, fmt.Sprintf("ev:%d", te.seq))
		} else {
			got = append(got, fmt.Sprintf("syn:%d", due.order.Seq))
		}
	}

	want := []string{"ev:1", "ev:3", "syn:10", "ev:2"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	// the event past the target is still waiting on its cursor
	if te, ok := r.cursors["000858.SZ"].peek(); !ok || te.seq != 4 {
		t.Errorf("expected seq 4 left on the cursor, got %+v (%v)", te, ok)
	}
}

func TestDueOrdersApplyBackdatedStampsAtStepStart(t *testing.T) {
	base := int64(20231201093000000)

	r := newReplayer()
	r.enqueue(waitingOrder(1, 1, base-10000))
	r.enqueue(waitingOrder(2, 2, base+2000))
	r.enqueue(waitingOrder(3, 3, base-999))
	r.enqueue(waitingOrder(4, 4, base+9000))

	due := r.dueOrders(base, base+5000)
	if len(due) != 3 {
		t.Fatalf("expected 3 due orders, got %d", len(due))
	}
	if due[0].order.ID != 1 || due[0].applyAt != base {
		t.Errorf("expected order 1 clamped to step start, got %d at %d", due[0].order.ID, due[0].applyAt)
	}
	if due[1].order.ID != 3 || due[1].applyAt != base {
		t.Errorf("expected order 3 clamped behind order 1, got %d at %d", due[1].order.ID, due[1].applyAt)
	}
	if due[2].order.ID != 2 || due[2].applyAt != base+2000 {
		t.Errorf("expected order 2 at its own stamp, got %d at %d", due[2].order.ID, due[2].applyAt)
	}

	if r.waiting.Len() != 1 || r.waiting.Front().ID != 4 {
		t.Errorf("expected only order 4 still queued, got %d waiting", r.waiting.Len())
	}
}

func TestRemoveWaiting(t *testing.T) {
	r := newReplayer()
	r.enqueue(waitingOrder(1, 1, 20231201093000000))
	r.enqueue(waitingOrder(2, 2, 20231201093000000))
	r.enqueue(waitingOrder(3, 3, 20231201093000000))

	if !r.removeWaiting(2) {
		t.Fatal("expected order 2 removed")
	}
	if r.removeWaiting(99) {
		t.Error("expected unknown order to miss")
	}

	rest := r.drainWaiting()
	if len(rest) != 2 || rest[0].ID != 1 || rest[1].ID != 3 {
		t.Errorf("expected orders 1 and 3 left, got %+v", rest)
	}
}
