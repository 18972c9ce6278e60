package marketdata

import (
	"testing"
)

func TestDeriveOrders(t *testing.T) {
	trades := []TradeRow{
		// opening call auction, dropped
		{Date: 20231201, Time: 92500000, BuyNo: 1, SellNo: 2, BSFlag: 1, Price: 10.0, Qty: 100, Seq: 1},
		// cancel row, dropped
		{Date: 20231201, Time: 93100000, BuyNo: 3, Type: tradeTypeCancel, Qty: 200, Seq: 5},
		{Date: 20231201, Time: 93200000, BuyNo: 7, SellNo: 8, BSFlag: 1, Price: 10.0, Qty: 100, Seq: 10},
		{Date: 20231201, Time: 93300000, BuyNo: 7, SellNo: 9, BSFlag: 1, Price: 10.2, Qty: 300, Seq: 12},
	}

	orders := deriveOrders(trades)
	if len(orders) != 3 {
		t.Fatalf("expected 3 derived orders, got %d", len(orders))
	}

	// sorted by (time, no): buyer 7 first, then sellers 8 and 9
	buyer := orders[0]
	if buyer.No != 7 || buyer.BSFlag != bsFlagBuy {
		t.Fatalf("expected buyer 7 first, got no=%d bs=%d", buyer.No, buyer.BSFlag)
	}
	if buyer.Qty != 400 {
		t.Errorf("expected buyer quantity 400, got %v", buyer.Qty)
	}
	if buyer.Price != 10.2 {
		t.Errorf("expected buyer price at its highest fill 10.2, got %v", buyer.Price)
	}
	if buyer.Time != 93200000 || buyer.Seq != 10 {
		t.Errorf("expected buyer stamped at first fill (93200000, 10), got (%d, %d)", buyer.Time, buyer.Seq)
	}
	if buyer.Type != orderTypeLimit {
		t.Errorf("expected derived order type %d, got %d", orderTypeLimit, buyer.Type)
	}
	if !buyer.Implied {
		t.Errorf("expected derived order to be implied")
	}

	if orders[1].No != 8 || orders[2].No != 9 {
		t.Errorf("expected sellers 8 then 9, got %d then %d", orders[1].No, orders[2].No)
	}
	if orders[1].BSFlag == bsFlagBuy {
		t.Errorf("expected seller 8 on the sell side")
	}
}

func TestDeriveOrdersSellerPrice(t *testing.T) {
	trades := []TradeRow{
		{Date: 20231201, Time: 93200000, BuyNo: 1, SellNo: 5, BSFlag: 0, Price: 10.4, Qty: 100, Seq: 1},
		{Date: 20231201, Time: 93300000, BuyNo: 2, SellNo: 5, BSFlag: 0, Price: 10.1, Qty: 100, Seq: 2},
	}

	orders := deriveOrders(trades)
	for _, o := range orders {
		if o.No == 5 {
			if o.Price != 10.1 {
				t.Errorf("expected seller priced at its lowest fill 10.1, got %v", o.Price)
			}
			if o.Qty != 200 {
				t.Errorf("expected seller quantity 200, got %v", o.Qty)
			}
			return
		}
	}
	t.Fatalf("seller 5 not derived")
}

func TestImpliedOrders(t *testing.T) {
	known := map[int64]struct{}{1: {}}
	trades := []TradeRow{
		{Date: 20231201, Time: 93200000, BuyNo: 1, SellNo: 2, BSFlag: 1, Price: 10.0, Qty: 100, Seq: 10},
		{Date: 20231201, Time: 93300000, BuyNo: 1, SellNo: 2, BSFlag: 1, Price: 10.1, Qty: 200, Seq: 11},
		// cancel of the remainder still counts toward the implied size
		{Date: 20231201, Time: 93400000, SellNo: 2, Type: tradeTypeCancel, Qty: 50, Seq: 12},
	}

	implied := impliedOrders(known, trades)
	if len(implied) != 1 {
		t.Fatalf("expected 1 implied order, got %d", len(implied))
	}
	o := implied[0]
	if o.No != 2 {
		t.Fatalf("expected implied order for participant 2, got %d", o.No)
	}
	if o.Qty != 350 {
		t.Errorf("expected implied quantity 350, got %v", o.Qty)
	}
	if o.Price != 10.0 {
		t.Errorf("expected first-seen price 10.0, got %v", o.Price)
	}
	if o.Time != 93200000 || o.Seq != 10 {
		t.Errorf("expected first appearance stamp (93200000, 10), got (%d, %d)", o.Time, o.Seq)
	}
	if !o.Implied {
		t.Errorf("expected implied flag set")
	}
}

func TestImpliedOrdersSkipsKnown(t *testing.T) {
	known := map[int64]struct{}{1: {}, 2: {}}
	trades := []TradeRow{
		{Date: 20231201, Time: 93200000, BuyNo: 1, SellNo: 2, BSFlag: 1, Price: 10.0, Qty: 100, Seq: 10},
	}

	if implied := impliedOrders(known, trades); len(implied) != 0 {
		t.Fatalf("expected no implied orders, got %d", len(implied))
	}
}
