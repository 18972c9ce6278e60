package marketdata

import (
	"encoding/json"
	"testing"
)

func TestDecodeWireRow(t *testing.T) {
	payload, err := json.Marshal(wireRow{
		Table: wireTableOrders,
		Kind:  "fund",
		Order: &OrderRow{Date: 20231201, Time: 93100000, No: 1, BSFlag: 1, Type: 2, Price: 10.5, Qty: 200, Seq: 3},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	w, err := decodeWireRow(payload)
	if err != nil {
		t.Fatalf("decodeWireRow: %v", err)
	}
	if w.Kind != "fund" {
		t.Errorf("expected kind fund, got %q", w.Kind)
	}
	if w.Order == nil || w.Order.No != 1 || w.Order.Price != 10.5 {
		t.Errorf("unexpected order row: %+v", w.Order)
	}
}

func TestDecodeWireRowRejectsBadEnvelopes(t *testing.T) {
	cases := []string{
		`{"table":"orders"}`,
		`{"table":"trades"}`,
		`{"table":"quotes","order":{}}`,
		`not json`,
	}
	for _, c := range cases {
		if _, err := decodeWireRow([]byte(c)); err == nil {
			t.Errorf("expected error for %q", c)
		}
	}
}
