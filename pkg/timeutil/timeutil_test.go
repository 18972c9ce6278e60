package timeutil

import "testing"

func TestComposeSplit(t *testing.T) {
	stamp := Compose(20231201, 93939000)
	if stamp != 20231201093939000 {
		t.Fatalf("expected 20231201093939000, got %d", stamp)
	}

	date, intraday := Split(stamp)
	if date != 20231201 {
		t.Errorf("expected date 20231201, got %d", date)
	}
	if intraday != 93939000 {
		t.Errorf("expected intraday 93939000, got %d", intraday)
	}
}

func TestAddMillisCarry(t *testing.T) {
	// carry across minute, hour and second boundaries
	got, err := AddMillis(20230801095959500, 600)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 20230801100000100 {
		t.Fatalf("expected 20230801100000100, got %d", got)
	}
}

func TestAddMillisCarryAcrossDay(t *testing.T) {
	got, err := AddMillis(20231231235959900, 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 20240101000000100 {
		t.Fatalf("expected 20240101000000100, got %d", got)
	}
}

func TestDiffMillis(t *testing.T) {
	diff, err := DiffMillis(20231201093949000, 20231201093939000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff != 10000 {
		t.Fatalf("expected 10000ms, got %d", diff)
	}

	diff, err = DiffMillis(20231201100000000, 20231201095959000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff != 1000 {
		t.Fatalf("expected 1000ms, got %d", diff)
	}
}

func TestIsValid(t *testing.T) {
	if !IsValid(20231201093939000) {
		t.Errorf("expected valid stamp")
	}
	if IsValid(1234) {
		t.Errorf("expected short value to be invalid")
	}
	if IsValid(20231301093939000) {
		t.Errorf("expected month 13 to be invalid")
	}
	if IsValid(20231201250000000) {
		t.Errorf("expected hour 25 to be invalid")
	}
}

func TestSessionWindows(t *testing.T) {
	if !InCallAuction(20231201091500000) {
		t.Errorf("09:15 should be in the opening auction")
	}
	if InCallAuction(20231201100000000) {
		t.Errorf("10:00 is continuous trading")
	}
	if !InCallAuction(20231201145800000) {
		t.Errorf("14:58 should be in the closing auction")
	}
	if !AfterClose(20231201150000000) {
		t.Errorf("15:00 is at the close")
	}
	if AfterClose(20231201145959999) {
		t.Errorf("14:59:59.999 is before the close")
	}
}
