package backtest

import (
	"errors"
	"testing"
)

func TestClockAdvance(t *testing.T) {
	c := NewClock(20231201000000000)
	if c.Now() != 20231201000000000 {
		t.Fatalf("expected initial time 20231201000000000, got %d", c.Now())
	}

	if err := c.AdvanceTo(20231201093000000); err != nil {
		t.Fatalf("AdvanceTo: %v", err)
	}
	if c.Now() != 20231201093000000 {
		t.Errorf("expected 20231201093000000, got %d", c.Now())
	}

	// same instant is allowed
	if err := c.AdvanceTo(20231201093000000); err != nil {
		t.Errorf("expected same-instant advance to succeed, got %v", err)
	}
}

func TestClockRejectsBackward(t *testing.T) {
	c := NewClock(20231201093000000)

	err := c.AdvanceTo(20231201092959999)
	if !errors.Is(err, ErrClockRegression) {
		t.Fatalf("expected clock-regression, got %v", err)
	}
	if c.Now() != 20231201093000000 {
		t.Errorf("expected clock unchanged after rejection, got %d", c.Now())
	}
}
