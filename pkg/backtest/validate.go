package backtest

import (
	"fmt"

	"github.com/joripage/marketreplay/pkg/backtest/model"
	"github.com/joripage/marketreplay/pkg/timeutil"
)

// validateAddOrder checks a synthetic submission against its
// instrument. The timestamp must be a real 17-digit stamp; price and
// quantity must be positive and aligned to the instrument's tick and
// lot sizes.
func validateAddOrder(inst *model.Instrument, add *model.AddOrder) error {
	if !timeutil.IsValid(add.Timestamp) {
		return fmt.Errorf("%w: %d is not a 17-digit stamp", ErrInvalidTime, add.Timestamp)
	}
	if add.Side != model.OrderSideBuy && add.Side != model.OrderSideSell {
		return fmt.Errorf("unknown side %q", add.Side)
	}
	if !add.Price.IsPositive() {
		return fmt.Errorf("price %s must be positive", add.Price)
	}
	if !inst.TickAligned(add.Price) {
		return fmt.Errorf("price %s is not aligned to tick size %s", add.Price, inst.TickSize)
	}
	if !add.Quantity.IsPositive() {
		return fmt.Errorf("quantity %s must be positive", add.Quantity)
	}
	if !inst.LotAligned(add.Quantity) {
		return fmt.Errorf("quantity %s is not aligned to lot size %s", add.Quantity, inst.LotSize)
	}
	return nil
}
