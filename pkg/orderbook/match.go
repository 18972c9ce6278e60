package orderbook

// MatchResult is one fill produced by crossing an incoming order with a
// resting one. Price is the resting order's tick.
type MatchResult struct {
	BuyOrderID  int64
	SellOrderID int64
	Tick        int64
	Lots        int64
	TakerSide   Side
}
