package orderbook

type Side string

const (
	BUY  Side = "BUY"
	SELL Side = "SELL"
)

func (s Side) Opposite() Side {
	if s == BUY {
		return SELL
	}
	return BUY
}

// Origin marks where an order entered the system from.
type Origin string

const (
	HISTORICAL Origin = "HISTORICAL"
	SYNTHETIC  Origin = "SYNTHETIC"
)

// MatchMode selects which resting orders an incoming order may trade
// against.
type MatchMode string

const (
	// ModeBacktest crosses synthetic orders against the full book while
	// historical orders trade only against synthetic liquidity; recorded
	// trades stay the sole source of historical-vs-historical volume.
	ModeBacktest MatchMode = "backtest"
	// ModeLiveShadow crosses every order against the full book and treats
	// recorded trades as statistics only.
	ModeLiveShadow MatchMode = "live_shadow"
)

// Entry is a resting order inside the book. Price and quantity are held
// as integer ticks and lots.
type Entry struct {
	OrderID int64
	Side    Side
	Tick    int64
	Lots    int64
	Time    int64 // 17-digit exchange timestamp at arrival
	Seq     int64 // global arrival sequence
	Origin  Origin
}
