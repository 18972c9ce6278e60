package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Exchange string

const (
	ExchangeSH Exchange = "SH"
	ExchangeSZ Exchange = "SZ"
)

type InstrumentKind string

const (
	KindStock InstrumentKind = "stock"
	KindFund  InstrumentKind = "fund"
)

var (
	tickSizeStock = decimal.NewFromFloat(0.01)
	tickSizeFund  = decimal.NewFromFloat(0.001)
)

// Instrument is immutable once loaded.
type Instrument struct {
	Symbol   string
	Exchange Exchange
	Kind     InstrumentKind
	TickSize decimal.Decimal
	LotSize  decimal.Decimal
}

// ParseExchange extracts the market code from a suffixed symbol,
// e.g. "688007.SH" -> SH.
func ParseExchange(symbol string) (Exchange, error) {
	idx := strings.LastIndex(symbol, ".")
	if idx < 0 || idx == len(symbol)-1 {
		return "", fmt.Errorf("symbol %q has no market suffix", symbol)
	}
	switch Exchange(symbol[idx+1:]) {
	case ExchangeSH:
		return ExchangeSH, nil
	case ExchangeSZ:
		return ExchangeSZ, nil
	default:
		return "", fmt.Errorf("symbol %q has unsupported market suffix", symbol)
	}
}

// NewInstrument builds an instrument with the tick size of its kind.
func NewInstrument(symbol string, kind InstrumentKind) (*Instrument, error) {
	exchange, err := ParseExchange(symbol)
	if err != nil {
		return nil, err
	}

	var tick decimal.Decimal
	switch kind {
	case KindStock:
		tick = tickSizeStock
	case KindFund:
		tick = tickSizeFund
	default:
		return nil, fmt.Errorf("unsupported instrument kind %q", kind)
	}

	return &Instrument{
		Symbol:   symbol,
		Exchange: exchange,
		Kind:     kind,
		TickSize: tick,
		LotSize:  decimal.NewFromInt(1),
	}, nil
}

// PriceToTick converts a decimal price to integer ticks, rounding to the
// nearest tick.
func (i *Instrument) PriceToTick(price decimal.Decimal) int64 {
	return price.Div(i.TickSize).Round(0).IntPart()
}

// TickToPrice converts integer ticks back to a decimal price.
func (i *Instrument) TickToPrice(tick int64) decimal.Decimal {
	return decimal.NewFromInt(tick).Mul(i.TickSize)
}

// QuantityToLots converts a decimal quantity to integer lots.
func (i *Instrument) QuantityToLots(qty decimal.Decimal) int64 {
	return qty.Div(i.LotSize).Round(0).IntPart()
}

// LotsToQuantity converts integer lots back to a decimal quantity.
func (i *Instrument) LotsToQuantity(lots int64) decimal.Decimal {
	return decimal.NewFromInt(lots).Mul(i.LotSize)
}

// TickAligned reports whether price is an exact multiple of the tick size.
func (i *Instrument) TickAligned(price decimal.Decimal) bool {
	return price.Mod(i.TickSize).IsZero()
}

// LotAligned reports whether qty is an exact multiple of the lot size.
func (i *Instrument) LotAligned(qty decimal.Decimal) bool {
	return qty.Mod(i.LotSize).IsZero()
}
