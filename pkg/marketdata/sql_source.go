package marketdata

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/joripage/marketreplay/pkg/backtest/model"
)

// ArchiveOrder is one order-channel row persisted to Postgres.
type ArchiveOrder struct {
	ID          int64
	Symbol      string
	TradingDate int64
	MDTime      int64
	RecvTime    int64
	OrderNo     int64
	BSFlag      int32
	OrderType   int32
	Price       float64
	Qty         float64
	ApplSeq     int64
}

// ArchiveTrade is one trade-channel row persisted to Postgres.
type ArchiveTrade struct {
	ID          int64
	Symbol      string
	TradingDate int64
	MDTime      int64
	RecvTime    int64
	BuyNo       int64
	SellNo      int64
	BSFlag      int32
	TradeType   int32
	Price       float64
	Qty         float64
	ApplSeq     int64
}

// InstrumentRecord maps a symbol to its instrument kind.
type InstrumentRecord struct {
	Symbol string
	Kind   string
}

func (InstrumentRecord) TableName() string {
	return "instruments"
}

// SQLSource reads archived feeds from Postgres. The same type carries
// the insert side used when archiving vendor files.
type SQLSource struct {
	db *gorm.DB
}

func NewSQLSource(db *gorm.DB) *SQLSource {
	return &SQLSource{
		db: db,
	}
}

func (s *SQLSource) dbWithContext(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (s *SQLSource) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLSource) InstrumentKind(ctx context.Context, symbol string, date int64) (model.InstrumentKind, error) {
	var rec InstrumentRecord
	err := s.dbWithContext(ctx).Where("symbol = ?", symbol).First(&rec).Error
	if err == nil {
		return model.InstrumentKind(rec.Kind), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("query instrument %s: %w", symbol, err)
	}

	// archived rows without an instruments entry still replay as stocks
	var n int64
	if err := s.dbWithContext(ctx).Model(&ArchiveTrade{}).
		Where("symbol = ? AND trading_date = ?", symbol, date).
		Count(&n).Error; err != nil {
		return "", fmt.Errorf("count archive trades for %s: %w", symbol, err)
	}
	if n == 0 {
		return "", fmt.Errorf("%w: %s on %d has no archived rows", ErrDataNotFound, symbol, date)
	}
	return model.KindStock, nil
}

func (s *SQLSource) LoadOrders(ctx context.Context, symbol string, date int64) ([]OrderRow, error) {
	var recs []ArchiveOrder
	err := s.dbWithContext(ctx).
		Where("symbol = ? AND trading_date = ?", symbol, date).
		Order("appl_seq").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("query archive orders for %s: %w", symbol, err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: no archived orders for %s on %d", ErrDataNotFound, symbol, date)
	}

	rows := make([]OrderRow, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, OrderRow{
			Date:     rec.TradingDate,
			Time:     rec.MDTime,
			RecvTime: rec.RecvTime,
			No:       rec.OrderNo,
			BSFlag:   rec.BSFlag,
			Type:     rec.OrderType,
			Price:    rec.Price,
			Qty:      rec.Qty,
			Seq:      rec.ApplSeq,
		})
	}
	return rows, nil
}

func (s *SQLSource) LoadTrades(ctx context.Context, symbol string, date int64) ([]TradeRow, error) {
	var recs []ArchiveTrade
	err := s.dbWithContext(ctx).
		Where("symbol = ? AND trading_date = ?", symbol, date).
		Order("appl_seq").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("query archive trades for %s: %w", symbol, err)
	}

	rows := make([]TradeRow, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, TradeRow{
			Date:     rec.TradingDate,
			Time:     rec.MDTime,
			RecvTime: rec.RecvTime,
			BuyNo:    rec.BuyNo,
			SellNo:   rec.SellNo,
			BSFlag:   rec.BSFlag,
			Type:     rec.TradeType,
			Price:    rec.Price,
			Qty:      rec.Qty,
			Seq:      rec.ApplSeq,
		})
	}
	return rows, nil
}

// SaveOrders archives order rows in batches.
func (s *SQLSource) SaveOrders(ctx context.Context, symbol string, rows []OrderRow) error {
	if len(rows) == 0 {
		return nil
	}
	recs := make([]*ArchiveOrder, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, &ArchiveOrder{
			Symbol:      symbol,
			TradingDate: r.Date,
			MDTime:      r.Time,
			RecvTime:    r.RecvTime,
			OrderNo:     r.No,
			BSFlag:      r.BSFlag,
			OrderType:   r.Type,
			Price:       r.Price,
			Qty:         r.Qty,
			ApplSeq:     r.Seq,
		})
	}
	return s.dbWithContext(ctx).CreateInBatches(recs, 500).Error
}

// SaveTrades archives trade rows in batches.
func (s *SQLSource) SaveTrades(ctx context.Context, symbol string, rows []TradeRow) error {
	if len(rows) == 0 {
		return nil
	}
	recs := make([]*ArchiveTrade, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, &ArchiveTrade{
			Symbol:      symbol,
			TradingDate: r.Date,
			MDTime:      r.Time,
			RecvTime:    r.RecvTime,
			BuyNo:       r.BuyNo,
			SellNo:      r.SellNo,
			BSFlag:      r.BSFlag,
			TradeType:   r.Type,
			Price:       r.Price,
			Qty:         r.Qty,
			ApplSeq:     r.Seq,
		})
	}
	return s.dbWithContext(ctx).CreateInBatches(recs, 500).Error
}

// SaveInstrument records the instrument kind used when archiving.
func (s *SQLSource) SaveInstrument(ctx context.Context, symbol string, kind model.InstrumentKind) error {
	rec := &InstrumentRecord{Symbol: symbol, Kind: string(kind)}
	return s.dbWithContext(ctx).
		Where("symbol = ?", symbol).
		FirstOrCreate(rec).Error
}

// Archive persists one instrument-day in a single call.
func (s *SQLSource) Archive(ctx context.Context, symbol string, date int64, kind model.InstrumentKind, orders []OrderRow, trades []TradeRow) error {
	if err := s.SaveInstrument(ctx, symbol, kind); err != nil {
		return err
	}
	if err := s.SaveOrders(ctx, symbol, orders); err != nil {
		return err
	}
	return s.SaveTrades(ctx, symbol, trades)
}
