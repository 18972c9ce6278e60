package marketdata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/parquet-go/parquet-go"
	"go.uber.org/zap"

	"github.com/joripage/marketreplay/pkg/backtest/model"
)

// FileConfig points at a local tree of monthly auction parquet files as
// delivered by the data vendor:
//
//	XSHE_Stock_Order_Auction_Month/month=202312/XSHE_Stock_Order_Auction_000001.SZ_202312.parquet
type FileConfig struct {
	DataPath string `yaml:"data_path"`
}

// FileSource reads the vendor parquet layout. Whether a symbol is a
// stock or a fund is discovered by probing both paths once and cached.
type FileSource struct {
	dataPath string

	mu    sync.Mutex
	kinds map[string]model.InstrumentKind
}

func NewFileSource(cfg *FileConfig) *FileSource {
	return &FileSource{
		dataPath: cfg.DataPath,
		kinds:    make(map[string]model.InstrumentKind),
	}
}

func (s *FileSource) Close() error { return nil }

const (
	tableOrder       = "Order"
	tableTransaction = "Transaction"
)

func marketCode(exchange model.Exchange) string {
	if exchange == model.ExchangeSZ {
		return "XSHE"
	}
	return "XSHG"
}

func kindCode(kind model.InstrumentKind) string {
	if kind == model.KindFund {
		return "Fund"
	}
	return "Stock"
}

func (s *FileSource) feedPath(symbol string, exchange model.Exchange, kind model.InstrumentKind, table string, date int64) string {
	market := marketCode(exchange)
	kindStr := kindCode(kind)
	month := date / 100
	return filepath.Join(
		s.dataPath,
		fmt.Sprintf("%s_%s_%s_Auction_Month", market, kindStr, table),
		fmt.Sprintf("month=%d", month),
		fmt.Sprintf("%s_%s_%s_Auction_%s_%d.parquet", market, kindStr, table, symbol, month),
	)
}

// InstrumentKind probes the Stock paths first, then Fund, for either
// feed table.
func (s *FileSource) InstrumentKind(_ context.Context, symbol string, date int64) (model.InstrumentKind, error) {
	s.mu.Lock()
	if kind, ok := s.kinds[symbol]; ok {
		s.mu.Unlock()
		return kind, nil
	}
	s.mu.Unlock()

	exchange, err := model.ParseExchange(symbol)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDataNotFound, err)
	}

	for _, table := range []string{tableOrder, tableTransaction} {
		for _, kind := range []model.InstrumentKind{model.KindStock, model.KindFund} {
			path := s.feedPath(symbol, exchange, kind, table, date)
			if _, err := os.Stat(path); err == nil {
				s.mu.Lock()
				s.kinds[symbol] = kind
				s.mu.Unlock()
				return kind, nil
			}
		}
	}
	return "", fmt.Errorf("%w: no feed files for %s on %d under %s", ErrDataNotFound, symbol, date, s.dataPath)
}

func (s *FileSource) LoadOrders(ctx context.Context, symbol string, date int64) ([]OrderRow, error) {
	exchange, kind, err := s.resolve(ctx, symbol, date)
	if err != nil {
		return nil, err
	}
	path := s.feedPath(symbol, exchange, kind, tableOrder, date)
	rows, err := readOrderFile(path, exchange, date)
	if err != nil {
		return nil, err
	}
	zap.S().Debugf("loaded %d order rows from %s", len(rows), path)
	return rows, nil
}

func (s *FileSource) LoadTrades(ctx context.Context, symbol string, date int64) ([]TradeRow, error) {
	exchange, kind, err := s.resolve(ctx, symbol, date)
	if err != nil {
		return nil, err
	}
	path := s.feedPath(symbol, exchange, kind, tableTransaction, date)
	rows, err := readTradeFile(path, date)
	if err != nil {
		return nil, err
	}
	zap.S().Debugf("loaded %d trade rows from %s", len(rows), path)
	return rows, nil
}

func (s *FileSource) resolve(ctx context.Context, symbol string, date int64) (model.Exchange, model.InstrumentKind, error) {
	exchange, err := model.ParseExchange(symbol)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrDataNotFound, err)
	}
	kind, err := s.InstrumentKind(ctx, symbol, date)
	if err != nil {
		return "", "", err
	}
	return exchange, kind, nil
}

// orderColumns maps feed column names to leaf indices; -1 marks an
// absent column.
type orderColumns struct {
	date, time, recv, no, bsFlag, ordType, price, qty, seq, status int
}

func readOrderFile(path string, exchange model.Exchange, date int64) ([]OrderRow, error) {
	pf, closer, err := openParquet(path)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	schema := pf.Schema()
	cols := orderColumns{
		date:    leafIndex(schema, "MDDate"),
		time:    leafIndex(schema, "MDTime"),
		recv:    leafIndex(schema, "ReceiveDateTime"),
		bsFlag:  leafIndex(schema, "OrderBSFlag"),
		ordType: leafIndex(schema, "OrderType"),
		price:   leafIndex(schema, "OrderPrice"),
		qty:     leafIndex(schema, "OrderQty"),
		seq:     leafIndex(schema, "ApplSeqNum"),
		status:  leafIndex(schema, "SecurityStatus"),
	}
	// Shenzhen numbers orders by OrderIndex; Shanghai carries a separate
	// OrderNO and uses OrderIndex only for message ordering.
	if exchange == model.ExchangeSZ {
		cols.no = leafIndex(schema, "OrderIndex")
		if cols.no < 0 {
			cols.no = leafIndex(schema, "OrderNO")
		}
	} else {
		cols.no = leafIndex(schema, "OrderNO")
	}
	for name, idx := range map[string]int{
		"MDDate": cols.date, "MDTime": cols.time, "OrderBSFlag": cols.bsFlag,
		"OrderType": cols.ordType, "OrderPrice": cols.price, "OrderQty": cols.qty,
		"ApplSeqNum": cols.seq, "order number": cols.no,
	} {
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s: column %s missing", ErrCorruptData, path, name)
		}
	}

	var out []OrderRow
	err = scanRows(pf, func(row parquet.Row) {
		var r OrderRow
		halted := false
		for _, v := range row {
			switch v.Column() {
			case cols.date:
				r.Date = valueInt64(v)
			case cols.time:
				r.Time = valueInt64(v)
			case cols.recv:
				r.RecvTime = valueInt64(v)
			case cols.no:
				r.No = valueInt64(v)
			case cols.bsFlag:
				r.BSFlag = int32(valueInt64(v))
			case cols.ordType:
				r.Type = int32(valueInt64(v))
			case cols.price:
				r.Price = valueFloat64(v)
			case cols.qty:
				r.Qty = valueFloat64(v)
			case cols.seq:
				r.Seq = valueInt64(v)
			case cols.status:
				halted = !v.IsNull()
			}
		}
		if halted || r.Date != date {
			return
		}
		out = append(out, r)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptData, path, err)
	}
	return out, nil
}

type tradeColumns struct {
	date, time, recv, buyNo, sellNo, bsFlag, trdType, price, qty, seq int
}

func readTradeFile(path string, date int64) ([]TradeRow, error) {
	pf, closer, err := openParquet(path)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	schema := pf.Schema()
	cols := tradeColumns{
		date:    leafIndex(schema, "MDDate"),
		time:    leafIndex(schema, "MDTime"),
		recv:    leafIndex(schema, "ReceiveDateTime"),
		buyNo:   leafIndex(schema, "TradeBuyNo"),
		sellNo:  leafIndex(schema, "TradeSellNo"),
		bsFlag:  leafIndex(schema, "TradeBSFlag"),
		trdType: leafIndex(schema, "TradeType"),
		price:   leafIndex(schema, "TradePrice"),
		qty:     leafIndex(schema, "TradeQty"),
		seq:     leafIndex(schema, "ApplSeqNum"),
	}
	for name, idx := range map[string]int{
		"MDDate": cols.date, "MDTime": cols.time, "TradeBuyNo": cols.buyNo,
		"TradeSellNo": cols.sellNo, "TradeBSFlag": cols.bsFlag, "TradeType": cols.trdType,
		"TradePrice": cols.price, "TradeQty": cols.qty, "ApplSeqNum": cols.seq,
	} {
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s: column %s missing", ErrCorruptData, path, name)
		}
	}

	var out []TradeRow
	err = scanRows(pf, func(row parquet.Row) {
		var r TradeRow
		for _, v := range row {
			switch v.Column() {
			case cols.date:
				r.Date = valueInt64(v)
			case cols.time:
				r.Time = valueInt64(v)
			case cols.recv:
				r.RecvTime = valueInt64(v)
			case cols.buyNo:
				r.BuyNo = valueInt64(v)
			case cols.sellNo:
				r.SellNo = valueInt64(v)
			case cols.bsFlag:
				r.BSFlag = int32(valueInt64(v))
			case cols.trdType:
				r.Type = int32(valueInt64(v))
			case cols.price:
				r.Price = valueFloat64(v)
			case cols.qty:
				r.Qty = valueFloat64(v)
			case cols.seq:
				r.Seq = valueInt64(v)
			}
		}
		if r.Date != date {
			return
		}
		out = append(out, r)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptData, path, err)
	}
	return out, nil
}

func openParquet(path string) (*parquet.File, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: %s", ErrDataNotFound, path)
		}
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrCorruptData, path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrCorruptData, path, err)
	}
	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrCorruptData, path, err)
	}
	return pf, f, nil
}

func scanRows(pf *parquet.File, visit func(parquet.Row)) error {
	buf := make([]parquet.Row, 128)
	for _, rg := range pf.RowGroups() {
		rows := rg.Rows()
		for {
			n, err := rows.ReadRows(buf)
			for _, row := range buf[:n] {
				visit(row)
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				rows.Close()
				return err
			}
		}
		if err := rows.Close(); err != nil {
			return err
		}
	}
	return nil
}

func leafIndex(schema *parquet.Schema, name string) int {
	if col, ok := schema.Lookup(name); ok {
		return col.ColumnIndex
	}
	return -1
}

func valueInt64(v parquet.Value) int64 {
	switch v.Kind() {
	case parquet.Int32:
		return int64(v.Int32())
	case parquet.Int64:
		return v.Int64()
	case parquet.Double:
		return int64(v.Double())
	case parquet.Float:
		return int64(v.Float())
	case parquet.ByteArray:
		n, _ := strconv.ParseInt(string(v.ByteArray()), 10, 64)
		return n
	}
	return 0
}

func valueFloat64(v parquet.Value) float64 {
	switch v.Kind() {
	case parquet.Double:
		return v.Double()
	case parquet.Float:
		return float64(v.Float())
	case parquet.Int32:
		return float64(v.Int32())
	case parquet.Int64:
		return float64(v.Int64())
	case parquet.ByteArray:
		f, _ := strconv.ParseFloat(string(v.ByteArray()), 64)
		return f
	}
	return 0
}
