package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/joripage/marketreplay/config"
	"github.com/joripage/marketreplay/pkg/backtest"
	"github.com/joripage/marketreplay/pkg/backtest/model"
	"github.com/joripage/marketreplay/pkg/logging"
)

func main() {
	var (
		configFile string
		symbol     string
		orderTime  int64
		price      float64
		volume     int64
	)
	flag.StringVar(&configFile, "config-file", "", "Specify config file path")
	flag.StringVar(&symbol, "symbol", "688007.SH", "Instrument to replay")
	flag.Int64Var(&orderTime, "order-time", 20231201093939000, "Synthetic order timestamp (YYYYMMDDHHMMSSmmm)")
	flag.Float64Var(&price, "price", 140.70, "Synthetic order price")
	flag.Int64Var(&volume, "volume", 4000, "Synthetic order volume")
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		panic(err)
	}
	defer logging.InitGlobal(logging.ParseLevel(cfg.LogLevel))()

	configBytes, err := json.MarshalIndent(cfg, "", "   ")
	if err != nil {
		zap.S().Warnf("could not convert config to JSON: %v", err)
	} else {
		zap.S().Debugf("load config %s", string(configBytes))
	}
	if cfg.Engine == nil {
		panic("no engine section in config")
	}

	ctx := logging.WithRunID(context.Background(), logging.NewRunID())
	log, ctx := logging.GetLogger(ctx)
	defer log.Sync() // nolint

	engine, err := backtest.NewEngine(cfg.Engine)
	if err != nil {
		log.Fatal(ctx, "create engine", zap.Error(err))
	}
	defer engine.Close() // nolint

	if err := engine.LoadInstrument(ctx, symbol); err != nil {
		log.Fatal(ctx, "load instrument", zap.String("symbol", symbol), zap.Error(err))
	}

	add := &model.AddOrder{
		Symbol:    symbol,
		Timestamp: orderTime,
		Side:      model.OrderSideBuy,
		Price:     decimal.NewFromFloat(price),
		Quantity:  decimal.NewFromInt(volume),
	}
	orderNumber1, err := engine.SendOrder(ctx, add)
	if err != nil {
		log.Fatal(ctx, "send order", zap.Error(err))
	}
	orderNumber2, err := engine.SendOrder(ctx, add)
	if err != nil {
		log.Fatal(ctx, "send order", zap.Error(err))
	}
	log.Info(ctx, "orders queued",
		zap.Int64("order_number_1", orderNumber1),
		zap.Int64("order_number_2", orderNumber2))

	// replay up to the submission time plus ten seconds
	orders, err := engine.ElapseWithOrders(orderTime+10000, nil)
	if err != nil {
		log.Fatal(ctx, "elapse with orders", zap.Error(err))
	}
	printOrders("orders after submission window", orders)

	filled, err := engine.Elapse(20000)
	if err != nil {
		log.Fatal(ctx, "elapse", zap.Error(err))
	}
	printOrders("filled orders", filled)

	printOrders(fmt.Sprintf("finished orders for %s", symbol), engine.GetFinishedOrders(symbol))
	printOrders("pending orders", engine.GetPendingOrders(""))

	fmt.Printf("current time: %d\n", engine.GetCurrentTime())

	printOrders("latest orders", engine.GetLatestOrders())

	snapshot, err := engine.GetCurrentL3Snapshot(symbol)
	if err != nil {
		log.Fatal(ctx, "snapshot", zap.Error(err))
	}
	fmt.Printf("L3 snapshot for %s: %s\n", symbol, snapshot)

	if err := engine.CancelOrder(orderNumber1); err != nil {
		log.Warn(ctx, "cancel order", zap.Int64("order_number", orderNumber1), zap.Error(err))
	} else {
		log.Info(ctx, "order cancelled", zap.Int64("order_number", orderNumber1))
	}

	printOrders("all orders", engine.GetAllOrders())

	stats, err := engine.Statistics(symbol)
	if err != nil {
		log.Fatal(ctx, "statistics", zap.Error(err))
	}
	fmt.Printf("session statistics: volume=%d turnover=%d trades=%d\n",
		stats.TotalVolume(), stats.TotalTurnover(), stats.TotalTrades())
}

func printOrders(label string, orders []model.Order) {
	raw, err := json.MarshalIndent(orders, "", "  ")
	if err != nil {
		zap.S().Warnf("could not convert orders to JSON: %v", err)
		return
	}
	fmt.Printf("%s (%d):\n%s\n", label, len(orders), string(raw))
}
