package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"

	"go.uber.org/zap"

	"github.com/joripage/marketreplay/config"
	"github.com/joripage/marketreplay/pkg/logging"
	"github.com/joripage/marketreplay/pkg/marketdata"
)

// Copies instrument-days from the local feed directory into a remote
// backend so later runs can replay without the raw files.
func main() {
	var configFile string
	flag.StringVar(&configFile, "config-file", "", "Specify config file path")
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

	if cfg.Archive == nil {
		panic("no archive section in config")
	}
	if err := run(context.Background(), cfg.Archive); err != nil {
		panic(err)
	}
}

func run(ctx context.Context, cfg *config.ArchiveConfig) error {
	if cfg.From == nil {
		return fmt.Errorf("archive needs a from section")
	}
	if cfg.To == nil {
		return fmt.Errorf("archive needs a to section")
	}
	src := marketdata.NewFileSource(cfg.From)
	defer src.Close()

	dst, err := marketdata.NewSource(cfg.To)
	if err != nil {
		return fmt.Errorf("open archive target: %w", err)
	}
	defer dst.Close()

	arch, ok := dst.(marketdata.Archiver)
	if !ok {
		return fmt.Errorf("storage %s cannot be an archive target", cfg.To.Storage)
	}

	for _, symbol := range cfg.Symbols {
		kind, err := src.InstrumentKind(ctx, symbol, cfg.TradingDate)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", symbol, err)
		}
		orders, err := src.LoadOrders(ctx, symbol, cfg.TradingDate)
		if err != nil && !marketdata.IsNotFoundErr(err) {
			return fmt.Errorf("load orders %s: %w", symbol, err)
		}
		trades, err := src.LoadTrades(ctx, symbol, cfg.TradingDate)
		if err != nil && !marketdata.IsNotFoundErr(err) {
			return fmt.Errorf("load trades %s: %w", symbol, err)
		}
		if len(orders) == 0 && len(trades) == 0 {
			zap.S().Warnf("no rows for %s on %d, skipping", symbol, cfg.TradingDate)
			continue
		}
		if err := arch.Archive(ctx, symbol, cfg.TradingDate, kind, orders, trades); err != nil {
			return fmt.Errorf("archive %s: %w", symbol, err)
		}
		zap.S().Infof("archived %s %d: %d orders, %d trades", symbol, cfg.TradingDate, len(orders), len(trades))
	}
	return nil
}
