package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/joripage/marketreplay/pkg/backtest/model"
)

// RedisSource reads feeds staged in Redis lists, one JSON row per
// element:
//
//	marketreplay:md:{symbol}:{date}:orders
//	marketreplay:md:{symbol}:{date}:trades
//	marketreplay:md:{symbol}:{date}:kind
type RedisSource struct {
	client *redis.Client
}

func NewRedisSource(client *redis.Client) *RedisSource {
	return &RedisSource{
		client: client,
	}
}

func (s *RedisSource) Close() error {
	return s.client.Close()
}

func redisKey(symbol string, date int64, suffix string) string {
	return fmt.Sprintf("marketreplay:md:%s:%d:%s", symbol, date, suffix)
}

func (s *RedisSource) InstrumentKind(ctx context.Context, symbol string, date int64) (model.InstrumentKind, error) {
	kind, err := s.client.Get(ctx, redisKey(symbol, date, "kind")).Result()
	if err == nil {
		return model.InstrumentKind(kind), nil
	}
	if !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("get kind for %s: %w", symbol, err)
	}

	n, err := s.client.Exists(ctx,
		redisKey(symbol, date, "orders"),
		redisKey(symbol, date, "trades"),
	).Result()
	if err != nil {
		return "", fmt.Errorf("probe keys for %s: %w", symbol, err)
	}
	if n == 0 {
		return "", fmt.Errorf("%w: no staged keys for %s on %d", ErrDataNotFound, symbol, date)
	}
	return model.KindStock, nil
}

func (s *RedisSource) LoadOrders(ctx context.Context, symbol string, date int64) ([]OrderRow, error) {
	key := redisKey(symbol, date, "orders")
	raw, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", key, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrDataNotFound, key)
	}

	rows := make([]OrderRow, 0, len(raw))
	for i, item := range raw {
		var r OrderRow
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			return nil, fmt.Errorf("%w: %s[%d]: %v", ErrCorruptData, key, i, err)
		}
		rows = append(rows, r)
	}
	return rows, nil
}

func (s *RedisSource) LoadTrades(ctx context.Context, symbol string, date int64) ([]TradeRow, error) {
	key := redisKey(symbol, date, "trades")
	raw, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", key, err)
	}

	rows := make([]TradeRow, 0, len(raw))
	for i, item := range raw {
		var r TradeRow
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			return nil, fmt.Errorf("%w: %s[%d]: %v", ErrCorruptData, key, i, err)
		}
		rows = append(rows, r)
	}
	return rows, nil
}

// StageOrders pushes order rows into the staging list.
func (s *RedisSource) StageOrders(ctx context.Context, symbol string, date int64, rows []OrderRow) error {
	return stageRows(ctx, s.client, redisKey(symbol, date, "orders"), len(rows), func(i int) (any, error) {
		return json.Marshal(rows[i])
	})
}

// StageTrades pushes trade rows into the staging list.
func (s *RedisSource) StageTrades(ctx context.Context, symbol string, date int64, rows []TradeRow) error {
	return stageRows(ctx, s.client, redisKey(symbol, date, "trades"), len(rows), func(i int) (any, error) {
		return json.Marshal(rows[i])
	})
}

// StageInstrument records the instrument kind for a staged day.
func (s *RedisSource) StageInstrument(ctx context.Context, symbol string, date int64, kind model.InstrumentKind) error {
	return s.client.Set(ctx, redisKey(symbol, date, "kind"), string(kind), 0).Err()
}

// Archive stages one instrument-day in a single call.
func (s *RedisSource) Archive(ctx context.Context, symbol string, date int64, kind model.InstrumentKind, orders []OrderRow, trades []TradeRow) error {
	if err := s.StageInstrument(ctx, symbol, date, kind); err != nil {
		return err
	}
	if err := s.StageOrders(ctx, symbol, date, orders); err != nil {
		return err
	}
	return s.StageTrades(ctx, symbol, date, trades)
}

func stageRows(ctx context.Context, client *redis.Client, key string, n int, encode func(int) (any, error)) error {
	if n == 0 {
		return nil
	}
	if err := client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}

	pipe := client.Pipeline()
	for i := 0; i < n; i++ {
		payload, err := encode(i)
		if err != nil {
			return fmt.Errorf("encode row %d for %s: %w", i, key, err)
		}
		pipe.RPush(ctx, key, payload)
		if pipe.Len() >= 500 {
			if _, err := pipe.Exec(ctx); err != nil {
				return fmt.Errorf("rpush %s: %w", key, err)
			}
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("rpush %s: %w", key, err)
	}
	return nil
}
