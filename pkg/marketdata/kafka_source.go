package marketdata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	kafka "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/joripage/marketreplay/pkg/backtest/model"
	kafka_wrapper "github.com/joripage/marketreplay/pkg/infra/kafka"
)

const defaultTopicPrefix = "marketreplay.md"

// KafkaSource drains per instrument-day topics up to the high-water
// mark recorded at open. Messages are wireRow envelopes, so one topic
// carries both feeds and the instrument kind.
type KafkaSource struct {
	cfg  *kafka_wrapper.KafkaConfig
	prod *kafka_wrapper.Producer

	mu   sync.Mutex
	days map[string]*drainedDay
}

type drainedDay struct {
	kind   model.InstrumentKind
	orders []OrderRow
	trades []TradeRow
}

func NewKafkaSource(cfg *kafka_wrapper.KafkaConfig) *KafkaSource {
	return &KafkaSource{
		cfg:  cfg,
		prod: kafka_wrapper.NewProducer(cfg),
		days: make(map[string]*drainedDay),
	}
}

func (s *KafkaSource) Close() error {
	return s.prod.Close()
}

func (s *KafkaSource) topic(symbol string, date int64) string {
	prefix := s.cfg.TopicPrefix
	if prefix == "" {
		prefix = defaultTopicPrefix
	}
	return fmt.Sprintf("%s.%s.%d", prefix, symbol, date)
}

func (s *KafkaSource) InstrumentKind(ctx context.Context, symbol string, date int64) (model.InstrumentKind, error) {
	day, err := s.drain(ctx, symbol, date)
	if err != nil {
		return "", err
	}
	if day.kind == "" {
		// staged envelopes without a kind still replay as stocks
		return model.KindStock, nil
	}
	return day.kind, nil
}

func (s *KafkaSource) LoadOrders(ctx context.Context, symbol string, date int64) ([]OrderRow, error) {
	day, err := s.drain(ctx, symbol, date)
	if err != nil {
		return nil, err
	}
	if len(day.orders) == 0 {
		return nil, fmt.Errorf("%w: %s carries no order rows", ErrDataNotFound, s.topic(symbol, date))
	}
	return day.orders, nil
}

func (s *KafkaSource) LoadTrades(ctx context.Context, symbol string, date int64) ([]TradeRow, error) {
	day, err := s.drain(ctx, symbol, date)
	if err != nil {
		return nil, err
	}
	return day.trades, nil
}

// drain reads the whole topic once and caches the decoded rows, so the
// kind probe and the two feed loads cost a single pass.
func (s *KafkaSource) drain(ctx context.Context, symbol string, date int64) (*drainedDay, error) {
	key := fmt.Sprintf("%s:%d", symbol, date)

	s.mu.Lock()
	defer s.mu.Unlock()
	if day, ok := s.days[key]; ok {
		return day, nil
	}

	topic := s.topic(symbol, date)
	day, err := s.readTopic(ctx, topic)
	if err != nil {
		return nil, err
	}
	s.days[key] = day
	return day, nil
}

func (s *KafkaSource) readTopic(ctx context.Context, topic string) (*drainedDay, error) {
	conn, err := kafka.DialLeader(ctx, "tcp", s.cfg.Brokers[0], topic, 0)
	if err != nil {
		if errors.Is(err, kafka.UnknownTopicOrPartition) {
			return nil, fmt.Errorf("%w: topic %s does not exist", ErrDataNotFound, topic)
		}
		return nil, fmt.Errorf("dial leader for %s: %w", topic, err)
	}
	defer conn.Close()

	deadline, ok := ctx.Deadline()
	if !ok {
		timeout := time.Duration(s.cfg.ReadTimeoutSeconds) * time.Second
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		deadline = time.Now().Add(timeout)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set deadline for %s: %w", topic, err)
	}

	first, err := conn.ReadFirstOffset()
	if err != nil {
		return nil, fmt.Errorf("read first offset of %s: %w", topic, err)
	}
	last, err := conn.ReadLastOffset()
	if err != nil {
		return nil, fmt.Errorf("read last offset of %s: %w", topic, err)
	}
	if first == last {
		return nil, fmt.Errorf("%w: topic %s is empty", ErrDataNotFound, topic)
	}
	if _, err := conn.Seek(first, kafka.SeekAbsolute); err != nil {
		return nil, fmt.Errorf("seek %s to %d: %w", topic, first, err)
	}

	day := &drainedDay{}
	offset := first
	for offset < last {
		batch := conn.ReadBatch(1, 10<<20)
		for {
			msg, err := batch.ReadMessage()
			if err != nil {
				break
			}
			offset = msg.Offset + 1
			if err := day.apply(topic, msg.Offset, msg.Value); err != nil {
				_ = batch.Close()
				return nil, err
			}
		}
		if err := batch.Close(); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read batch from %s: %w", topic, err)
		}
	}

	zap.S().Debugf("drained %s: %d orders, %d trades", topic, len(day.orders), len(day.trades))
	return day, nil
}

func (day *drainedDay) apply(topic string, offset int64, value []byte) error {
	w, err := decodeWireRow(value)
	if err != nil {
		return fmt.Errorf("%w: %s@%d: %v", ErrCorruptData, topic, offset, err)
	}
	if w.Kind != "" {
		day.kind = model.InstrumentKind(w.Kind)
	}
	switch w.Table {
	case wireTableOrders:
		day.orders = append(day.orders, *w.Order)
	case wireTableTrades:
		day.trades = append(day.trades, *w.Trade)
	}
	return nil
}

// StageOrders publishes order rows keyed by symbol so one partition
// keeps them in publish order.
func (s *KafkaSource) StageOrders(ctx context.Context, symbol string, date int64, kind model.InstrumentKind, rows []OrderRow) error {
	topic := s.topic(symbol, date)
	for i := range rows {
		w := wireRow{Table: wireTableOrders, Kind: string(kind), Order: &rows[i]}
		if err := s.prod.PublishJSON(ctx, topic, symbol, w); err != nil {
			return fmt.Errorf("publish order row %d to %s: %w", i, topic, err)
		}
	}
	return nil
}

// StageTrades publishes trade rows keyed by symbol.
func (s *KafkaSource) StageTrades(ctx context.Context, symbol string, date int64, kind model.InstrumentKind, rows []TradeRow) error {
	topic := s.topic(symbol, date)
	for i := range rows {
		w := wireRow{Table: wireTableTrades, Kind: string(kind), Trade: &rows[i]}
		if err := s.prod.PublishJSON(ctx, topic, symbol, w); err != nil {
			return fmt.Errorf("publish trade row %d to %s: %w", i, topic, err)
		}
	}
	return nil
}

// Archive publishes one instrument-day in a single call.
func (s *KafkaSource) Archive(ctx context.Context, symbol string, date int64, kind model.InstrumentKind, orders []OrderRow, trades []TradeRow) error {
	if err := s.StageOrders(ctx, symbol, date, kind, orders); err != nil {
		return err
	}
	return s.StageTrades(ctx, symbol, date, kind, trades)
}
