package marketdata

import (
	"fmt"

	kafka_wrapper "github.com/joripage/marketreplay/pkg/infra/kafka"
	postgres_wrapper "github.com/joripage/marketreplay/pkg/infra/postgres"
	redis_wrapper "github.com/joripage/marketreplay/pkg/infra/redis"
)

// Storage kinds a feed can be loaded from.
const (
	StorageLocal    = "local"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
	StorageKafka    = "kafka"
)

// SourceConfig selects and configures one storage backend.
type SourceConfig struct {
	Storage  string                           `yaml:"storage"`
	File     *FileConfig                      `yaml:"file"`
	Postgres *postgres_wrapper.PostgresConfig `yaml:"postgres"`
	Redis    *redis_wrapper.RedisConfig       `yaml:"redis"`
	Kafka    *kafka_wrapper.KafkaConfig       `yaml:"kafka"`
}

// NewSource opens the configured backend. Remote backends connect here,
// before any simulation starts.
func NewSource(cfg *SourceConfig) (Source, error) {
	switch cfg.Storage {
	case StorageLocal, "":
		if cfg.File == nil {
			return nil, fmt.Errorf("local storage needs a file section")
		}
		return NewFileSource(cfg.File), nil
	case StoragePostgres:
		if cfg.Postgres == nil {
			return nil, fmt.Errorf("postgres storage needs a postgres section")
		}
		db, err := postgres_wrapper.InitPostgresWithRetry(cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		return NewSQLSource(db), nil
	case StorageRedis:
		if cfg.Redis == nil {
			return nil, fmt.Errorf("redis storage needs a redis section")
		}
		client, err := redis_wrapper.InitRedis(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return NewRedisSource(client), nil
	case StorageKafka:
		if cfg.Kafka == nil {
			return nil, fmt.Errorf("kafka storage needs a kafka section")
		}
		return NewKafkaSource(cfg.Kafka), nil
	}
	return nil, fmt.Errorf("unknown storage kind %q", cfg.Storage)
}
