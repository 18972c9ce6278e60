package config

import (
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/joripage/marketreplay/pkg/backtest"
	"github.com/joripage/marketreplay/pkg/marketdata"
)

type AppConfig struct {
	ServiceName string           `yaml:"service_name"`
	LogLevel    string           `yaml:"log_level"`
	Engine      *backtest.Config `yaml:"engine"`
	Archive     *ArchiveConfig   `yaml:"archive"`
}

// ArchiveConfig describes one archiving run: which instrument-days to
// read from the vendor file tree and which backend to stage them into.
type ArchiveConfig struct {
	TradingDate int64                    `yaml:"trading_date"`
	Symbols     []string                 `yaml:"symbols"`
	From        *marketdata.FileConfig   `yaml:"from"`
	To          *marketdata.SourceConfig `yaml:"to"`
}

// Load load config from file and environment variables.
func Load(filePath string) (*AppConfig, error) {
	if len(filePath) == 0 {
		filePath = os.Getenv("CONFIG_FILE")
	}

	fields := []interface{}{
		"func",
		"config.readFromFile",
		"filePath",
		filePath,
	}

	sugar := zap.S().With(fields...)

	sugar.Debug("Load config...")
	zap.S().Debugf("CONFIG_FILE=%v", filePath)

	configBytes, err := os.ReadFile(filePath)
	if err != nil {
		sugar.Error("Failed to load config file")
		return nil, err
	}
	configBytes = []byte(os.ExpandEnv(string(configBytes)))

	cfg := &AppConfig{}

	err = yaml.Unmarshal(configBytes, cfg)
	if err != nil {
		sugar.Error("Failed to parse config file")
		return nil, err
	}

	zap.S().Debugf("config: %+v", cfg)

	return cfg, nil
}
