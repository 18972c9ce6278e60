package main

import (
	"encoding/json"
	"flag"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	"github.com/joripage/marketreplay/config"
	"github.com/joripage/marketreplay/pkg/infra"
	postgres_wrapper "github.com/joripage/marketreplay/pkg/infra/postgres"
	"github.com/joripage/marketreplay/pkg/logging"
)

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

	var pg *postgres_wrapper.PostgresConfig
	if cfg.Archive != nil && cfg.Archive.To != nil {
		pg = cfg.Archive.To.Postgres
	}
	if pg == nil && cfg.Engine != nil {
		pg = cfg.Engine.Source.Postgres
	}
	if pg == nil {
		panic("no postgres section in config")
	}

	mgTool := infra.GetMigrateTool()
	mgTool.Migrate("file://migration/sql", pg.MigrationConnURL)
}
