package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	log "github.com/sirupsen/logrus"
	"github.com/zulandar/boardcore/internal/board"
	"github.com/zulandar/boardcore/internal/cache"
	"github.com/zulandar/boardcore/internal/card"
	"github.com/zulandar/boardcore/internal/config"
	"github.com/zulandar/boardcore/internal/db"
	"github.com/zulandar/boardcore/internal/logging"
	"github.com/zulandar/boardcore/internal/store"
	"gorm.io/gorm"
)

// env is everything a command needs to talk to the store.
type env struct {
	cfg    *config.Config
	db     *gorm.DB
	logger *log.Logger
	cache  *cache.Cards
	cards  *card.Service
	boards *board.Service
}

func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s database: %w", cfg.Database.Driver, err)
	}

	return cfg, gormDB, nil
}

// openEnv connects to the configured store and builds the services. The
// Redis cache is optional: when it cannot be reached the command runs
// without it.
func openEnv(cmd *cobra.Command, configPath string) (*env, error) {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewWithOutput(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	e := &env{cfg: cfg, db: gormDB, logger: logger}
	if cfg.Cache.RedisURL != "" {
		c, err := cache.Open(cmd.Context(), cfg.Cache.RedisURL, cfg.Cache.TTL)
		if err != nil {
			logger.WithError(err).Warn("cache: disabled")
		} else {
			e.cache = c
		}
	}

	st := store.New(gormDB, store.Options{
		TxTimeout:  cfg.Database.TxTimeout,
		MaxRetries: cfg.Database.MaxRetries,
		Logger:     logger,
	})
	e.cards = card.NewService(st,
		card.WithLogger(logger),
		card.WithCache(e.cache),
		card.WithMaxDependencyNodes(cfg.Engine.MaxDependencyNodes),
	)
	e.boards = board.NewService(st, board.WithLogger(logger), board.WithCache(e.cache))
	return e, nil
}

func (e *env) Close() {
	e.cache.Close()
	if sqlDB, err := e.db.DB(); err == nil {
		sqlDB.Close()
	}
}

// parseDate accepts RFC 3339 timestamps or plain dates. Empty means unset.
func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid date %q (want YYYY-MM-DD or RFC 3339)", s)
}
