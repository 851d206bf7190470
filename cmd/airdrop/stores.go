package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"airdrop-reconciler/internal/config"
	"airdrop-reconciler/internal/storage"
	chstore "airdrop-reconciler/internal/storage/clickhouse"
	"airdrop-reconciler/internal/storage/migrations"
	"airdrop-reconciler/internal/storage/postgres"
)

// stores holds the optional persistence backends of a command.
type stores struct {
	runs       storage.RunStore
	exclusions storage.ExclusionStore
	snapshots  storage.RewardSnapshotStore

	closers []func()
}

// openStores connects the backends whose DSN is configured and applies
// migrations. ClickHouse is skipped unless withSnapshots is set.
func openStores(ctx context.Context, logger *zap.Logger, cfg *config.Config, withSnapshots bool) (*stores, error) {
	s := &stores{}
	postgresDSN, clickhouseDSN := cfg.Database.PostgresDSN, cfg.Database.ClickHouseDSN
	if !withSnapshots {
		clickhouseDSN = ""
	}

	if postgresDSN != "" {
		pool, err := postgres.NewPool(ctx, postgresDSN, postgres.WithMaxConns(cfg.Database.PostgresMaxConns))
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			s.close()
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}
		s.runs = postgres.NewRunStore(pool)
		s.exclusions = postgres.NewExclusionStore(pool)
		logger.Info("postgres storage enabled")
	}

	if clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		s.closers = append(s.closers, func() { conn.Close() })
		s.snapshots = chstore.NewRewardSnapshotStore(conn)
		logger.Info("clickhouse storage enabled")
	}

	return s, nil
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}
