// Package db is the ClickHouse storage layer shared by the stats API and the
// reward observer: daily retrieval stats, the additive earnings aggregate, and
// the observer's block checkpoint.
package db

import (
	"context"
	"fmt"

	"github.com/stationhq/stationstats/pkg/db/clickhouse"
	"github.com/stationhq/stationstats/pkg/utils"
	"go.uber.org/zap"
)

type Store struct {
	*clickhouse.Client

	// Name is the target database.
	Name string
	// RewardToken keys the observer checkpoint so multiple reward tokens could
	// be tracked in the same tables.
	RewardToken string
}

// New connects to ClickHouse using CLICKHOUSE_ADDR and targets CLICKHOUSE_DB.
func New(ctx context.Context, logger *zap.Logger) (*Store, error) {
	name := utils.Env("CLICKHOUSE_DB", "stationstats")

	client, err := clickhouse.New(ctx, logger, name)
	if err != nil {
		return nil, err
	}

	return &Store{
		Client:      &client,
		Name:        name,
		RewardToken: utils.Env("TOKEN_ADDRESS", ""),
	}, nil
}

// InitializeDB creates the target database and all tables, then switches the
// connection onto it.
func (s *Store) InitializeDB(ctx context.Context) error {
	if err := s.CreateDbIfNotExists(ctx, s.Name); err != nil {
		return fmt.Errorf("create database %s: %w", s.Name, err)
	}
	if err := s.SwitchToTargetDatabase(ctx); err != nil {
		return err
	}

	if err := s.initRetrievalsDaily(ctx); err != nil {
		return err
	}
	if err := s.initEarningsDaily(ctx); err != nil {
		return err
	}
	return s.initObserverProgress(ctx)
}

// initRetrievalsDaily creates the per-node daily retrieval stats table. The
// ingest pipeline writes one row per (day, node) flush; SummingMergeTree folds
// repeated keys, so reads always aggregate with sum()/uniqExact().
func (s *Store) initRetrievalsDaily(ctx context.Context) error {
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."retrievals_daily" (
			day Date,
			node_id String,
			total UInt64,
			successful UInt64,
			bytes_served UInt64
		) ENGINE = SummingMergeTree((total, successful, bytes_served))
		ORDER BY (day, node_id)
	`, s.Name)
	if err := s.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create retrievals_daily table: %w", err)
	}
	return nil
}
