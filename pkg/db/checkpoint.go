package db

import (
	"context"
	"fmt"
	"time"
)

// initObserverProgress creates the checkpoint infrastructure:
// 1. Base table (MergeTree) - append-only log of observed ledger heads
// 2. Aggregate table (AggregatingMergeTree) - max head state per token
// 3. Materialized view - updates the aggregate on every insert
//
// Reading max() over the log makes checkpoint advancement structurally
// monotonic: inserting a lower head can never lower the maximum, so a
// concurrent or duplicate run regressing the checkpoint is impossible.
func (s *Store) initObserverProgress(ctx context.Context) error {
	ddlBase := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."observer_progress" (
			token String,
			head UInt64,
			observed_at DateTime64(6)
		) ENGINE = MergeTree()
		ORDER BY (token, head)
	`, s.Name)
	if err := s.Exec(ctx, ddlBase); err != nil {
		return fmt.Errorf("create observer_progress table: %w", err)
	}

	ddlAgg := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."observer_progress_agg" (
			token String,
			max_head AggregateFunction(max, UInt64)
		) ENGINE = AggregatingMergeTree()
		ORDER BY (token)
	`, s.Name)
	if err := s.Exec(ctx, ddlAgg); err != nil {
		return fmt.Errorf("create observer_progress_agg table: %w", err)
	}

	ddlMV := fmt.Sprintf(`
		CREATE MATERIALIZED VIEW IF NOT EXISTS "%s"."observer_progress_mv"
		TO "%s"."observer_progress_agg" AS
		SELECT
			token,
			maxState(head) AS max_head
		FROM "%s"."observer_progress"
		GROUP BY token
	`, s.Name, s.Name, s.Name)
	if err := s.Exec(ctx, ddlMV); err != nil {
		return fmt.Errorf("create observer_progress_mv: %w", err)
	}

	return nil
}

// Checkpoint returns the highest observed ledger head for the tracked token,
// or nil when no run has completed yet.
// 1) Prefer the summarized aggregate table.
// 2) Fallback to max(head) from the raw log if the aggregate is empty.
func (s *Store) Checkpoint(ctx context.Context) (*uint64, error) {
	var h uint64
	query := fmt.Sprintf(`SELECT maxMerge(max_head) FROM "%s"."observer_progress_agg" WHERE token = ?`, s.Name)
	err := s.QueryRow(ctx, query, s.RewardToken).Scan(&h)

	if err == nil && h != 0 {
		return &h, nil
	}

	// Fallback to the base table (e.g., very first rows, or agg read error)
	var count, fallback uint64
	fallbackQuery := fmt.Sprintf(`SELECT count(), max(head) FROM "%s"."observer_progress" WHERE token = ?`, s.Name)
	if err := s.QueryRow(ctx, fallbackQuery, s.RewardToken).Scan(&count, &fallback); err != nil {
		return nil, fmt.Errorf("read checkpoint failed: %w", err)
	}
	if count == 0 {
		return nil, nil
	}
	return &fallback, nil
}

// AdvanceCheckpoint records a newly observed head. Appending is enough: the
// checkpoint is read as a maximum, so values at or below the current one are
// effectively a no-op.
func (s *Store) AdvanceCheckpoint(ctx context.Context, head uint64) error {
	query := fmt.Sprintf(`
		INSERT INTO "%s"."observer_progress" (token, head, observed_at)
		VALUES (?, ?, ?)
	`, s.Name)
	if err := s.Exec(ctx, query, s.RewardToken, head, time.Now().UTC()); err != nil {
		return fmt.Errorf("advance checkpoint to %d: %w", head, err)
	}
	return nil
}
