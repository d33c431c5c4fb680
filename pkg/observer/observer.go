// Package observer folds on-chain reward transfers into the daily earnings
// aggregate, advancing a monotonic block checkpoint.
package observer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stationhq/stationstats/pkg/ledger"
	"go.uber.org/zap"
)

// CheckpointStore persists the highest ledger block whose events have been
// durably folded into aggregates.
type CheckpointStore interface {
	// Checkpoint returns the stored block number, or nil when none exists yet.
	Checkpoint(ctx context.Context) (*uint64, error)
	// AdvanceCheckpoint records a new head. Implementations must be monotonic:
	// a value at or below the current checkpoint is a no-op.
	AdvanceCheckpoint(ctx context.Context, head uint64) error
}

// AggregateStore accumulates transfer amounts per (day, recipient).
type AggregateStore interface {
	// UpsertAdditive increments the amount for the key, creating it on first
	// observation. Repeating the same call adds again; dedup is the caller's
	// problem.
	UpsertAdditive(ctx context.Context, day time.Time, recipient string, amount float64) error
}

// LedgerSource is the chain query collaborator.
type LedgerSource interface {
	Head(ctx context.Context) (uint64, error)
	TransferEvents(ctx context.Context, fromBlock *uint64, toBlock uint64) ([]ledger.TransferEvent, error)
	// MaxLookback is the widest block span usable for a narrowed retry after
	// a retention rejection.
	MaxLookback() uint64
}

// Result summarizes one observation run.
type Result struct {
	EventsApplied int
	NewCheckpoint uint64
}

// Observer runs the observe cycle: read checkpoint, query events up to head,
// apply them additively, then advance the checkpoint last so a partially
// failed run is re-observed wholesale on the next invocation.
type Observer struct {
	Checkpoints CheckpointStore
	Aggregates  AggregateStore
	Ledger      LedgerSource
	Logger      *zap.Logger

	// Now is the injected clock used to pick the aggregation day. Defaults to
	// time.Now.
	Now func() time.Time
}

// Observe performs a single run. Events are bucketed under the observation
// wall-clock day, not their on-chain day; a delayed run files old events under
// today.
func (o *Observer) Observe(ctx context.Context) (*Result, error) {
	checkpoint, err := o.Checkpoints.Checkpoint(ctx)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	head, err := o.Ledger.Head(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger head: %w", err)
	}

	events, err := o.queryEvents(ctx, checkpoint, head)
	if err != nil {
		return nil, err
	}

	day := o.observationDay()
	for i, ev := range events {
		if err := o.Aggregates.UpsertAdditive(ctx, day, ev.Recipient, ev.Amount); err != nil {
			// Abort without advancing: the whole range is re-observed next run.
			return nil, fmt.Errorf("apply event %d/%d (block %d): %w", i+1, len(events), ev.BlockNumber, err)
		}
	}

	if checkpoint == nil || head > *checkpoint {
		if err := o.Checkpoints.AdvanceCheckpoint(ctx, head); err != nil {
			return nil, fmt.Errorf("advance checkpoint: %w", err)
		}
	}

	o.Logger.Info("Observation run complete",
		zap.Int("events_applied", len(events)),
		zap.Uint64("new_checkpoint", head))

	return &Result{EventsApplied: len(events), NewCheckpoint: head}, nil
}

// queryEvents requests the full range and, on a retention rejection, retries
// exactly once with the provider's maximum lookback window. The narrowed
// attempt's outcome is final for the run.
func (o *Observer) queryEvents(ctx context.Context, checkpoint *uint64, head uint64) ([]ledger.TransferEvent, error) {
	events, err := o.Ledger.TransferEvents(ctx, checkpoint, head)
	if err == nil {
		return events, nil
	}
	if !errors.Is(err, ledger.ErrRangeUnsupported) {
		return nil, fmt.Errorf("query transfer events: %w", err)
	}

	narrowed := uint64(0)
	if lookback := o.Ledger.MaxLookback(); head > lookback {
		narrowed = head - lookback
	}
	o.Logger.Warn("Requested range outside provider retention, retrying narrowed",
		zap.Uint64("narrowed_from", narrowed),
		zap.Uint64("head", head))

	events, err = o.Ledger.TransferEvents(ctx, &narrowed, head)
	if err != nil {
		return nil, fmt.Errorf("narrowed transfer event query: %w", err)
	}
	return events, nil
}

func (o *Observer) observationDay() time.Time {
	now := time.Now
	if o.Now != nil {
		now = o.Now
	}
	t := now().UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
