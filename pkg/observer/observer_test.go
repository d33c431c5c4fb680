package observer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stationhq/stationstats/pkg/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCheckpoints struct {
	value      *uint64
	advances   []uint64
	readErr    error
	advanceErr error
}

func (f *fakeCheckpoints) Checkpoint(context.Context) (*uint64, error) {
	return f.value, f.readErr
}

func (f *fakeCheckpoints) AdvanceCheckpoint(_ context.Context, head uint64) error {
	if f.advanceErr != nil {
		return f.advanceErr
	}
	f.advances = append(f.advances, head)
	// Monotonic guard, mirroring the store contract.
	if f.value == nil || head > *f.value {
		f.value = &head
	}
	return nil
}

type appliedEvent struct {
	day       time.Time
	recipient string
	amount    float64
}

type fakeAggregates struct {
	applied []appliedEvent
	failAt  int // 1-based index of the apply call that errors; 0 = never
}

func (f *fakeAggregates) UpsertAdditive(_ context.Context, day time.Time, recipient string, amount float64) error {
	if f.failAt > 0 && len(f.applied)+1 == f.failAt {
		return errors.New("store write timeout")
	}
	f.applied = append(f.applied, appliedEvent{day, recipient, amount})
	return nil
}

type fakeLedger struct {
	head        uint64
	events      []ledger.TransferEvent
	queries     []*uint64
	failFull    error
	failAlways  error
	maxLookback uint64
}

func (f *fakeLedger) Head(context.Context) (uint64, error) { return f.head, nil }

func (f *fakeLedger) MaxLookback() uint64 { return f.maxLookback }

func (f *fakeLedger) TransferEvents(_ context.Context, fromBlock *uint64, _ uint64) ([]ledger.TransferEvent, error) {
	f.queries = append(f.queries, fromBlock)
	if f.failAlways != nil {
		return nil, f.failAlways
	}
	if f.failFull != nil && len(f.queries) == 1 {
		return nil, f.failFull
	}
	return f.events, nil
}

func newObserver(cp *fakeCheckpoints, agg *fakeAggregates, src *fakeLedger) *Observer {
	return &Observer{
		Checkpoints: cp,
		Aggregates:  agg,
		Ledger:      src,
		Logger:      zap.NewNop(),
		Now: func() time.Time {
			return time.Date(2026, 3, 15, 17, 45, 0, 0, time.UTC)
		},
	}
}

func uint64p(v uint64) *uint64 { return &v }

func TestObserve_AppliesEventsAndAdvances(t *testing.T) {
	cp := &fakeCheckpoints{value: uint64p(100)}
	agg := &fakeAggregates{}
	src := &fakeLedger{
		head: 150,
		events: []ledger.TransferEvent{
			{Recipient: "0xaa", Amount: 1.5, BlockNumber: 120},
			{Recipient: "0xbb", Amount: 3.0, BlockNumber: 130},
		},
	}

	res, err := newObserver(cp, agg, src).Observe(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, res.EventsApplied)
	assert.Equal(t, uint64(150), res.NewCheckpoint)
	assert.Equal(t, []uint64{150}, cp.advances)

	require.Len(t, src.queries, 1)
	require.NotNil(t, src.queries[0])
	assert.Equal(t, uint64(100), *src.queries[0])

	day := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	require.Len(t, agg.applied, 2)
	assert.Equal(t, day, agg.applied[0].day)
	assert.Equal(t, day, agg.applied[1].day)
}

func TestObserve_SameRecipientAccumulatesAdditively(t *testing.T) {
	cp := &fakeCheckpoints{}
	agg := &fakeAggregates{}
	src := &fakeLedger{
		head: 50,
		events: []ledger.TransferEvent{
			{Recipient: "0xaa", Amount: 1.0, BlockNumber: 10},
			{Recipient: "0xaa", Amount: 2.5, BlockNumber: 20},
		},
	}

	_, err := newObserver(cp, agg, src).Observe(context.Background())

	require.NoError(t, err)
	// Two separate upserts, not one overwrite: the store sums them.
	require.Len(t, agg.applied, 2)
	assert.Equal(t, 1.0, agg.applied[0].amount)
	assert.Equal(t, 2.5, agg.applied[1].amount)
}

func TestObserve_NoCheckpointQueriesFromGenesis(t *testing.T) {
	cp := &fakeCheckpoints{}
	agg := &fakeAggregates{}
	src := &fakeLedger{head: 50}

	_, err := newObserver(cp, agg, src).Observe(context.Background())

	require.NoError(t, err)
	require.Len(t, src.queries, 1)
	assert.Nil(t, src.queries[0])
	assert.Equal(t, []uint64{50}, cp.advances)
}

func TestObserve_RangeRejectionRetriesNarrowedOnce(t *testing.T) {
	cp := &fakeCheckpoints{value: uint64p(10)}
	agg := &fakeAggregates{}
	src := &fakeLedger{
		head:        10_000,
		maxLookback: 2000,
		failFull:    ledger.ErrRangeUnsupported,
		events:      []ledger.TransferEvent{{Recipient: "0xaa", Amount: 1, BlockNumber: 9000}},
	}

	res, err := newObserver(cp, agg, src).Observe(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, res.EventsApplied)
	require.Len(t, src.queries, 2)
	require.NotNil(t, src.queries[1])
	assert.Equal(t, uint64(8000), *src.queries[1])
}

func TestObserve_NarrowedRetryFailureIsFinal(t *testing.T) {
	cp := &fakeCheckpoints{value: uint64p(10)}
	agg := &fakeAggregates{}
	src := &fakeLedger{
		head:        10_000,
		maxLookback: 2000,
		failAlways:  ledger.ErrRangeUnsupported,
	}

	_, err := newObserver(cp, agg, src).Observe(context.Background())

	require.Error(t, err)
	// Exactly one narrowed retry, no further attempts.
	assert.Len(t, src.queries, 2)
	assert.Empty(t, cp.advances)
}

func TestObserve_GenericQueryErrorIsFatalForRun(t *testing.T) {
	cp := &fakeCheckpoints{value: uint64p(10)}
	agg := &fakeAggregates{}
	src := &fakeLedger{head: 100, failAlways: errors.New("connection reset")}

	_, err := newObserver(cp, agg, src).Observe(context.Background())

	require.Error(t, err)
	assert.Len(t, src.queries, 1)
	assert.Empty(t, agg.applied)
	assert.Empty(t, cp.advances)
}

func TestObserve_PartialApplyDoesNotAdvance(t *testing.T) {
	cp := &fakeCheckpoints{value: uint64p(10)}
	agg := &fakeAggregates{failAt: 2}
	src := &fakeLedger{
		head: 100,
		events: []ledger.TransferEvent{
			{Recipient: "0xaa", Amount: 1, BlockNumber: 20},
			{Recipient: "0xbb", Amount: 2, BlockNumber: 30},
			{Recipient: "0xcc", Amount: 3, BlockNumber: 40},
		},
	}

	_, err := newObserver(cp, agg, src).Observe(context.Background())

	require.Error(t, err)
	assert.Len(t, agg.applied, 1)
	assert.Empty(t, cp.advances)
}

func TestObserve_HeadNotAheadSkipsAdvance(t *testing.T) {
	cp := &fakeCheckpoints{value: uint64p(100)}
	agg := &fakeAggregates{}
	src := &fakeLedger{head: 100}

	res, err := newObserver(cp, agg, src).Observe(context.Background())

	require.NoError(t, err)
	assert.Equal(t, uint64(100), res.NewCheckpoint)
	assert.Empty(t, cp.advances)
}
