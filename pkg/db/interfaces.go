package db

import (
	"context"

	"github.com/stationhq/stationstats/pkg/cohort"
)

// StatsStore exposes the subset of store operations the read endpoints use.
type StatsStore interface {
	Ping(ctx context.Context) error
	RetrievalsDaily(ctx context.Context, from, to string) ([]DailyCount, error)
	RetrievalSuccessDaily(ctx context.Context, from, to string) ([]DailySuccessRate, error)
	BandwidthDaily(ctx context.Context, from, to string) ([]DailyBytes, error)
	NodeCountDaily(ctx context.Context, from, to string) ([]DailyCount, error)
	EarningsDaily(ctx context.Context, from, to string) ([]DailyEarnings, error)
	MonthlyCohortsWithBaseline(ctx context.Context, from, to string) ([]cohort.MonthCohort, error)
	TotalRetrievals(ctx context.Context, from, to string) (total, successful uint64, err error)
	TotalBandwidth(ctx context.Context, from, to string) (uint64, error)
	TotalEarnings(ctx context.Context, from, to string) (float64, error)
	PeakNodeCount(ctx context.Context, from, to string) (uint64, error)
}
