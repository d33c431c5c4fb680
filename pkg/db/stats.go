package db

import (
	"context"
	"fmt"
	"time"
)

// DailyCount is a generic one-value-per-day row.
type DailyCount struct {
	Day   time.Time `json:"day" ch:"day"`
	Count uint64    `json:"count" ch:"count"`
}

// DailyBytes is a bytes-served-per-day row.
type DailyBytes struct {
	Day   time.Time `json:"day" ch:"day"`
	Bytes uint64    `json:"bytes" ch:"bytes"`
}

// DailySuccessRate carries the per-day retrieval outcome totals. SuccessRate
// is nil for days with no retrievals: the rate is undefined there, not zero.
type DailySuccessRate struct {
	Day         time.Time `json:"day"`
	Total       uint64    `json:"total"`
	Successful  uint64    `json:"successful"`
	SuccessRate *float64  `json:"success_rate"`
}

// RetrievalsDaily returns total retrieval counts per day inside the window.
func (s *Store) RetrievalsDaily(ctx context.Context, from, to string) ([]DailyCount, error) {
	query := fmt.Sprintf(`
		SELECT day, sum(total) AS count
		FROM "%s"."retrievals_daily"
		WHERE day >= toDate(?) AND day <= toDate(?)
		GROUP BY day
		ORDER BY day
	`, s.Name)

	var rows []DailyCount
	if err := s.Select(ctx, &rows, query, from, to); err != nil {
		return nil, fmt.Errorf("query retrievals daily failed: %w", err)
	}
	return rows, nil
}

// RetrievalSuccessDaily returns per-day totals with the derived success rate.
func (s *Store) RetrievalSuccessDaily(ctx context.Context, from, to string) ([]DailySuccessRate, error) {
	query := fmt.Sprintf(`
		SELECT day, sum(total) AS total, sum(successful) AS successful
		FROM "%s"."retrievals_daily"
		WHERE day >= toDate(?) AND day <= toDate(?)
		GROUP BY day
		ORDER BY day
	`, s.Name)

	var rows []struct {
		Day        time.Time `ch:"day"`
		Total      uint64    `ch:"total"`
		Successful uint64    `ch:"successful"`
	}
	if err := s.Select(ctx, &rows, query, from, to); err != nil {
		return nil, fmt.Errorf("query retrieval success daily failed: %w", err)
	}

	out := make([]DailySuccessRate, 0, len(rows))
	for _, r := range rows {
		out = append(out, DailySuccessRate{
			Day:         r.Day,
			Total:       r.Total,
			Successful:  r.Successful,
			SuccessRate: successRate(r.Total, r.Successful),
		})
	}
	return out, nil
}

// successRate is nil when no retrievals happened, never a division by zero.
func successRate(total, successful uint64) *float64 {
	if total == 0 {
		return nil
	}
	rate := float64(successful) / float64(total)
	return &rate
}

// BandwidthDaily returns bytes served per day inside the window.
func (s *Store) BandwidthDaily(ctx context.Context, from, to string) ([]DailyBytes, error) {
	query := fmt.Sprintf(`
		SELECT day, sum(bytes_served) AS bytes
		FROM "%s"."retrievals_daily"
		WHERE day >= toDate(?) AND day <= toDate(?)
		GROUP BY day
		ORDER BY day
	`, s.Name)

	var rows []DailyBytes
	if err := s.Select(ctx, &rows, query, from, to); err != nil {
		return nil, fmt.Errorf("query bandwidth daily failed: %w", err)
	}
	return rows, nil
}

// NodeCountDaily returns distinct active nodes per day inside the window.
func (s *Store) NodeCountDaily(ctx context.Context, from, to string) ([]DailyCount, error) {
	query := fmt.Sprintf(`
		SELECT day, uniqExact(node_id) AS count
		FROM "%s"."retrievals_daily"
		WHERE day >= toDate(?) AND day <= toDate(?)
		GROUP BY day
		ORDER BY day
	`, s.Name)

	var rows []DailyCount
	if err := s.Select(ctx, &rows, query, from, to); err != nil {
		return nil, fmt.Errorf("query node count daily failed: %w", err)
	}
	return rows, nil
}

// TotalRetrievals returns the summed retrieval outcomes for the whole window.
func (s *Store) TotalRetrievals(ctx context.Context, from, to string) (total, successful uint64, err error) {
	query := fmt.Sprintf(`
		SELECT sum(total), sum(successful)
		FROM "%s"."retrievals_daily"
		WHERE day >= toDate(?) AND day <= toDate(?)
	`, s.Name)

	if err = s.QueryRow(ctx, query, from, to).Scan(&total, &successful); err != nil {
		return 0, 0, fmt.Errorf("query total retrievals failed: %w", err)
	}
	return total, successful, nil
}

// TotalBandwidth returns the summed bytes served for the whole window.
func (s *Store) TotalBandwidth(ctx context.Context, from, to string) (uint64, error) {
	query := fmt.Sprintf(`
		SELECT sum(bytes_served)
		FROM "%s"."retrievals_daily"
		WHERE day >= toDate(?) AND day <= toDate(?)
	`, s.Name)

	var bytes uint64
	if err := s.QueryRow(ctx, query, from, to).Scan(&bytes); err != nil {
		return 0, fmt.Errorf("query total bandwidth failed: %w", err)
	}
	return bytes, nil
}

// PeakNodeCount returns the highest daily distinct-node count in the window.
func (s *Store) PeakNodeCount(ctx context.Context, from, to string) (uint64, error) {
	query := fmt.Sprintf(`
		SELECT max(cnt)
		FROM (
			SELECT day, uniqExact(node_id) AS cnt
			FROM "%s"."retrievals_daily"
			WHERE day >= toDate(?) AND day <= toDate(?)
			GROUP BY day
		)
	`, s.Name)

	var peak uint64
	if err := s.QueryRow(ctx, query, from, to).Scan(&peak); err != nil {
		return 0, fmt.Errorf("query peak node count failed: %w", err)
	}
	return peak, nil
}
