package db

import (
	"context"
	"fmt"
	"time"
)

// DailyEarnings is the reward total observed for one day.
type DailyEarnings struct {
	Day    time.Time `json:"day" ch:"day"`
	Amount float64   `json:"amount" ch:"amount"`
}

// initEarningsDaily creates the daily reward aggregate. SummingMergeTree folds
// rows sharing (day, recipient), so an additive upsert is a plain INSERT and
// reads must aggregate with sum() to be merge-state independent.
func (s *Store) initEarningsDaily(ctx context.Context) error {
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."earnings_daily" (
			day Date,
			recipient String,
			amount Float64
		) ENGINE = SummingMergeTree((amount))
		ORDER BY (day, recipient)
	`, s.Name)
	if err := s.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create earnings_daily table: %w", err)
	}
	return nil
}

// UpsertAdditive increments the reward amount for (day, recipient). A repeated
// call adds again rather than replacing; rows are never deleted here.
func (s *Store) UpsertAdditive(ctx context.Context, day time.Time, recipient string, amount float64) error {
	query := fmt.Sprintf(`
		INSERT INTO "%s"."earnings_daily" (day, recipient, amount)
		VALUES (?, ?, ?)
	`, s.Name)
	if err := s.Exec(ctx, query, day, recipient, amount); err != nil {
		return fmt.Errorf("upsert earnings for %s: %w", recipient, err)
	}
	return nil
}

// EarningsDaily returns network-wide reward totals per day inside the window.
func (s *Store) EarningsDaily(ctx context.Context, from, to string) ([]DailyEarnings, error) {
	query := fmt.Sprintf(`
		SELECT day, sum(amount) AS amount
		FROM "%s"."earnings_daily"
		WHERE day >= toDate(?) AND day <= toDate(?)
		GROUP BY day
		ORDER BY day
	`, s.Name)

	var rows []DailyEarnings
	if err := s.Select(ctx, &rows, query, from, to); err != nil {
		return nil, fmt.Errorf("query earnings daily failed: %w", err)
	}
	return rows, nil
}

// TotalEarnings returns the summed rewards for the whole window.
func (s *Store) TotalEarnings(ctx context.Context, from, to string) (float64, error) {
	query := fmt.Sprintf(`
		SELECT sum(amount)
		FROM "%s"."earnings_daily"
		WHERE day >= toDate(?) AND day <= toDate(?)
	`, s.Name)

	var amount float64
	if err := s.QueryRow(ctx, query, from, to).Scan(&amount); err != nil {
		return 0, fmt.Errorf("query total earnings failed: %w", err)
	}
	return amount, nil
}
