package db

import (
	"context"
	"fmt"
	"time"

	"github.com/stationhq/stationstats/pkg/cohort"
	"github.com/stationhq/stationstats/pkg/daterange"
)

// MonthlyCohortsWithBaseline returns the distinct-node cohort of every month
// touched by the window, widened one month to the left so the first requested
// month has a baseline to be measured against. Months come back ascending;
// months with no activity are simply absent.
func (s *Store) MonthlyCohortsWithBaseline(ctx context.Context, from, to string) ([]cohort.MonthCohort, error) {
	widened, err := widenToBaseline(from)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT
			formatDateTime(toStartOfMonth(day), '%%Y-%%m') AS month,
			groupUniqArray(node_id) AS members
		FROM "%s"."retrievals_daily"
		WHERE day >= toDate(?) AND day <= toDate(?)
		GROUP BY month
		ORDER BY month
	`, s.Name)

	var rows []struct {
		Month   string   `ch:"month"`
		Members []string `ch:"members"`
	}
	if err := s.Select(ctx, &rows, query, widened, to); err != nil {
		return nil, fmt.Errorf("query monthly cohorts failed: %w", err)
	}

	out := make([]cohort.MonthCohort, 0, len(rows))
	for _, r := range rows {
		members := make(map[string]struct{}, len(r.Members))
		for _, id := range r.Members {
			members[id] = struct{}{}
		}
		out = append(out, cohort.MonthCohort{Month: r.Month, Members: members})
	}
	return out, nil
}

// widenToBaseline moves a date to the first day of the preceding month.
func widenToBaseline(from string) (string, error) {
	t, err := time.Parse(daterange.DateLayout, from)
	if err != nil {
		return "", fmt.Errorf("widen cohort window: %w", err)
	}
	firstOfMonth := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return firstOfMonth.AddDate(0, -1, 0).Format(daterange.DateLayout), nil
}
