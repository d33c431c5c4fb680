package controller

import (
	"context"
	"net/http"

	"github.com/stationhq/stationstats/pkg/cohort"
	"github.com/stationhq/stationstats/pkg/daterange"
)

// Retention returns month-over-month churn/growth/retention rates for the
// window. The cohort query is widened one month left of the window so the
// first requested month has its baseline.
func (c *Controller) Retention(w http.ResponseWriter, r *http.Request) {
	c.serve(w, r, func(ctx context.Context, win daterange.Window) (any, error) {
		snapshot, err := c.App.DB.MonthlyCohortsWithBaseline(ctx, win.From, win.To)
		if err != nil {
			return nil, err
		}
		return cohort.ComputeChangeRates(snapshot), nil
	})
}
