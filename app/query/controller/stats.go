package controller

import (
	"context"
	"net/http"

	"github.com/stationhq/stationstats/pkg/daterange"
)

// Retrievals returns total retrieval counts per day in the window.
func (c *Controller) Retrievals(w http.ResponseWriter, r *http.Request) {
	c.serve(w, r, func(ctx context.Context, win daterange.Window) (any, error) {
		return c.App.DB.RetrievalsDaily(ctx, win.From, win.To)
	})
}

// RetrievalSuccessRate returns per-day outcome totals and the derived rate.
// Days without retrievals report success_rate null.
func (c *Controller) RetrievalSuccessRate(w http.ResponseWriter, r *http.Request) {
	c.serve(w, r, func(ctx context.Context, win daterange.Window) (any, error) {
		return c.App.DB.RetrievalSuccessDaily(ctx, win.From, win.To)
	})
}

// Bandwidth returns bytes served per day in the window.
func (c *Controller) Bandwidth(w http.ResponseWriter, r *http.Request) {
	c.serve(w, r, func(ctx context.Context, win daterange.Window) (any, error) {
		return c.App.DB.BandwidthDaily(ctx, win.From, win.To)
	})
}

// Earnings returns observed reward totals per day in the window.
func (c *Controller) Earnings(w http.ResponseWriter, r *http.Request) {
	c.serve(w, r, func(ctx context.Context, win daterange.Window) (any, error) {
		return c.App.DB.EarningsDaily(ctx, win.From, win.To)
	})
}

// NodeCount returns distinct active nodes per day in the window.
func (c *Controller) NodeCount(w http.ResponseWriter, r *http.Request) {
	c.serve(w, r, func(ctx context.Context, win daterange.Window) (any, error) {
		return c.App.DB.NodeCountDaily(ctx, win.From, win.To)
	})
}
