package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/alitto/pond/v2"
	"github.com/stationhq/stationstats/pkg/daterange"
	"go.uber.org/zap"
)

// Summary is the combined dashboard payload for one window.
type Summary struct {
	Retrievals  uint64   `json:"retrievals"`
	Successful  uint64   `json:"successful"`
	SuccessRate *float64 `json:"success_rate"`
	BytesServed uint64   `json:"bytes_served"`
	Earnings    float64  `json:"earnings"`
	PeakNodes   uint64   `json:"peak_nodes"`
}

// Summary fans the independent window totals out over a small worker group
// and assembles one payload.
func (c *Controller) Summary(w http.ResponseWriter, r *http.Request) {
	c.serve(w, r, func(ctx context.Context, win daterange.Window) (any, error) {
		var (
			out Summary

			retrievalsErr error
			bandwidthErr  error
			earningsErr   error
			nodesErr      error
		)

		pool := pond.NewPool(4)
		group := pool.NewGroupContext(ctx)
		groupCtx := group.Context()

		group.Submit(func() {
			if groupCtx.Err() != nil {
				return
			}
			out.Retrievals, out.Successful, retrievalsErr = c.App.DB.TotalRetrievals(groupCtx, win.From, win.To)
		})
		group.Submit(func() {
			if groupCtx.Err() != nil {
				return
			}
			out.BytesServed, bandwidthErr = c.App.DB.TotalBandwidth(groupCtx, win.From, win.To)
		})
		group.Submit(func() {
			if groupCtx.Err() != nil {
				return
			}
			out.Earnings, earningsErr = c.App.DB.TotalEarnings(groupCtx, win.From, win.To)
		})
		group.Submit(func() {
			if groupCtx.Err() != nil {
				return
			}
			out.PeakNodes, nodesErr = c.App.DB.PeakNodeCount(groupCtx, win.From, win.To)
		})

		if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
			c.App.Logger.Warn("summary fan-out encountered error", zap.Error(err))
		}
		pool.StopAndWait()

		for _, err := range []error{retrievalsErr, bandwidthErr, earningsErr, nodesErr} {
			if err != nil {
				return nil, err
			}
		}

		if out.Retrievals > 0 {
			rate := float64(out.Successful) / float64(out.Retrievals)
			out.SuccessRate = &rate
		}
		return out, nil
	})
}
