package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/stationhq/stationstats/pkg/daterange"
	"go.uber.org/zap"
)

// fetchFunc produces the payload of a read endpoint for a canonical window.
type fetchFunc func(ctx context.Context, win daterange.Window) (any, error)

// serve runs the shared read protocol: normalize the date window (redirecting
// to the canonical query string or rejecting malformed dates), fetch, attach
// the cache directive, serialize. Fully historical responses are served from
// the in-process cache.
func (c *Controller) serve(w http.ResponseWriter, r *http.Request, fetch fetchFunc) {
	out, err := daterange.Normalize(r.URL.Path, r.URL.Query(), c.Now())
	if err != nil {
		var bad *daterange.BadRequestError
		if errors.As(err, &bad) {
			http.Error(w, bad.Error(), http.StatusBadRequest)
			return
		}
		c.fail(w, r, err)
		return
	}

	if red := out.Redirect; red != nil {
		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(red.MaxAge.Seconds())))
		http.Redirect(w, r, red.Location, red.Status)
		return
	}

	win := out.Window
	directive := daterange.CacheControl(win, c.Now())

	cacheKey := ""
	if directive == daterange.CacheLong {
		cacheKey = r.URL.Path + "?from=" + win.From + "&to=" + win.To
		if body, ok := c.responses.Load(cacheKey); ok {
			c.writeJSON(w, directive, body)
			return
		}
	}

	payload, err := fetch(r.Context(), win)
	if err != nil {
		c.fail(w, r, err)
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		c.fail(w, r, err)
		return
	}

	if cacheKey != "" {
		c.responses.Store(cacheKey, body)
	}
	c.writeJSON(w, directive, body)
}

func (c *Controller) writeJSON(w http.ResponseWriter, directive string, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", directive)
	_, _ = w.Write(body)
}

func (c *Controller) fail(w http.ResponseWriter, r *http.Request, err error) {
	c.App.Logger.Error("Read request failed",
		zap.String("path", r.URL.Path),
		zap.Error(err))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
