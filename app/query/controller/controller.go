package controller

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/stationhq/stationstats/app/query/types"
)

type Controller struct {
	App *types.App

	// Now is the injected clock behind window defaulting and cache decisions.
	Now func() time.Time

	// responses caches marshaled bodies for entirely historical windows, which
	// are immutable and never expire.
	responses *xsync.Map[string, []byte]
}

// NewController returns a new controller.
func NewController(app *types.App) *Controller {
	return &Controller{
		App:       app,
		Now:       time.Now,
		responses: xsync.NewMap[string, []byte](),
	}
}

// NewRouter returns a new router with all the routes defined in this file.
func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()

	r.Handle("/health", http.HandlerFunc(c.HandleHealth)).Methods("GET")

	r.HandleFunc("/retrievals", c.Retrievals).Methods("GET")
	r.HandleFunc("/retrieval-success-rate", c.RetrievalSuccessRate).Methods("GET")
	r.HandleFunc("/bandwidth", c.Bandwidth).Methods("GET")
	r.HandleFunc("/earnings", c.Earnings).Methods("GET")
	r.HandleFunc("/node-count", c.NodeCount).Methods("GET")
	r.HandleFunc("/retention", c.Retention).Methods("GET")
	r.HandleFunc("/summary", c.Summary).Methods("GET")

	return r, nil
}

// WithCORS lets dashboards on other origins read the public stats endpoints.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodOptions)

		// Fast-path the preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
