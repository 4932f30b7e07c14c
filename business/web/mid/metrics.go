package mid

import (
	"context"
	"net/http"

	"github.com/ardanlabs/powchain/foundation/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Set of request metrics reported on the debug host.
var (
	requestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "powchain",
		Subsystem: "web",
		Name:      "requests_total",
		Help:      "Requests handled by the node APIs.",
	})
	errorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "powchain",
		Subsystem: "web",
		Name:      "errors_total",
		Help:      "Requests that returned an error.",
	})
	panicsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "powchain",
		Subsystem: "web",
		Name:      "panics_total",
		Help:      "Requests that panicked.",
	})
)

// Metrics updates program counters.
func Metrics() web.Middleware {

	// This is the actual middleware function to be executed.
	m := func(handler web.Handler) web.Handler {

		// Create the handler that will be attached in the middleware chain.
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			// Call the next handler.
			err := handler(ctx, w, r)

			// Increment the request and errors counters.
			requestsTotal.Inc()
			if err != nil {
				errorsTotal.Inc()
			}

			// Return the error so it can be handled further up the chain.
			return err
		}

		return h
	}

	return m
}
