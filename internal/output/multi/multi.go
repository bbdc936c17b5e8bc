// Package multi routes events to several sinks. Each route can carry a
// filter, e.g. errors and above for a webhook.
package multi

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/crimson-sun/avrca/internal/model"
	"github.com/crimson-sun/avrca/internal/output"
)

var routedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "avrca_output_routed_total",
	Help: "Events offered to each sink route by outcome",
}, []string{"route", "outcome"})

// Filter reports whether a route accepts an event.
type Filter func(model.Event) bool

// MinSeverity accepts events at min or above.
func MinSeverity(min model.Severity) Filter {
	return func(e model.Event) bool { return e.Severity.AtLeast(min) }
}

// Categories accepts events in any of cats.
func Categories(cats ...model.Category) Filter {
	return func(e model.Event) bool { return slices.Contains(cats, e.Category) }
}

// Route is one named sink and the events it accepts. A nil Filter accepts
// every event.
type Route struct {
	Name   string
	Output output.Output
	Filter Filter
}

// Router delivers each event to every route whose filter accepts it, in
// route order. A failing route does not stop delivery to the rest.
type Router struct {
	routes []Route
}

// New creates a Router over routes.
func New(routes ...Route) *Router {
	return &Router{routes: routes}
}

// Routes returns the route names in delivery order.
func (r *Router) Routes() []string {
	names := make([]string, len(r.routes))
	for i, rt := range r.routes {
		names[i] = rt.Name
	}
	return names
}

// Write offers the event to every route. Errors are prefixed with the route
// name and joined.
func (r *Router) Write(ctx context.Context, event model.Event) error {
	var errs []error
	for _, rt := range r.routes {
		if rt.Filter != nil && !rt.Filter(event) {
			routedTotal.WithLabelValues(rt.Name, "filtered").Inc()
			continue
		}
		if err := rt.Output.Write(ctx, event); err != nil {
			routedTotal.WithLabelValues(rt.Name, "failed").Inc()
			errs = append(errs, fmt.Errorf("%s: %w", rt.Name, err))
			continue
		}
		routedTotal.WithLabelValues(rt.Name, "delivered").Inc()
	}
	return errors.Join(errs...)
}

// Close closes every route, collecting errors.
func (r *Router) Close() error {
	var errs []error
	for _, rt := range r.routes {
		if err := rt.Output.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", rt.Name, err))
		}
	}
	return errors.Join(errs...)
}
