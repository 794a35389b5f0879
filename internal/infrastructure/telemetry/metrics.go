// Package telemetry holds the Prometheus collectors and dispatch-id helpers.
package telemetry

import (
	"context"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DispatchesTotal counts routed lines by kind (custom, native, redemption).
	DispatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "djbot_dispatches_total",
		Help: "Dispatched chat lines and events by kind",
	}, []string{"kind"})

	// DroppedTotal counts lines dropped by the gate or a full lane, by reason.
	DroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "djbot_dispatch_dropped_total",
		Help: "Dispatches dropped before any side effect, by reason",
	}, []string{"reason"})

	ResolverAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "djbot_resolver_attempts_total",
		Help: "Backend add attempts by backend",
	}, []string{"backend"})

	ResolverOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "djbot_resolver_outcomes_total",
		Help: "Final resolver outcomes by backend and code",
	}, []string{"backend", "code"})

	DirectiveErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "djbot_template_directive_errors_total",
		Help: "Template directives that degraded to an inline error marker",
	}, []string{"directive"})

	EventSubReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "djbot_eventsub_reconnects_total",
		Help: "EventSub reconnect attempts after a transport error",
	})

	EventSubNotifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "djbot_eventsub_notifications_total",
		Help: "EventSub notifications received by subscription type",
	}, []string{"type"})

	BusDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "djbot_event_bus_dropped_total",
		Help: "Events dropped because a subscriber buffer was full",
	}, []string{"topic"})

	InflightDispatches = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "djbot_dispatch_inflight",
		Help: "Handed-off dispatch jobs currently running",
	})
)

type dispatchKey struct{}

// WithDispatchID tags ctx with a fresh dispatch id.
func WithDispatchID(ctx context.Context) (context.Context, string) {
	id := uuid.NewString()
	return context.WithValue(ctx, dispatchKey{}, id), id
}

// DispatchID returns the id stored by WithDispatchID, or "".
func DispatchID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(dispatchKey{}).(string); ok {
		return v
	}
	return ""
}
