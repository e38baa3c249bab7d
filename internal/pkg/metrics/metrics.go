// Package metrics defines and registers all custom Prometheus metrics for
// scribble. It is the single source of truth for metric names, labels, and
// help strings.
//
// Metrics are registered with the default Prometheus registry through
// promauto at package initialisation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "scribble"

// ── Sync metrics ──────────────────────────────────────────────────────────────

// SyncRequestsTotal counts sync operations issued by the client.
// Labels:
//   - op: "save", "fetch", "load" or "delete"
//   - type: entity type name (e.g. "article")
//   - result: "ok" or "error"
var SyncRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sync_requests_total",
		Help:      "Total number of sync operations, by operation, entity type and result.",
	},
	[]string{"op", "type", "result"},
)

// SyncDuration measures one sync operation including nested saves.
// Labels:
//   - op: "save", "fetch", "load" or "delete"
var SyncDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "sync_duration_seconds",
		Help:      "Duration of sync operations from call to result.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"op"},
)

// HydrationFailuresTotal counts fetched objects dropped because they did not
// conform to the local schema.
// Label:
//   - type: entity type name
var HydrationFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "hydration_failures_total",
		Help:      "Total number of fetched objects that failed entity construction.",
	},
	[]string{"type"},
)

// SavedEventsTotal counts saved events handed to a publisher.
// Labels:
//   - sink: "bus" or "redis"
//   - result: "ok", "dropped" or "error"
var SavedEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "saved_events_total",
		Help:      "Total number of entity-saved events, by sink and result.",
	},
	[]string{"sink", "result"},
)

// ── Backend metrics ───────────────────────────────────────────────────────────

// ObjectsStoredTotal counts objects written by the reference backend.
// Labels:
//   - type: entity type name
//   - mode: "create" or "update"
var ObjectsStoredTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "objects_stored_total",
		Help:      "Total number of objects stored by the backend, by type and mode.",
	},
	[]string{"type", "mode"},
)

// EventQueueDepth tracks the current number of saved events waiting in each
// dispatcher worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var EventQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "event_queue_depth",
		Help:      "Current number of saved events pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)
