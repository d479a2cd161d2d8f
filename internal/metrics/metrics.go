package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Lifecycle metrics
	ConnectionsRegistered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pushgate_connections_registered_total",
		Help: "The total number of connection records registered.",
	})
	ConnectionsUnregistered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pushgate_connections_unregistered_total",
		Help: "The total number of connection records removed by the unregister cascade.",
	})
	HydrationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pushgate_hydrations_total",
		Help: "The total number of connection hydration requests.",
	})
	HydrateRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pushgate_hydrate_retries_total",
		Help: "The total number of extra read attempts made while hydrating.",
	})
	HydrateMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pushgate_hydrate_misses_total",
		Help: "The total number of hydrations that found no live record.",
	})

	// Delivery metrics
	SendsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pushgate_sends_total",
		Help: "The total number of payloads delivered.",
	})
	SendBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pushgate_send_bytes_total",
		Help: "The total payload bytes delivered.",
	})
	GoneCleanups = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pushgate_gone_cleanups_total",
		Help: "The total number of sends that hit a gone connection and triggered cleanup.",
	})
	TerminationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pushgate_terminations_total",
		Help: "The total number of transport-level connection terminations.",
	})

	// Transport metrics
	TransportClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pushgate_transport_clients",
		Help: "The current number of cached per-endpoint transport clients.",
	})
	LocalSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pushgate_local_sessions",
		Help: "The current number of WebSocket sessions attached to the local hub.",
	})
)
