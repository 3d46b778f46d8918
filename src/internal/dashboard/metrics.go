package dashboard

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bemindlab/portscope/src/internal/monitor"
	"github.com/bemindlab/portscope/src/internal/types"
)

// metrics holds the prometheus instruments exposed on /metrics. Each
// server owns its registry so tests can spin up servers independently.
type metrics struct {
	registry *prometheus.Registry

	events  *prometheus.CounterVec
	actions *prometheus.CounterVec
	scans   prometheus.Counter
	clients prometheus.Gauge
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portscope_monitor_events_total",
			Help: "Monitor events broadcast to dashboard clients, by event type.",
		}, []string{"type"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portscope_actions_total",
			Help: "Kill and open actions requested through the dashboard, by outcome.",
		}, []string{"action", "outcome"}),
		scans: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portscope_api_scans_total",
			Help: "Port scans served through the HTTP API.",
		}),
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "portscope_websocket_clients",
			Help: "Currently connected websocket clients.",
		}),
	}

	m.registry.MustRegister(m.events, m.actions, m.scans, m.clients)
	return m
}

func (m *metrics) observeEvent(ev monitor.Event) {
	m.events.WithLabelValues(string(ev.Type)).Inc()
}

func (m *metrics) observeAction(action string, res types.ActionResult) {
	outcome := "failure"
	if res.Success {
		outcome = "success"
	}
	m.actions.WithLabelValues(action, outcome).Inc()
}
