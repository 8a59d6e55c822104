package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "timerboard"

// Metrics agrupa los collectors del bot. Se registran una sola vez por registry.
type Metrics struct {
	GuildSyncs        *prometheus.CounterVec
	GuildSyncDuration prometheus.Histogram
	SweepSelected     prometheus.Gauge
	ResourceErrors    *prometheus.CounterVec
	FleetMessages     *prometheus.CounterVec
	FleetEvents       *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		GuildSyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guild_syncs_total",
			Help:      "Full guild reconciliations by result (ok, failed, skipped).",
		}, []string{"result"}),
		GuildSyncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "guild_sync_duration_seconds",
			Help:      "Duration of one full guild reconciliation.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		SweepSelected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sweep_selected_guilds",
			Help:      "Guilds selected by the last sweep.",
		}),
		ResourceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_errors_total",
			Help:      "Reconciliation errors by resource (guild, roles, channels, members).",
		}, []string{"resource"}),
		FleetMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fleet_messages_total",
			Help:      "Fleet notification sends/edits by message type and result.",
		}, []string{"type", "result"}),
		FleetEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fleet_events_total",
			Help:      "Fleet lifecycle events handled by kind and result.",
		}, []string{"kind", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.GuildSyncs, m.GuildSyncDuration, m.SweepSelected, m.ResourceErrors, m.FleetMessages, m.FleetEvents)
	}
	return m
}

// Discard: collectors sin registrar, para tests y herramientas.
func Discard() *Metrics { return New(nil) }
