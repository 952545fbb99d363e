package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's prometheus collectors on a private registry so
// tests can construct as many instances as they like.
type Metrics struct {
	Registry *prometheus.Registry

	EventsObserved *prometheus.CounterVec
	EventsDropped  prometheus.Counter
	Punishments    *prometheus.CounterVec
	Warnings       prometheus.Counter
	Lockdowns      prometheus.Counter
	RaidModes      prometheus.Counter
	ReapedRecords  prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		EventsObserved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "raidward_events_observed_total",
				Help: "Events accepted by the detection engine, by event type.",
			},
			[]string{"type"},
		),
		EventsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "raidward_events_dropped_total",
				Help: "Events dropped at the observation boundary (malformed or panicking).",
			},
		),
		Punishments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "raidward_punishments_total",
				Help: "Identity-targeted punishments issued, by action.",
			},
			[]string{"action"},
		),
		Warnings: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "raidward_spam_warnings_total",
				Help: "Spam warnings issued before timeout escalation.",
			},
		),
		Lockdowns: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "raidward_lockdowns_total",
				Help: "Guild-wide lockdowns applied.",
			},
		),
		RaidModes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "raidward_raid_modes_total",
				Help: "Raid-mode activations.",
			},
		),
		ReapedRecords: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "raidward_reaped_records_total",
				Help: "Idle tracker records removed by the reaper.",
			},
		),
	}

	m.Registry.MustRegister(
		m.EventsObserved,
		m.EventsDropped,
		m.Punishments,
		m.Warnings,
		m.Lockdowns,
		m.RaidModes,
		m.ReapedRecords,
	)
	return m
}
