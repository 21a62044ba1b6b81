// Package metrics instruments the sequencer's queue depths and drain
// activity. The sequencer records through the small Recorder interface
// below, injected with sequencer.WithMetrics; the Prometheus implementation
// lives here and is constructed and wired in by the demo daemon.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder observes sequencer admission and drain events. Implementations
// must be safe to call from the sequencer's single dispatcher goroutine;
// nothing here requires additional synchronization on the caller's part.
type Recorder interface {
	ResponseQueued(depth int)
	EventQueued(depth int)
	ResponseDrained()
	EventDrained()
	EventDroppedCausalGap()
	ResponseDroppedStale()
}

// Noop discards every observation. It is the Sequencer's default Recorder
// so that metrics remain strictly optional.
type Noop struct{}

func (Noop) ResponseQueued(int)     {}
func (Noop) EventQueued(int)        {}
func (Noop) ResponseDrained()       {}
func (Noop) EventDrained()          {}
func (Noop) EventDroppedCausalGap() {}
func (Noop) ResponseDroppedStale()  {}

// Prometheus records sequencer activity with a fixed set of gauges and
// counters, one set per constructed session label.
type Prometheus struct {
	session string

	responseDepth    *prometheus.GaugeVec
	eventDepth       *prometheus.GaugeVec
	responsesDrained *prometheus.CounterVec
	eventsDrained    *prometheus.CounterVec
	causalGapDrops   *prometheus.CounterVec
	staleDrops       *prometheus.CounterVec
}

// NewPrometheus registers the sequencer's metric family on reg and returns a
// Recorder scoped to sessionID. The metric names are fixed, so it can be
// called only once per registry: a second call against the same registry
// panics (prometheus's MustRegister contract), whatever sessionID it gets.
func NewPrometheus(reg prometheus.Registerer, sessionID string) *Prometheus {
	p := &Prometheus{
		session: sessionID,
		responseDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "raftproxy",
			Subsystem: "sequencer",
			Name:      "pending_responses",
			Help:      "Number of responses admitted but not yet drained.",
		}, []string{"session"}),
		eventDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "raftproxy",
			Subsystem: "sequencer",
			Name:      "pending_events",
			Help:      "Number of events admitted but not yet drained.",
		}, []string{"session"}),
		responsesDrained: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "raftproxy",
			Subsystem: "sequencer",
			Name:      "responses_drained_total",
			Help:      "Responses delivered to the application in order.",
		}, []string{"session"}),
		eventsDrained: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "raftproxy",
			Subsystem: "sequencer",
			Name:      "events_drained_total",
			Help:      "Events delivered to the application in order.",
		}, []string{"session"}),
		causalGapDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "raftproxy",
			Subsystem: "sequencer",
			Name:      "events_dropped_causal_gap_total",
			Help:      "Events dropped because of a gap in previousIndex.",
		}, []string{"session"}),
		staleDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "raftproxy",
			Subsystem: "sequencer",
			Name:      "responses_dropped_stale_total",
			Help:      "Responses dropped as stale or for an unallocated sequence.",
		}, []string{"session"}),
	}
	reg.MustRegister(p.responseDepth, p.eventDepth, p.responsesDrained, p.eventsDrained, p.causalGapDrops, p.staleDrops)
	return p
}

func (p *Prometheus) ResponseQueued(depth int) {
	p.responseDepth.WithLabelValues(p.session).Set(float64(depth))
}

func (p *Prometheus) EventQueued(depth int) {
	p.eventDepth.WithLabelValues(p.session).Set(float64(depth))
}

func (p *Prometheus) ResponseDrained() {
	p.responsesDrained.WithLabelValues(p.session).Inc()
	p.responseDepth.WithLabelValues(p.session).Dec()
}

func (p *Prometheus) EventDrained() {
	p.eventsDrained.WithLabelValues(p.session).Inc()
	p.eventDepth.WithLabelValues(p.session).Dec()
}

func (p *Prometheus) EventDroppedCausalGap() {
	p.causalGapDrops.WithLabelValues(p.session).Inc()
}

func (p *Prometheus) ResponseDroppedStale() {
	p.staleDrops.WithLabelValues(p.session).Inc()
}
