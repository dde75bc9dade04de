package telemetry

import (
	"expvar"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Sink receives named counter events. Calls are fire-and-forget: nothing the
// sink does is reported back to the caller.
type Sink interface {
	Increment(name string)
	Decrement(name string)
}

var appCounters = expvar.NewMap("app_counters")

// ExpvarSink publishes counters under the "app_counters" expvar map.
type ExpvarSink struct {
	counters *expvar.Map
}

func NewExpvarSink() ExpvarSink {
	return ExpvarSink{counters: appCounters}
}

func (s ExpvarSink) Increment(name string) {
	s.counters.Add(name, 1)
}

func (s ExpvarSink) Decrement(name string) {
	s.counters.Add(name, -1)
}

// PrometheusSink counts events in a single vector labelled by event name and direction.
type PrometheusSink struct {
	events *prometheus.CounterVec
}

func NewPrometheusSink(reg prometheus.Registerer, namespace string) (*PrometheusSink, error) {
	events := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "core",
			Name:      "events_total",
			Help:      "Counter events emitted by the auth and portfolio services.",
		},
		[]string{"name", "direction"},
	)
	if err := reg.Register(events); err != nil {
		return nil, err
	}
	return &PrometheusSink{events: events}, nil
}

func (s *PrometheusSink) Increment(name string) {
	s.events.WithLabelValues(name, "increment").Inc()
}

func (s *PrometheusSink) Decrement(name string) {
	s.events.WithLabelValues(name, "decrement").Inc()
}

type multiSink []Sink

// Multi fans every event out to each of sinks.
func Multi(sinks ...Sink) Sink {
	return multiSink(sinks)
}

func (m multiSink) Increment(name string) {
	for _, s := range m {
		s.Increment(name)
	}
}

func (m multiSink) Decrement(name string) {
	for _, s := range m {
		s.Decrement(name)
	}
}

type nopSink struct{}

func (nopSink) Increment(string) {}
func (nopSink) Decrement(string) {}

// Nop discards all events.
func Nop() Sink {
	return nopSink{}
}

type safeSink struct {
	next Sink
}

// Safe wraps next so a panicking sink is logged instead of unwinding into the caller.
// A nil next behaves like Nop.
func Safe(next Sink) Sink {
	if next == nil {
		return nopSink{}
	}
	if s, ok := next.(safeSink); ok {
		return s
	}
	return safeSink{next: next}
}

func (s safeSink) Increment(name string) {
	defer recoverSink("increment", name)
	s.next.Increment(name)
}

func (s safeSink) Decrement(name string) {
	defer recoverSink("decrement", name)
	s.next.Decrement(name)
}

func recoverSink(op, name string) {
	if r := recover(); r != nil {
		slog.Warn("metrics sink failed", "op", op, "metric", name, "panic", r)
	}
}
