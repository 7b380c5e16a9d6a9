package admin

import (
	"fmt"

	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metricSet holds every counter/gauge named in spec.md §6. Grounded on
// Generativebots-ocx-backend-go-svc/internal/escrow/metrics.go's
// promauto.New*/NewMetrics pattern: a struct of pre-registered metric
// handles, built once and threaded through the component that updates
// them. Unlike that example's per-agent label vectors, these are flat
// process-global scalars (the admin core has exactly one of each), so
// plain Counter/Gauge are used instead of CounterVec/GaugeVec.
type metricSet struct {
	RequestParse     prometheus.Counter
	ResponseCompose  prometheus.Counter
	EventError       prometheus.Counter
	EventWrite       prometheus.Counter
	EventRead        prometheus.Counter
	EventLoop        prometheus.Counter
	EventTotal       prometheus.Counter
	SessionAccept    prometheus.Counter
	SessionAcceptEx  prometheus.Counter
	SessionAcceptOK  prometheus.Counter
	SessionClose     prometheus.Counter
	SessionCurr      prometheus.Gauge

	RUUtime    prometheus.Counter
	RUStime    prometheus.Counter
	RUMaxrss   prometheus.Gauge
	RUIxrss    prometheus.Gauge
	RUIdrss    prometheus.Gauge
	RUIsrss    prometheus.Gauge
	RUMinflt   prometheus.Counter
	RUMajflt   prometheus.Counter
	RUNswap    prometheus.Counter
	RUInblock  prometheus.Counter
	RUOublock  prometheus.Counter
	RUMsgsnd   prometheus.Counter
	RUMsgrcv   prometheus.Counter
	RUNsignals prometheus.Counter
	RUNvcsw    prometheus.Counter
	RUNivcsw   prometheus.Counter
}

// newMetricSet registers every admin_* and ru_* metric named in spec.md
// §6 against reg. Passing a fresh *prometheus.Registry (rather than the
// global prometheus.DefaultRegisterer) keeps multiple Admin instances
// (e.g. one per test) from colliding on metric names.
func newMetricSet(reg prometheus.Registerer) *metricSet {
	f := promauto.With(reg)
	return &metricSet{
		RequestParse: f.NewCounter(prometheus.CounterOpts{
			Name: "admin_request_parse", Help: "Total admin requests successfully parsed.",
		}),
		ResponseCompose: f.NewCounter(prometheus.CounterOpts{
			Name: "admin_response_compose", Help: "Total admin responses composed.",
		}),
		EventError: f.NewCounter(prometheus.CounterOpts{
			Name: "admin_event_error", Help: "Total session events classified as errors.",
		}),
		EventWrite: f.NewCounter(prometheus.CounterOpts{
			Name: "admin_event_write", Help: "Total writable session events handled.",
		}),
		EventRead: f.NewCounter(prometheus.CounterOpts{
			Name: "admin_event_read", Help: "Total readable session events handled.",
		}),
		EventLoop: f.NewCounter(prometheus.CounterOpts{
			Name: "admin_event_loop", Help: "Total event loop iterations.",
		}),
		EventTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "admin_event_total", Help: "Total events delivered by the poller.",
		}),
		SessionAccept: f.NewCounter(prometheus.CounterOpts{
			Name: "admin_session_accept", Help: "Total accept attempts.",
		}),
		SessionAcceptEx: f.NewCounter(prometheus.CounterOpts{
			Name: "admin_session_accept_ex", Help: "Total accept attempts that failed or were dropped.",
		}),
		SessionAcceptOK: f.NewCounter(prometheus.CounterOpts{
			Name: "admin_session_accept_ok", Help: "Total accepts that resulted in an inserted session.",
		}),
		SessionClose: f.NewCounter(prometheus.CounterOpts{
			Name: "admin_session_close", Help: "Total sessions closed.",
		}),
		SessionCurr: f.NewGauge(prometheus.GaugeOpts{
			Name: "admin_session_curr", Help: "Current number of live sessions.",
		}),
		RUUtime: f.NewCounter(prometheus.CounterOpts{
			Name: "ru_utime", Help: "User CPU time consumed, in nanoseconds.",
		}),
		RUStime: f.NewCounter(prometheus.CounterOpts{
			Name: "ru_stime", Help: "System CPU time consumed, in nanoseconds.",
		}),
		RUMaxrss: f.NewGauge(prometheus.GaugeOpts{
			Name: "ru_maxrss", Help: "Maximum resident set size, in bytes.",
		}),
		RUIxrss: f.NewGauge(prometheus.GaugeOpts{
			Name: "ru_ixrss", Help: "Integral shared memory size, in bytes.",
		}),
		RUIdrss: f.NewGauge(prometheus.GaugeOpts{
			Name: "ru_idrss", Help: "Integral unshared data size, in bytes.",
		}),
		RUIsrss: f.NewGauge(prometheus.GaugeOpts{
			Name: "ru_isrss", Help: "Integral unshared stack size, in bytes.",
		}),
		RUMinflt: f.NewCounter(prometheus.CounterOpts{
			Name: "ru_minflt", Help: "Minor page faults.",
		}),
		RUMajflt: f.NewCounter(prometheus.CounterOpts{
			Name: "ru_majflt", Help: "Major page faults.",
		}),
		RUNswap: f.NewCounter(prometheus.CounterOpts{
			Name: "ru_nswap", Help: "Swaps.",
		}),
		RUInblock: f.NewCounter(prometheus.CounterOpts{
			Name: "ru_inblock", Help: "Block input operations.",
		}),
		RUOublock: f.NewCounter(prometheus.CounterOpts{
			Name: "ru_oublock", Help: "Block output operations.",
		}),
		RUMsgsnd: f.NewCounter(prometheus.CounterOpts{
			Name: "ru_msgsnd", Help: "IPC messages sent.",
		}),
		RUMsgrcv: f.NewCounter(prometheus.CounterOpts{
			Name: "ru_msgrcv", Help: "IPC messages received.",
		}),
		RUNsignals: f.NewCounter(prometheus.CounterOpts{
			Name: "ru_nsignals", Help: "Signals received.",
		}),
		RUNvcsw: f.NewCounter(prometheus.CounterOpts{
			Name: "ru_nvcsw", Help: "Voluntary context switches.",
		}),
		RUNivcsw: f.NewCounter(prometheus.CounterOpts{
			Name: "ru_nivcsw", Help: "Involuntary context switches.",
		}),
	}
}

// snapshot renders every metric as a StatPair, in a fixed order, for the
// "stats" admin command (spec.md §6: "the response serializer consults
// the metrics registry").
func (m *metricSet) snapshot() []StatPair {
	named := []struct {
		name string
		c    prometheus.Collector
	}{
		{"admin_request_parse", m.RequestParse},
		{"admin_response_compose", m.ResponseCompose},
		{"admin_event_error", m.EventError},
		{"admin_event_write", m.EventWrite},
		{"admin_event_read", m.EventRead},
		{"admin_event_loop", m.EventLoop},
		{"admin_event_total", m.EventTotal},
		{"admin_session_accept", m.SessionAccept},
		{"admin_session_accept_ex", m.SessionAcceptEx},
		{"admin_session_accept_ok", m.SessionAcceptOK},
		{"admin_session_close", m.SessionClose},
		{"admin_session_curr", m.SessionCurr},
		{"ru_utime", m.RUUtime},
		{"ru_stime", m.RUStime},
		{"ru_maxrss", m.RUMaxrss},
		{"ru_ixrss", m.RUIxrss},
		{"ru_idrss", m.RUIdrss},
		{"ru_isrss", m.RUIsrss},
		{"ru_minflt", m.RUMinflt},
		{"ru_majflt", m.RUMajflt},
		{"ru_nswap", m.RUNswap},
		{"ru_inblock", m.RUInblock},
		{"ru_oublock", m.RUOublock},
		{"ru_msgsnd", m.RUMsgsnd},
		{"ru_msgrcv", m.RUMsgrcv},
		{"ru_nsignals", m.RUNsignals},
		{"ru_nvcsw", m.RUNvcsw},
		{"ru_nivcsw", m.RUNivcsw},
	}

	stats := make([]StatPair, 0, len(named))
	for _, nc := range named {
		stats = append(stats, StatPair{Name: nc.name, Value: collectorValue(nc.c)})
	}
	return stats
}

// collectorValue extracts the scalar value from a Counter or Gauge via
// its dto.Metric encoding, since prometheus.Counter/Gauge expose no
// direct getter.
func collectorValue(c prometheus.Collector) string {
	metric, ok := c.(prometheus.Metric)
	if !ok {
		return "0"
	}
	var m dto.Metric
	if err := metric.Write(&m); err != nil {
		return "0"
	}
	switch {
	case m.Counter != nil:
		return fmt.Sprintf("%g", m.Counter.GetValue())
	case m.Gauge != nil:
		return fmt.Sprintf("%g", m.Gauge.GetValue())
	default:
		return "0"
	}
}
