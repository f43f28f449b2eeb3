// Package metrics exposes Prometheus counters for one bridge process.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics aggregates the bridge's instrumentation. A nil *Metrics is valid
// and records nothing, so library users without a registry pay no cost.
type Metrics struct {
	ImagesSent         *prometheus.CounterVec
	BytesSent          prometheus.Counter
	RegionsThrottled   prometheus.Counter
	CommandsDispatched prometheus.Counter
	CommandsUnknown    prometheus.Counter
	CodecFailures      prometheus.Counter
	AudioBytes         prometheus.Counter
}

// New registers the bridge metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ImagesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rdpipe",
			Name:      "images_sent_total",
			Help:      "Encoded image updates written to the updates pipe.",
		}, []string{"format"}),
		BytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "rdpipe",
			Name:      "image_bytes_sent_total",
			Help:      "Encoded image payload bytes written to the updates pipe.",
		}),
		RegionsThrottled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "rdpipe",
			Name:      "regions_throttled_total",
			Help:      "Region events dropped by the IPS throttle.",
		}),
		CommandsDispatched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "rdpipe",
			Name:      "commands_dispatched_total",
			Help:      "Gateway commands decoded and dispatched.",
		}),
		CommandsUnknown: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "rdpipe",
			Name:      "commands_unknown_total",
			Help:      "Frames with an unrecognized command tag, dropped.",
		}),
		CodecFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "rdpipe",
			Name:      "codec_failures_total",
			Help:      "Events where every codec candidate failed.",
		}),
		AudioBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "rdpipe",
			Name:      "audio_bytes_total",
			Help:      "Raw audio bytes relayed to the audio pipe.",
		}),
	}
}

func (m *Metrics) ImageSent(format string, payloadBytes int) {
	if m == nil {
		return
	}
	m.ImagesSent.WithLabelValues(format).Inc()
	m.BytesSent.Add(float64(payloadBytes))
}

func (m *Metrics) RegionThrottled() {
	if m == nil {
		return
	}
	m.RegionsThrottled.Inc()
}

func (m *Metrics) CommandDispatched() {
	if m == nil {
		return
	}
	m.CommandsDispatched.Inc()
}

func (m *Metrics) CommandUnknown() {
	if m == nil {
		return
	}
	m.CommandsUnknown.Inc()
}

func (m *Metrics) CodecFailure() {
	if m == nil {
		return
	}
	m.CodecFailures.Inc()
}

func (m *Metrics) AudioRelayed(n int) {
	if m == nil {
		return
	}
	m.AudioBytes.Add(float64(n))
}
