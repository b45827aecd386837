package main

import (
	"strconv"
	"strings"

	"calmh.dev/astmprom/astm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	frames   *persistentCounter
	messages *persistentCounterVec
	invalid  *persistentCounterVec
	results  *persistentCounterVec

	resultValue   *prometheus.GaugeVec
	lastMessage   prometheus.Gauge
	connected     prometheus.Gauge
	connects      prometheus.Counter
	fanoutDropped prometheus.Counter
}

func newMetrics(pm *persistentMetrics, reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		frames: pm.NewCounter(prometheus.CounterOpts{
			Namespace: "astm",
			Name:      "frames_total",
			Help:      "Frames received from the analyzer",
		}),
		messages: pm.NewCounterVec(prometheus.CounterOpts{
			Namespace: "astm",
			Name:      "messages_total",
			Help:      "Decoded messages by category and validity",
		}, []string{"category", "valid"}),
		invalid: pm.NewCounterVec(prometheus.CounterOpts{
			Namespace: "astm",
			Name:      "invalid_messages_total",
			Help:      "Invalid messages by reason",
		}, []string{"reason"}),
		results: pm.NewCounterVec(prometheus.CounterOpts{
			Namespace: "astm",
			Name:      "results_total",
			Help:      "Result segments by test and status",
		}, []string{"code", "test", "status"}),
		resultValue: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "astm",
			Name:      "result_value",
			Help:      "Last numeric result value per test",
		}, []string{"code", "test", "units"}),
		lastMessage: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "astm",
			Name:      "last_message_timestamp_seconds",
		}),
		connected: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "astm",
			Name:      "connected",
			Help:      "Whether the analyzer connection is open",
		}),
		connects: f.NewCounter(prometheus.CounterOpts{
			Namespace: "astm",
			Name:      "connects_total",
		}),
		fanoutDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: "astm",
			Name:      "fanout_dropped_total",
			Help:      "Messages not delivered to a slow consumer",
		}),
	}
}

func (m *metrics) observe(msg *astm.Message) {
	m.frames.Inc()
	m.messages.Inc(string(msg.Category), strconv.FormatBool(msg.Valid))
	m.lastMessage.Set(float64(msg.Received.Unix()))
	if !msg.Valid {
		m.invalid.Inc(msg.ValidationError)
		return
	}
	for _, r := range msg.Results {
		m.results.Inc(r.TestCode, r.TestName, r.Status)
		if v, ok := numericValue(r.Value); ok {
			m.resultValue.WithLabelValues(r.TestCode, r.TestName, r.Units).Set(v)
		}
	}
}

// numericValue parses a result value, accepting a decimal comma and
// ignoring range qualifiers such as "<" or ">".
func numericValue(s string) (float64, bool) {
	s = strings.TrimLeft(strings.TrimSpace(s), "<>=")
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
