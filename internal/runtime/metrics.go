package runtime

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/drblury/topicflow/internal/runtime/dispatch"
	errspkg "github.com/drblury/topicflow/internal/runtime/errors"
)

const metricsNamespace = "topicflow"

type sendMetrics struct {
	sent       *prometheus.CounterVec
	failed     *prometheus.CounterVec
	notReady   *prometheus.CounterVec
	suppressed *prometheus.CounterVec
	dropped    *prometheus.CounterVec
	channelsUp *prometheus.GaugeVec
}

// newSendMetrics creates the send path collectors and registers them with
// reg when it is non-nil. Collectors registered by an earlier service are
// reused.
func newSendMetrics(reg prometheus.Registerer) (*sendMetrics, error) {
	m := &sendMetrics{
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_sent_total",
			Help:      "Messages handed to a bus.",
		}, []string{"bus", "channel"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_send_failed_total",
			Help:      "Sends that returned an error other than channel not ready.",
		}, []string{"message"}),
		notReady: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_channel_not_ready_total",
			Help:      "Sends rejected because the channel was not up.",
		}, []string{"bus", "channel"}),
		suppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_backup_suppressed_total",
			Help:      "Sends resolved but not emitted in event-sourcing backup mode.",
		}, []string{"bus", "channel"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_inbound_dropped_total",
			Help:      "Inbound messages that could not be decoded or validated.",
		}, []string{"bus", "channel"}),
		channelsUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "channels_up",
			Help:      "Open channels per bus.",
		}, []string{"bus"}),
	}
	if reg == nil {
		return m, nil
	}

	var err error
	if m.sent, err = registerCollector(reg, m.sent); err != nil {
		return nil, err
	}
	if m.failed, err = registerCollector(reg, m.failed); err != nil {
		return nil, err
	}
	if m.notReady, err = registerCollector(reg, m.notReady); err != nil {
		return nil, err
	}
	if m.suppressed, err = registerCollector(reg, m.suppressed); err != nil {
		return nil, err
	}
	if m.dropped, err = registerCollector(reg, m.dropped); err != nil {
		return nil, err
	}
	if m.channelsUp, err = registerCollector(reg, m.channelsUp); err != nil {
		return nil, err
	}
	return m, nil
}

func registerCollector[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *sendMetrics) observe(messageType string, res dispatch.Result, err error) {
	switch {
	case err == nil && res.Emitted:
		m.sent.WithLabelValues(res.Context.Bus, res.Context.Channel).Inc()
	case err == nil && res.Context != nil:
		m.suppressed.WithLabelValues(res.Context.Bus, res.Context.Channel).Inc()
	case errors.Is(err, errspkg.ErrChannelNotReady) && res.Context != nil:
		m.notReady.WithLabelValues(res.Context.Bus, res.Context.Channel).Inc()
	case err != nil:
		m.failed.WithLabelValues(messageType).Inc()
	}
}
