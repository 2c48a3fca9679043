// Package metrics turns a finished wake cycle into prometheus gauges.
//
// A node lives for a few seconds, so nothing is scraped. The gauges are
// logged with the shutdown line and, when a Pushgateway is configured,
// pushed there before power-down.
package metrics

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/nugget/letterbox/internal/httpkit"
	"github.com/nugget/letterbox/internal/wake"
)

const namespace = "letterbox_cycle"

// PushConfig points at a Pushgateway. A zero URL disables pushing.
type PushConfig struct {
	URL      string
	Job      string
	Instance string
	Timeout  time.Duration
}

// Cycle records one wake cycle. It implements [wake.Recorder].
type Cycle struct {
	reg    *prometheus.Registry
	push   PushConfig
	logger *slog.Logger

	voltage            prometheus.Gauge
	duration           prometheus.Gauge
	associationStrikes prometheus.Gauge
	brokerAttempts     prometheus.Gauge
	brokerFailures     prometheus.Gauge
	publishAttempts    prometheus.Gauge
	publishFailures    prometheus.Gauge
	published          prometheus.Gauge
	finished           prometheus.Gauge
	shutdown           *prometheus.GaugeVec
}

// New registers the cycle gauges on a private registry.
func New(pc PushConfig, logger *slog.Logger) *Cycle {
	if logger == nil {
		logger = slog.Default()
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}

	c := &Cycle{
		reg:    prometheus.NewRegistry(),
		push:   pc,
		logger: logger,

		voltage:            gauge("supply_volts", "Averaged supply voltage measured at boot."),
		duration:           gauge("duration_seconds", "Time from power latch to shutdown decision."),
		associationStrikes: gauge("association_strikes", "Failed association windows, summed over re-associations."),
		brokerAttempts:     gauge("broker_attempts", "Broker handshakes attempted."),
		brokerFailures:     gauge("broker_failures", "Broker handshakes that failed."),
		publishAttempts:    gauge("publish_attempts", "Publish attempts made."),
		publishFailures:    gauge("publish_failures", "Publish attempts that failed."),
		published:          gauge("published", "1 if the reading was delivered."),
		finished:           gauge("finished_timestamp_seconds", "Unix time the cycle ended."),
		shutdown: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "shutdown_reason",
			Help:      "1 for the reason the cycle ended.",
		}, []string{"reason"}),
	}

	c.reg.MustRegister(
		c.voltage, c.duration,
		c.associationStrikes, c.brokerAttempts, c.brokerFailures,
		c.publishAttempts, c.publishFailures, c.published,
		c.finished, c.shutdown,
	)
	return c
}

// Registry exposes the private registry, mainly for tests.
func (c *Cycle) Registry() *prometheus.Registry {
	return c.reg
}

// Record sets every gauge from s, logs them and pushes them if a
// Pushgateway is configured. A failed push is logged; power-down must
// not wait on monitoring.
func (c *Cycle) Record(s wake.Summary) {
	c.voltage.Set(float64(s.Voltage))
	c.duration.Set(s.Elapsed.Seconds())
	c.associationStrikes.Set(float64(s.AssociationStrikes))
	c.brokerAttempts.Set(float64(s.BrokerAttempts))
	c.brokerFailures.Set(float64(s.BrokerFailures))
	c.publishAttempts.Set(float64(s.Publish.Attempts))
	c.publishFailures.Set(float64(s.Publish.Failures))
	c.published.Set(boolGauge(s.Publish.Succeeded))
	c.finished.Set(float64(time.Now().Unix()))
	c.shutdown.Reset()
	c.shutdown.WithLabelValues(s.Reason.String()).Set(1)

	c.logger.LogAttrs(context.Background(), slog.LevelInfo, "cycle metrics", c.Attrs()...)

	if c.push.URL == "" {
		return
	}
	if err := c.Push(); err != nil {
		c.logger.Warn("metrics push failed", "url", c.push.URL, "error", err)
		return
	}
	c.logger.Debug("metrics pushed", "url", c.push.URL, "job", c.push.Job)
}

// Attrs gathers the registry into log attributes named after each
// metric without the namespace. Labelled series become name_label.
func (c *Cycle) Attrs() []slog.Attr {
	families, err := c.reg.Gather()
	if err != nil {
		return []slog.Attr{slog.String("gather_error", err.Error())}
	}

	var attrs []slog.Attr
	for _, mf := range families {
		name := strings.TrimPrefix(mf.GetName(), namespace+"_")
		for _, m := range mf.GetMetric() {
			if labels := m.GetLabel(); len(labels) > 0 {
				attrs = append(attrs, slog.String(name, labels[0].GetValue()))
				continue
			}
			attrs = append(attrs, slog.Float64(name, m.GetGauge().GetValue()))
		}
	}
	return attrs
}

// Push sends the gauges to the Pushgateway, replacing the previous
// cycle's values for this job and instance.
func (c *Cycle) Push() error {
	timeout := c.push.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := httpkit.NewClient(
		httpkit.WithTimeout(timeout),
		httpkit.WithRetry(2, 500*time.Millisecond),
		httpkit.WithLogger(c.logger),
	)
	p := push.New(c.push.URL, c.push.Job).
		Gatherer(c.reg).
		Client(client)
	if c.push.Instance != "" {
		p = p.Grouping("instance", c.push.Instance)
	}
	return p.Push()
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
