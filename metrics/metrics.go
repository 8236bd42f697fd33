// Package metrics exports prometheus metrics for record stores.
// Collector is a recstore.Observer: pass it in recstore.Options.Observers.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kjk/recstore/recstore"
)

const subsystem = "recstore"

type Collector struct {
	Opens        *prometheus.CounterVec
	OpenStores   prometheus.Gauge
	Writes       prometheus.Counter
	WriteErrors  prometheus.Counter
	WriteLatency prometheus.Histogram
	Reads        *prometheus.CounterVec
	Closes       prometheus.Counter
}

var _ recstore.Observer = (*Collector)(nil)

func NewCollector(namespace string) *Collector {
	return &Collector{
		Opens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "opens_total",
			Help:      "Number of opened stores by load state",
		}, []string{"state"}),
		OpenStores: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "open_stores",
			Help:      "Number of open stores",
		}),
		Writes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "writes_total",
			Help:      "Number of durably written records",
		}),
		WriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "write_errors_total",
			Help:      "Number of failed writes",
		}),
		WriteLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "write_duration_seconds",
			Help:      "Write duration including sync, in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16),
		}),
		Reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reads_total",
			Help:      "Number of reads by status",
		}, []string{"status"}),
		Closes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "closes_total",
			Help:      "Number of closed stores",
		}),
	}
}

func (c *Collector) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.Opens,
		c.OpenStores,
		c.Writes,
		c.WriteErrors,
		c.WriteLatency,
		c.Reads,
		c.Closes,
	}
}

// Register registers all metrics with reg
// (prometheus.DefaultRegisterer if nil)
func (c *Collector) Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, m := range c.collectors() {
		if err := reg.Register(m); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collector) Opened(path string, recordCount uint64, state recstore.LoadState, remainder int64) {
	c.Opens.WithLabelValues(state.String()).Inc()
	c.OpenStores.Inc()
}

func (c *Collector) Wrote(path string, dur time.Duration, err error) {
	if err != nil {
		c.WriteErrors.Inc()
		return
	}
	c.Writes.Inc()
	c.WriteLatency.Observe(dur.Seconds())
}

func (c *Collector) Read(path string, status recstore.ReadStatus) {
	c.Reads.WithLabelValues(status.String()).Inc()
}

func (c *Collector) Closed(path string) {
	c.Closes.Inc()
	c.OpenStores.Dec()
}
