package healthendpoint

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// GaugeCollector is a named set of gauges satisfying both Health and
// prometheus.Collector. Gauges are created lazily on first use.
type GaugeCollector interface {
	prometheus.Collector
	Health
}

func NewGaugeCollector(namespace, subSystem string) GaugeCollector {
	return &gaugeCollector{
		namespace: namespace,
		subSystem: subSystem,
		gaugeMap:  map[string]prometheus.Gauge{},
	}
}

type gaugeCollector struct {
	namespace string
	subSystem string
	gaugeMap  map[string]prometheus.Gauge
	sync.RWMutex
}

func (c *gaugeCollector) Describe(ch chan<- *prometheus.Desc) {
	c.RLock()
	defer c.RUnlock()
	for _, gauge := range c.gaugeMap {
		ch <- gauge.Desc()
	}
}

func (c *gaugeCollector) Collect(ch chan<- prometheus.Metric) {
	c.RLock()
	defer c.RUnlock()
	for _, gauge := range c.gaugeMap {
		ch <- gauge
	}
}

func (c *gaugeCollector) Set(name string, value float64) {
	c.gauge(name).Set(value)
}

func (c *gaugeCollector) Inc(name string) {
	c.gauge(name).Inc()
}

func (c *gaugeCollector) Dec(name string) {
	c.gauge(name).Dec()
}

func (c *gaugeCollector) gauge(name string) prometheus.Gauge {
	c.Lock()
	defer c.Unlock()
	gauge, exists := c.gaugeMap[name]
	if !exists {
		gauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: c.namespace,
			Subsystem: c.subSystem,
			Name:      name,
		})
		c.gaugeMap[name] = gauge
	}
	return gauge
}
