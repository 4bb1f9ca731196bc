package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"plugintree/pkg/plugin"
)

const noManager = "none"

// Collector tracks registry mutations and HTTP traffic. It implements
// plugin.Observer and owns its own Prometheus registry.
type Collector struct {
	registry *prometheus.Registry

	loaded          *prometheus.GaugeVec
	registrations   *prometheus.CounterVec
	unregistrations *prometheus.CounterVec
	requests        *prometheus.CounterVec
	latency         *prometheus.HistogramVec
}

// New builds a collector whose metric names start with namespace.
func New(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		loaded: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "plugins_loaded",
			Help:      "Plugins currently registered, by manager.",
		}, []string{"manager"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plugin_registrations_total",
			Help:      "Plugin registrations, by manager.",
		}, []string{"manager"}),
		unregistrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plugin_unregistrations_total",
			Help:      "Plugin removals, by manager.",
		}, []string{"manager"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served by the introspection API.",
		}, []string{"handler", "method", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency of the introspection API.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"handler", "method"}),
	}
	c.registry.MustRegister(
		c.loaded, c.registrations, c.unregistrations, c.requests, c.latency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// PluginRegistered implements plugin.Observer.
func (c *Collector) PluginRegistered(p *plugin.Plugin) {
	label := managerLabel(p)
	c.loaded.WithLabelValues(label).Inc()
	c.registrations.WithLabelValues(label).Inc()
}

// PluginUnregistered implements plugin.Observer.
func (c *Collector) PluginUnregistered(p *plugin.Plugin) {
	label := managerLabel(p)
	c.loaded.WithLabelValues(label).Dec()
	c.unregistrations.WithLabelValues(label).Inc()
}

// ObserveHTTPRequest records metrics about an HTTP request lifecycle.
func (c *Collector) ObserveHTTPRequest(handler, method string, status int, duration time.Duration) {
	c.requests.WithLabelValues(handler, method, strconv.Itoa(status)).Inc()
	c.latency.WithLabelValues(handler, method).Observe(duration.Seconds())
}

// Handler exposes the metrics in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func managerLabel(p *plugin.Plugin) string {
	if name := plugin.ManagerName(p.Manager()); name != "" {
		return name
	}
	return noManager
}
