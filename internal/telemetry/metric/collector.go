package metric

import "github.com/prometheus/client_golang/prometheus"

// AgentProbe reports the live state of the agent connection.
type AgentProbe interface {
	IsConnected() bool
	Handlers() int
}

// Collector samples the agent connection and build identity on every scrape.
type Collector struct {
	probe AgentProbe

	connected *prometheus.Desc
	handlers  *prometheus.Desc
	buildInfo *prometheus.Desc

	version string
	commit  string
}

// NewCollector creates a collector for probe. version and commit label
// the build_info series.
func NewCollector(probe AgentProbe, version, commit string) *Collector {
	return &Collector{
		probe:   probe,
		version: version,
		commit:  commit,
		connected: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "agent", "connected"),
			"1 if the agent connection is open",
			nil, nil,
		),
		handlers: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "agent", "handlers"),
			"Message handlers registered on the agent connection",
			nil, nil,
		),
		buildInfo: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "", "build_info"),
			"Build information",
			[]string{"version", "commit"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.connected
	ch <- c.handlers
	ch <- c.buildInfo
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	connected := 0.0
	if c.probe.IsConnected() {
		connected = 1
	}
	ch <- prometheus.MustNewConstMetric(c.connected, prometheus.GaugeValue, connected)
	ch <- prometheus.MustNewConstMetric(c.handlers, prometheus.GaugeValue, float64(c.probe.Handlers()))
	ch <- prometheus.MustNewConstMetric(c.buildInfo, prometheus.GaugeValue, 1, c.version, c.commit)
}
