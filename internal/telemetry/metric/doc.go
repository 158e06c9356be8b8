// Package metric provides Prometheus metrics for ncabridge.
//
//   - prometheus.go: the Registry, its metric families and the /metrics handler
//   - collector.go: a collector that samples the agent connection at scrape time
//
// Metrics are exposed at /metrics in Prometheus text format.
package metric
