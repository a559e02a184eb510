// Package metrics exposes bridge counters to Prometheus.
package metrics
