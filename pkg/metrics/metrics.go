// Package metrics keeps run counters for the commands. The CLI is not a
// server, so rather than exposing an endpoint the registry is written once at
// exit to a file for the node exporter textfile collector.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultSkipped = "skipped"
	ResultDryRun  = "dry_run"
)

var (
	// Registry holds every metric of this program and nothing else.
	Registry = prometheus.NewRegistry()

	AccessOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sdv_admin",
			Name:      "access_operations_total",
			Help:      "IAM role binding operations handled, by operation and result",
		},
		[]string{"operation", "result"},
	)

	RotationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sdv_admin",
			Name:      "rotations_total",
			Help:      "Secrets examined for rotation, by rotation client and result",
		},
		[]string{"client", "result"},
	)

	DisablementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sdv_admin",
			Name:      "disablements_total",
			Help:      "Secrets examined for disablement, by client and result",
		},
		[]string{"client", "result"},
	)

	LastRunTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sdv_admin",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the metrics file was last written",
		},
	)
)

func init() {
	Registry.MustRegister(
		AccessOperationsTotal,
		RotationsTotal,
		DisablementsTotal,
		LastRunTimestamp,
	)
}

// WriteFile writes every metric in Registry to path in the text exposition
// format. The file is replaced atomically.
func WriteFile(path string) error {
	LastRunTimestamp.SetToCurrentTime()
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("failed to write metrics file %q: %w", path, err)
	}
	return nil
}
