package reload

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rebuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oktaldap_rebuilds_total",
		Help: "Directory rebuild attempts by outcome.",
	}, []string{"status"})

	lastRebuildDuration = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "oktaldap_last_rebuild_duration_seconds",
		Help: "Duration of the most recent successful rebuild.",
	})

	directoryEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "oktaldap_directory_entries",
		Help: "Entries in the currently published snapshot.",
	})
)
