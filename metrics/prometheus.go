package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	roundsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "retro_solver_rounds_total",
		Help: "Completed solver rounds by phase",
	}, []string{"phase"})

	roundDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "retro_solver_round_duration_seconds",
		Help:    "Solver round duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"phase"})

	positionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "retro_solver_positions_total",
		Help: "Positions classified or finalized by phase and kind",
	}, []string{"phase", "kind"})

	tableSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "retro_solver_table_size",
		Help: "Entries in the solved table",
	})

	currentLevel = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "retro_solver_level",
		Help: "Depth of the last completed round by phase",
	}, []string{"phase"})
)

func observe(round RoundMetric) {
	roundsTotal.WithLabelValues(round.Phase).Inc()
	roundDuration.WithLabelValues(round.Phase).Observe(round.Duration.Seconds())
	positionsTotal.WithLabelValues(round.Phase, "terminal").Add(float64(round.Terminals))
	positionsTotal.WithLabelValues(round.Phase, "finalized").Add(float64(round.Finalized))
	positionsTotal.WithLabelValues(round.Phase, "dropped").Add(float64(round.Dropped))
	tableSize.Set(float64(round.TableSize))
	currentLevel.WithLabelValues(round.Phase).Set(float64(round.Level))
}
