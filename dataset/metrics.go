package dataset

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// tasksTotal counts partition task attempts by operation and result
	tasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "retro_dataset_tasks_total",
		Help: "Partition task attempts by operation and result",
	}, []string{"operation", "result"})

	// stageDuration tracks how long each stage barrier takes
	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "retro_dataset_stage_duration_seconds",
		Help:    "Stage duration in seconds by operation",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 12),
	}, []string{"operation"})

	// shuffledRecords counts records that crossed a shuffle
	shuffledRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "retro_dataset_shuffled_records_total",
		Help: "Records moved between partitions by shuffles, by operation",
	}, []string{"operation"})
)

// operation drops the numeric level suffix from a stage name so metric labels
// stay bounded: "restrict-5/left" becomes "restrict/left". Logs keep the full
// stage.
func operation(stage string) string {
	name, sub, found := strings.Cut(stage, "/")
	if i := strings.LastIndexByte(name, '-'); i > 0 && isDigits(name[i+1:]) {
		name = name[:i]
	}
	if found {
		return name + "/" + sub
	}
	return name
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
