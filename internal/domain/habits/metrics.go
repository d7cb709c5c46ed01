package habits

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checkInsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "habits_checkins_total",
			Help: "Total number of check-in and undo calls by result",
		},
		[]string{"result"},
	)

	milestonesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "habits_milestones_total",
			Help: "Total number of streak milestones recorded",
		},
	)

	recomputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "habits_recompute_duration_seconds",
			Help:    "Duration of streak recomputation in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)
