package rca

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// analysesTotal counts analyses by the category of the top cause
	analysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "avrca_rca_analyses_total",
		Help: "Incident analyses by top cause category",
	}, []string{"category"})

	// analysisDuration tracks end-to-end Analyze latency
	analysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "avrca_rca_analysis_duration_seconds",
		Help:    "Time spent in Analyze",
		Buckets: prometheus.DefBuckets,
	})

	// candidatesTotal counts root-cause candidates emitted per rule
	candidatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "avrca_rca_candidates_total",
		Help: "Root cause candidates generated by rule",
	}, []string{"rule"})
)
