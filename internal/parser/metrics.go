package parser

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/crimson-sun/avrca/internal/model"
)

var (
	// linesTotal counts parsed and failed lines by parser
	linesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "avrca_parser_lines_total",
		Help: "Lines or rows handled by parser and outcome",
	}, []string{"parser", "outcome"})

	// batchesTotal counts completed ParseReader calls
	batchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "avrca_parser_batches_total",
		Help: "Parse batches by parser and success",
	}, []string{"parser", "success"})

	// batchEvents tracks events produced per batch
	batchEvents = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "avrca_parser_batch_events",
		Help:    "Events produced per parse batch",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})
)

func observe(res *model.ParseResult) {
	if res == nil {
		return
	}
	linesTotal.WithLabelValues(res.ParserName, "parsed").Add(float64(res.ParsedLines))
	linesTotal.WithLabelValues(res.ParserName, "failed").Add(float64(res.FailedLines))
	success := "true"
	if !res.Success {
		success = "false"
	}
	batchesTotal.WithLabelValues(res.ParserName, success).Inc()
	batchEvents.Observe(float64(len(res.Events)))
}
