package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BatchesMaterialized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heimwetter_batches_materialized_total",
			Help: "Monthly batches materialized, by dataset kind and whether the cached file was reused",
		},
		[]string{"kind", "action"},
	)

	ProviderFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heimwetter_provider_fetches_total",
			Help: "Forecast provider fetches by source and outcome",
		},
		[]string{"source", "status"},
	)

	ProviderFetchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "heimwetter_provider_fetch_latency_seconds",
			Help:    "Forecast provider fetch latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	ForecastsStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heimwetter_forecasts_stored_total",
			Help: "Daily forecast records upserted, by source",
		},
		[]string{"source"},
	)

	AnalysisRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heimwetter_analysis_records_total",
			Help: "Forecast analysis records written, by source",
		},
		[]string{"source"},
	)

	RealtimePolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heimwetter_realtime_polls_total",
			Help: "Realtime device polls by outcome",
		},
		[]string{"status"},
	)

	StatisticsRecomputes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heimwetter_statistics_recomputes_total",
			Help: "Statistics tree recomputations by outcome",
		},
		[]string{"status"},
	)

	StatisticsRecomputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "heimwetter_statistics_recompute_seconds",
			Help:    "Time spent recomputing the full statistics tree",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
	)
)
