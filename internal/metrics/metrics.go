package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var registerOnce sync.Once

var (
	ElementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmtransform_elements_total",
			Help: "Elements observed at a pipeline stage.",
		},
		[]string{"pass", "stage", "kind"},
	)

	HandlerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "osmtransform_handler_duration_seconds",
			Help:    "Time spent in a single handler's Handle call, per dispatched batch.",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		},
		[]string{"chain", "handler"},
	)

	ElevationBatchSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "osmtransform_elevation_batch_size",
			Help:    "Size of node batches flushed to a raster for sampling.",
			Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000},
		},
		[]string{"raster"},
	)

	ElevationSamplesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmtransform_elevation_samples_total",
			Help: "Nodes that received an ele tag, by raster.",
		},
		[]string{"raster"},
	)

	ElevationMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmtransform_elevation_misses_total",
			Help: "Nodes with no covering raster or a sample read failure.",
		},
		[]string{"reason"},
	)

	CountryTagDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "osmtransform_country_tag_duration_seconds",
			Help:    "Time spent resolving a node's country tag.",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1},
		},
		[]string{"cell_kind"},
	)

	WaySplitInsertedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmtransform_way_split_nodes_inserted_total",
			Help: "Synthetic interpolated nodes inserted by way splitting.",
		},
		[]string{},
	)

	OutputFlushDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "osmtransform_output_flush_duration_seconds",
			Help:    "Time spent merging the split node/way-relation files into the final PBF.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
		},
		[]string{"writer"},
	)
)

// Register registers every package metric with the default Prometheus
// registry. Call during startup, before serving /metrics; calls after
// the first are no-ops.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			ElementsTotal,
			HandlerDuration,
			ElevationBatchSize,
			ElevationSamplesTotal,
			ElevationMissesTotal,
			CountryTagDuration,
			WaySplitInsertedTotal,
			OutputFlushDuration,
		)
	})
}
