package service

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts rows as they move through the import pipeline
type Metrics struct {
	RowsParsed      *prometheus.CounterVec
	ParseErrors     *prometheus.CounterVec
	Duplicates      *prometheus.CounterVec
	RowsImported    *prometheus.CounterVec
	Categorized     *prometheus.CounterVec
	Imports         *prometheus.CounterVec
	ImportDuration  prometheus.Histogram
	DetectionFailed prometheus.Counter
}

// NewMetrics creates the import metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RowsParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ingest",
			Name:      "rows_parsed_total",
			Help:      "Data rows emitted by the row parser.",
		}, []string{"source"}),
		ParseErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ingest",
			Name:      "parse_errors_total",
			Help:      "Rows rejected by the row parser, by error tag.",
		}, []string{"source", "error"}),
		Duplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ingest",
			Name:      "duplicates_total",
			Help:      "Rows matching a stored transaction or an earlier row of the batch.",
		}, []string{"source", "kind"}),
		RowsImported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ingest",
			Name:      "rows_imported_total",
			Help:      "Transactions written to the store.",
		}, []string{"source"}),
		Categorized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ingest",
			Name:      "rows_categorized_total",
			Help:      "Imported transactions by categorization outcome.",
		}, []string{"source", "outcome"}),
		Imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ingest",
			Name:      "imports_total",
			Help:      "Import runs by final status.",
		}, []string{"status"}),
		ImportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ingest",
			Name:      "import_duration_seconds",
			Help:      "Wall time of Execute.",
			Buckets:   prometheus.DefBuckets,
		}),
		DetectionFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ingest",
			Name:      "detection_failed_total",
			Help:      "Analyses that fell back to the default configuration.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.RowsParsed, m.ParseErrors, m.Duplicates, m.RowsImported,
			m.Categorized, m.Imports, m.ImportDuration, m.DetectionFailed)
	}
	return m
}
