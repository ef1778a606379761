package metrics

import (
    "net/http"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
    conversions = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "pdfdeck",
            Name:      "conversions_total",
            Help:      "Total conversions by output format and result",
        },
        []string{"format", "result"},
    )

    conversionLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: "pdfdeck",
            Name:      "conversion_duration_seconds",
            Help:      "Duration of whole conversions by output format",
            Buckets:   prometheus.DefBuckets,
        },
        []string{"format"},
    )

    extractionAttempts = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "pdfdeck",
            Name:      "extraction_attempts_total",
            Help:      "Extraction stage attempts by stage and result",
        },
        []string{"stage", "result"},
    )

    tablesDetected = prometheus.NewCounter(
        prometheus.CounterOpts{
            Namespace: "pdfdeck",
            Name:      "tables_detected_total",
            Help:      "Total tables found by the whitespace detector",
        },
    )

    pagesRendered = prometheus.NewHistogram(
        prometheus.HistogramOpts{
            Namespace: "pdfdeck",
            Name:      "pages_rendered",
            Help:      "Slides produced per conversion",
            Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 250},
        },
    )

    jobs = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "pdfdeck",
            Name:      "jobs_total",
            Help:      "Async jobs by result (success, retry, dlq, cancelled)",
        },
        []string{"result"},
    )

    retriesTotal = prometheus.NewCounter(
        prometheus.CounterOpts{
            Namespace: "pdfdeck",
            Name:      "job_retries_total",
            Help:      "Total number of job retries",
        },
    )

    cacheLookups = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "pdfdeck",
            Name:      "extraction_cache_total",
            Help:      "Extraction cache lookups by result (hit, miss, error)",
        },
        []string{"result"},
    )

    queueDepth = prometheus.NewGaugeVec(
        prometheus.GaugeOpts{
            Namespace: "pdfdeck",
            Name:      "queue_depth",
            Help:      "Queue depth gauges for stream, delayed and dlq",
        },
        []string{"type"},
    )
)

// Init registers collectors.
func Init() {
    prometheus.MustRegister(conversions, conversionLatency, extractionAttempts, tablesDetected, pagesRendered, jobs, retriesTotal, cacheLookups, queueDepth)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveConversion(format, result string, dur time.Duration) {
    conversions.WithLabelValues(format, result).Inc()
    conversionLatency.WithLabelValues(format).Observe(dur.Seconds())
}

func IncExtraction(stage, result string) { extractionAttempts.WithLabelValues(stage, result).Inc() }
func AddTables(n int)                    { tablesDetected.Add(float64(n)) }
func ObservePages(n int)                 { pagesRendered.Observe(float64(n)) }
func IncJob(result string)               { jobs.WithLabelValues(result).Inc() }
func IncRetry()                          { retriesTotal.Inc() }
func IncCache(result string)             { cacheLookups.WithLabelValues(result).Inc() }

func SetQueueDepth(kind string, v int64) { queueDepth.WithLabelValues(kind).Set(float64(v)) }
