// instrument/prometheus.go
package instrument

import (
	"net/http"
	"time"

	"campus-referral-engine/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ingestRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "referral_ingest_runs_total",
		Help: "Ingestion runs by outcome",
	}, []string{"outcome"})

	ingestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "referral_ingest_duration_seconds",
		Help:    "Wall-clock time of ingestion runs",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 45, 60},
	})

	ingestRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "referral_ingest_rows_total",
		Help: "Signup rows handled by ingestion",
	}, []string{"result"})

	ingestWatermark = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "referral_ingest_watermark_timestamp_seconds",
		Help: "created_at of the last ingested signup",
	})

	leaseContention = promauto.NewCounter(prometheus.CounterOpts{
		Name: "referral_ingest_lease_contended_total",
		Help: "Runs refused because another run held the lease",
	})

	unlocks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "referral_unlocks_total",
		Help: "Participants reaching the unlock threshold for the first time",
	})

	joins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "referral_joins_total",
		Help: "Join attempts by result",
	}, []string{"result"})
)

// ObserveIngestRun records a finished run. Rows only count once the cursor moved past them,
// so failed or over-budget runs add nothing to the row counters.
func ObserveIngestRun(outcome string, took time.Duration, fetched, skipped int) {
	ingestRuns.WithLabelValues(outcome).Inc()
	ingestDuration.Observe(took.Seconds())
	if outcome != models.RunOK {
		return
	}
	ingestRows.WithLabelValues("ingested").Add(float64(fetched - skipped))
	ingestRows.WithLabelValues("skipped").Add(float64(skipped))
}

func SetWatermark(t time.Time) {
	if !t.IsZero() {
		ingestWatermark.Set(float64(t.Unix()))
	}
}

func LeaseContended() { leaseContention.Inc() }

func Unlocked(n int) { unlocks.Add(float64(n)) }

func Join(result string) { joins.WithLabelValues(result).Inc() }

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }
