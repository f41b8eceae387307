package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "duowalk",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests received",
	}, []string{"method", "path", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "duowalk",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	// ClaimsAcquired counts successful uniqueness-claim commits per keyspace.
	ClaimsAcquired = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "duowalk",
		Name:      "claims_acquired_total",
		Help:      "Uniqueness claims committed",
	}, []string{"keyspace"})

	// ClaimConflicts counts claims rejected because another user owns the key.
	ClaimConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "duowalk",
		Name:      "claim_conflicts_total",
		Help:      "Uniqueness claims rejected as already taken",
	}, []string{"keyspace"})

	// ClaimsReleased counts owner-checked claim releases.
	ClaimsReleased = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "duowalk",
		Name:      "claims_released_total",
		Help:      "Uniqueness claims released",
	}, []string{"keyspace"})

	// StepSyncs counts remote step pushes by outcome.
	StepSyncs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "duowalk",
		Name:      "step_syncs_total",
		Help:      "Step snapshots pushed to the remote store",
	}, []string{"outcome"})

	// StepsCounted counts step deltas accepted by the accumulator feed.
	StepsCounted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "duowalk",
		Name:      "steps_counted_total",
		Help:      "Step deltas accepted from the sensor feed",
	})
)

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// Middleware records request metrics with Prometheus labels.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		labels := prometheus.Labels{
			"method": r.Method,
			"path":   r.URL.Path,
			"status": strconv.Itoa(rec.status),
		}
		httpRequests.With(labels).Inc()
		httpLatency.With(labels).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the default Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
