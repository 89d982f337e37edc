package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ Metrics = (*Service)(nil)

type Service struct {
	ResultsSubmitted    prometheus.Counter
	IntegrityViolations prometheus.Counter
	StructuralDefects   prometheus.Counter
	SubmitDuration      prometheus.Histogram
	NotificationsSent   *prometheus.CounterVec
	NotificationsFailed *prometheus.CounterVec
}

// NewMetricsHandler returns an http.Handler for the given Gatherer.
// If no gatherer is provided, it uses the default one.
func NewMetricsHandler(gatherer ...prometheus.Gatherer) http.Handler {
	gath := prometheus.DefaultGatherer
	if len(gatherer) > 0 {
		gath = gatherer[0]
	}
	return promhttp.HandlerFor(gath, promhttp.HandlerOpts{})
}

// NewService creates and registers the Prometheus metrics.
// If no registerer is provided, it uses the default Prometheus registerer.
func NewService(registerer ...prometheus.Registerer) *Service {
	reg := prometheus.DefaultRegisterer
	if len(registerer) > 0 {
		reg = registerer[0]
	}

	s := &Service{
		ResultsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bracket_results_submitted_total",
			Help: "The total number of match results committed.",
		}),
		IntegrityViolations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bracket_integrity_violations_total",
			Help: "The total number of result edits rejected because a downstream match was completed.",
		}),
		StructuralDefects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bracket_structural_defects_total",
			Help: "The total number of advancements into an unexpectedly full match.",
		}),
		SubmitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bracket_result_submit_duration_seconds",
			Help:    "The duration of the result ingestion unit of work.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bracket_notifications_sent_total",
			Help: "The total number of post-commit notifications delivered.",
		}, []string{"channel"}),
		NotificationsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bracket_notifications_failed_total",
			Help: "The total number of post-commit notifications that failed.",
		}, []string{"channel"}),
	}

	reg.MustRegister(
		s.ResultsSubmitted,
		s.IntegrityViolations,
		s.StructuralDefects,
		s.SubmitDuration,
		s.NotificationsSent,
		s.NotificationsFailed,
	)

	return s
}

func (s *Service) IncResultsSubmitted() {
	s.ResultsSubmitted.Inc()
}

func (s *Service) IncIntegrityViolations() {
	s.IntegrityViolations.Inc()
}

func (s *Service) IncStructuralDefects() {
	s.StructuralDefects.Inc()
}

func (s *Service) ObserveSubmitDuration(duration float64) {
	s.SubmitDuration.Observe(duration)
}

func (s *Service) IncNotificationsSent(channel string) {
	s.NotificationsSent.WithLabelValues(channel).Inc()
}

func (s *Service) IncNotificationsFailed(channel string) {
	s.NotificationsFailed.WithLabelValues(channel).Inc()
}
