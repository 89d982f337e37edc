package metrics

// Metrics defines the counters the bracket engine reports.
type Metrics interface {
	IncResultsSubmitted()
	IncIntegrityViolations()
	IncStructuralDefects()
	ObserveSubmitDuration(duration float64)
	IncNotificationsSent(channel string)
	IncNotificationsFailed(channel string)
}
