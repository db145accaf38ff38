package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	PlanRequestsTotal   metric.Int64Counter
	PlanDurationSeconds metric.Float64Histogram
	TripsAcceptedTotal  metric.Int64Counter
	EngineFailuresTotal metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// Get returns the process-wide metric instruments, creating them on first
// use from the globally configured MeterProvider.
func Get() *AppMetrics {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("tour-plan-api")
		var err error
		m := &AppMetrics{}

		m.PlanRequestsTotal, err = meter.Int64Counter(
			"tour_plan_requests_total",
			metric.WithDescription("Total number of tour plan operations handled"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create tour_plan_requests_total: %v", err)
		}

		m.PlanDurationSeconds, err = meter.Float64Histogram(
			"tour_plan_duration_seconds",
			metric.WithDescription("Duration of tour plan operations in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create tour_plan_duration_seconds: %v", err)
		}

		m.TripsAcceptedTotal, err = meter.Int64Counter(
			"trips_accepted_total",
			metric.WithDescription("Total number of plans accepted into durable trips"),
			metric.WithUnit("{trip}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create trips_accepted_total: %v", err)
		}

		m.EngineFailuresTotal, err = meter.Int64Counter(
			"ai_engine_failures_total",
			metric.WithDescription("Total number of failed AI engine calls"),
			metric.WithUnit("{call}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create ai_engine_failures_total: %v", err)
		}

		appMetrics = m
	})
	return appMetrics
}
