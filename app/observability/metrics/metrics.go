package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	TripsGeneratedTotal         metric.Int64Counter
	TripGenerationSeconds       metric.Float64Histogram
	PoolShortfallTotal          metric.Int64Counter
	ExternalSearchRequestsTotal metric.Int64Counter
	ExternalSearchSeconds       metric.Float64Histogram
	BreakerTransitionsTotal     metric.Int64Counter
	DbQueryDurationSeconds      metric.Float64Histogram
	DbQueryErrorsTotal          metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metrics instruments ONLY ONCE.
// It gets the Meter from the globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("TripPlanner")
		var err error
		m := &AppMetrics{}

		m.TripsGeneratedTotal, err = meter.Int64Counter(
			"trips_generated_total",
			metric.WithDescription("Total number of trip plans generated"),
			metric.WithUnit("{trip}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create trips_generated_total: %v", err)
		}

		m.TripGenerationSeconds, err = meter.Float64Histogram(
			"trip_generation_duration_seconds",
			metric.WithDescription("Duration of trip plan generation in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create trip_generation_duration_seconds: %v", err)
		}

		m.PoolShortfallTotal, err = meter.Int64Counter(
			"pool_shortfall_total",
			metric.WithDescription("Times the candidate pool came up short of the requested size"),
			metric.WithUnit("{event}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create pool_shortfall_total: %v", err)
		}

		m.ExternalSearchRequestsTotal, err = meter.Int64Counter(
			"external_search_requests_total",
			metric.WithDescription("Total number of external POI search calls attempted"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create external_search_requests_total: %v", err)
		}

		m.ExternalSearchSeconds, err = meter.Float64Histogram(
			"external_search_duration_seconds",
			metric.WithDescription("Duration of external POI search calls in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create external_search_duration_seconds: %v", err)
		}

		m.BreakerTransitionsTotal, err = meter.Int64Counter(
			"breaker_transitions_total",
			metric.WithDescription("Circuit breaker state transitions"),
			metric.WithUnit("{transition}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create breaker_transitions_total: %v", err)
		}

		m.DbQueryDurationSeconds, err = meter.Float64Histogram(
			"db_query_duration_seconds",
			metric.WithDescription("Duration of database queries in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_duration_seconds: %v", err)
		}

		m.DbQueryErrorsTotal, err = meter.Int64Counter(
			"db_query_errors_total",
			metric.WithDescription("Total number of database query errors"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_errors_total: %v", err)
		}

		appMetrics = m
	})
}

// Get returns the initialized metrics instance. InitAppMetrics must run first.
func Get() *AppMetrics {
	return appMetrics
}
