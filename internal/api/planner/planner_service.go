package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/FACorreiaa/go-trip-planner/app/observability/metrics"
	"github.com/FACorreiaa/go-trip-planner/config"
	"github.com/FACorreiaa/go-trip-planner/internal/api/poisearch"
	"github.com/FACorreiaa/go-trip-planner/internal/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrInvalidInput marks request validation failures, the only errors the
	// engine surfaces to callers besides infrastructure faults.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when a stored trip plan does not exist.
	ErrNotFound = errors.New("trip plan not found")
)

var _ Service = (*ServiceImpl)(nil)

// Service is the trip planning engine's public entry point.
type Service interface {
	GenerateTrip(ctx context.Context, req types.GenerateTripRequest) (*types.TripPlan, error)
	GetTrip(ctx context.Context, id uuid.UUID) (*types.TripPlan, error)
}

type ServiceImpl struct {
	logger  *slog.Logger
	repo    Repository
	search  poisearch.Search
	planner config.PlannerConfig
}

func NewServiceImpl(repo Repository, search poisearch.Search, planner config.PlannerConfig, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:  logger,
		repo:    repo,
		search:  search,
		planner: planner,
	}
}

// GenerateTrip runs the full pipeline: pool building, day clustering, cluster
// and route sequencing, time-block scheduling, then meal and lodging
// augmentation per day. One exclusion set threads through every stage so no
// place is double-booked as both an activity and a meal or hotel. Scarcity
// and degraded external services surface as warnings on the returned plan,
// never as errors.
func (s *ServiceImpl) GenerateTrip(ctx context.Context, req types.GenerateTripRequest) (*types.TripPlan, error) {
	ctx, span := otel.Tracer("PlannerService").Start(ctx, "GenerateTrip", trace.WithAttributes(
		attribute.String("trip.country", req.Country),
		attribute.String("trip.city", req.City),
		attribute.Int("trip.days", req.Days),
	))
	defer span.End()

	startTime := time.Now()

	if err := req.Validate(); err != nil {
		span.SetStatus(codes.Error, "invalid request")
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	used := types.NewExclusionSet()
	poolSize := req.Days * req.PlacesPerDay

	pool, warnings, err := s.buildPool(ctx, PoolRequest{
		Categories:    req.Categories,
		Country:       req.Country,
		City:          req.City,
		Size:          poolSize,
		MaxPriceLevel: priceLevelFilter(&req),
	}, used)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	for _, p := range pool {
		used.Add(p.ID)
	}

	// Keep clustering reproducible on demand; log the seed either way so a
	// production run can be replayed.
	seed := time.Now().UnixNano()
	if req.Seed != nil {
		seed = *req.Seed
	}
	s.logger.InfoContext(ctx, "Clustering candidate pool",
		slog.Int("pool_size", len(pool)), slog.Int64("seed", seed))
	rng := rand.New(rand.NewSource(seed))

	clusters := SequenceClusters(ClusterPlaces(pool, req.Days, req.PlacesPerDay, rng), req.Origin)
	span.SetAttributes(attribute.Int("trip.clusters", len(clusters)))

	lodgingPool, err := s.repo.FetchLodging(ctx, req.Country, req.City, 50)
	if err != nil {
		s.logger.WarnContext(ctx, "Lodging pool query failed", slog.Any("error", err))
		lodgingPool = nil
	}

	destination := req.Country
	if req.City != "" {
		destination = req.City
	}
	plan := types.TripPlan{
		Destination: destination,
		Origin:      req.Origin,
	}

	dayStart := types.NewClockTime(s.dayStartHour(), 0)
	entry := req.Origin
	for _, cluster := range clusters {
		// An empty cluster reaching this point is a clusterer defect; skip it
		// rather than losing the whole plan.
		if len(cluster.Places) == 0 {
			s.logger.ErrorContext(ctx, "Empty cluster reached scheduling, skipping")
			continue
		}

		route := SequenceRoute(cluster.Places, entry)
		blocks := ScheduleDay(route, dayStart, s.planner.TravelSpeedKmh, s.planner.DefaultVisitMinutes)

		day := types.DayPlan{
			Day:    len(plan.Days) + 1,
			Blocks: blocks,
		}
		for _, b := range blocks {
			day.TotalKm += b.TravelKm
			day.TravelMinutes += b.TravelMinutes
		}

		if anchors, ok := mealAnchors(blocks); ok {
			picks, mealWarnings := s.pickMeals(ctx, day.Day, &req, anchors, used)
			day.Breakfast, day.Lunch, day.Dinner = picks[0], picks[1], picks[2]
			warnings = append(warnings, mealWarnings...)
		}

		anchor, _ := day.Anchor()
		day.Lodging = s.pickLodging(ctx, anchor, lodgingPool, req.Country, req.City, used)
		if day.Lodging == nil {
			warnings = append(warnings, types.Warning{
				Code:    types.WarnLodgingUnavailable,
				Message: fmt.Sprintf("no lodging found for day %d", day.Day),
			})
		}

		plan.TotalKm += day.TotalKm
		plan.TravelMinutes += day.TravelMinutes
		plan.Days = append(plan.Days, day)
		entry = anchor
	}
	plan.Warnings = warnings

	if id, err := s.repo.SaveTripPlan(ctx, plan); err != nil {
		// The caller still gets the plan; persistence is best-effort here.
		s.logger.ErrorContext(ctx, "Failed to persist trip plan", slog.Any("error", err))
		span.RecordError(err)
	} else {
		plan.ID = id
	}

	if m := metrics.Get(); m != nil {
		m.TripsGeneratedTotal.Add(ctx, 1)
		m.TripGenerationSeconds.Record(ctx, time.Since(startTime).Seconds())
	}
	span.SetAttributes(
		attribute.Int("trip.days_planned", len(plan.Days)),
		attribute.Int("trip.warnings", len(plan.Warnings)),
	)
	span.SetStatus(codes.Ok, "Trip plan generated")
	return &plan, nil
}

func (s *ServiceImpl) GetTrip(ctx context.Context, id uuid.UUID) (*types.TripPlan, error) {
	ctx, span := otel.Tracer("PlannerService").Start(ctx, "GetTrip", trace.WithAttributes(
		attribute.String("trip.id", id.String()),
	))
	defer span.End()

	plan, err := s.repo.GetTripPlan(ctx, id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Repository failed to get trip plan", slog.Any("error", err))
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get trip plan: %w", err)
	}
	if plan == nil {
		return nil, ErrNotFound
	}

	span.SetStatus(codes.Ok, "Trip plan retrieved")
	return plan, nil
}

func (s *ServiceImpl) dayStartHour() int {
	if s.planner.DayStartHour <= 0 || s.planner.DayStartHour > 23 {
		return defaultDayStart / 60
	}
	return s.planner.DayStartHour
}
