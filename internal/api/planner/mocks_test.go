package planner

import (
	"context"
	"io"
	"log/slog"

	"github.com/FACorreiaa/go-trip-planner/config"
	"github.com/FACorreiaa/go-trip-planner/internal/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockRepository is a mock implementation of Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) FetchCandidates(ctx context.Context, filter FetchFilter) ([]types.CandidatePlace, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.CandidatePlace), args.Error(1)
}

func (m *MockRepository) FindByExternalID(ctx context.Context, provider, placeID string) (*types.CandidatePlace, error) {
	args := m.Called(ctx, provider, placeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.CandidatePlace), args.Error(1)
}

func (m *MockRepository) CreateCandidate(ctx context.Context, place types.CandidatePlace) (types.CandidatePlace, error) {
	args := m.Called(ctx, place)
	return args.Get(0).(types.CandidatePlace), args.Error(1)
}

func (m *MockRepository) FetchLodging(ctx context.Context, country, city string, limit int) ([]types.CandidatePlace, error) {
	args := m.Called(ctx, country, city, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.CandidatePlace), args.Error(1)
}

func (m *MockRepository) SaveTripPlan(ctx context.Context, plan types.TripPlan) (uuid.UUID, error) {
	args := m.Called(ctx, plan)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockRepository) GetTripPlan(ctx context.Context, id uuid.UUID) (*types.TripPlan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.TripPlan), args.Error(1)
}

// MockSearch is a mock implementation of poisearch.Search
type MockSearch struct {
	mock.Mock
}

func (m *MockSearch) SearchByText(ctx context.Context, query string, minRating float64) ([]types.CandidatePlace, error) {
	args := m.Called(ctx, query, minRating)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.CandidatePlace), args.Error(1)
}

func (m *MockSearch) SearchNearby(ctx context.Context, lat, lon float64, radiusMeters int, minRating float64) ([]types.CandidatePlace, error) {
	args := m.Called(ctx, lat, lon, radiusMeters, minRating)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.CandidatePlace), args.Error(1)
}

func testPlannerConfig() config.PlannerConfig {
	return config.PlannerConfig{
		PlacesPerDay:        4,
		DayStartHour:        9,
		TravelSpeedKmh:      25,
		DefaultVisitMinutes: 90,
		MealRadiusKm:        1.5,
		DinnerRadiusKm:      3,
		LodgingRadiusKm:     10,
		LodgingMinRating:    4.0,
	}
}

func newTestService(repo Repository, search *MockSearch) *ServiceImpl {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServiceImpl(repo, search, testPlannerConfig(), logger)
}
