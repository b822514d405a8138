package planner

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/FACorreiaa/go-trip-planner/config"
	"github.com/FACorreiaa/go-trip-planner/internal/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var mealTestAnchor = types.Coordinate{Lat: 38.72, Lon: -9.14}

func foodPlace(name, category string, lat, lon float64) types.CandidatePlace {
	return types.CandidatePlace{
		ID:       uuid.New(),
		Name:     name,
		Location: types.Coordinate{Lat: lat, Lon: lon},
		Category: category,
		Rating:   4.2,
	}
}

func mealRequest() *types.GenerateTripRequest {
	return &types.GenerateTripRequest{
		Country:      "Portugal",
		City:         "Lisbon",
		Days:         1,
		PlacesPerDay: 4,
	}
}

func hasCategories(want ...string) func(FetchFilter) bool {
	return func(f FetchFilter) bool {
		if len(f.Categories) != len(want) {
			return false
		}
		for i := range want {
			if f.Categories[i] != want[i] {
				return false
			}
		}
		return true
	}
}

func TestMealAnchors(t *testing.T) {
	_, ok := mealAnchors(nil)
	assert.False(t, ok)

	blocks := []types.RouteBlock{
		{Place: placeAt("a", 38.70, -9.14)},
		{Place: placeAt("b", 38.72, -9.14)},
		{Place: placeAt("c", 38.74, -9.14)},
	}
	anchors, ok := mealAnchors(blocks)
	require.True(t, ok)
	assert.InDelta(t, 38.70, anchors[0].Lat, 1e-9)
	assert.InDelta(t, 38.72, anchors[1].Lat, 1e-9)
	assert.InDelta(t, 38.74, anchors[2].Lat, 1e-9)
}

func TestPickMeals_FillsAllSlotsFromLocalStore(t *testing.T) {
	repo := new(MockRepository)
	search := new(MockSearch)
	svc := newTestService(repo, search)

	cafe := foodPlace("morning cafe", types.CategoryCafe, 38.721, -9.141)
	lunch := foodPlace("lunch spot", types.CategoryRestaurant, 38.722, -9.142)
	dinner := foodPlace("dinner spot", types.CategoryRestaurant, 38.723, -9.143)

	repo.On("FetchCandidates", mock.Anything, mock.MatchedBy(hasCategories(types.CategoryCafe, types.CategoryRestaurant))).
		Return([]types.CandidatePlace{cafe}, nil).Once()
	repo.On("FetchCandidates", mock.Anything, mock.MatchedBy(hasCategories(types.CategoryRestaurant))).
		Return([]types.CandidatePlace{lunch, dinner}, nil).Once()
	repo.On("FetchCandidates", mock.Anything, mock.MatchedBy(hasCategories(types.CategoryRestaurant, types.CategoryBar))).
		Return([]types.CandidatePlace{dinner, lunch}, nil).Once()

	anchors := [3]types.Coordinate{mealTestAnchor, mealTestAnchor, mealTestAnchor}
	picks, warnings := svc.pickMeals(context.Background(), 1, mealRequest(), anchors, types.NewExclusionSet())

	require.NotNil(t, picks[0])
	require.NotNil(t, picks[1])
	require.NotNil(t, picks[2])
	assert.Equal(t, cafe.ID, picks[0].ID)
	assert.Empty(t, warnings)
	// Three distinct picks even though lunch and dinner share candidates.
	assert.NotEqual(t, picks[1].ID, picks[2].ID)
	search.AssertNotCalled(t, "SearchNearby", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPickMeals_EmptySlotFallsBackToOneExternalCall(t *testing.T) {
	repo := new(MockRepository)
	search := new(MockSearch)
	svc := newTestService(repo, search)

	lunch := foodPlace("lunch spot", types.CategoryRestaurant, 38.721, -9.141)
	dinner := foodPlace("dinner spot", types.CategoryBar, 38.722, -9.142)

	// Breakfast slot finds nothing locally.
	repo.On("FetchCandidates", mock.Anything, mock.MatchedBy(hasCategories(types.CategoryCafe, types.CategoryRestaurant))).
		Return([]types.CandidatePlace{}, nil).Once()
	repo.On("FetchCandidates", mock.Anything, mock.MatchedBy(hasCategories(types.CategoryRestaurant))).
		Return([]types.CandidatePlace{lunch}, nil).Once()
	repo.On("FetchCandidates", mock.Anything, mock.MatchedBy(hasCategories(types.CategoryRestaurant, types.CategoryBar))).
		Return([]types.CandidatePlace{dinner}, nil).Once()

	search.On("SearchNearby", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]types.CandidatePlace{}, nil).Once()

	anchors := [3]types.Coordinate{mealTestAnchor, mealTestAnchor, mealTestAnchor}
	picks, warnings := svc.pickMeals(context.Background(), 2, mealRequest(), anchors, types.NewExclusionSet())

	assert.Nil(t, picks[0])
	require.NotNil(t, picks[1])
	require.NotNil(t, picks[2])
	require.Len(t, warnings, 1)
	assert.Equal(t, types.WarnMealUnavailable, warnings[0].Code)
	assert.Contains(t, warnings[0].Message, "breakfast")
	assert.Contains(t, warnings[0].Message, "day 2")
	search.AssertNumberOfCalls(t, "SearchNearby", 1)
}

func TestPickMeals_ExternalDiscoveryIsPersisted(t *testing.T) {
	repo := new(MockRepository)
	search := new(MockSearch)
	svc := newTestService(repo, search)

	repo.On("FetchCandidates", mock.Anything, mock.Anything).
		Return([]types.CandidatePlace{}, nil)

	found := foodPlace("discovered cafe", types.CategoryCafe, 38.721, -9.141)
	found.ID = uuid.Nil
	found.External = &types.ExternalSource{Provider: "gemini", PlaceID: "discovered-cafe"}
	// Only the breakfast slot's categories match the discovery.
	search.On("SearchNearby", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]types.CandidatePlace{found}, nil)

	repo.On("FindByExternalID", mock.Anything, "gemini", "discovered-cafe").Return(nil, nil)
	persisted := found
	persisted.ID = uuid.New()
	repo.On("CreateCandidate", mock.Anything, mock.Anything).Return(persisted, nil)

	anchors := [3]types.Coordinate{mealTestAnchor, mealTestAnchor, mealTestAnchor}
	picks, _ := svc.pickMeals(context.Background(), 1, mealRequest(), anchors, types.NewExclusionSet())

	require.NotNil(t, picks[0])
	assert.Equal(t, persisted.ID, picks[0].ID)
}

func TestPickMeals_RespectsExclusionSet(t *testing.T) {
	repo := new(MockRepository)
	search := new(MockSearch)
	svc := newTestService(repo, search)

	taken := foodPlace("already visited", types.CategoryRestaurant, 38.721, -9.141)
	repo.On("FetchCandidates", mock.Anything, mock.Anything).
		Return([]types.CandidatePlace{taken}, nil)
	search.On("SearchNearby", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]types.CandidatePlace{}, nil)

	used := types.NewExclusionSet()
	used.Add(taken.ID)

	anchors := [3]types.Coordinate{mealTestAnchor, mealTestAnchor, mealTestAnchor}
	picks, warnings := svc.pickMeals(context.Background(), 1, mealRequest(), anchors, used)

	assert.Nil(t, picks[0])
	assert.Nil(t, picks[1])
	assert.Nil(t, picks[2])
	assert.Len(t, warnings, 3)
}

func TestPickMeals_ZeroConfigFallsBackToDefaultRadii(t *testing.T) {
	repo := new(MockRepository)
	search := new(MockSearch)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewServiceImpl(repo, search, config.PlannerConfig{}, logger)

	// A few km from the anchor: inside the default radii, outside a zero one.
	candidates := []types.CandidatePlace{
		foodPlace("morning cafe", types.CategoryCafe, 38.75, -9.14),
		foodPlace("lunch spot", types.CategoryRestaurant, 38.76, -9.14),
		foodPlace("dinner spot", types.CategoryRestaurant, 38.77, -9.14),
	}
	repo.On("FetchCandidates", mock.Anything, mock.Anything).Return(candidates, nil)

	anchors := [3]types.Coordinate{mealTestAnchor, mealTestAnchor, mealTestAnchor}
	picks, warnings := svc.pickMeals(context.Background(), 1, mealRequest(), anchors, types.NewExclusionSet())

	require.NotNil(t, picks[0])
	require.NotNil(t, picks[1])
	require.NotNil(t, picks[2])
	assert.Empty(t, warnings)
	search.AssertNotCalled(t, "SearchNearby", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestWithinRadius(t *testing.T) {
	near := foodPlace("near", types.CategoryRestaurant, 38.721, -9.141)
	far := foodPlace("far", types.CategoryRestaurant, 39.5, -8.0)

	got := withinRadius([]types.CandidatePlace{near, far}, mealTestAnchor, 1.5)

	require.Len(t, got, 1)
	assert.Equal(t, "near", got[0].Name)
}
