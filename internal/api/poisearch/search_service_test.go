package poisearch

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/FACorreiaa/go-trip-planner/config"
	"github.com/FACorreiaa/go-trip-planner/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	response string
	err      error
	calls    int
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func newTestService(gen *fakeGenerator, breaker *Breaker) *ServiceImpl {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	cfg := config.SearchConfig{CallTimeout: time.Second, CacheTTL: time.Minute}
	return NewServiceImpl(gen, breaker, cfg, logger)
}

const samplePayload = `{
  "places": [
    {
      "name": "Cafe Central",
      "latitude": 33.8915,
      "longitude": 35.5012,
      "category": "Cafe",
      "classification": "hidden-gem",
      "rating": 4.6,
      "popularity": 820,
      "price_level": "$$",
      "visit_minutes": 45,
      "place_id": "cafe-central-beirut"
    },
    {
      "name": "No Coordinates Diner",
      "latitude": 120.0,
      "longitude": 35.0,
      "category": "restaurant",
      "rating": 4.0
    }
  ]
}`

func TestSearchByTextParsesAndNormalizes(t *testing.T) {
	gen := &fakeGenerator{response: samplePayload}
	svc := newTestService(gen, NewBreaker(3, time.Minute, 1))

	places, err := svc.SearchByText(context.Background(), "best cafes in Beirut", 4.0)
	require.NoError(t, err)
	require.Len(t, places, 1, "entry with invalid coordinates must be dropped")

	p := places[0]
	assert.Equal(t, "Cafe Central", p.Name)
	assert.Equal(t, "cafe", p.Category)
	assert.Equal(t, types.ClassificationHiddenGem, p.Classification)
	assert.Equal(t, types.PriceLevelModerate, p.PriceLevel)
	require.NotNil(t, p.External)
	assert.Equal(t, "gemini", p.External.Provider)
	assert.Equal(t, "cafe-central-beirut", p.External.PlaceID)
	require.NotNil(t, p.VisitMinutes)
	assert.Equal(t, 45, *p.VisitMinutes)
}

func TestSearchByTextHandlesMarkdownFences(t *testing.T) {
	gen := &fakeGenerator{response: "```json\n" + samplePayload + "\n```"}
	svc := newTestService(gen, NewBreaker(3, time.Minute, 1))

	places, err := svc.SearchByText(context.Background(), "cafes", 0)
	require.NoError(t, err)
	assert.Len(t, places, 1)
}

func TestSearchCachesResults(t *testing.T) {
	gen := &fakeGenerator{response: samplePayload}
	svc := newTestService(gen, NewBreaker(3, time.Minute, 1))

	_, err := svc.SearchNearby(context.Background(), 33.89, 35.50, 15000, 0)
	require.NoError(t, err)
	_, err = svc.SearchNearby(context.Background(), 33.89, 35.50, 15000, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, gen.calls, "identical query must be served from cache")
}

func TestSearchFailureTripsBreaker(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("rate limited")}
	breaker := NewBreaker(3, time.Minute, 1)
	svc := newTestService(gen, breaker)

	for i := 0; i < 3; i++ {
		_, err := svc.SearchByText(context.Background(), "anything", 0)
		require.ErrorIs(t, err, ErrUnavailable)
	}
	assert.Equal(t, StateOpen, breaker.State())

	// Circuit open: rejected immediately, no network attempt.
	_, err := svc.SearchByText(context.Background(), "anything", 0)
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 3, gen.calls)
}

func TestSearchMalformedPayloadIsFailure(t *testing.T) {
	gen := &fakeGenerator{response: "I could not find any places, sorry!"}
	breaker := NewBreaker(1, time.Minute, 1)
	svc := newTestService(gen, breaker)

	_, err := svc.SearchByText(context.Background(), "anything", 0)
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, StateOpen, breaker.State())
}

func TestCleanJSONResponse(t *testing.T) {
	assert.Equal(t, `{"a":1}`, cleanJSONResponse("Here you go:\n```json\n{\"a\":1}\n```\nEnjoy!"))
	assert.Equal(t, `{"a":1}`, cleanJSONResponse(`{"a":1}`))
	assert.Equal(t, "no json here", cleanJSONResponse("no json here"))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "cafe-central", slugify("Cafe Central"))
	assert.Equal(t, "st-georges-bay", slugify("St. George's Bay!"))
}
