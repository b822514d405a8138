package poisearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/FACorreiaa/go-trip-planner/app/observability/metrics"
	"github.com/FACorreiaa/go-trip-planner/config"
	"github.com/FACorreiaa/go-trip-planner/internal/types"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrUnavailable signals that the external search is degraded (circuit open
// or call failed). Callers treat it as "no augmentation available", never as
// a fatal error.
var ErrUnavailable = errors.New("poi search unavailable")

var _ Search = (*ServiceImpl)(nil)

// Search is the external POI search collaborator contract.
type Search interface {
	SearchByText(ctx context.Context, query string, minRating float64) ([]types.CandidatePlace, error)
	SearchNearby(ctx context.Context, lat, lon float64, radiusMeters int, minRating float64) ([]types.CandidatePlace, error)
}

// contentGenerator abstracts the generative backend so tests can stub it.
type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

type ServiceImpl struct {
	logger      *slog.Logger
	generator   contentGenerator
	breaker     *Breaker
	cache       *cache.Cache
	callTimeout time.Duration
	provider    string
}

func NewServiceImpl(generator contentGenerator, breaker *Breaker, cfg config.SearchConfig, logger *slog.Logger) *ServiceImpl {
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	breaker.OnTransition(func(from, to BreakerState) {
		logger.Warn("POI search breaker state change",
			slog.String("from", from.String()), slog.String("to", to.String()))
		if m := metrics.Get(); m != nil {
			m.BreakerTransitionsTotal.Add(context.Background(), 1)
		}
	})
	return &ServiceImpl{
		logger:      logger,
		generator:   generator,
		breaker:     breaker,
		cache:       cache.New(ttl, 2*ttl),
		callTimeout: timeout,
		provider:    "gemini",
	}
}

func (s *ServiceImpl) SearchByText(ctx context.Context, query string, minRating float64) ([]types.CandidatePlace, error) {
	ctx, span := otel.Tracer("POISearchService").Start(ctx, "SearchByText", trace.WithAttributes(
		attribute.String("search.query", query),
		attribute.Float64("search.min_rating", minRating),
	))
	defer span.End()

	key := fmt.Sprintf("text|%s|%.1f", strings.ToLower(strings.TrimSpace(query)), minRating)
	return s.search(ctx, span, key, searchByTextPrompt(query, minRating))
}

func (s *ServiceImpl) SearchNearby(ctx context.Context, lat, lon float64, radiusMeters int, minRating float64) ([]types.CandidatePlace, error) {
	ctx, span := otel.Tracer("POISearchService").Start(ctx, "SearchNearby", trace.WithAttributes(
		attribute.Float64("search.lat", lat),
		attribute.Float64("search.lon", lon),
		attribute.Int("search.radius_m", radiusMeters),
	))
	defer span.End()

	key := fmt.Sprintf("nearby|%.4f|%.4f|%d|%.1f", lat, lon, radiusMeters, minRating)
	return s.search(ctx, span, key, searchNearbyPrompt(lat, lon, radiusMeters, minRating))
}

func (s *ServiceImpl) search(ctx context.Context, span trace.Span, cacheKey, prompt string) ([]types.CandidatePlace, error) {
	if cached, found := s.cache.Get(cacheKey); found {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached.([]types.CandidatePlace), nil
	}

	if !s.breaker.Allow() {
		span.SetAttributes(attribute.String("breaker.state", s.breaker.State().String()))
		span.SetStatus(codes.Error, "circuit open")
		return nil, fmt.Errorf("circuit open: %w", ErrUnavailable)
	}

	if m := metrics.Get(); m != nil {
		m.ExternalSearchRequestsTotal.Add(ctx, 1)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	startTime := time.Now()
	raw, err := s.generator.GenerateContent(callCtx, prompt)
	if m := metrics.Get(); m != nil {
		m.ExternalSearchSeconds.Record(ctx, time.Since(startTime).Seconds())
	}
	if err != nil {
		s.breaker.RecordFailure()
		s.logger.WarnContext(ctx, "External POI search call failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "search call failed")
		return nil, fmt.Errorf("search call failed: %w", ErrUnavailable)
	}

	places, err := parsePlaceList(raw, s.provider)
	if err != nil {
		// Malformed payload counts against the breaker like any other failure.
		s.breaker.RecordFailure()
		s.logger.WarnContext(ctx, "External POI search returned malformed payload", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed payload")
		return nil, fmt.Errorf("malformed payload: %w", ErrUnavailable)
	}

	s.breaker.RecordSuccess()
	s.cache.SetDefault(cacheKey, places)
	span.SetAttributes(attribute.Int("search.results", len(places)))
	span.SetStatus(codes.Ok, "search completed")
	return places, nil
}

// placePayload mirrors the provider's loose JSON. price_level arrives in
// whatever format the provider felt like; ParsePriceLevel normalizes it.
type placePayload struct {
	Name           string  `json:"name"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	Category       string  `json:"category"`
	Classification string  `json:"classification"`
	Rating         float64 `json:"rating"`
	Popularity     int     `json:"popularity"`
	PriceLevel     any     `json:"price_level"`
	VisitMinutes   *int    `json:"visit_minutes"`
	PlaceID        string  `json:"place_id"`
}

func parsePlaceList(raw, provider string) ([]types.CandidatePlace, error) {
	clean := cleanJSONResponse(raw)
	var payload struct {
		Places []placePayload `json:"places"`
	}
	if err := json.Unmarshal([]byte(clean), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse place list JSON: %w", err)
	}

	out := make([]types.CandidatePlace, 0, len(payload.Places))
	for _, p := range payload.Places {
		loc := types.Coordinate{Lat: p.Latitude, Lon: p.Longitude}
		if p.Name == "" || !loc.Valid() {
			continue
		}
		price, _ := types.ParsePriceLevel(p.PriceLevel)
		classification := types.Classification(strings.ToLower(strings.TrimSpace(p.Classification)))
		switch classification {
		case types.ClassificationMustSee, types.ClassificationHiddenGem,
			types.ClassificationConditional, types.ClassificationTouristTrap:
		default:
			classification = types.ClassificationOther
		}
		placeID := p.PlaceID
		if placeID == "" {
			placeID = slugify(p.Name)
		}
		out = append(out, types.CandidatePlace{
			Name:           p.Name,
			Location:       loc,
			Category:       strings.ToLower(strings.TrimSpace(p.Category)),
			Classification: classification,
			Rating:         p.Rating,
			Popularity:     p.Popularity,
			PriceLevel:     price,
			VisitMinutes:   p.VisitMinutes,
			External: &types.ExternalSource{
				Provider: provider,
				PlaceID:  placeID,
			},
		})
	}
	return out, nil
}

// cleanJSONResponse strips markdown fences and surrounding prose the model
// sometimes wraps around the JSON body.
func cleanJSONResponse(response string) string {
	response = strings.TrimSpace(response)

	if strings.HasPrefix(response, "```json") {
		response = strings.TrimPrefix(response, "```json")
	} else if strings.HasPrefix(response, "```") {
		response = strings.TrimPrefix(response, "```")
	}
	if strings.HasSuffix(response, "```") {
		response = strings.TrimSuffix(response, "```")
	}
	response = strings.TrimSpace(response)

	firstBrace := strings.Index(response, "{")
	lastBrace := strings.LastIndex(response, "}")
	if firstBrace == -1 || lastBrace == -1 || lastBrace < firstBrace {
		return response
	}
	return response[firstBrace : lastBrace+1]
}

func slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_':
			return '-'
		default:
			return -1
		}
	}, s)
	return strings.Trim(s, "-")
}
