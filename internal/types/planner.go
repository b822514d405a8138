package types

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Classification is the curatorial tag assigned to a place.
type Classification string

const (
	ClassificationMustSee     Classification = "must-see"
	ClassificationHiddenGem   Classification = "hidden-gem"
	ClassificationConditional Classification = "conditional"
	ClassificationTouristTrap Classification = "tourist-trap"
	ClassificationOther       Classification = "other"
)

// Priority returns the ordinal sort rank of a classification. Lower is better;
// it is the primary key when ranking a candidate pool.
func (c Classification) Priority() int {
	switch c {
	case ClassificationMustSee, ClassificationHiddenGem:
		return 0
	case ClassificationConditional:
		return 1
	case ClassificationTouristTrap:
		return 2
	default:
		return 3
	}
}

// PriceLevel is a normalized 0 (free) to 4 (very expensive) price tier.
type PriceLevel int

const (
	PriceLevelFree PriceLevel = iota
	PriceLevelInexpensive
	PriceLevelModerate
	PriceLevelExpensive
	PriceLevelVeryExpensive
)

// ParsePriceLevel normalizes the heterogeneous price formats returned by
// external providers (numbers, dollar signs, Google enum strings, words) into
// a PriceLevel. The boolean reports whether the value was recognized.
func ParsePriceLevel(v any) (PriceLevel, bool) {
	switch t := v.(type) {
	case nil:
		return PriceLevelFree, false
	case int:
		return clampPriceLevel(t)
	case int64:
		return clampPriceLevel(int(t))
	case float64:
		return clampPriceLevel(int(t))
	case PriceLevel:
		return clampPriceLevel(int(t))
	case string:
		s := strings.TrimSpace(strings.ToLower(t))
		if s == "" {
			return PriceLevelFree, false
		}
		if n, err := strconv.Atoi(s); err == nil {
			return clampPriceLevel(n)
		}
		if strings.Trim(s, "$") == "" {
			return clampPriceLevel(len(s))
		}
		switch strings.TrimPrefix(s, "price_level_") {
		case "free":
			return PriceLevelFree, true
		case "cheap", "inexpensive", "budget":
			return PriceLevelInexpensive, true
		case "moderate", "mid-range", "mid_range":
			return PriceLevelModerate, true
		case "expensive":
			return PriceLevelExpensive, true
		case "very expensive", "very_expensive", "luxury":
			return PriceLevelVeryExpensive, true
		}
		return PriceLevelFree, false
	default:
		return PriceLevelFree, false
	}
}

func clampPriceLevel(n int) (PriceLevel, bool) {
	if n < 0 || n > 4 {
		return PriceLevelFree, false
	}
	return PriceLevel(n), true
}

// Well-known categories. Food categories are exempt from the tourist-trap
// exclusion: filtering traps out of food searches in food-scarce areas hurts
// results more than the trap risk. Product decision, keep as-is.
const (
	CategoryRestaurant = "restaurant"
	CategoryCafe       = "cafe"
	CategoryBar        = "bar"
	CategoryLodging    = "lodging"
)

// IsFoodCategory reports whether any of the given categories is food-related.
func IsFoodCategory(categories ...string) bool {
	for _, c := range categories {
		switch strings.ToLower(c) {
		case CategoryRestaurant, CategoryCafe, CategoryBar:
			return true
		}
	}
	return false
}

// ExternalSource identifies a place discovered through the external POI
// search collaborator and not yet (or just) persisted locally.
type ExternalSource struct {
	Provider string `json:"provider"`
	PlaceID  string `json:"place_id"`
}

// CandidatePlace is one point of interest considered for a trip. Immutable
// once fetched; enrichment (photos, better ratings) happens elsewhere.
type CandidatePlace struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	Location       Coordinate      `json:"location"`
	Category       string          `json:"category"`
	Classification Classification  `json:"classification"`
	Rating         float64         `json:"rating"`
	Popularity     int             `json:"popularity"`
	PriceLevel     PriceLevel      `json:"price_level"`
	VisitMinutes   *int            `json:"visit_minutes,omitempty"`
	Country        string          `json:"country,omitempty"`
	City           string          `json:"city,omitempty"`
	External       *ExternalSource `json:"external,omitempty"`
}

// ExclusionSet records place identities already committed to the plan within
// one generation request. It only grows; reads during concurrent meal fetches
// are safe because writes happen only in the sequential reconciliation step.
type ExclusionSet struct {
	ids map[uuid.UUID]struct{}
}

func NewExclusionSet() *ExclusionSet {
	return &ExclusionSet{ids: make(map[uuid.UUID]struct{})}
}

func (s *ExclusionSet) Add(id uuid.UUID) {
	if id == uuid.Nil {
		return
	}
	s.ids[id] = struct{}{}
}

func (s *ExclusionSet) Contains(id uuid.UUID) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *ExclusionSet) Len() int { return len(s.ids) }

// IDs returns the excluded identities, for repository NOT-IN filters.
func (s *ExclusionSet) IDs() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	return out
}

// DayCluster is an unordered group of places assigned to one day.
type DayCluster struct {
	Places   []CandidatePlace `json:"places"`
	Centroid Coordinate       `json:"centroid"`
}

// ClockTime is minutes since midnight, wrapped modulo 24h. Using total
// minutes keeps the arithmetic safe from raw hour overflow.
type ClockTime int

const minutesPerDay = 1440

// NewClockTime builds a ClockTime from an hour and minute of day.
func NewClockTime(hour, minute int) ClockTime {
	return ClockTime(0).Add(hour*60 + minute)
}

// Add returns the clock time mins minutes later, wrapping at midnight.
func (t ClockTime) Add(mins int) ClockTime {
	m := (int(t) + mins) % minutesPerDay
	if m < 0 {
		m += minutesPerDay
	}
	return ClockTime(m)
}

// Minutes returns the raw minutes-since-midnight value.
func (t ClockTime) Minutes() int { return int(t) }

func (t ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// MarshalJSON renders the clock time as "HH:MM".
func (t ClockTime) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(t.String())), nil
}

func (t *ClockTime) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("clock time must be a string: %w", err)
	}
	var hour, minute int
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return fmt.Errorf("clock time must be HH:MM, got %q: %w", s, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return fmt.Errorf("clock time out of range: %q", s)
	}
	*t = NewClockTime(hour, minute)
	return nil
}

// RouteBlock is one scheduled visit within a day.
type RouteBlock struct {
	Place         CandidatePlace `json:"place"`
	Start         ClockTime      `json:"start"`
	End           ClockTime      `json:"end"`
	TravelMinutes int            `json:"travel_minutes"`
	TravelKm      float64        `json:"travel_km"`
}

// DayPlan is one scheduled day: ordered visits plus meals and lodging.
type DayPlan struct {
	Day           int             `json:"day"`
	Blocks        []RouteBlock    `json:"blocks"`
	Breakfast     *CandidatePlace `json:"breakfast,omitempty"`
	Lunch         *CandidatePlace `json:"lunch,omitempty"`
	Dinner        *CandidatePlace `json:"dinner,omitempty"`
	Lodging       *CandidatePlace `json:"lodging,omitempty"`
	TotalKm       float64         `json:"total_km"`
	TravelMinutes int             `json:"travel_minutes"`
}

// Anchor returns the day's last visited coordinate, which seeds the next
// day's routing and the lodging search. ok is false for an empty day.
func (d DayPlan) Anchor() (Coordinate, bool) {
	if len(d.Blocks) == 0 {
		return Coordinate{}, false
	}
	return d.Blocks[len(d.Blocks)-1].Place.Location, true
}

// Warning codes attached to a TripPlan. Scarcity and degraded external
// services are reported here, never as errors.
const (
	WarnLimitedData        = "limited_data"
	WarnExternalDegraded   = "external_degraded"
	WarnMealUnavailable    = "meal_unavailable"
	WarnLodgingUnavailable = "lodging_unavailable"
)

type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// TripPlan is the engine's final product. It is always returned, possibly
// with fewer days filled, missing meals or lodging, and warnings attached.
type TripPlan struct {
	ID            uuid.UUID  `json:"id"`
	Destination   string     `json:"destination"`
	Origin        Coordinate `json:"origin"`
	Days          []DayPlan  `json:"days"`
	TotalKm       float64    `json:"total_km"`
	TravelMinutes int        `json:"travel_minutes"`
	Warnings      []Warning  `json:"warnings,omitempty"`
}

// GenerateTripRequest is the engine's input.
type GenerateTripRequest struct {
	Country      string     `json:"country"`
	City         string     `json:"city,omitempty"`
	Origin       Coordinate `json:"origin"`
	Days         int        `json:"days"`
	PlacesPerDay int        `json:"places_per_day,omitempty"`
	Categories   []string   `json:"categories"`
	PriceLevel   *int       `json:"price_level,omitempty"`
	Seed         *int64     `json:"seed,omitempty"`
}

// Validate checks the request and applies defaults. Invalid input is the only
// failure the planner surfaces as an error.
func (r *GenerateTripRequest) Validate() error {
	if r.Country == "" {
		return fmt.Errorf("country is required")
	}
	if r.Days < 1 {
		return fmt.Errorf("days must be at least 1, got %d", r.Days)
	}
	if !r.Origin.Valid() {
		return fmt.Errorf("origin coordinates out of range: lat=%f, lon=%f", r.Origin.Lat, r.Origin.Lon)
	}
	if len(r.Categories) == 0 {
		return fmt.Errorf("at least one interest category is required")
	}
	if r.PlacesPerDay == 0 {
		r.PlacesPerDay = 4
	}
	if r.PlacesPerDay < 1 || r.PlacesPerDay > 10 {
		return fmt.Errorf("places_per_day must be between 1 and 10, got %d", r.PlacesPerDay)
	}
	if r.PriceLevel != nil {
		if _, ok := ParsePriceLevel(*r.PriceLevel); !ok {
			return fmt.Errorf("price_level must be between 0 and 4, got %d", *r.PriceLevel)
		}
	}
	return nil
}
