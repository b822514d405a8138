package planner

import (
	"math"

	"github.com/FACorreiaa/go-trip-planner/internal/types"
)

const (
	defaultTravelSpeedKmh = 25
	defaultVisitMinutes   = 90
	defaultDayStart       = 9 * 60 // 09:00
)

// ScheduleDay converts an ordered route into clock-time visit blocks. Travel
// time between stops is a flat-speed estimate: ceil(km / speed * 60) minutes,
// where the default 25 km/h accounts for urban traffic. Visits last the
// place's suggested duration or the default.
func ScheduleDay(route []types.CandidatePlace, start types.ClockTime, speedKmh float64, visitMinutes int) []types.RouteBlock {
	if speedKmh <= 0 {
		speedKmh = defaultTravelSpeedKmh
	}
	if visitMinutes <= 0 {
		visitMinutes = defaultVisitMinutes
	}

	blocks := make([]types.RouteBlock, 0, len(route))
	clock := start
	for i, place := range route {
		travelMin := 0
		travelKm := 0.0
		if i > 0 {
			travelKm = types.HaversineKm(route[i-1].Location, place.Location)
			travelMin = travelMinutes(travelKm, speedKmh)
			clock = clock.Add(travelMin)
		}

		visit := visitMinutes
		if place.VisitMinutes != nil && *place.VisitMinutes > 0 {
			visit = *place.VisitMinutes
		}

		block := types.RouteBlock{
			Place:         place,
			Start:         clock,
			End:           clock.Add(visit),
			TravelMinutes: travelMin,
			TravelKm:      travelKm,
		}
		clock = block.End
		blocks = append(blocks, block)
	}
	return blocks
}

func travelMinutes(distanceKm, speedKmh float64) int {
	return int(math.Ceil(distanceKm / speedKmh * 60))
}
