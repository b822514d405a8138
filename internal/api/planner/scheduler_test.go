package planner

import (
	"testing"

	"github.com/FACorreiaa/go-trip-planner/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleDay_BlocksAreContiguousAndOrdered(t *testing.T) {
	route := []types.CandidatePlace{
		placeAt("a", 38.72, -9.14),
		placeAt("b", 38.74, -9.14),
		placeAt("c", 38.76, -9.14),
	}
	start := types.NewClockTime(9, 0)

	blocks := ScheduleDay(route, start, 25, 90)

	require.Len(t, blocks, 3)
	assert.Equal(t, start, blocks[0].Start)
	assert.Equal(t, 0, blocks[0].TravelMinutes)
	for i, b := range blocks {
		assert.Equal(t, b.Start.Add(90), b.End)
		if i > 0 {
			assert.Positive(t, b.TravelMinutes)
			assert.Equal(t, blocks[i-1].End.Add(b.TravelMinutes), b.Start)
		}
	}
}

func TestScheduleDay_TravelTimeRoundsUp(t *testing.T) {
	// ~2.22 km apart at 25 km/h is ~5.34 min of travel, so 6 after ceil.
	route := []types.CandidatePlace{
		placeAt("a", 38.72, -9.14),
		placeAt("b", 38.74, -9.14),
	}

	blocks := ScheduleDay(route, types.NewClockTime(9, 0), 25, 90)

	require.Len(t, blocks, 2)
	assert.Equal(t, 6, blocks[1].TravelMinutes)
	assert.InDelta(t, 2.22, blocks[1].TravelKm, 0.05)
}

func TestScheduleDay_HonorsPlaceVisitDuration(t *testing.T) {
	short := 30
	p := placeAt("quick stop", 38.72, -9.14)
	p.VisitMinutes = &short

	blocks := ScheduleDay([]types.CandidatePlace{p}, types.NewClockTime(10, 0), 25, 90)

	require.Len(t, blocks, 1)
	assert.Equal(t, types.NewClockTime(10, 30), blocks[0].End)
}

func TestScheduleDay_DefaultsForNonPositiveConfig(t *testing.T) {
	route := []types.CandidatePlace{
		placeAt("a", 38.72, -9.14),
		placeAt("b", 38.74, -9.14),
	}

	blocks := ScheduleDay(route, types.NewClockTime(9, 0), 0, 0)

	require.Len(t, blocks, 2)
	// Default visit and 25 km/h travel speed kick in.
	assert.Equal(t, types.NewClockTime(10, 30), blocks[0].End)
	assert.Equal(t, 6, blocks[1].TravelMinutes)
}

func TestScheduleDay_EmptyRoute(t *testing.T) {
	blocks := ScheduleDay(nil, types.NewClockTime(9, 0), 25, 90)
	assert.Empty(t, blocks)
}
