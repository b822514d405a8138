package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHaversineKm(t *testing.T) {
	lisbon := Coordinate{Lat: 38.7223, Lon: -9.1393}
	porto := Coordinate{Lat: 41.1579, Lon: -8.6291}

	t.Run("known distance", func(t *testing.T) {
		d := HaversineKm(lisbon, porto)
		// Lisbon to Porto is roughly 274 km great-circle.
		assert.InDelta(t, 274, d, 5)
	})

	t.Run("symmetric", func(t *testing.T) {
		assert.InDelta(t, HaversineKm(lisbon, porto), HaversineKm(porto, lisbon), 1e-9)
	})

	t.Run("zero at identity", func(t *testing.T) {
		assert.InDelta(t, 0, HaversineKm(lisbon, lisbon), 1e-9)
	})

	t.Run("short hop", func(t *testing.T) {
		a := Coordinate{Lat: 38.7223, Lon: -9.1393}
		b := Coordinate{Lat: 38.7223, Lon: -9.1500}
		d := HaversineKm(a, b)
		assert.Greater(t, d, 0.0)
		assert.Less(t, d, 2.0)
	})
}

func TestCentroid(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, Coordinate{}, Centroid(nil))
	})

	t.Run("single point", func(t *testing.T) {
		p := Coordinate{Lat: 10, Lon: 20}
		assert.Equal(t, p, Centroid([]Coordinate{p}))
	})

	t.Run("mean of members", func(t *testing.T) {
		c := Centroid([]Coordinate{
			{Lat: 0, Lon: 0},
			{Lat: 2, Lon: 4},
		})
		require.InDelta(t, 1, c.Lat, 1e-9)
		require.InDelta(t, 2, c.Lon, 1e-9)
	})
}

func TestCoordinateValid(t *testing.T) {
	assert.True(t, Coordinate{Lat: 33.89, Lon: 35.50}.Valid())
	assert.True(t, Coordinate{}.Valid())
	assert.False(t, Coordinate{Lat: 91, Lon: 0}.Valid())
	assert.False(t, Coordinate{Lat: 0, Lon: -181}.Valid())
}
