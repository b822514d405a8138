package poisearch

import "fmt"

const placeListSchema = `Respond with ONLY a JSON object, no prose, matching:
{
  "places": [
    {
      "name": "string",
      "latitude": 0.0,
      "longitude": 0.0,
      "category": "string (e.g. museum, restaurant, cafe, bar, park, lodging)",
      "classification": "one of: must-see, hidden-gem, conditional, tourist-trap, other",
      "rating": 0.0,
      "popularity": 0,
      "price_level": "0-4, $ signs, or words like moderate",
      "visit_minutes": 90,
      "place_id": "stable provider id or slug"
    }
  ]
}`

func searchByTextPrompt(query string, minRating float64) string {
	return fmt.Sprintf(`You are a point-of-interest search service.
Find up to 10 real, currently operating places matching: %q.
Only include places with a rating of at least %.1f (0 means no minimum).
Use accurate coordinates. %s`, query, minRating, placeListSchema)
}

func searchNearbyPrompt(lat, lon float64, radiusMeters int, minRating float64) string {
	return fmt.Sprintf(`You are a point-of-interest search service.
Find up to 10 real, currently operating places within %d meters of latitude %.5f, longitude %.5f.
Only include places with a rating of at least %.1f (0 means no minimum).
Use accurate coordinates. %s`, radiusMeters, lat, lon, minRating, placeListSchema)
}
