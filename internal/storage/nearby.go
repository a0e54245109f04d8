package storage

import (
	"math"

	"github.com/example/ecocommute/internal/models"
)

// Nearby ranks rides by start-location distance from a point and
// returns the closest limit entries.
func Nearby(rides []models.Ride, lat, lon float64, limit int) []models.Ride {
	type pair struct {
		r    models.Ride
		dist float64
	}
	arr := make([]pair, 0, len(rides))
	for _, r := range rides {
		dist := Haversine(lat, lon, r.StartLocation.Lat, r.StartLocation.Lon)
		arr = append(arr, pair{r, dist})
	}
	// partial selection sort for top-N
	n := limit
	if n > len(arr) {
		n = len(arr)
	}
	for i := 0; i < n; i++ {
		minIdx := i
		for j := i + 1; j < len(arr); j++ {
			if arr[j].dist < arr[minIdx].dist {
				minIdx = j
			}
		}
		arr[i], arr[minIdx] = arr[minIdx], arr[i]
	}
	out := make([]models.Ride, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, arr[i].r)
	}
	return out
}

// Haversine distance in meters
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
