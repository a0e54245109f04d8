// Package geocode wraps the nominatim HTTP API for reverse geocoding and
// free-text place search.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/example/ecocommute/internal/models"
)

// Candidate is one forward-geocoding result: coordinates, a display
// address and a stable identifier.
type Candidate struct {
	Coordinates models.Coord `json:"coordinates"`
	Address     string       `json:"address"`
	PlaceID     int64        `json:"place_id"`
}

// Client is the interface consumed by the location picker.
type Client interface {
	Reverse(ctx context.Context, lat, lon float64) (string, error)
	Search(ctx context.Context, query string) ([]Candidate, error)
}

// SearchLimit caps forward-geocoding results per query. No pagination.
const SearchLimit = 5

// NominatimClient performs lookups against a nominatim HTTP server.
type NominatimClient struct {
	Endpoint string
	Client   *http.Client
	cache    *Cache
}

func NewNominatimClient(endpoint string, timeout time.Duration) *NominatimClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NominatimClient{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: timeout},
		cache:    NewCache(10 * time.Minute),
	}
}

// Reverse resolves (lat, lon) to a display address. Results are cached
// briefly since map interaction tends to re-query nearby points.
func (n *NominatimClient) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	if addr, ok := n.cache.Get(lat, lon); ok {
		return addr, nil
	}
	u := fmt.Sprintf("%s/reverse?format=json&lat=%.6f&lon=%.6f", n.Endpoint, lat, lon)
	var out struct {
		DisplayName string `json:"display_name"`
	}
	if err := n.getJSON(ctx, u, &out); err != nil {
		return "", err
	}
	if out.DisplayName == "" {
		return "", fmt.Errorf("reverse geocode: no result for %.6f,%.6f", lat, lon)
	}
	n.cache.Set(lat, lon, out.DisplayName)
	return out.DisplayName, nil
}

// Search returns up to SearchLimit candidates for a free-text query.
func (n *NominatimClient) Search(ctx context.Context, query string) ([]Candidate, error) {
	u := fmt.Sprintf("%s/search?format=json&q=%s&limit=%d", n.Endpoint, url.QueryEscape(query), SearchLimit)
	var out []struct {
		Lat         string `json:"lat"`
		Lon         string `json:"lon"`
		DisplayName string `json:"display_name"`
		PlaceID     int64  `json:"place_id"`
	}
	if err := n.getJSON(ctx, u, &out); err != nil {
		return nil, err
	}
	cands := make([]Candidate, 0, len(out))
	for _, item := range out {
		lat, err1 := strconv.ParseFloat(item.Lat, 64)
		lon, err2 := strconv.ParseFloat(item.Lon, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		cands = append(cands, Candidate{
			Coordinates: models.Coord{Lat: lat, Lon: lon},
			Address:     item.DisplayName,
			PlaceID:     item.PlaceID,
		})
	}
	return cands, nil
}

func (n *NominatimClient) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	// nominatim's usage policy requires an identifying agent.
	req.Header.Set("User-Agent", "ecocommute/1.0")
	resp, err := n.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("geocode: unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
