// Package location coordinates map clicks, place search and the device
// position bootstrap into LocationSelection values for forms to consume.
package location

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/example/ecocommute/internal/geocode"
	"github.com/example/ecocommute/internal/models"
	"github.com/example/ecocommute/internal/observability"
)

// Locator is a one-shot read of the device's current position. It is an
// external capability; absence is modeled by a nil Locator.
type Locator interface {
	CurrentPosition(ctx context.Context) (models.Coord, error)
}

// Viewport is where the picker should center initially.
type Viewport struct {
	Center models.Coord `json:"center"`
	Zoom   int          `json:"zoom"`
}

// DefaultCenter is London; used whenever the device position is
// unavailable.
var DefaultCenter = models.Coord{Lat: 51.505, Lon: -0.09}

const (
	DefaultZoom = 12
	LocatedZoom = 14

	// LocateTimeout bounds the one-shot position read. No retry.
	LocateTimeout = 5 * time.Second
)

type Picker struct {
	Geo     geocode.Client
	Locator Locator

	DefaultCenter models.Coord
	DefaultZoom   int
	LocatedZoom   int
	LocateTimeout time.Duration

	Logger *slog.Logger
}

func NewPicker(geo geocode.Client, locator Locator, logger *slog.Logger) *Picker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Picker{
		Geo:           geo,
		Locator:       locator,
		DefaultCenter: DefaultCenter,
		DefaultZoom:   DefaultZoom,
		LocatedZoom:   LocatedZoom,
		LocateTimeout: LocateTimeout,
		Logger:        logger,
	}
}

// SelectByClick resolves a map click into a selection. It always
// succeeds: when reverse geocoding fails the address falls back to the
// 6-decimal rendering of the coordinates.
func (p *Picker) SelectByClick(ctx context.Context, c models.Coord) models.LocationSelection {
	addr, err := p.Geo.Reverse(ctx, c.Lat, c.Lon)
	if err != nil || addr == "" {
		if err != nil {
			observability.GeocodeErrors.Inc()
			p.Logger.Warn("reverse geocode failed, using coordinates", "lat", c.Lat, "lon", c.Lon, "error", err)
		}
		addr = FormatCoord(c)
	}
	return models.LocationSelection{
		Coordinates: c,
		Address:     addr,
		RawValue:    rawValue(c),
	}
}

// Search fails soft: blank queries and upstream errors both yield an
// empty candidate list. A blank query never reaches the network.
func (p *Picker) Search(ctx context.Context, query string) []geocode.Candidate {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	cands, err := p.Geo.Search(ctx, query)
	if err != nil {
		observability.GeocodeErrors.Inc()
		p.Logger.Warn("place search failed", "query", query, "error", err)
		return nil
	}
	return cands
}

// SelectByCandidate derives a selection from a search result. No
// network call; the candidate already carries everything needed.
func (p *Picker) SelectByCandidate(c geocode.Candidate) models.LocationSelection {
	return models.LocationSelection{
		Coordinates: c.Coordinates,
		Address:     c.Address,
		RawValue:    rawValue(c.Coordinates),
	}
}

// Bootstrap picks the initial viewport. On a successful position read
// the picker centers there; on denial, timeout or missing capability it
// falls back to the configured default.
func (p *Picker) Bootstrap(ctx context.Context) Viewport {
	fallback := Viewport{Center: p.DefaultCenter, Zoom: p.DefaultZoom}
	if p.Locator == nil {
		return fallback
	}
	ctx, cancel := context.WithTimeout(ctx, p.LocateTimeout)
	defer cancel()
	pos, err := p.Locator.CurrentPosition(ctx)
	if err != nil {
		p.Logger.Warn("device position unavailable", "error", err)
		return fallback
	}
	return Viewport{Center: pos, Zoom: p.LocatedZoom}
}

// FormatCoord renders a coordinate pair at fixed 6-decimal precision,
// the fallback address form.
func FormatCoord(c models.Coord) string {
	return fmt.Sprintf("%.6f, %.6f", c.Lat, c.Lon)
}

func rawValue(c models.Coord) string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lon, 'f', -1, 64)
}
