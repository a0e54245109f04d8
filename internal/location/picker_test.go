package location

import (
	"context"
	"errors"
	"testing"

	"github.com/example/ecocommute/internal/geocode"
	"github.com/example/ecocommute/internal/models"
)

// fakeGeo counts calls so tests can assert the network was not touched.
type fakeGeo struct {
	addr       string
	reverseErr error
	cands      []geocode.Candidate
	searchErr  error

	reverseCalls int
	searchCalls  int
}

func (f *fakeGeo) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	f.reverseCalls++
	return f.addr, f.reverseErr
}

func (f *fakeGeo) Search(ctx context.Context, query string) ([]geocode.Candidate, error) {
	f.searchCalls++
	return f.cands, f.searchErr
}

type fakeLocator struct {
	pos models.Coord
	err error
}

func (f *fakeLocator) CurrentPosition(ctx context.Context) (models.Coord, error) {
	return f.pos, f.err
}

func TestSelectByClickResolvesAddress(t *testing.T) {
	g := &fakeGeo{addr: "London City Center"}
	p := NewPicker(g, nil, nil)
	sel := p.SelectByClick(context.Background(), models.Coord{Lat: 51.505, Lon: -0.09})
	if sel.Address != "London City Center" {
		t.Fatalf("got address %q", sel.Address)
	}
	if sel.RawValue != "51.505,-0.09" {
		t.Fatalf("got raw value %q", sel.RawValue)
	}
}

func TestSelectByClickFallsBackToCoordinates(t *testing.T) {
	g := &fakeGeo{reverseErr: errors.New("network down")}
	p := NewPicker(g, nil, nil)
	sel := p.SelectByClick(context.Background(), models.Coord{Lat: 51.505, Lon: -0.09})
	if sel.Address != "51.505000, -0.090000" {
		t.Fatalf("expected 6-decimal fallback, got %q", sel.Address)
	}
	if sel.Coordinates.Lat != 51.505 {
		t.Fatalf("coordinates must survive the fallback: %+v", sel.Coordinates)
	}
}

func TestSearchBlankQuerySkipsNetwork(t *testing.T) {
	g := &fakeGeo{cands: []geocode.Candidate{{Address: "x"}}}
	p := NewPicker(g, nil, nil)
	for _, q := range []string{"", "   ", "\t\n"} {
		if got := p.Search(context.Background(), q); len(got) != 0 {
			t.Fatalf("blank query %q returned %d candidates", q, len(got))
		}
	}
	if g.searchCalls != 0 {
		t.Fatalf("blank queries must not reach the geocoder, got %d calls", g.searchCalls)
	}
}

func TestSearchFailsSoft(t *testing.T) {
	g := &fakeGeo{searchErr: errors.New("parse error")}
	p := NewPicker(g, nil, nil)
	if got := p.Search(context.Background(), "london"); got != nil {
		t.Fatalf("expected empty result on error, got %v", got)
	}
}

func TestSelectByCandidateIsDeterministic(t *testing.T) {
	g := &fakeGeo{}
	p := NewPicker(g, nil, nil)
	c := geocode.Candidate{Coordinates: models.Coord{Lat: 51.51, Lon: -0.1}, Address: "London Bridge", PlaceID: 42}
	sel := p.SelectByCandidate(c)
	if sel.Address != "London Bridge" || sel.Coordinates != c.Coordinates {
		t.Fatalf("unexpected selection %+v", sel)
	}
	if g.reverseCalls != 0 || g.searchCalls != 0 {
		t.Fatal("candidate selection must not call the geocoder")
	}
}

func TestBootstrapUsesDevicePosition(t *testing.T) {
	p := NewPicker(&fakeGeo{}, &fakeLocator{pos: models.Coord{Lat: 48.85, Lon: 2.35}}, nil)
	vp := p.Bootstrap(context.Background())
	if vp.Center.Lat != 48.85 || vp.Zoom != LocatedZoom {
		t.Fatalf("unexpected viewport %+v", vp)
	}
}

func TestBootstrapFallsBackOnDenial(t *testing.T) {
	p := NewPicker(&fakeGeo{}, &fakeLocator{err: errors.New("permission denied")}, nil)
	vp := p.Bootstrap(context.Background())
	if vp.Center != DefaultCenter || vp.Zoom != DefaultZoom {
		t.Fatalf("expected default viewport, got %+v", vp)
	}
}

func TestBootstrapWithoutCapability(t *testing.T) {
	p := NewPicker(&fakeGeo{}, nil, nil)
	vp := p.Bootstrap(context.Background())
	if vp.Center != DefaultCenter || vp.Zoom != DefaultZoom {
		t.Fatalf("expected default viewport, got %+v", vp)
	}
}
