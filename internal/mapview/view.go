package mapview

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"chizu/campus-client/internal/model"
)

// Bounds is a lat/lng rectangle.
type Bounds struct {
	SouthWest model.LatLng `json:"south_west"`
	NorthEast model.LatLng `json:"north_east"`
}

// Contains reports whether p lies inside the rectangle.
func (b Bounds) Contains(p model.LatLng) bool {
	return p.Lat >= b.SouthWest.Lat && p.Lat <= b.NorthEast.Lat &&
		p.Lng >= b.SouthWest.Lng && p.Lng <= b.NorthEast.Lng
}

// Normalize orders the corners so SouthWest holds the minimum latitude and
// longitude.
func (b Bounds) Normalize() Bounds {
	return Bounds{
		SouthWest: model.LatLng{
			Lat: math.Min(b.SouthWest.Lat, b.NorthEast.Lat),
			Lng: math.Min(b.SouthWest.Lng, b.NorthEast.Lng),
		},
		NorthEast: model.LatLng{
			Lat: math.Max(b.SouthWest.Lat, b.NorthEast.Lat),
			Lng: math.Max(b.SouthWest.Lng, b.NorthEast.Lng),
		},
	}
}

// Clamp pulls p inside the rectangle.
func (b Bounds) Clamp(p model.LatLng) model.LatLng {
	return model.LatLng{
		Lat: math.Min(math.Max(p.Lat, b.SouthWest.Lat), b.NorthEast.Lat),
		Lng: math.Min(math.Max(p.Lng, b.SouthWest.Lng), b.NorthEast.Lng),
	}
}

// View is the visible viewport and its panning limits.
type View struct {
	Center  model.LatLng `json:"center"`
	Zoom    int          `json:"zoom"`
	MinZoom int          `json:"min_zoom"`
	MaxZoom int          `json:"max_zoom"`
	Bounds  *Bounds      `json:"bounds,omitempty"`
}

// CampusView is the default viewport over the consortium campuses.
func CampusView() View {
	return View{
		Center:  model.LatLng{Lat: 34.1000, Lng: -117.7090},
		Zoom:    16,
		MinZoom: 15,
		MaxZoom: 18,
		Bounds: &Bounds{
			SouthWest: model.LatLng{Lat: 34.093, Lng: -117.714},
			NorthEast: model.LatLng{Lat: 34.107, Lng: -117.704},
		},
	}
}

// Normalize clamps zoom and center to the view's own limits.
func (v View) Normalize() View {
	if v.MinZoom > 0 && v.Zoom < v.MinZoom {
		v.Zoom = v.MinZoom
	}
	if v.MaxZoom > 0 && v.Zoom > v.MaxZoom {
		v.Zoom = v.MaxZoom
	}
	if v.Bounds != nil {
		v.Center = v.Bounds.Clamp(v.Center)
	}
	return v
}

// FocusOn returns the view re-centred on p at the given zoom.
func (v View) FocusOn(p model.LatLng, zoom int) View {
	v.Center = p
	v.Zoom = zoom
	return v.Normalize()
}

// tileSize is the pixel edge of one slippy-map tile.
const tileSize = 256

// VisibleBounds approximates the rectangle a width x height pixel viewport
// shows around the view's center.
func (v View) VisibleBounds(width, height int) Bounds {
	degPerPx := 360 / (tileSize * math.Exp2(float64(v.Zoom)))
	halfLng := float64(width) / 2 * degPerPx
	halfLat := float64(height) / 2 * degPerPx * math.Cos(v.Center.Lat*math.Pi/180)
	return Bounds{
		SouthWest: model.LatLng{Lat: math.Max(v.Center.Lat-halfLat, -85), Lng: math.Max(v.Center.Lng-halfLng, -180)},
		NorthEast: model.LatLng{Lat: math.Min(v.Center.Lat+halfLat, 85), Lng: math.Min(v.Center.Lng+halfLng, 180)},
	}
}

// ParseLatLng parses "lat,lng".
func ParseLatLng(s string) (model.LatLng, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return model.LatLng{}, fmt.Errorf("invalid position %q: want lat,lng", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return model.LatLng{}, fmt.Errorf("invalid latitude: %w", err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return model.LatLng{}, fmt.Errorf("invalid longitude: %w", err)
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return model.LatLng{}, fmt.Errorf("invalid position %q: out of range", s)
	}
	return model.LatLng{Lat: lat, Lng: lng}, nil
}
