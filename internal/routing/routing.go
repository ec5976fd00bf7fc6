// Package routing queries a walking-route engine and derives travel estimates.
package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"chizu/campus-client/internal/model"
)

// ErrNoRoute is returned when the engine finds no path between the points.
var ErrNoRoute = errors.New("no route found")

// Summary is the engine's headline numbers for a route.
type Summary struct {
	TotalDistance float64 // meters
	TotalTime     float64 // seconds
}

// Route is a routing result.
type Route struct {
	Summary Summary
	Path    []model.LatLng
}

// Router computes walking routes.
type Router interface {
	Route(ctx context.Context, from, to model.LatLng) (Route, error)
}

const (
	metersPerMile = 1609.34
	bikeFactor    = 3
	scooterFactor = 2.5
)

// NewRouteInfo derives the displayed estimates from a route summary.
func NewRouteInfo(s Summary, destination string) model.RouteInfo {
	walk := int(math.Round(s.TotalTime / 60))
	return model.RouteInfo{
		DistanceMiles:   s.TotalDistance / metersPerMile,
		DistanceKm:      s.TotalDistance / 1000,
		WalkMinutes:     walk,
		BikeMinutes:     max(1, int(math.Round(float64(walk)/bikeFactor))),
		ScooterMinutes:  max(1, int(math.Round(float64(walk)/scooterFactor))),
		DestinationName: destination,
	}
}

// GraphHopper is a Router backed by the GraphHopper routing API.
type GraphHopper struct {
	baseURL    string
	apiKey     string
	profile    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a GraphHopper router.
type Option func(*GraphHopper)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(g *GraphHopper) {
		g.httpClient = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *GraphHopper) {
		g.logger = logger
	}
}

// WithProfile overrides the travel profile. The default is "foot".
func WithProfile(profile string) Option {
	return func(g *GraphHopper) {
		g.profile = profile
	}
}

// NewGraphHopper creates a router for the engine at baseURL.
func NewGraphHopper(baseURL, apiKey string, timeout time.Duration, opts ...Option) *GraphHopper {
	g := &GraphHopper{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		profile:    "foot",
		httpClient: &http.Client{Timeout: timeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type ghResponse struct {
	Message string `json:"message"`
	Paths   []struct {
		Distance float64 `json:"distance"`
		Time     float64 `json:"time"`
		Points   struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"points"`
	} `json:"paths"`
}

// Route requests a route from one point to another.
func (g *GraphHopper) Route(ctx context.Context, from, to model.LatLng) (Route, error) {
	q := url.Values{}
	q.Add("point", from.String())
	q.Add("point", to.String())
	q.Set("profile", g.profile)
	q.Set("points_encoded", "false")
	if g.apiKey != "" {
		q.Set("key", g.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/route?"+q.Encode(), nil)
	if err != nil {
		return Route{}, fmt.Errorf("build route request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return Route{}, fmt.Errorf("route request: %w", err)
	}
	defer resp.Body.Close()

	var body ghResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&body); err != nil {
		return Route{}, fmt.Errorf("decode route response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		if strings.Contains(strings.ToLower(body.Message), "cannot find point") ||
			strings.Contains(strings.ToLower(body.Message), "connection between locations not found") {
			return Route{}, fmt.Errorf("%w: %s", ErrNoRoute, body.Message)
		}
		return Route{}, fmt.Errorf("route request: status %d: %s", resp.StatusCode, body.Message)
	}
	if len(body.Paths) == 0 {
		return Route{}, ErrNoRoute
	}

	p := body.Paths[0]
	path := make([]model.LatLng, 0, len(p.Points.Coordinates))
	for _, c := range p.Points.Coordinates {
		if len(c) < 2 {
			continue
		}
		path = append(path, model.LatLng{Lat: c[1], Lng: c[0]})
	}

	g.logger.Debug("route computed",
		"from", from.String(),
		"to", to.String(),
		"distance_m", p.Distance,
		"time_ms", p.Time)

	return Route{
		Summary: Summary{TotalDistance: p.Distance, TotalTime: p.Time / 1000},
		Path:    path,
	}, nil
}

// Straight is a Router that walks in a straight line at a fixed pace. It
// stands in when no routing engine is configured.
type Straight struct {
	// MetersPerSecond defaults to a 1.4 m/s walking pace.
	MetersPerSecond float64
}

// Route returns the great-circle path between the points.
func (s Straight) Route(ctx context.Context, from, to model.LatLng) (Route, error) {
	if err := ctx.Err(); err != nil {
		return Route{}, err
	}
	pace := s.MetersPerSecond
	if pace <= 0 {
		pace = 1.4
	}
	d := Haversine(from, to)
	return Route{
		Summary: Summary{TotalDistance: d, TotalTime: d / pace},
		Path:    []model.LatLng{from, to},
	}, nil
}

const earthRadiusMeters = 6371008.8

// Haversine returns the great-circle distance between two points in meters.
func Haversine(a, b model.LatLng) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := lat2 - lat1
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}
