package routing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chizu/campus-client/internal/model"
)

func TestNewRouteInfo(t *testing.T) {
	cases := []struct {
		name        string
		summary     Summary
		wantWalk    int
		wantBike    int
		wantScooter int
	}{
		{"half hour", Summary{TotalDistance: 2414.01, TotalTime: 1800}, 30, 10, 12},
		{"very short", Summary{TotalDistance: 40, TotalTime: 29}, 0, 1, 1},
		{"one minute", Summary{TotalDistance: 90, TotalTime: 60}, 1, 1, 1},
		{"rounds half up", Summary{TotalDistance: 700, TotalTime: 450}, 8, 3, 3},
		{"seven minutes", Summary{TotalDistance: 600, TotalTime: 420}, 7, 2, 3},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			info := NewRouteInfo(tc.summary, "Frank Dining")
			assert.Equal(t, tc.wantWalk, info.WalkMinutes)
			assert.Equal(t, tc.wantBike, info.BikeMinutes)
			assert.Equal(t, tc.wantScooter, info.ScooterMinutes)
			assert.InDelta(t, tc.summary.TotalDistance/1609.34, info.DistanceMiles, 1e-9)
			assert.InDelta(t, tc.summary.TotalDistance/1000, info.DistanceKm, 1e-9)
			assert.Equal(t, "Frank Dining", info.DestinationName)
		})
	}
}

func TestGraphHopperRoute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/route", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, []string{"34.100000,-117.710000", "34.097500,-117.708000"}, q["point"])
		assert.Equal(t, "foot", q.Get("profile"))
		assert.Equal(t, "false", q.Get("points_encoded"))
		assert.Equal(t, "secret", q.Get("key"))

		_, _ = w.Write([]byte(`{"paths":[{"distance":412.5,"time":300000,"points":{"type":"LineString","coordinates":[[-117.71,34.1],[-117.709,34.099],[-117.708,34.0975]]}}]}`))
	}))
	defer server.Close()

	router := NewGraphHopper(server.URL, "secret", 5*time.Second)
	route, err := router.Route(context.Background(),
		model.LatLng{Lat: 34.1, Lng: -117.71},
		model.LatLng{Lat: 34.0975, Lng: -117.708})
	require.NoError(t, err)

	assert.Equal(t, Summary{TotalDistance: 412.5, TotalTime: 300}, route.Summary)
	require.Len(t, route.Path, 3)
	assert.Equal(t, model.LatLng{Lat: 34.1, Lng: -117.71}, route.Path[0])
}

func TestGraphHopperErrors(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		body      string
		wantNoRte bool
	}{
		{"point off network", http.StatusBadRequest, `{"message":"Cannot find point 1: 34.0,-117.0"}`, true},
		{"empty paths", http.StatusOK, `{"paths":[]}`, true},
		{"bad key", http.StatusUnauthorized, `{"message":"Wrong credentials. Register and get a valid API key"}`, false},
		{"not json", http.StatusBadGateway, `<html>bad gateway</html>`, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			_, err := NewGraphHopper(server.URL, "", time.Second).Route(context.Background(), model.LatLng{}, model.LatLng{})
			require.Error(t, err)
			assert.Equal(t, tc.wantNoRte, errors.Is(err, ErrNoRoute))
		})
	}
}

func TestStraightRouter(t *testing.T) {
	from := model.LatLng{Lat: 34.1, Lng: -117.71}
	to := model.LatLng{Lat: 34.1, Lng: -117.70}

	route, err := Straight{}.Route(context.Background(), from, to)
	require.NoError(t, err)
	assert.InDelta(t, 921, route.Summary.TotalDistance, 5)
	assert.InDelta(t, route.Summary.TotalDistance/1.4, route.Summary.TotalTime, 1e-9)
	assert.Equal(t, []model.LatLng{from, to}, route.Path)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Straight{}.Route(ctx, from, to)
	assert.ErrorIs(t, err, context.Canceled)
}
