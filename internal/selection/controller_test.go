package selection

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chizu/campus-client/internal/mapview"
	"chizu/campus-client/internal/markers"
	"chizu/campus-client/internal/model"
	"chizu/campus-client/internal/routing"
)

func f(v float64) *float64 { return &v }

var (
	frank   = model.Location{ID: 1, Name: "Frank Dining", Category: model.CategoryDining, College: "Pomona", Lat: f(34.0975), Lng: f(-117.708)}
	honnold = model.Location{ID: 2, Name: "Honnold Library", Category: model.CategoryAcademic, Lat: f(34.1012), Lng: f(-117.7105)}
	annex   = model.Location{ID: 3, Name: "Lost Annex", Lat: f(34.1)}
	here    = model.LatLng{Lat: 34.1, Lng: -117.71}
)

// gatedRouter holds each request until the test releases it.
type gatedRouter struct {
	mu       sync.Mutex
	pending  map[model.LatLng]chan routing.Route
	started  chan model.LatLng
	requests int
}

func newGatedRouter() *gatedRouter {
	return &gatedRouter{
		pending: make(map[model.LatLng]chan routing.Route),
		started: make(chan model.LatLng, 8),
	}
}

func (g *gatedRouter) gate(to model.LatLng) chan routing.Route {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.pending[to]
	if !ok {
		ch = make(chan routing.Route, 1)
		g.pending[to] = ch
	}
	return ch
}

func (g *gatedRouter) Route(ctx context.Context, from, to model.LatLng) (routing.Route, error) {
	g.mu.Lock()
	g.requests++
	g.mu.Unlock()

	ch := g.gate(to)
	g.started <- to
	// Ignores cancellation so late responses can be exercised.
	r := <-ch
	return r, nil
}

func (g *gatedRouter) release(to model.LatLng, seconds float64) {
	g.gate(to) <- routing.Route{
		Summary: routing.Summary{TotalDistance: seconds * 1.4, TotalTime: seconds},
		Path:    []model.LatLng{here, to},
	}
}

type fixture struct {
	canvas *mapview.Canvas
	ctrl   *Controller
}

func newFixture(router routing.Router) fixture {
	canvas := mapview.NewCanvas(mapview.CampusView())
	return fixture{
		canvas: canvas,
		ctrl:   NewController(markers.NewManager(canvas, nil), router, nil),
	}
}

func coord(l model.Location) model.LatLng {
	p, _ := l.Coordinates()
	return p
}

func TestSelectLocationKeepsOnePin(t *testing.T) {
	fx := newFixture(routing.Straight{})

	require.NoError(t, fx.ctrl.SelectLocation(frank))
	require.NoError(t, fx.ctrl.SelectLocation(honnold))

	layers := fx.canvas.Layers()
	require.Len(t, layers, 1)
	assert.Equal(t, coord(honnold), layers[0].Marker.At)

	snap := fx.ctrl.Snapshot()
	assert.Equal(t, StateSelected, snap.State)
	assert.Equal(t, int64(2), snap.Selected.ID)
}

func TestSelectRejectsMissingCoordinates(t *testing.T) {
	fx := newFixture(routing.Straight{})
	require.NoError(t, fx.ctrl.SelectLocation(frank))

	err := fx.ctrl.SelectLocation(annex)
	assert.ErrorIs(t, err, markers.ErrNoCoordinates)
	assert.Equal(t, int64(1), fx.ctrl.Snapshot().Selected.ID)

	_, err = fx.ctrl.RequestRoute(context.Background(), annex)
	assert.ErrorIs(t, err, markers.ErrNoCoordinates)
}

func TestRouteNeedsPosition(t *testing.T) {
	router := newGatedRouter()
	fx := newFixture(router)

	_, err := fx.ctrl.RequestRoute(context.Background(), frank)
	assert.ErrorIs(t, err, ErrLocationUnavailable)
	assert.Equal(t, 0, router.requests, "no request reaches the engine")

	snap := fx.ctrl.Snapshot()
	assert.Equal(t, StateSelected, snap.State)
	assert.Equal(t, int64(1), snap.Selected.ID)
}

func TestRouteComputesEstimates(t *testing.T) {
	fx := newFixture(routing.Straight{MetersPerSecond: 1})
	fx.ctrl.UpdatePosition(here)

	info, err := fx.ctrl.RequestRoute(context.Background(), frank)
	require.NoError(t, err)

	want := routing.NewRouteInfo(routing.Summary{
		TotalDistance: routing.Haversine(here, coord(frank)),
		TotalTime:     routing.Haversine(here, coord(frank)),
	}, "Frank Dining")
	assert.Equal(t, want, info)

	snap := fx.ctrl.Snapshot()
	assert.Equal(t, StateRouted, snap.State)
	assert.Equal(t, want, *snap.Route)
	assert.Equal(t, 1, fx.canvas.Count(mapview.KindPolyline))
}

func TestThirtyMinuteWalk(t *testing.T) {
	router := newGatedRouter()
	fx := newFixture(router)
	fx.ctrl.UpdatePosition(here)

	router.release(coord(frank), 1800)
	info, err := fx.ctrl.RequestRoute(context.Background(), frank)
	require.NoError(t, err)
	assert.Equal(t, 30, info.WalkMinutes)
	assert.Equal(t, 10, info.BikeMinutes)
	assert.Equal(t, 12, info.ScooterMinutes)
}

func TestLateResponseIsDiscarded(t *testing.T) {
	router := newGatedRouter()
	fx := newFixture(router)
	fx.ctrl.UpdatePosition(here)

	type result struct {
		info model.RouteInfo
		err  error
	}
	first := make(chan result, 1)
	go func() {
		info, err := fx.ctrl.RequestRoute(context.Background(), frank)
		first <- result{info, err}
	}()
	<-router.started

	second := make(chan result, 1)
	go func() {
		info, err := fx.ctrl.RequestRoute(context.Background(), honnold)
		second <- result{info, err}
	}()
	<-router.started

	// The older request resolves first and must not be drawn.
	router.release(coord(frank), 600)
	r1 := <-first
	assert.ErrorIs(t, r1.err, ErrSuperseded)
	assert.Equal(t, StateSelected, fx.ctrl.Snapshot().State)
	assert.Zero(t, fx.canvas.Count(mapview.KindPolyline))

	router.release(coord(honnold), 1800)
	r2 := <-second
	require.NoError(t, r2.err)
	assert.Equal(t, "Honnold Library", r2.info.DestinationName)

	snap := fx.ctrl.Snapshot()
	assert.Equal(t, StateRouted, snap.State)
	assert.Equal(t, "Honnold Library", snap.Route.DestinationName)
	assert.Equal(t, 1, fx.canvas.Count(mapview.KindPolyline))
}

func TestSelectionChangeCancelsPendingRoute(t *testing.T) {
	router := newGatedRouter()
	fx := newFixture(router)
	fx.ctrl.UpdatePosition(here)

	done := make(chan error, 1)
	go func() {
		_, err := fx.ctrl.RequestRoute(context.Background(), frank)
		done <- err
	}()
	<-router.started

	require.NoError(t, fx.ctrl.SelectLocation(honnold))
	router.release(coord(frank), 600)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(2 * time.Second):
		t.Fatal("route request did not return")
	}

	snap := fx.ctrl.Snapshot()
	assert.Equal(t, StateSelected, snap.State)
	assert.Equal(t, int64(2), snap.Selected.ID)
	assert.Zero(t, fx.canvas.Count(mapview.KindPolyline))
}

func TestClearRouteKeepsSelection(t *testing.T) {
	fx := newFixture(routing.Straight{})
	fx.ctrl.UpdatePosition(here)

	_, err := fx.ctrl.RequestRoute(context.Background(), frank)
	require.NoError(t, err)
	require.NoError(t, fx.ctrl.ClearRoute())

	snap := fx.ctrl.Snapshot()
	assert.Equal(t, StateSelected, snap.State)
	assert.Nil(t, snap.Route)
	assert.Zero(t, fx.canvas.Count(mapview.KindPolyline))
	assert.Equal(t, 1, fx.canvas.Count(mapview.KindMarker))
}

func TestClearSelectionClearsEverything(t *testing.T) {
	fx := newFixture(routing.Straight{})
	fx.ctrl.UpdatePosition(here)

	_, err := fx.ctrl.RequestRoute(context.Background(), frank)
	require.NoError(t, err)

	require.NoError(t, fx.ctrl.ClearSelection())
	assert.Empty(t, fx.canvas.Layers())
	assert.Equal(t, StateIdle, fx.ctrl.Snapshot().State)

	require.NoError(t, fx.ctrl.ClearSelection())
	require.NoError(t, fx.ctrl.ClearSelection())
}

type failingRouter struct{ err error }

func (r failingRouter) Route(context.Context, model.LatLng, model.LatLng) (routing.Route, error) {
	return routing.Route{}, r.err
}

func TestRouterFailureStaysSelected(t *testing.T) {
	boom := errors.New("engine down")
	fx := newFixture(failingRouter{err: boom})
	fx.ctrl.UpdatePosition(here)

	_, err := fx.ctrl.RequestRoute(context.Background(), frank)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateSelected, fx.ctrl.Snapshot().State)
}
