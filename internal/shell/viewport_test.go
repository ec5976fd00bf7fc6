package shell

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chizu/campus-client/internal/mapview"
	"chizu/campus-client/internal/model"
	"chizu/campus-client/internal/position"
	"chizu/campus-client/internal/search"
	"chizu/campus-client/internal/selection"
)

func markerTitles(c *mapview.Canvas) []string {
	var titles []string
	for _, l := range c.Layers() {
		if l.Kind == mapview.KindMarker && l.Marker != nil {
			titles = append(titles, l.Marker.Title)
		}
	}
	return titles
}

func TestCategoryFilterReplacesMarkers(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.shell.Mount(context.Background()))
	assert.Equal(t, search.CategoryAll, fx.shell.CategoryFilter())

	require.NoError(t, fx.shell.SetCategoryFilter(model.CategoryDining))
	assert.Equal(t, []string{"Frank Dining"}, markerTitles(fx.canvas()))

	require.NoError(t, fx.shell.SetCategoryFilter(model.CategoryAcademic))
	assert.Equal(t, []string{"Honnold Library"}, markerTitles(fx.canvas()))

	require.NoError(t, fx.shell.SetCategoryFilter("all"))
	require.NoError(t, fx.shell.SetCategoryFilter("all"))
	assert.ElementsMatch(t, []string{"Frank Dining", "Honnold Library"}, markerTitles(fx.canvas()), "switching never duplicates markers")

	st := fx.shell.State()
	assert.Equal(t, search.CategoryAll, st.Category)
	assert.Equal(t, 3, st.Visible)
}

func TestCategoryFilterLimitsSearch(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.shell.Mount(context.Background()))
	require.NoError(t, fx.shell.SetCategoryFilter(model.CategoryDining))

	view, err := fx.shell.Search("honnold")
	require.NoError(t, err)
	assert.True(t, view.NoResults)

	view, err = fx.shell.Search("frank")
	require.NoError(t, err)
	assert.Equal(t, []model.Location{frank}, view.Groups.Dining)
	assert.Equal(t, []model.Location{frank}, fx.shell.VisibleLocations())
}

func TestCategoryFilterSurvivesRemount(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.shell.SetCategoryFilter(model.CategoryAcademic))

	require.NoError(t, fx.shell.Mount(context.Background()))
	assert.Equal(t, []string{"Honnold Library"}, markerTitles(fx.canvas()))
}

func TestCategoryFilterRejectsUnknown(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.shell.Mount(context.Background()))

	err := fx.shell.SetCategoryFilter("parking")
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, search.CategoryAll, fx.shell.CategoryFilter())
	assert.Equal(t, 2, fx.canvas().Count(mapview.KindMarker))
}

func TestSelectionFocusesMap(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.shell.Mount(context.Background()))
	assert.Equal(t, mapview.CampusView(), fx.shell.Viewport())

	require.NoError(t, fx.shell.SelectLocation(1))

	want := model.LatLng{Lat: 34.0975, Lng: -117.708}
	assert.Equal(t, want, fx.canvas().View().Center)
	assert.Equal(t, focusZoom, fx.canvas().View().Zoom)
	assert.Equal(t, fx.canvas().View(), fx.shell.Viewport())
}

func TestCenterOnUser(t *testing.T) {
	t.Run("watched position", func(t *testing.T) {
		at := model.LatLng{Lat: 34.1, Lng: -117.709}
		fx := newFixture(t, WithPositionSource(position.Static{At: at}))
		require.NoError(t, fx.shell.Mount(context.Background()))
		waitForPosition(t, fx.shell)

		view, err := fx.shell.CenterOnUser()
		require.NoError(t, err)
		assert.Equal(t, at, view.Center)
		assert.Equal(t, focusZoom, view.Zoom)
		assert.Equal(t, view, fx.canvas().View())
	})

	t.Run("no position", func(t *testing.T) {
		fx := newFixture(t)
		require.NoError(t, fx.shell.Mount(context.Background()))

		_, err := fx.shell.CenterOnUser()
		require.ErrorIs(t, err, selection.ErrLocationUnavailable)
		alerts := fx.inbox.Drain()
		require.Len(t, alerts, 1)
		assert.Equal(t, "center", alerts[0].Action)
		assert.Equal(t, mapview.CampusView(), fx.shell.Viewport())
	})

	t.Run("not mounted", func(t *testing.T) {
		fx := newFixture(t)
		_, err := fx.shell.CenterOnUser()
		assert.ErrorIs(t, err, ErrNotMounted)
	})
}

func TestMapViewTiles(t *testing.T) {
	fx := newFixture(t, WithTileURL("https://tiles.test/{z}/{x}/{y}.png"))
	require.NoError(t, fx.shell.Mount(context.Background()))

	mv, err := fx.shell.MapView(512, 512)
	require.NoError(t, err)
	assert.Equal(t, 16, mv.View.Zoom)
	assert.True(t, mv.Visible.Contains(mv.View.Center))
	require.NotEmpty(t, mv.Tiles)
	for _, tile := range mv.Tiles {
		assert.Equal(t, 16, tile.Z)
		assert.Equal(t, mapview.TileURL("https://tiles.test/{z}/{x}/{y}.png", tile.Tile), tile.URL)
	}

	fallback, err := fx.shell.MapView(0, 0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(fallback.Tiles), len(mv.Tiles))
}
