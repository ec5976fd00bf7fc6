package shell

import (
	"fmt"

	"chizu/campus-client/internal/mapview"
	"chizu/campus-client/internal/model"
	"chizu/campus-client/internal/search"
	"chizu/campus-client/internal/selection"
)

const (
	defaultTileURL = "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"

	// focusZoom is the street-level zoom used when jumping to a place.
	focusZoom = 17

	defaultViewportWidth  = 1024
	defaultViewportHeight = 768
)

// visibleSource feeds search with the locations that pass the category
// filter.
type visibleSource struct {
	s *Shell
}

func (v visibleSource) Locations() []model.Location {
	return v.s.VisibleLocations()
}

func (s *Shell) visible(locs []model.Location) []model.Location {
	return search.FilterCategory(locs, s.CategoryFilter())
}

// CategoryFilter returns the active category filter.
func (s *Shell) CategoryFilter() model.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.category
}

// VisibleLocations lists the cached locations that pass the category filter.
func (s *Shell) VisibleLocations() []model.Location {
	return s.visible(s.cache.Locations())
}

// SetCategoryFilter limits markers and search results to one category, or
// lifts the limit with search.CategoryAll. Category markers are redrawn when
// the view is mounted; the filter is kept across mounts.
func (s *Shell) SetCategoryFilter(c model.Category) error {
	c, err := search.ParseCategory(string(c))
	if err != nil {
		return fmt.Errorf("category filter: %w: %w", ErrInvalidInput, err)
	}

	s.mu.Lock()
	s.category = c
	v := s.view
	s.mu.Unlock()

	if v != nil {
		s.render(v.markers, s.VisibleLocations())
	}
	s.logger.Debug("category filter changed", "category", c)
	return nil
}

// focusOn re-centres the map on a location at street level. A failed view
// change leaves the selection in place.
func (s *Shell) focusOn(loc model.Location) {
	at, ok := loc.Coordinates()
	if !ok {
		return
	}
	if err := s.setView(at); err != nil {
		s.logger.Debug("failed to focus map", "location", loc.Name, "error", err)
	}
}

func (s *Shell) setView(at model.LatLng) error {
	surface, err := s.handle.Surface()
	if err != nil {
		return ErrNotMounted
	}

	s.mu.Lock()
	next := s.viewport.FocusOn(at, focusZoom)
	s.mu.Unlock()

	if err := surface.SetView(next); err != nil {
		return fmt.Errorf("set view: %w", err)
	}

	s.mu.Lock()
	s.viewport = next
	s.mu.Unlock()
	return nil
}

// CenterOnUser re-centres the map on the last known position. Positions off
// campus are pulled to the nearest point inside the campus bounds.
func (s *Shell) CenterOnUser() (mapview.View, error) {
	v, err := s.mountedView()
	if err != nil {
		return mapview.View{}, err
	}
	pos := v.selection.Snapshot().Position
	if pos == nil {
		s.raise("center", LevelError, "Please enable location services to center the map.")
		return mapview.View{}, fmt.Errorf("center on user: %w", selection.ErrLocationUnavailable)
	}

	s.mu.Lock()
	bounds := s.viewport.Bounds
	s.mu.Unlock()
	if bounds != nil && !bounds.Contains(*pos) {
		s.logger.Info("user is off campus, clamping view", "position", pos.String())
	}

	if err := s.setView(*pos); err != nil {
		return mapview.View{}, err
	}
	return s.Viewport(), nil
}

// Viewport returns the current map view.
func (s *Shell) Viewport() mapview.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewport
}

// TileRef is a tile together with the URL it is fetched from.
type TileRef struct {
	mapview.Tile
	URL string `json:"url"`
}

// MapView is what a renderer needs to paint the current viewport.
type MapView struct {
	View    mapview.View   `json:"view"`
	Visible mapview.Bounds `json:"visible"`
	Tiles   []TileRef      `json:"tiles"`
}

// MapView lists the tiles covering a width x height pixel viewport of the
// current view. Non-positive sizes fall back to 1024x768.
func (s *Shell) MapView(width, height int) (MapView, error) {
	if _, err := s.mountedView(); err != nil {
		return MapView{}, err
	}
	if width <= 0 || height <= 0 {
		width, height = defaultViewportWidth, defaultViewportHeight
	}

	view := s.Viewport()
	visible := view.VisibleBounds(width, height)
	tiles := mapview.TilesFor(visible, view.Zoom)

	refs := make([]TileRef, 0, len(tiles))
	for _, t := range tiles {
		refs = append(refs, TileRef{Tile: t, URL: mapview.TileURL(s.tileURL, t)})
	}
	return MapView{View: view, Visible: visible, Tiles: refs}, nil
}
