package shell

import (
	"context"
	"errors"
	"fmt"

	"chizu/campus-client/internal/markers"
	"chizu/campus-client/internal/model"
	"chizu/campus-client/internal/search"
	"chizu/campus-client/internal/selection"
)

const locationServicesMessage = "Please enable location services to get directions."

func (s *Shell) location(id int64) (model.Location, error) {
	loc, ok := s.cache.LocationByID(id)
	if !ok {
		return model.Location{}, fmt.Errorf("location %d: %w", id, ErrUnknownLocation)
	}
	return loc, nil
}

// SelectLocation highlights a cached location on the map and centres the
// view on it.
func (s *Shell) SelectLocation(id int64) error {
	v, err := s.mountedView()
	if err != nil {
		return err
	}
	loc, err := s.location(id)
	if err != nil {
		return err
	}
	defer s.reportMarkers(v.markers.Counts())
	if err := v.selection.SelectLocation(loc); err != nil {
		return err
	}
	s.focusOn(loc)
	return nil
}

// RequestRoute routes from the user's position to a cached location. A
// missing position raises an alert. ErrSuperseded means a newer request or
// selection won and should be ignored by the caller.
func (s *Shell) RequestRoute(ctx context.Context, id int64) (model.RouteInfo, error) {
	v, err := s.mountedView()
	if err != nil {
		return model.RouteInfo{}, err
	}
	loc, err := s.location(id)
	if err != nil {
		return model.RouteInfo{}, err
	}

	info, err := v.selection.RequestRoute(ctx, loc)
	s.reportMarkers(v.markers.Counts())
	switch {
	case err == nil:
		s.recorder.Route("ok")
		s.logger.Info("route ready",
			"destination", info.DestinationName,
			"distance_km", info.DistanceKm,
			"walk_minutes", info.WalkMinutes,
		)
	case errors.Is(err, selection.ErrSuperseded):
		s.recorder.Route("superseded")
	case errors.Is(err, selection.ErrLocationUnavailable):
		s.recorder.Route("no_position")
		s.raise("directions", LevelError, locationServicesMessage)
	case errors.Is(err, markers.ErrNoCoordinates):
		s.recorder.Route("error")
	default:
		s.recorder.Route("error")
		s.logger.Warn("route request failed", "destination", loc.Name, "error", err)
	}
	return info, err
}

// ClearRoute removes the route but keeps the selection.
func (s *Shell) ClearRoute() error {
	v, err := s.mountedView()
	if err != nil {
		return err
	}
	defer s.reportMarkers(v.markers.Counts())
	return v.selection.ClearRoute()
}

// ClearSelection removes the active pin and any route.
func (s *Shell) ClearSelection() error {
	v, err := s.mountedView()
	if err != nil {
		return err
	}
	defer s.reportMarkers(v.markers.Counts())
	return v.selection.ClearSelection()
}

// Search replaces the query and returns the dropdown contents.
func (s *Shell) Search(query string) (search.View, error) {
	v, err := s.mountedView()
	if err != nil {
		return search.View{}, err
	}
	v.search.SetQuery(query)
	return v.search.View(), nil
}

// SearchDebounced records keystroke input; the query applies once typing
// pauses.
func (s *Shell) SearchDebounced(query string) error {
	v, err := s.mountedView()
	if err != nil {
		return err
	}
	v.search.SetQueryDebounced(query)
	return nil
}

// FocusSearch reopens the dropdown when the box already holds text.
func (s *Shell) FocusSearch() error {
	v, err := s.mountedView()
	if err != nil {
		return err
	}
	v.search.Focus()
	return nil
}

// PointerDown reports where a pointer press landed.
func (s *Shell) PointerDown(target search.Target) error {
	v, err := s.mountedView()
	if err != nil {
		return err
	}
	v.search.PointerDown(target)
	return nil
}

// SelectResult picks a search result.
func (s *Shell) SelectResult(id int64) error {
	v, err := s.mountedView()
	if err != nil {
		return err
	}
	loc, err := s.location(id)
	if err != nil {
		return err
	}
	defer s.reportMarkers(v.markers.Counts())
	if err := v.search.Select(loc); err != nil {
		return err
	}
	s.focusOn(loc)
	return nil
}
