// Package selection tracks the single active location and the walking route
// to it.
package selection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"chizu/campus-client/internal/markers"
	"chizu/campus-client/internal/model"
	"chizu/campus-client/internal/routing"
)

var (
	// ErrLocationUnavailable is returned when directions are requested before
	// the user's position is known.
	ErrLocationUnavailable = errors.New("location services required")
	// ErrSuperseded is returned by a route request whose result arrived after
	// a newer request or a selection change. It is not a failure.
	ErrSuperseded = errors.New("route request superseded")
)

// State is the controller's position in the selection lifecycle.
type State int

const (
	StateIdle State = iota
	StateSelected
	StateRouted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSelected:
		return "selected"
	case StateRouted:
		return "routed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Overlay is the part of the marker layer the controller drives.
type Overlay interface {
	ShowActivePin(loc model.Location) error
	ClearActivePin() error
	ShowRoute(path []model.LatLng) error
	ClearRoute() error
}

// Snapshot is a consistent view of the controller.
type Snapshot struct {
	State    State            `json:"state"`
	Selected *model.Location  `json:"selected,omitempty"`
	Route    *model.RouteInfo `json:"route,omitempty"`
	Position *model.LatLng    `json:"position,omitempty"`
}

// Controller serializes every selection and overlay change. Route requests
// run outside the lock and are matched back by sequence number; only the
// latest request may touch the overlay.
type Controller struct {
	mu       sync.Mutex
	overlay  Overlay
	router   routing.Router
	logger   *slog.Logger
	selected *model.Location
	route    *model.RouteInfo
	position *model.LatLng
	seq      uint64
	cancel   context.CancelFunc
}

// NewController creates an idle controller.
func NewController(overlay Overlay, router routing.Router, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{overlay: overlay, router: router, logger: logger}
}

// SelectLocation makes loc the active selection. Any route to a previous
// selection is cleared and any pending route request is superseded.
func (c *Controller) SelectLocation(loc model.Location) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectLocked(loc)
}

func (c *Controller) selectLocked(loc model.Location) error {
	if _, ok := loc.Coordinates(); !ok {
		return fmt.Errorf("select %q: %w", loc.Name, markers.ErrNoCoordinates)
	}

	c.supersedeLocked()
	if err := c.clearRouteLocked(); err != nil {
		return err
	}
	if err := c.overlay.ShowActivePin(loc); err != nil {
		return fmt.Errorf("select %q: %w", loc.Name, err)
	}
	sel := loc
	c.selected = &sel
	return nil
}

// RequestRoute selects loc if needed and routes to it from the user's
// current position. A result that arrives after a newer request or a
// selection change returns ErrSuperseded and leaves the overlay untouched.
func (c *Controller) RequestRoute(ctx context.Context, loc model.Location) (model.RouteInfo, error) {
	dest, ok := loc.Coordinates()
	if !ok {
		return model.RouteInfo{}, fmt.Errorf("route to %q: %w", loc.Name, markers.ErrNoCoordinates)
	}

	c.mu.Lock()
	if c.selected == nil || c.selected.ID != loc.ID {
		if err := c.selectLocked(loc); err != nil {
			c.mu.Unlock()
			return model.RouteInfo{}, err
		}
	}
	if c.position == nil {
		c.mu.Unlock()
		return model.RouteInfo{}, ErrLocationUnavailable
	}

	c.supersedeLocked()
	if err := c.clearRouteLocked(); err != nil {
		c.mu.Unlock()
		return model.RouteInfo{}, err
	}

	origin := *c.position
	seq := c.seq
	reqCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	route, err := c.router.Route(reqCtx, origin, dest)

	c.mu.Lock()
	defer c.mu.Unlock()

	if seq != c.seq {
		c.logger.Debug("discarding superseded route", "destination", loc.Name)
		return model.RouteInfo{}, ErrSuperseded
	}
	c.cancel = nil
	cancel()

	if err != nil {
		return model.RouteInfo{}, fmt.Errorf("route to %q: %w", loc.Name, err)
	}

	if err := c.overlay.ShowRoute(route.Path); err != nil {
		return model.RouteInfo{}, fmt.Errorf("draw route: %w", err)
	}
	info := routing.NewRouteInfo(route.Summary, loc.Name)
	c.route = &info
	return info, nil
}

// ClearRoute removes the route overlay and its estimates but keeps the
// selection.
func (c *Controller) ClearRoute() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.supersedeLocked()
	return c.clearRouteLocked()
}

// ClearSelection returns to idle, removing the active pin together with any
// route. Calling it while idle does nothing.
func (c *Controller) ClearSelection() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.supersedeLocked()
	err := errors.Join(c.clearRouteLocked(), c.overlay.ClearActivePin())
	c.selected = nil
	return err
}

// UpdatePosition records the user's latest position for future routes.
func (c *Controller) UpdatePosition(p model.LatLng) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = &p
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{State: StateIdle}
	if c.selected != nil {
		sel := *c.selected
		snap.Selected = &sel
		snap.State = StateSelected
	}
	if c.route != nil {
		info := *c.route
		snap.Route = &info
		snap.State = StateRouted
	}
	if c.position != nil {
		p := *c.position
		snap.Position = &p
	}
	return snap
}

// supersedeLocked invalidates any in-flight route request.
func (c *Controller) supersedeLocked() {
	c.seq++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Controller) clearRouteLocked() error {
	c.route = nil
	if err := c.overlay.ClearRoute(); err != nil {
		return fmt.Errorf("clear route: %w", err)
	}
	return nil
}
