// Package markers manages every layer the client draws on the map: category
// markers, the single active pin, the user's position and the route overlay.
package markers

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"chizu/campus-client/internal/mapview"
	"chizu/campus-client/internal/model"
)

// ErrNoCoordinates is returned when a location without a position is asked
// to be pinned.
var ErrNoCoordinates = errors.New("location has no coordinates")

var categoryColors = map[model.Category]string{
	model.CategoryDining:     "#f39c12",
	model.CategoryAcademic:   "#27ae60",
	model.CategoryRecreation: "#e74c3c",
	model.CategoryOther:      "#95a5a6",
}

const (
	activePinColor = "#2c3e50"
	userColor      = "#3498db"
	routeColor     = "#3498db"
)

// ColorFor returns the marker color of a category; unknown categories use
// the "other" color.
func ColorFor(c model.Category) string {
	return categoryColors[c.Normalize()]
}

// ClickFunc is invoked when a category marker is clicked.
type ClickFunc func(loc model.Location)

// Manager owns the layer handles it creates on one surface and nothing else.
// It must be discarded when that surface is destroyed.
type Manager struct {
	mu      sync.Mutex
	surface mapview.Surface
	logger  *slog.Logger
	onClick ClickFunc

	category []mapview.LayerID
	active   mapview.LayerID
	user     mapview.LayerID
	route    mapview.LayerID
}

// NewManager binds a manager to a live surface.
func NewManager(surface mapview.Surface, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{surface: surface, logger: logger}
}

// OnClick sets the handler attached to category markers on the next Render.
func (m *Manager) OnClick(fn ClickFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onClick = fn
}

// Render replaces every category marker with one marker per placeable
// location. Locations without coordinates are skipped.
func (m *Manager) Render(locs []model.Location) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.removeCategoryLocked(); err != nil {
		return 0, err
	}

	skipped := 0
	for _, loc := range locs {
		at, ok := loc.Coordinates()
		if !ok {
			skipped++
			continue
		}

		marker := mapview.Marker{
			At:    at,
			Title: loc.Name,
			Style: mapview.MarkerStyle{Color: ColorFor(loc.Category), Radius: 8},
			Popup: popupText(loc),
		}
		if m.onClick != nil {
			onClick, target := m.onClick, loc
			marker.OnClick = func() { onClick(target) }
		}

		id, err := m.surface.AddMarker(marker)
		if err != nil {
			return len(m.category), fmt.Errorf("add marker %d: %w", loc.ID, err)
		}
		m.category = append(m.category, id)
	}

	if skipped > 0 {
		m.logger.Debug("skipped locations without coordinates", "count", skipped)
	}
	return len(m.category), nil
}

// ShowActivePin replaces the active pin with one at loc and opens its popup.
func (m *Manager) ShowActivePin(loc model.Location) error {
	at, ok := loc.Coordinates()
	if !ok {
		return fmt.Errorf("pin %q: %w", loc.Name, ErrNoCoordinates)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.removeLocked(&m.active); err != nil {
		return err
	}

	id, err := m.surface.AddMarker(mapview.Marker{
		At:    at,
		Title: loc.Name,
		Style: mapview.MarkerStyle{Color: activePinColor, Radius: 12, Highlight: true},
	})
	if err != nil {
		return fmt.Errorf("add active pin: %w", err)
	}
	m.active = id

	if err := m.surface.OpenPopup(id, popupText(loc)); err != nil {
		return fmt.Errorf("open popup: %w", err)
	}
	return nil
}

// ClearActivePin removes the active pin if one is shown.
func (m *Manager) ClearActivePin() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(&m.active)
}

// ShowUserPosition moves the user marker to p. The old marker is removed
// before the new one is added so both are never visible.
func (m *Manager) ShowUserPosition(p model.LatLng) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.removeLocked(&m.user); err != nil {
		return err
	}

	id, err := m.surface.AddMarker(mapview.Marker{
		At:    p,
		Title: "You are here",
		Style: mapview.MarkerStyle{Color: userColor, Radius: 6},
	})
	if err != nil {
		return fmt.Errorf("add user marker: %w", err)
	}
	m.user = id
	return nil
}

// ShowRoute replaces the route overlay with path.
func (m *Manager) ShowRoute(path []model.LatLng) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.removeLocked(&m.route); err != nil {
		return err
	}
	if len(path) == 0 {
		return nil
	}

	id, err := m.surface.AddPolyline(mapview.Polyline{Path: path, Color: routeColor, Weight: 5})
	if err != nil {
		return fmt.Errorf("add route: %w", err)
	}
	m.route = id
	return nil
}

// ClearRoute removes the route overlay if one is shown.
func (m *Manager) ClearRoute() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(&m.route)
}

// Teardown removes every layer the manager created.
func (m *Manager) Teardown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return errors.Join(
		m.removeCategoryLocked(),
		m.removeLocked(&m.active),
		m.removeLocked(&m.user),
		m.removeLocked(&m.route),
	)
}

// Counts reports how many layers the manager currently holds per channel.
type Counts struct {
	Category  int  `json:"category"`
	ActivePin bool `json:"active_pin"`
	User      bool `json:"user"`
	Route     bool `json:"route"`
}

// Counts returns the current layer tally.
func (m *Manager) Counts() Counts {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Counts{
		Category:  len(m.category),
		ActivePin: m.active != 0,
		User:      m.user != 0,
		Route:     m.route != 0,
	}
}

func (m *Manager) removeCategoryLocked() error {
	var errs []error
	for _, id := range m.category {
		if err := m.surface.RemoveLayer(id); err != nil && !errors.Is(err, mapview.ErrUnknownLayer) {
			errs = append(errs, err)
		}
	}
	m.category = m.category[:0]
	return errors.Join(errs...)
}

func (m *Manager) removeLocked(slot *mapview.LayerID) error {
	if *slot == 0 {
		return nil
	}
	id := *slot
	*slot = 0
	if err := m.surface.RemoveLayer(id); err != nil && !errors.Is(err, mapview.ErrUnknownLayer) {
		return fmt.Errorf("remove layer %d: %w", id, err)
	}
	return nil
}

func popupText(loc model.Location) string {
	parts := []string{loc.Name}
	if loc.College != "" {
		parts = append(parts, loc.College)
	}
	if loc.Description != "" {
		parts = append(parts, loc.Description)
	}
	return strings.Join(parts, "\n")
}
