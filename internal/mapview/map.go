// Package mapview owns the map instance: a Surface that markers and route
// overlays are drawn on, and the Handle that ties its lifetime to a mount.
package mapview

import (
	"errors"
	"fmt"
	"sync"

	"chizu/campus-client/internal/model"
)

var (
	// ErrNotMounted is returned when no map instance is live.
	ErrNotMounted = errors.New("map not mounted")
	// ErrSurfaceClosed is returned by a surface after it has been destroyed.
	ErrSurfaceClosed = errors.New("map surface closed")
	// ErrUnknownLayer is returned when removing or addressing a layer the
	// surface does not hold.
	ErrUnknownLayer = errors.New("unknown map layer")
)

// LayerID addresses a marker or polyline on a surface. Zero is never a
// valid id.
type LayerID uint64

// MarkerStyle controls how a marker is drawn.
type MarkerStyle struct {
	Color     string `json:"color"`
	Radius    int    `json:"radius"`
	Highlight bool   `json:"highlight,omitempty"`
}

// Marker is a point layer.
type Marker struct {
	At      model.LatLng `json:"at"`
	Title   string       `json:"title"`
	Style   MarkerStyle  `json:"style"`
	Popup   string       `json:"popup,omitempty"`
	OnClick func()       `json:"-"`
}

// Polyline is a path layer such as a walking route.
type Polyline struct {
	Path   []model.LatLng `json:"path"`
	Color  string         `json:"color"`
	Weight int            `json:"weight"`
}

// Surface is a live map instance.
type Surface interface {
	AddMarker(m Marker) (LayerID, error)
	AddPolyline(p Polyline) (LayerID, error)
	OpenPopup(id LayerID, text string) error
	RemoveLayer(id LayerID) error
	SetView(v View) error
	Close() error
}

// Factory creates a fresh surface showing the initial view.
type Factory func(initial View) (Surface, error)

// Handle owns at most one live surface. It is never a process-wide
// singleton; each shell holds its own.
type Handle struct {
	mu         sync.Mutex
	factory    Factory
	initial    View
	surface    Surface
	generation int
}

// NewHandle returns an unmounted handle.
func NewHandle(factory Factory, initial View) *Handle {
	return &Handle{factory: factory, initial: initial}
}

// Mount creates the surface if none is live and returns the live one.
// Mounting twice never creates a second instance.
func (h *Handle) Mount() (Surface, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.surface != nil {
		return h.surface, nil
	}

	s, err := h.factory(h.initial)
	if err != nil {
		return nil, fmt.Errorf("create map surface: %w", err)
	}
	h.surface = s
	h.generation++
	return s, nil
}

// InitialView is the view every fresh surface starts from.
func (h *Handle) InitialView() View {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.initial
}

// Surface returns the live surface.
func (h *Handle) Surface() (Surface, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.surface == nil {
		return nil, ErrNotMounted
	}
	return h.surface, nil
}

// Unmount destroys the live surface. A later Mount creates a fresh one.
func (h *Handle) Unmount() error {
	h.mu.Lock()
	s := h.surface
	h.surface = nil
	h.mu.Unlock()

	if s == nil {
		return nil
	}
	if err := s.Close(); err != nil {
		return fmt.Errorf("close map surface: %w", err)
	}
	return nil
}

// Mounted reports whether a surface is live.
func (h *Handle) Mounted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.surface != nil
}

// Generation counts how many surfaces this handle has created.
func (h *Handle) Generation() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.generation
}
