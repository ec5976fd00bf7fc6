package mapview

import (
	"sort"
	"sync"
)

// LayerKind distinguishes canvas layers.
type LayerKind string

const (
	KindMarker   LayerKind = "marker"
	KindPolyline LayerKind = "polyline"
)

// Layer is a snapshot of one canvas layer.
type Layer struct {
	ID        LayerID   `json:"id"`
	Kind      LayerKind `json:"kind"`
	Marker    *Marker   `json:"marker,omitempty"`
	Polyline  *Polyline `json:"polyline,omitempty"`
	PopupOpen bool      `json:"popup_open,omitempty"`
	PopupText string    `json:"popup_text,omitempty"`
}

// Canvas is an in-memory Surface. It records layers instead of drawing
// them, which is all the local shell and tests need.
type Canvas struct {
	mu     sync.Mutex
	next   LayerID
	layers map[LayerID]*Layer
	view   View
	popup  LayerID
	closed bool
}

// NewCanvas creates a canvas showing v.
func NewCanvas(v View) *Canvas {
	return &Canvas{
		layers: make(map[LayerID]*Layer),
		view:   v.Normalize(),
	}
}

// CanvasFactory is a Factory producing canvases.
func CanvasFactory(initial View) (Surface, error) {
	return NewCanvas(initial), nil
}

func (c *Canvas) AddMarker(m Marker) (LayerID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, ErrSurfaceClosed
	}
	c.next++
	c.layers[c.next] = &Layer{ID: c.next, Kind: KindMarker, Marker: &m}
	return c.next, nil
}

func (c *Canvas) AddPolyline(p Polyline) (LayerID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, ErrSurfaceClosed
	}
	p.Path = append(p.Path[:0:0], p.Path...)
	c.next++
	c.layers[c.next] = &Layer{ID: c.next, Kind: KindPolyline, Polyline: &p}
	return c.next, nil
}

// OpenPopup opens text on a marker, closing any other open popup.
func (c *Canvas) OpenPopup(id LayerID, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrSurfaceClosed
	}
	layer, ok := c.layers[id]
	if !ok || layer.Kind != KindMarker {
		return ErrUnknownLayer
	}
	if prev, ok := c.layers[c.popup]; ok {
		prev.PopupOpen = false
	}
	layer.PopupOpen = true
	layer.PopupText = text
	c.popup = id
	return nil
}

func (c *Canvas) RemoveLayer(id LayerID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrSurfaceClosed
	}
	if _, ok := c.layers[id]; !ok {
		return ErrUnknownLayer
	}
	delete(c.layers, id)
	if c.popup == id {
		c.popup = 0
	}
	return nil
}

func (c *Canvas) SetView(v View) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrSurfaceClosed
	}
	c.view = v.Normalize()
	return nil
}

// Close releases every layer. The canvas is unusable afterwards.
func (c *Canvas) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrSurfaceClosed
	}
	c.closed = true
	c.layers = make(map[LayerID]*Layer)
	c.popup = 0
	return nil
}

// Click simulates a pointer click on a marker.
func (c *Canvas) Click(id LayerID) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrSurfaceClosed
	}
	layer, ok := c.layers[id]
	if !ok || layer.Kind != KindMarker {
		c.mu.Unlock()
		return ErrUnknownLayer
	}
	onClick := layer.Marker.OnClick
	c.mu.Unlock()

	if onClick != nil {
		onClick()
	}
	return nil
}

// Layers returns a snapshot of every layer in creation order.
func (c *Canvas) Layers() []Layer {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Layer, 0, len(c.layers))
	for _, l := range c.layers {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of layers of the given kind.
func (c *Canvas) Count(kind LayerKind) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, l := range c.layers {
		if l.Kind == kind {
			n++
		}
	}
	return n
}

// View returns the current viewport.
func (c *Canvas) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// Closed reports whether Close has been called.
func (c *Canvas) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
