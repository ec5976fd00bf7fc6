package shell

import (
	"time"

	"chizu/campus-client/internal/mapview"
	"chizu/campus-client/internal/markers"
	"chizu/campus-client/internal/model"
	"chizu/campus-client/internal/search"
	"chizu/campus-client/internal/selection"
)

// State is a point-in-time view of everything the shell presents.
type State struct {
	User          model.CurrentUser  `json:"user"`
	Mounted       bool               `json:"mounted"`
	Selection     selection.Snapshot `json:"selection"`
	Search        search.View        `json:"search"`
	Markers       markers.Counts     `json:"markers"`
	Modals        []Modal            `json:"modals"`
	Locations     int                `json:"locations"`
	Category      model.Category     `json:"category_filter"`
	Visible       int                `json:"visible_locations"`
	Viewport      *mapview.View      `json:"viewport,omitempty"`
	Events        int                `json:"events"`
	PendingEvents int                `json:"pending_events"`
	PendingPosts  int                `json:"pending_posts"`
	Starred       int                `json:"starred"`
	FetchedAt     time.Time          `json:"fetched_at"`
}

// State gathers the current view state.
func (s *Shell) State() State {
	snap := s.cache.Snapshot()
	st := State{
		User:          s.User(),
		Selection:     selection.Snapshot{State: selection.StateIdle},
		Modals:        s.Modals(),
		Locations:     len(snap.Locations),
		Category:      s.CategoryFilter(),
		Visible:       len(s.visible(snap.Locations)),
		Events:        len(s.cache.Approved()),
		PendingEvents: len(s.PendingEvents()),
		PendingPosts:  len(s.PendingPosts()),
		Starred:       len(s.Starred()),
		FetchedAt:     snap.FetchedAt,
	}

	v, err := s.mountedView()
	if err != nil {
		return st
	}
	st.Mounted = true
	st.Selection = v.selection.Snapshot()
	st.Search = v.search.View()
	st.Markers = v.markers.Counts()
	vp := s.Viewport()
	st.Viewport = &vp
	return st
}
