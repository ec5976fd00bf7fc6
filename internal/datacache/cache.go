// Package datacache holds the last-fetched snapshot of locations and events.
package datacache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"chizu/campus-client/internal/model"
)

// Fetcher loads the data the cache holds.
type Fetcher interface {
	Locations(ctx context.Context) ([]model.Location, error)
	Events(ctx context.Context) ([]model.Event, error)
}

// Snapshot is an immutable copy of the cache contents.
type Snapshot struct {
	Locations []model.Location `json:"locations"`
	Events    []model.Event    `json:"events"`
	FetchedAt time.Time        `json:"fetched_at"`
}

// Cache holds one snapshot and notifies subscribers whenever it is replaced.
type Cache struct {
	mu       sync.RWMutex
	snap     Snapshot
	byID     map[int64]int
	approved []model.Event
	pending  []model.Event

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(Snapshot)
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{
		byID: make(map[int64]int),
		subs: make(map[int]func(Snapshot)),
	}
}

// Load fetches locations and events in parallel and replaces the snapshot.
// The cache is left untouched when either fetch fails.
func (c *Cache) Load(ctx context.Context, f Fetcher) (Snapshot, error) {
	var (
		locs   []model.Location
		events []model.Event
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		locs, err = f.Locations(gctx)
		if err != nil {
			return fmt.Errorf("fetch locations: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		events, err = f.Events(gctx)
		if err != nil {
			return fmt.Errorf("fetch events: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{Locations: locs, Events: events, FetchedAt: time.Now().UTC()}
	c.Replace(snap)
	return snap, nil
}

// Replace installs snap and notifies subscribers.
func (c *Cache) Replace(snap Snapshot) {
	snap.Locations = append([]model.Location(nil), snap.Locations...)
	snap.Events = append([]model.Event(nil), snap.Events...)

	byID := make(map[int64]int, len(snap.Locations))
	for i, loc := range snap.Locations {
		byID[loc.ID] = i
	}
	approved, pending := Partition(snap.Events)

	c.mu.Lock()
	c.snap = snap
	c.byID = byID
	c.approved = approved
	c.pending = pending
	c.mu.Unlock()

	c.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()

	for _, fn := range fns {
		fn(c.Snapshot())
	}
}

// Subscribe registers fn to run after every replacement. The returned
// function removes it.
func (c *Cache) Subscribe(fn func(Snapshot)) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	id := c.nextID
	c.nextID++
	c.subs[id] = fn

	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.subs, id)
	}
}

// Snapshot returns a copy of the current contents.
func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		Locations: append([]model.Location(nil), c.snap.Locations...),
		Events:    append([]model.Event(nil), c.snap.Events...),
		FetchedAt: c.snap.FetchedAt,
	}
}

// Locations returns the cached locations in fetch order.
func (c *Cache) Locations() []model.Location {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]model.Location(nil), c.snap.Locations...)
}

// LocationByID looks up a cached location.
func (c *Cache) LocationByID(id int64) (model.Location, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.byID[id]
	if !ok {
		return model.Location{}, false
	}
	return c.snap.Locations[i], true
}

// Approved returns events whose status is anything but pending.
func (c *Cache) Approved() []model.Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]model.Event(nil), c.approved...)
}

// Pending returns events awaiting approval.
func (c *Cache) Pending() []model.Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]model.Event(nil), c.pending...)
}

// EventByID looks up a cached event.
func (c *Cache) EventByID(id int64) (model.Event, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ev := range c.snap.Events {
		if ev.ID == id {
			return ev, true
		}
	}
	return model.Event{}, false
}

// Partition splits events into approved (status other than pending) and
// pending, preserving order.
func Partition(events []model.Event) (approved, pending []model.Event) {
	for _, ev := range events {
		if ev.Pending() {
			pending = append(pending, ev)
		} else {
			approved = append(approved, ev)
		}
	}
	return approved, pending
}
