// Package search filters locations by a live query and drives the results
// dropdown.
package search

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"chizu/campus-client/internal/model"
)

// Source supplies the current location snapshot.
type Source interface {
	Locations() []model.Location
}

// Selector receives a chosen result.
type Selector interface {
	SelectLocation(loc model.Location) error
}

// Options tunes matching and input debouncing.
type Options struct {
	MatchCollege  bool
	MatchCategory bool
	Debounce      time.Duration
}

// Groups buckets matches by category, keeping snapshot order inside each.
type Groups struct {
	Dining     []model.Location `json:"dining"`
	Academic   []model.Location `json:"academic"`
	Recreation []model.Location `json:"recreation"`
	Other      []model.Location `json:"other"`
}

// newGroups returns groups whose buckets encode as empty lists, never null.
func newGroups() Groups {
	return Groups{
		Dining:     []model.Location{},
		Academic:   []model.Location{},
		Recreation: []model.Location{},
		Other:      []model.Location{},
	}
}

// Total counts every grouped match.
func (g Groups) Total() int {
	return len(g.Dining) + len(g.Academic) + len(g.Recreation) + len(g.Other)
}

func (g *Groups) add(loc model.Location) {
	switch loc.Category.Normalize() {
	case model.CategoryDining:
		g.Dining = append(g.Dining, loc)
	case model.CategoryAcademic:
		g.Academic = append(g.Academic, loc)
	case model.CategoryRecreation:
		g.Recreation = append(g.Recreation, loc)
	default:
		g.Other = append(g.Other, loc)
	}
}

// Target is where a pointer-down landed.
type Target int

const (
	TargetOutside Target = iota
	TargetInput
	TargetDropdown
)

// View is what the search box and dropdown should show.
type View struct {
	Query     string `json:"query"`
	Open      bool   `json:"open"`
	NoResults bool   `json:"no_results"`
	Groups    Groups `json:"groups"`
}

// Controller holds the query and dropdown state.
type Controller struct {
	mu       sync.Mutex
	source   Source
	selector Selector
	opts     Options
	query    string
	open     bool
	focused  bool
	timer    *time.Timer
	pending  *string
}

// NewController creates a controller with an empty query.
func NewController(source Source, selector Selector, opts Options) *Controller {
	return &Controller{source: source, selector: selector, opts: opts}
}

// SetQuery replaces the query immediately. A non-empty query opens the
// dropdown.
func (c *Controller) SetQuery(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimerLocked()
	c.setQueryLocked(text)
}

func (c *Controller) setQueryLocked(text string) {
	c.query = text
	c.open = strings.TrimSpace(text) != ""
}

// SetQueryDebounced applies text once input has been quiet for the
// configured debounce. Each call restarts the wait.
func (c *Controller) SetQueryDebounced(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.opts.Debounce <= 0 {
		c.stopTimerLocked()
		c.setQueryLocked(text)
		return
	}

	c.pending = &text
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.opts.Debounce, c.Flush)
}

// Flush applies a pending debounced query now.
func (c *Controller) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil {
		return
	}
	text := *c.pending
	c.stopTimerLocked()
	c.setQueryLocked(text)
}

// Stop drops any pending debounced query.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimerLocked()
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.pending = nil
}

// Focus marks the input focused, reopening the dropdown if it has text.
func (c *Controller) Focus() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.focused = true
	if strings.TrimSpace(c.query) != "" {
		c.open = true
	}
}

// PointerDown closes the dropdown when the pointer lands outside both the
// input and the dropdown.
func (c *Controller) PointerDown(target Target) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if target == TargetOutside {
		c.open = false
		c.focused = false
	}
}

// Results groups the locations matching the current query.
func (c *Controller) Results() Groups {
	c.mu.Lock()
	query := c.query
	c.mu.Unlock()
	return c.match(query)
}

// View returns the query, dropdown state and grouped results together.
func (c *Controller) View() View {
	c.mu.Lock()
	query, open := c.query, c.open
	c.mu.Unlock()

	groups := c.match(query)
	return View{
		Query:     query,
		Open:      open,
		NoResults: open && groups.Total() == 0,
		Groups:    groups,
	}
}

// Select puts the chosen name in the box, closes the dropdown and selects
// the location.
func (c *Controller) Select(loc model.Location) error {
	c.mu.Lock()
	c.stopTimerLocked()
	c.query = loc.Name
	c.open = false
	c.mu.Unlock()

	return c.selector.SelectLocation(loc)
}

// Match groups locs matching query under opts. An empty query matches
// nothing.
func Match(locs []model.Location, query string, opts Options) Groups {
	g := newGroups()
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return g
	}

	for _, loc := range locs {
		if matches(loc, needle, opts) {
			g.add(loc)
		}
	}
	return g
}

func (c *Controller) match(query string) Groups {
	return Match(c.source.Locations(), query, c.opts)
}

func matches(loc model.Location, needle string, opts Options) bool {
	if strings.Contains(strings.ToLower(loc.Name), needle) {
		return true
	}
	if opts.MatchCollege && strings.Contains(strings.ToLower(loc.College), needle) {
		return true
	}
	if opts.MatchCategory && strings.Contains(strings.ToLower(string(loc.Category)), needle) {
		return true
	}
	return false
}

// CategoryAll disables category filtering.
const CategoryAll model.Category = "all"

// ParseCategory accepts "all" (or an empty string) and the fixed categories,
// ignoring case.
func ParseCategory(s string) (model.Category, error) {
	c := model.Category(strings.ToLower(strings.TrimSpace(s)))
	if c == "" || c == CategoryAll {
		return CategoryAll, nil
	}
	for _, known := range model.Categories {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// FilterCategory keeps the locations in category c, preserving order.
// CategoryAll keeps everything. Unrecognised location categories count as
// other.
func FilterCategory(locs []model.Location, c model.Category) []model.Location {
	if c == CategoryAll || c == "" {
		return locs
	}
	out := make([]model.Location, 0, len(locs))
	for _, loc := range locs {
		if loc.Category.Normalize() == c {
			out = append(out, loc)
		}
	}
	return out
}
