// Package shell composes the map, its controllers and the signed-in user into
// the single view the client presents.
package shell

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chizu/campus-client/internal/datacache"
	"chizu/campus-client/internal/mapview"
	"chizu/campus-client/internal/markers"
	"chizu/campus-client/internal/model"
	"chizu/campus-client/internal/position"
	"chizu/campus-client/internal/routing"
	"chizu/campus-client/internal/search"
	"chizu/campus-client/internal/selection"
	"chizu/campus-client/internal/store"
)

var (
	// ErrNotMounted is returned by map operations before Mount or after Unmount.
	ErrNotMounted = errors.New("view not mounted")
	// ErrUnknownLocation is returned for ids missing from the data cache.
	ErrUnknownLocation = errors.New("unknown location")
	// ErrForbidden is returned when the current role may not perform an action.
	ErrForbidden = errors.New("not permitted for current role")
	// ErrInvalidInput is returned when a submission fails local validation.
	ErrInvalidInput = errors.New("invalid input")
)

// API is the subset of the campus API the shell calls.
type API interface {
	Locations(ctx context.Context) ([]model.Location, error)
	Events(ctx context.Context) ([]model.Event, error)
	LocationDetail(ctx context.Context, id int64) (model.LocationDetail, error)
	CreatePost(ctx context.Context, locationID int64, content string, postType model.PostType) (model.Post, error)
	CreateEvent(ctx context.Context, draft model.EventDraft) (model.Event, error)
	SetEventStatus(ctx context.Context, id int64, status model.Status) error
	DeleteEvent(ctx context.Context, id int64) error
	Starred(ctx context.Context, userID int64) ([]model.StarredItem, error)
	Star(ctx context.Context, userID int64, itemType model.ItemType, itemID int64) (model.StarredItem, error)
	Unstar(ctx context.Context, id int64) error
	PendingPosts(ctx context.Context) ([]model.Post, error)
	ApprovePost(ctx context.Context, id int64) error
	RejectPost(ctx context.Context, id int64) error
	Login(ctx context.Context, username, password string) (model.CurrentUser, error)
	Courses(ctx context.Context, filter model.CourseFilter) ([]model.Course, error)
	Departments(ctx context.Context) ([]model.Department, error)
	CourseDetail(ctx context.Context, id int64) (model.CourseDetail, error)
	CreateCoursePost(ctx context.Context, courseID int64, content string, postType model.PostType) (model.Post, error)
}

// SnapshotStore keeps the last good data load for offline starts.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap datacache.Snapshot) error
	LatestSnapshot(ctx context.Context) (datacache.Snapshot, bool, error)
}

// ScheduleStore persists personal schedules per username.
type ScheduleStore interface {
	Schedule(ctx context.Context, username string) ([]model.ScheduleEntry, error)
	SaveSchedule(ctx context.Context, username string, entries []model.ScheduleEntry) error
}

// ActionLog records mutating actions that failed and were abandoned.
type ActionLog interface {
	InsertActionError(ctx context.Context, e store.ActionError) error
}

// Recorder receives operational counters.
type Recorder interface {
	DataLoad(source string, err error)
	Route(outcome string)
	PositionUpdate()
	Markers(channel string, n int)
	Alert(action string)
}

type nopRecorder struct{}

func (nopRecorder) DataLoad(string, error) {}
func (nopRecorder) Route(string)           {}
func (nopRecorder) PositionUpdate()        {}
func (nopRecorder) Markers(string, int)    {}
func (nopRecorder) Alert(string)           {}

// Option configures a Shell.
type Option func(*Shell)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Shell) { s.logger = logger }
}

// WithAlerter sets where user-visible alerts go.
func WithAlerter(a Alerter) Option {
	return func(s *Shell) { s.alerter = a }
}

// WithPositionSource sets the geolocation source watched while mounted.
func WithPositionSource(src position.Source) Option {
	return func(s *Shell) { s.positions = src }
}

// WithSnapshots enables offline fallback to the last saved data load.
func WithSnapshots(st SnapshotStore) Option {
	return func(s *Shell) { s.snapshots = st }
}

// WithSchedules enables the personal schedule.
func WithSchedules(st ScheduleStore) Option {
	return func(s *Shell) { s.schedules = st }
}

// WithActionLog records abandoned actions.
func WithActionLog(l ActionLog) Option {
	return func(s *Shell) { s.actions = l }
}

// WithRecorder installs a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Shell) { s.recorder = r }
}

// WithSearchOptions tunes search matching and debouncing.
func WithSearchOptions(opts search.Options) Option {
	return func(s *Shell) { s.searchOpts = opts }
}

// WithTileURL sets the {s}/{z}/{x}/{y} template used to address map tiles.
func WithTileURL(template string) Option {
	return func(s *Shell) { s.tileURL = template }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Shell) { s.now = now }
}

// Shell owns the current user, modal flags, bookmarks and, while mounted, the
// map surface together with the controllers drawing on it.
type Shell struct {
	api    API
	cache  *datacache.Cache
	handle *mapview.Handle
	router routing.Router

	positions  position.Source
	alerter    Alerter
	snapshots  SnapshotStore
	schedules  ScheduleStore
	actions    ActionLog
	recorder   Recorder
	logger     *slog.Logger
	searchOpts search.Options
	tileURL    string
	now        func() time.Time

	mu           sync.Mutex
	user         model.CurrentUser
	view         *mounted
	starred      []model.StarredItem
	pendingPosts []model.Post
	modals       map[Modal]bool
	detail       *model.LocationDetail
	category     model.Category
	viewport     mapview.View
	catalog      *Catalog
	course       *model.CourseDetail
}

// mounted holds everything bound to one live map surface.
type mounted struct {
	markers     *markers.Manager
	selection   *selection.Controller
	search      *search.Controller
	watch       *position.Subscription
	watchDone   chan struct{}
	unsubscribe func()
}

// New creates an unmounted shell with a guest user and an empty cache.
func New(api API, handle *mapview.Handle, router routing.Router, opts ...Option) *Shell {
	s := &Shell{
		api:       api,
		cache:     datacache.New(),
		handle:    handle,
		router:    router,
		positions: position.Unavailable{},
		recorder:  nopRecorder{},
		tileURL:   defaultTileURL,
		now:       time.Now,
		user:      model.Guest(),
		modals:    make(map[Modal]bool),
		category:  search.CategoryAll,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.alerter == nil {
		s.alerter = LogAlerter{Logger: s.logger}
	}
	return s
}

// Cache exposes the data cache.
func (s *Shell) Cache() *datacache.Cache {
	return s.cache
}

// Mount creates the map surface, wires markers, selection and search to it,
// starts the position watch and loads locations and events. Mounting a
// mounted shell does nothing. ctx bounds the position watch. Data load
// failures are logged, not returned.
func (s *Shell) Mount(ctx context.Context) error {
	s.mu.Lock()
	if s.view != nil {
		s.mu.Unlock()
		return nil
	}

	surface, err := s.handle.Mount()
	if err != nil {
		s.mu.Unlock()
		return err
	}

	mgr := markers.NewManager(surface, s.logger)
	sel := selection.NewController(mgr, s.router, s.logger)
	mgr.OnClick(func(loc model.Location) {
		if err := sel.SelectLocation(loc); err != nil {
			s.logger.Warn("marker selection failed", "location", loc.Name, "error", err)
			return
		}
		s.focusOn(loc)
	})

	v := &mounted{
		markers:   mgr,
		selection: sel,
		search:    search.NewController(visibleSource{s}, sel, s.searchOpts),
	}
	v.unsubscribe = s.cache.Subscribe(func(snap datacache.Snapshot) {
		s.render(mgr, s.visible(snap.Locations))
	})
	if locs := s.cache.Locations(); len(locs) > 0 {
		s.render(mgr, search.FilterCategory(locs, s.category))
	}
	s.startWatch(ctx, v)
	s.view = v
	s.viewport = s.handle.InitialView()
	s.mu.Unlock()

	s.logger.Info("view mounted", "surface_generation", s.handle.Generation())

	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("initial data load failed", "error", err)
	}
	s.refreshUserData(ctx)
	return nil
}

// Unmount stops the position watch, removes every layer and destroys the
// surface. Unmounting an unmounted shell does nothing.
func (s *Shell) Unmount() error {
	s.mu.Lock()
	v := s.view
	s.view = nil
	s.detail = nil
	delete(s.modals, ModalLocationDetail)
	s.mu.Unlock()

	if v == nil {
		return nil
	}

	v.unsubscribe()
	v.search.Stop()
	if v.watch != nil {
		v.watch.Unsubscribe()
		<-v.watchDone
	}

	err := errors.Join(
		v.selection.ClearSelection(),
		v.markers.Teardown(),
		s.handle.Unmount(),
	)
	s.reportMarkers(markers.Counts{})
	if err != nil {
		return fmt.Errorf("unmount: %w", err)
	}
	s.logger.Info("view unmounted")
	return nil
}

// Mounted reports whether a map surface is live.
func (s *Shell) Mounted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view != nil
}

// Refresh reloads locations and events. When the load fails and nothing is
// cached yet, the last saved snapshot is restored instead.
func (s *Shell) Refresh(ctx context.Context) error {
	_, err := s.cache.Load(ctx, s.api)
	s.recorder.DataLoad("api", err)
	if err == nil {
		if s.snapshots != nil {
			if serr := s.snapshots.SaveSnapshot(ctx, s.cache.Snapshot()); serr != nil {
				s.logger.Warn("failed to save snapshot", "error", serr)
			}
		}
		return nil
	}

	s.logger.Warn("failed to load campus data", "error", err)
	if s.snapshots == nil || len(s.cache.Locations()) > 0 {
		return err
	}

	saved, ok, serr := s.snapshots.LatestSnapshot(ctx)
	s.recorder.DataLoad("store", serr)
	switch {
	case serr != nil:
		s.logger.Warn("failed to read saved snapshot", "error", serr)
	case ok:
		s.cache.Replace(saved)
		s.logger.Info("restored saved campus data", "fetched_at", saved.FetchedAt, "locations", len(saved.Locations))
	}
	return err
}

func (s *Shell) mountedView() (*mounted, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.view == nil {
		return nil, ErrNotMounted
	}
	return s.view, nil
}

func (s *Shell) startWatch(ctx context.Context, v *mounted) {
	sub, err := s.positions.Subscribe(ctx)
	if err != nil {
		s.logger.Warn("position watch unavailable", "error", err)
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range sub.Updates() {
			v.selection.UpdatePosition(p.At)
			if err := v.markers.ShowUserPosition(p.At); err != nil {
				s.logger.Debug("failed to draw user position", "error", err)
			}
			s.recorder.PositionUpdate()
			s.reportMarkers(v.markers.Counts())
		}
	}()

	v.watch = sub
	v.watchDone = done
}

func (s *Shell) render(mgr *markers.Manager, locs []model.Location) {
	n, err := mgr.Render(locs)
	if err != nil {
		s.logger.Warn("marker render failed", "rendered", n, "error", err)
	}
	s.reportMarkers(mgr.Counts())
}

func (s *Shell) reportMarkers(c markers.Counts) {
	s.recorder.Markers("category", c.Category)
	s.recorder.Markers("active_pin", boolCount(c.ActivePin))
	s.recorder.Markers("user", boolCount(c.User))
	s.recorder.Markers("route", boolCount(c.Route))
}

func boolCount(b bool) int {
	if b {
		return 1
	}
	return 0
}
