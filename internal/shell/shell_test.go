package shell

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chizu/campus-client/internal/api"
	"chizu/campus-client/internal/datacache"
	"chizu/campus-client/internal/mapview"
	"chizu/campus-client/internal/model"
	"chizu/campus-client/internal/position"
	"chizu/campus-client/internal/routing"
	"chizu/campus-client/internal/search"
	"chizu/campus-client/internal/selection"
	"chizu/campus-client/internal/store"
)

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }

var (
	frank   = model.Location{ID: 1, Name: "Frank Dining", Category: model.CategoryDining, College: "Pomona", Lat: f64(34.0975), Lng: f64(-117.708)}
	honnold = model.Location{ID: 2, Name: "Honnold Library", Category: model.CategoryAcademic, College: "Claremont", Lat: f64(34.0995), Lng: f64(-117.7105)}
	nowhere = model.Location{ID: 3, Name: "Mystery Hall", Category: "unknown"}
)

type fakeAPI struct {
	mu sync.Mutex

	locations    []model.Location
	events       []model.Event
	starred      []model.StarredItem
	pendingPosts []model.Post
	detail       model.LocationDetail
	user         model.CurrentUser
	courses      []model.Course
	departments  []model.Department
	courseDetail model.CourseDetail
	coursePosts  []model.Post

	locErr   error
	starErr  error
	loginErr error

	eventLoads int
	drafts     []model.EventDraft
	starCalls  int
	approved   []int64
	nextStarID int64
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		locations: []model.Location{frank, honnold, nowhere},
		events: []model.Event{
			{ID: 10, Title: "Career Fair", EventType: model.EventCareer, EventDate: "2025-03-12", EventTime: "7:00 PM", Status: model.StatusApproved, LocationID: i64(1)},
			{ID: 11, Title: "Pizza Night", EventType: model.EventFun, EventDate: "2025-03-13", Status: model.StatusPending},
			{ID: 12, Title: "Clubs Day", EventType: model.EventClubs, EventDate: "2025-03-10", EventTime: "11:00 AM", Status: model.StatusApproved},
		},
		nextStarID: 100,
	}
}

func (f *fakeAPI) Locations(ctx context.Context) ([]model.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.locations, f.locErr
}

func (f *fakeAPI) Events(ctx context.Context) ([]model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.eventLoads++
	return f.events, nil
}

func (f *fakeAPI) LocationDetail(ctx context.Context, id int64) (model.LocationDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detail, nil
}

func (f *fakeAPI) CreatePost(ctx context.Context, locationID int64, content string, postType model.PostType) (model.Post, error) {
	return model.Post{ID: 1, LocationID: locationID, Content: content, PostType: postType}, nil
}

func (f *fakeAPI) CreateEvent(ctx context.Context, draft model.EventDraft) (model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drafts = append(f.drafts, draft)
	return model.Event{ID: 50, Title: draft.Title, Status: draft.Status}, nil
}

func (f *fakeAPI) SetEventStatus(ctx context.Context, id int64, status model.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.approved = append(f.approved, id)
	return nil
}

func (f *fakeAPI) DeleteEvent(ctx context.Context, id int64) error { return nil }

func (f *fakeAPI) Starred(ctx context.Context, userID int64) ([]model.StarredItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starred, nil
}

func (f *fakeAPI) Star(ctx context.Context, userID int64, itemType model.ItemType, itemID int64) (model.StarredItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starCalls++
	if f.starErr != nil {
		return model.StarredItem{}, f.starErr
	}
	f.nextStarID++
	return model.StarredItem{ID: f.nextStarID, UserID: userID, ItemType: itemType, ItemID: itemID}, nil
}

func (f *fakeAPI) Unstar(ctx context.Context, id int64) error { return nil }

func (f *fakeAPI) PendingPosts(ctx context.Context) ([]model.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pendingPosts, nil
}

func (f *fakeAPI) ApprovePost(ctx context.Context, id int64) error { return nil }
func (f *fakeAPI) RejectPost(ctx context.Context, id int64) error  { return nil }

func (f *fakeAPI) Courses(ctx context.Context, filter model.CourseFilter) ([]model.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.courses, nil
}

func (f *fakeAPI) Departments(ctx context.Context) ([]model.Department, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.departments, nil
}

func (f *fakeAPI) CourseDetail(ctx context.Context, id int64) (model.CourseDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := f.courseDetail
	d.Posts = append([]model.Post(nil), d.Posts...)
	return d, nil
}

func (f *fakeAPI) CreateCoursePost(ctx context.Context, courseID int64, content string, postType model.PostType) (model.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := model.Post{ID: int64(len(f.coursePosts) + 1), CourseID: courseID, Content: content, PostType: postType}
	f.coursePosts = append(f.coursePosts, p)
	return p, nil
}

func (f *fakeAPI) Login(ctx context.Context, username, password string) (model.CurrentUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loginErr != nil {
		return model.CurrentUser{}, f.loginErr
	}
	return f.user, nil
}

type memStore struct {
	mu        sync.Mutex
	snap      *datacache.Snapshot
	schedules map[string][]model.ScheduleEntry
	failures  []store.ActionError
}

func newMemStore() *memStore {
	return &memStore{schedules: make(map[string][]model.ScheduleEntry)}
}

func (m *memStore) SaveSnapshot(ctx context.Context, snap datacache.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = &snap
	return nil
}

func (m *memStore) LatestSnapshot(ctx context.Context) (datacache.Snapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil {
		return datacache.Snapshot{}, false, nil
	}
	return *m.snap, true, nil
}

func (m *memStore) Schedule(ctx context.Context, username string) ([]model.ScheduleEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.ScheduleEntry(nil), m.schedules[username]...), nil
}

func (m *memStore) SaveSchedule(ctx context.Context, username string, entries []model.ScheduleEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules[username] = entries
	return nil
}

func (m *memStore) InsertActionError(ctx context.Context, e store.ActionError) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, e)
	return nil
}

type fixture struct {
	shell    *Shell
	api      *fakeAPI
	store    *memStore
	inbox    *Inbox
	canvases []*mapview.Canvas
}

func (f *fixture) canvas() *mapview.Canvas {
	return f.canvases[len(f.canvases)-1]
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	fx := &fixture{api: newFakeAPI(), store: newMemStore(), inbox: NewInbox(10)}
	factory := func(v mapview.View) (mapview.Surface, error) {
		c := mapview.NewCanvas(v)
		fx.canvases = append(fx.canvases, c)
		return c, nil
	}

	base := []Option{
		WithAlerter(fx.inbox),
		WithSnapshots(fx.store),
		WithSchedules(fx.store),
		WithActionLog(fx.store),
		WithClock(func() time.Time { return time.Date(2025, 3, 11, 12, 0, 0, 0, time.UTC) }),
	}
	fx.shell = New(fx.api, mapview.NewHandle(factory, mapview.CampusView()), routing.Straight{}, append(base, opts...)...)
	t.Cleanup(func() { _ = fx.shell.Unmount() })
	return fx
}

func activePins(c *mapview.Canvas) []mapview.Layer {
	var pins []mapview.Layer
	for _, l := range c.Layers() {
		if l.Marker != nil && l.Marker.Style.Highlight {
			pins = append(pins, l)
		}
	}
	return pins
}

func waitForPosition(t *testing.T, s *Shell) {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.State().Selection.Position != nil
	}, time.Second, 5*time.Millisecond)
}

func TestSearchAndSelectScenario(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.shell.Mount(context.Background()))

	assert.Equal(t, 2, fx.canvas().Count(mapview.KindMarker), "only placeable locations get markers")

	view, err := fx.shell.Search("frank")
	require.NoError(t, err)
	assert.True(t, view.Open)
	assert.Equal(t, []model.Location{frank}, view.Groups.Dining)
	assert.Empty(t, view.Groups.Academic)
	assert.Empty(t, view.Groups.Recreation)
	assert.Empty(t, view.Groups.Other)

	require.NoError(t, fx.shell.SelectResult(1))

	st := fx.shell.State()
	require.NotNil(t, st.Selection.Selected)
	assert.Equal(t, int64(1), st.Selection.Selected.ID)
	assert.Equal(t, selection.StateSelected, st.Selection.State)
	assert.False(t, st.Search.Open)
	assert.Equal(t, "Frank Dining", st.Search.Query)

	pins := activePins(fx.canvas())
	require.Len(t, pins, 1)
	assert.Equal(t, model.LatLng{Lat: 34.0975, Lng: -117.708}, pins[0].Marker.At)
}

func TestSearchWithoutMatches(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.shell.Mount(context.Background()))

	view, err := fx.shell.Search("zzz")
	require.NoError(t, err)
	assert.True(t, view.NoResults)
	assert.Zero(t, view.Groups.Total())

	require.NoError(t, fx.shell.PointerDown(search.TargetOutside))
	assert.False(t, fx.shell.State().Search.Open)
}

func TestMountIsCreateIfAbsent(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.shell.Mount(ctx))
	require.NoError(t, fx.shell.Mount(ctx))
	assert.Len(t, fx.canvases, 1)

	first := fx.canvas()
	require.NoError(t, fx.shell.Unmount())
	require.NoError(t, fx.shell.Unmount())
	assert.True(t, first.Closed())
	assert.Empty(t, first.Layers(), "every layer is removed before the surface closes")
	assert.False(t, fx.shell.Mounted())

	require.NoError(t, fx.shell.Mount(ctx))
	assert.Len(t, fx.canvases, 2)
	assert.Equal(t, 2, fx.canvas().Count(mapview.KindMarker))
}

func TestOperationsNeedMount(t *testing.T) {
	fx := newFixture(t)

	assert.ErrorIs(t, fx.shell.SelectLocation(1), ErrNotMounted)
	_, err := fx.shell.Search("frank")
	assert.ErrorIs(t, err, ErrNotMounted)
	_, err = fx.shell.RequestRoute(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotMounted)
	assert.False(t, fx.shell.State().Mounted)
}

func TestRouteWithoutPositionAlerts(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.shell.Mount(context.Background()))

	_, err := fx.shell.RequestRoute(context.Background(), 1)
	require.ErrorIs(t, err, selection.ErrLocationUnavailable)

	st := fx.shell.State()
	assert.Equal(t, selection.StateSelected, st.Selection.State)
	alerts := fx.inbox.Drain()
	require.Len(t, alerts, 1)
	assert.Equal(t, "directions", alerts[0].Action)
	assert.Equal(t, LevelError, alerts[0].Level)
}

func TestRouteFromWatchedPosition(t *testing.T) {
	src := position.Static{At: model.LatLng{Lat: 34.1, Lng: -117.709}}
	fx := newFixture(t, WithPositionSource(src))
	require.NoError(t, fx.shell.Mount(context.Background()))
	waitForPosition(t, fx.shell)

	info, err := fx.shell.RequestRoute(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "Honnold Library", info.DestinationName)
	assert.Positive(t, info.DistanceKm)
	assert.GreaterOrEqual(t, info.BikeMinutes, 1)

	st := fx.shell.State()
	assert.Equal(t, selection.StateRouted, st.Selection.State)
	assert.True(t, st.Markers.Route)
	assert.True(t, st.Markers.User)
	assert.Equal(t, 1, fx.canvas().Count(mapview.KindPolyline))

	require.NoError(t, fx.shell.ClearRoute())
	assert.Equal(t, selection.StateSelected, fx.shell.State().Selection.State)

	require.NoError(t, fx.shell.ClearSelection())
	require.NoError(t, fx.shell.ClearSelection())
	assert.Empty(t, activePins(fx.canvas()))
	assert.Zero(t, fx.canvas().Count(mapview.KindPolyline))
}

func TestRouteToUnknownOrUnplaceableLocation(t *testing.T) {
	fx := newFixture(t, WithPositionSource(position.Static{At: model.LatLng{Lat: 34.1, Lng: -117.709}}))
	require.NoError(t, fx.shell.Mount(context.Background()))

	_, err := fx.shell.RequestRoute(context.Background(), 99)
	assert.ErrorIs(t, err, ErrUnknownLocation)

	assert.Error(t, fx.shell.SelectLocation(3))
	assert.Empty(t, activePins(fx.canvas()))
}

func TestMarkerClickSelects(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.shell.Mount(context.Background()))

	var honnoldMarker mapview.LayerID
	for _, l := range fx.canvas().Layers() {
		if l.Marker != nil && l.Marker.Title == "Honnold Library" {
			honnoldMarker = l.ID
		}
	}
	require.NotZero(t, honnoldMarker)
	require.NoError(t, fx.canvas().Click(honnoldMarker))

	sel := fx.shell.State().Selection.Selected
	require.NotNil(t, sel)
	assert.Equal(t, int64(2), sel.ID)
}

func TestOfflineFallback(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	require.NoError(t, fx.shell.Refresh(ctx))
	saved, ok, err := fx.store.LatestSnapshot(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, saved.Locations, 3)

	fx2 := newFixture(t)
	fx2.store = fx.store
	fx2.shell.snapshots = fx.store
	fx2.api.locErr = errors.New("connection refused")

	require.NoError(t, fx2.shell.Mount(ctx))
	assert.Equal(t, 3, fx2.shell.State().Locations)
	assert.Equal(t, 2, fx2.canvas().Count(mapview.KindMarker))
	assert.Empty(t, fx2.inbox.Peek(), "data load failures never alert")
}

func TestGuestsCannotMutate(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.shell.Star(ctx, model.ItemEvent, 10)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = fx.shell.SubmitPost(ctx, 1, "hello", model.PostTemporary)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = fx.shell.SubmitEvent(ctx, EventInput{Title: "x", EventType: model.EventFun, EventDate: "2025-03-14"})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, fx.shell.ApprovePost(ctx, 1), ErrForbidden)
	_, err = fx.shell.AddCourse(ctx, model.ScheduleEntry{CourseName: "CSCI 051"})
	assert.ErrorIs(t, err, ErrForbidden)

	assert.Zero(t, fx.api.starCalls)
	alerts := fx.inbox.Drain()
	require.Len(t, alerts, 5)
	assert.Equal(t, "Guests cannot post. Please create an account!", alerts[1].Message)
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name     string
		loginErr error
		wantMsg  string
	}{
		{name: "rejected", loginErr: &api.Error{Op: "login", Status: http.StatusUnauthorized, Message: "Invalid credentials"}, wantMsg: "Invalid username or password"},
		{name: "network", loginErr: &api.Error{Op: "login", Err: errors.New("dial tcp: refused")}, wantMsg: "Network error. Please try again."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			fx.api.loginErr = tt.loginErr

			_, err := fx.shell.Login(context.Background(), "sagehen", "secret")
			require.Error(t, err)
			assert.Equal(t, model.RoleGuest, fx.shell.User().Role)

			alerts := fx.inbox.Drain()
			require.Len(t, alerts, 1)
			assert.Equal(t, tt.wantMsg, alerts[0].Message)
			require.Len(t, fx.store.failures, 1)
			assert.Equal(t, "login", fx.store.failures[0].Action)
		})
	}

	t.Run("success loads bookmarks", func(t *testing.T) {
		fx := newFixture(t)
		fx.api.user = model.CurrentUser{ID: 7, Username: "sagehen", Name: "Cecil", Role: model.RoleStudent}
		fx.api.starred = []model.StarredItem{{ID: 1, UserID: 7, ItemType: model.ItemEvent, ItemID: 10}}

		user, err := fx.shell.Login(context.Background(), "sagehen", "secret")
		require.NoError(t, err)
		assert.Equal(t, int64(7), user.ID)
		assert.True(t, fx.shell.IsStarred(model.ItemEvent, 10))
		assert.Empty(t, fx.shell.PendingPosts(), "students never load the moderation queue")

		fx.shell.Logout()
		assert.Empty(t, fx.shell.Starred())
		assert.Equal(t, model.RoleGuest, fx.shell.User().Role)
	})
}

func student(t *testing.T, fx *fixture) {
	t.Helper()
	fx.shell.SetUser(context.Background(), model.CurrentUser{ID: 7, Username: "sagehen", Name: "Cecil", Role: model.RoleStudent})
}

func TestStarIsIdempotentAndFailuresAlert(t *testing.T) {
	fx := newFixture(t)
	student(t, fx)
	ctx := context.Background()

	first, err := fx.shell.Star(ctx, model.ItemEvent, 10)
	require.NoError(t, err)
	again, err := fx.shell.Star(ctx, model.ItemEvent, 10)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, 1, fx.api.starCalls)

	fx.api.starErr = &api.Error{Op: "star", Status: http.StatusServiceUnavailable}
	_, err = fx.shell.Star(ctx, model.ItemLocation, 1)
	require.Error(t, err)
	assert.Equal(t, 2, fx.api.starCalls, "failures are not retried")

	alerts := fx.inbox.Drain()
	require.Len(t, alerts, 1)
	assert.Equal(t, "Failed to star item. Please try again.", alerts[0].Message)
	require.Len(t, fx.store.failures, 1)
	assert.Equal(t, "sagehen", fx.store.failures[0].Username)
	assert.JSONEq(t, `{"item_type":"location","item_id":1}`, fx.store.failures[0].Payload)

	require.NoError(t, fx.shell.Unstar(ctx, model.ItemEvent, 10))
	assert.False(t, fx.shell.IsStarred(model.ItemEvent, 10))
	require.NoError(t, fx.shell.Unstar(ctx, model.ItemEvent, 10))
}

func TestSubmitEventStatusFollowsRole(t *testing.T) {
	tests := []struct {
		name    string
		role    model.Role
		want    model.Status
		message string
	}{
		{name: "student", role: model.RoleStudent, want: model.StatusPending, message: "Event submitted for admin approval!"},
		{name: "admin", role: model.RoleAdmin, want: model.StatusApproved, message: "Event posted!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			fx.shell.SetUser(context.Background(), model.CurrentUser{ID: 9, Username: "u", Role: tt.role})

			ev, err := fx.shell.SubmitEvent(context.Background(), EventInput{
				Title:     "Study Break",
				EventType: model.EventFun,
				EventDate: "2025-03-14",
				EventTime: "8:30 PM",
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev.Status)
			require.Len(t, fx.api.drafts, 1)
			assert.Equal(t, int64(9), fx.api.drafts[0].CreatedBy)
			assert.Equal(t, 1, fx.api.eventLoads, "events reload after submitting")
			assert.Equal(t, tt.message, fx.inbox.Drain()[0].Message)
		})
	}
}

func TestSubmitEventValidation(t *testing.T) {
	fx := newFixture(t)
	student(t, fx)

	tests := []struct {
		name string
		in   EventInput
	}{
		{name: "missing title", in: EventInput{EventType: model.EventFun, EventDate: "2025-03-14"}},
		{name: "bad type", in: EventInput{Title: "x", EventType: "party", EventDate: "2025-03-14"}},
		{name: "bad date", in: EventInput{Title: "x", EventType: model.EventFun, EventDate: "03/14/2025"}},
		{name: "bad time", in: EventInput{Title: "x", EventType: model.EventFun, EventDate: "2025-03-14", EventTime: "25:00"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fx.shell.SubmitEvent(context.Background(), tt.in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
	assert.Empty(t, fx.api.drafts)
}

func TestAdminModeration(t *testing.T) {
	fx := newFixture(t)
	fx.api.pendingPosts = []model.Post{{ID: 4, Content: "great tacos"}, {ID: 5, Content: "spam"}}
	fx.shell.SetUser(context.Background(), model.CurrentUser{ID: 1, Username: "admin", Role: model.RoleAdmin})
	require.NoError(t, fx.shell.Refresh(context.Background()))

	require.Len(t, fx.shell.PendingPosts(), 2)
	require.NoError(t, fx.shell.RejectPost(context.Background(), 5))
	assert.Len(t, fx.shell.PendingPosts(), 1)

	pending := fx.shell.PendingEvents()
	require.Len(t, pending, 1)
	require.NoError(t, fx.shell.ApproveEvent(context.Background(), pending[0].ID))
	assert.Equal(t, []int64{11}, fx.api.approved)

	require.NoError(t, fx.shell.OpenModal(ModalModeration))
	assert.Contains(t, fx.shell.Modals(), ModalModeration)
}

func TestLocationDetailHidesExpiredPosts(t *testing.T) {
	fx := newFixture(t)
	now := time.Date(2025, 3, 11, 12, 0, 0, 0, time.UTC)
	fx.api.detail = model.LocationDetail{
		Location: frank,
		Posts: []model.Post{
			{ID: 1, Content: "old", PostType: model.PostTemporary, CreatedAt: model.Timestamp{Time: now.Add(-4 * time.Hour)}},
			{ID: 2, Content: "fresh", PostType: model.PostTemporary, CreatedAt: model.Timestamp{Time: now.Add(-time.Hour)}},
			{ID: 3, Content: "pinned", PostType: model.PostPermanent, CreatedAt: model.Timestamp{Time: now.Add(-48 * time.Hour)}},
		},
	}

	detail, err := fx.shell.OpenLocationDetail(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, detail.Posts, 2)
	assert.Equal(t, "fresh", detail.Posts[0].Content)
	assert.Equal(t, "pinned", detail.Posts[1].Content)
	assert.Contains(t, fx.shell.Modals(), ModalLocationDetail)

	fx.shell.CloseModal(ModalLocationDetail)
	_, ok := fx.shell.Detail()
	assert.False(t, ok)
}

func TestCalendar(t *testing.T) {
	fx := newFixture(t)
	fx.api.starred = []model.StarredItem{
		{ID: 1, ItemType: model.ItemEvent, ItemID: 10},
		{ID: 2, ItemType: model.ItemEvent, ItemID: 11},
		{ID: 3, ItemType: model.ItemEvent, ItemID: 12},
		{ID: 4, ItemType: model.ItemLocation, ItemID: 10},
	}
	student(t, fx)
	require.NoError(t, fx.shell.Refresh(context.Background()))

	events := fx.shell.StarredEvents()
	require.Len(t, events, 2, "pending events stay off the calendar")
	assert.Equal(t, int64(12), events[0].ID)
	assert.Equal(t, int64(10), events[1].ID)

	week := fx.shell.Week(time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC))
	require.Len(t, week, 7)
	assert.Equal(t, "2025-03-09", week[0].Date)
	assert.Equal(t, "Sunday", week[0].Weekday)
	require.Len(t, week[3].Events, 1)
	assert.Equal(t, "7:00 PM", week[3].Events[0].Clock)

	var buf bytes.Buffer
	n, err := fx.shell.WriteCalendar(&buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Contains(t, buf.String(), "X-WR-CALNAME:Cecil's starred events")
	assert.Contains(t, buf.String(), "LOCATION:Frank Dining")
}

func TestSchedule(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	entries, err := fx.shell.Schedule(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	student(t, fx)
	first, err := fx.shell.AddCourse(ctx, model.ScheduleEntry{CourseName: "CSCI 051", Building: "Edmunds", Day: "Monday", Time: "9:00 AM"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.ID)
	second, err := fx.shell.AddCourse(ctx, model.ScheduleEntry{CourseName: "MATH 060", Day: "Tuesday", Time: "1:15 PM"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.ID)
	dup, err := fx.shell.AddCourse(ctx, model.ScheduleEntry{CourseName: "CSCI 051", Day: "Monday", Time: "9:00 AM"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, dup.ID)

	require.NoError(t, fx.shell.RemoveCourse(ctx, 1))
	entries, err = fx.shell.Schedule(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "MATH 060", entries[0].CourseName)
	assert.Len(t, fx.store.schedules["sagehen"], 1)
}

func TestInboxDropsOldest(t *testing.T) {
	in := NewInbox(2)
	in.Alert(Alert{Message: "a"})
	in.Alert(Alert{Message: "b"})
	in.Alert(Alert{Message: "c"})

	alerts := in.Drain()
	require.Len(t, alerts, 2)
	assert.Equal(t, "b", alerts[0].Message)
	assert.Empty(t, in.Drain())
}

func TestTimeAgo(t *testing.T) {
	now := time.Date(2025, 3, 11, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		then time.Time
		want string
	}{
		{name: "seconds", then: now.Add(-42 * time.Second), want: "42s ago"},
		{name: "minutes", then: now.Add(-5 * time.Minute), want: "5m ago"},
		{name: "hours", then: now.Add(-3 * time.Hour), want: "3h ago"},
		{name: "days", then: now.Add(-50 * time.Hour), want: "2d ago"},
		{name: "future", then: now.Add(time.Minute), want: "0s ago"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TimeAgo(tt.then, now))
		})
	}
}
