package app

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"chizu/campus-client/internal/api"
	"chizu/campus-client/internal/httpx"
	"chizu/campus-client/internal/mapview"
	"chizu/campus-client/internal/markers"
	"chizu/campus-client/internal/model"
	"chizu/campus-client/internal/search"
	"chizu/campus-client/internal/selection"
	"chizu/campus-client/internal/shell"
	"chizu/campus-client/internal/timeutil"
)

func (a *App) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		a.requestLogger,
		middleware.Recoverer,
	)

	r.Get("/healthz", a.handleHealthz)
	r.Get("/readyz", a.handleReadyz)
	r.Handle("/metrics", a.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", a.handleState)
		r.Post("/refresh", a.handleRefresh)

		r.Get("/locations", a.handleLocations)
		r.Get("/locations/{locationID}", a.handleLocationDetail)
		r.Post("/locations/{locationID}/select", a.handleSelect)
		r.Post("/locations/{locationID}/route", a.handleRoute)
		r.Post("/locations/{locationID}/posts", a.handleSubmitPost)
		r.Delete("/selection", a.handleClearSelection)
		r.Delete("/route", a.handleClearRoute)
		r.Get("/map/layers", a.handleLayers)
		r.Post("/map/center", a.handleCenterOnUser)

		r.Get("/filter", a.handleFilter)
		r.Post("/filter", a.handleSetFilter)

		r.Get("/search", a.handleSearch)
		r.Post("/search/focus", a.handleSearchFocus)
		r.Post("/search/pointer", a.handleSearchPointer)
		r.Post("/search/results/{locationID}", a.handleSearchSelect)

		r.Get("/modals", a.handleModals)
		r.Post("/modals/{modal}", a.handleOpenModal)
		r.Delete("/modals/{modal}", a.handleCloseModal)

		r.Get("/courses", a.handleCourses)
		r.Get("/courses/{courseID}", a.handleCourseDetail)
		r.Post("/courses/{courseID}/posts", a.handleSubmitCoursePost)
		r.Post("/courses/{courseID}/map", a.handleCourseOnMap)
		r.Post("/courses/{courseID}/enroll", a.handleEnrollCourse)

		r.Get("/colleges", a.handleColleges)
		r.Post("/auth/register", a.handleRegister)
		r.Post("/auth/forgot-password", a.handleForgotPassword)
		r.Get("/auth/reset/{token}", a.handleVerifyResetToken)
		r.Post("/auth/reset-password", a.handleResetPassword)

		r.Get("/session", a.handleSession)
		r.Post("/session", a.handleLogin)
		r.Delete("/session", a.handleLogout)

		r.Get("/starred", a.handleStarred)
		r.Post("/starred", a.handleStar)
		r.Delete("/starred/{itemType}/{itemID}", a.handleUnstar)

		r.Get("/events", a.handleEvents)
		r.Post("/events", a.handleSubmitEvent)
		r.Get("/events/pending", a.handlePendingEvents)
		r.Post("/events/{eventID}/approve", a.handleApproveEvent)
		r.Post("/events/{eventID}/reject", a.handleRejectEvent)

		r.Get("/posts/pending", a.handlePendingPosts)
		r.Post("/posts/{postID}/approve", a.handleApprovePost)
		r.Post("/posts/{postID}/reject", a.handleRejectPost)

		r.Get("/calendar/week", a.handleCalendarWeek)
		r.Get("/calendar.ics", a.handleCalendarExport)

		r.Get("/schedule", a.handleSchedule)
		r.Post("/schedule", a.handleAddCourse)
		r.Delete("/schedule/{courseID}", a.handleRemoveCourse)

		r.Get("/alerts", a.handleAlerts)

		r.Get("/config", a.serveConfig)
		r.Post("/config", a.updateConfig)
		r.Get("/action-errors", a.handleActionErrors)
		r.Post("/admin/wipe", a.handleWipeDatabase)
	})

	return r
}

func (a *App) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		a.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if a.store == nil || a.shell == nil {
		httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.store.Ping(ctx); err != nil {
		a.logger.Error("failed to ping store", "error", err)
		httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "store unavailable"})
		return
	}
	if !a.shell.Mounted() {
		httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "view not mounted"})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (a *App) handleState(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, a.shell.State())
}

func (a *App) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := a.shell.Refresh(r.Context()); err != nil {
		a.writeError(w, "refresh campus data", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, a.shell.State())
}

func (a *App) handleLocations(w http.ResponseWriter, r *http.Request) {
	locs := a.shell.VisibleLocations()
	if raw := r.URL.Query().Get("category"); raw != "" {
		c, err := search.ParseCategory(raw)
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		locs = search.FilterCategory(a.shell.Cache().Locations(), c)
	}
	if locs == nil {
		locs = []model.Location{}
	}
	httpx.WriteJSON(w, http.StatusOK, locs)
}

func (a *App) handleFilter(w http.ResponseWriter, r *http.Request) {
	a.writeFilter(w)
}

func (a *App) handleSetFilter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Category string `json:"category"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := a.shell.SetCategoryFilter(model.Category(req.Category)); err != nil {
		a.writeError(w, "set category filter", err)
		return
	}
	a.writeFilter(w)
}

func (a *App) writeFilter(w http.ResponseWriter) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"category": a.shell.CategoryFilter(),
		"found":    len(a.shell.VisibleLocations()),
	})
}

func (a *App) handleLocationDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "locationID")
	if !ok {
		return
	}
	detail, err := a.shell.OpenLocationDetail(r.Context(), id)
	if err != nil {
		a.writeError(w, "load location detail", err)
		return
	}

	now := time.Now()
	posts := make([]postView, 0, len(detail.Posts))
	for _, p := range detail.Posts {
		posts = append(posts, postView{Post: p, Age: shell.TimeAgo(p.CreatedAt.Time, now)})
	}

	httpx.WriteJSON(w, http.StatusOK, struct {
		Location model.Location `json:"location"`
		Posts    []postView     `json:"posts"`
	}{Location: detail.Location, Posts: posts})
}

// postView is a post with the age label the detail view shows.
type postView struct {
	model.Post
	Age string `json:"age"`
}

func (a *App) handleSelect(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "locationID")
	if !ok {
		return
	}
	if err := a.shell.SelectLocation(id); err != nil {
		a.writeError(w, "select location", err)
		return
	}
	a.writeSelection(w)
}

func (a *App) handleRoute(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "locationID")
	if !ok {
		return
	}
	info, err := a.shell.RequestRoute(r.Context(), id)
	if err != nil {
		a.writeError(w, "request route", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, info)
}

func (a *App) handleClearSelection(w http.ResponseWriter, r *http.Request) {
	if err := a.shell.ClearSelection(); err != nil {
		a.writeError(w, "clear selection", err)
		return
	}
	a.writeSelection(w)
}

func (a *App) handleClearRoute(w http.ResponseWriter, r *http.Request) {
	if err := a.shell.ClearRoute(); err != nil {
		a.writeError(w, "clear route", err)
		return
	}
	a.writeSelection(w)
}

func (a *App) writeSelection(w http.ResponseWriter) {
	httpx.WriteJSON(w, http.StatusOK, a.shell.State().Selection)
}

func (a *App) handleLayers(w http.ResponseWriter, r *http.Request) {
	surface, err := a.handle.Surface()
	if err != nil {
		a.writeError(w, "list map layers", shell.ErrNotMounted)
		return
	}
	canvas, ok := surface.(*mapview.Canvas)
	if !ok {
		httpx.Error(w, http.StatusNotImplemented, "surface does not expose layers")
		return
	}

	width, err := httpx.Int64Query(r, "width", 0)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid width")
		return
	}
	height, err := httpx.Int64Query(r, "height", 0)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid height")
		return
	}
	mv, err := a.shell.MapView(int(width), int(height))
	if err != nil {
		a.writeError(w, "list map tiles", err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, struct {
		View    mapview.View    `json:"view"`
		Visible mapview.Bounds  `json:"visible"`
		Tiles   []shell.TileRef `json:"tiles"`
		Layers  []mapview.Layer `json:"layers"`
	}{View: canvas.View(), Visible: mv.Visible, Tiles: mv.Tiles, Layers: canvas.Layers()})
}

func (a *App) handleCenterOnUser(w http.ResponseWriter, r *http.Request) {
	view, err := a.shell.CenterOnUser()
	if err != nil {
		a.writeError(w, "center on user", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, view)
}

func (a *App) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if r.URL.Query().Get("debounce") == "1" {
		if err := a.shell.SearchDebounced(query); err != nil {
			a.writeError(w, "search", err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		return
	}

	view, err := a.shell.Search(query)
	if err != nil {
		a.writeError(w, "search", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, view)
}

func (a *App) handleSearchFocus(w http.ResponseWriter, r *http.Request) {
	if err := a.shell.FocusSearch(); err != nil {
		a.writeError(w, "focus search", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, a.shell.State().Search)
}

func (a *App) handleSearchPointer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Target string `json:"target"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid payload")
		return
	}

	var target search.Target
	switch strings.ToLower(strings.TrimSpace(req.Target)) {
	case "input":
		target = search.TargetInput
	case "dropdown":
		target = search.TargetDropdown
	case "outside", "":
		target = search.TargetOutside
	default:
		httpx.Error(w, http.StatusBadRequest, "target must be one of input, dropdown, outside")
		return
	}

	if err := a.shell.PointerDown(target); err != nil {
		a.writeError(w, "search pointer", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, a.shell.State().Search)
}

func (a *App) handleSearchSelect(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "locationID")
	if !ok {
		return
	}
	if err := a.shell.SelectResult(id); err != nil {
		a.writeError(w, "select search result", err)
		return
	}
	a.writeSelection(w)
}

func (a *App) handleModals(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"open": a.shell.Modals()})
}

func (a *App) handleOpenModal(w http.ResponseWriter, r *http.Request) {
	m, err := shell.ParseModal(chi.URLParam(r, "modal"))
	if err != nil {
		httpx.Error(w, http.StatusNotFound, err.Error())
		return
	}
	if err := a.shell.OpenModal(m); err != nil {
		if errors.Is(err, shell.ErrForbidden) {
			a.writeError(w, "open modal", err)
			return
		}
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"open": a.shell.Modals()})
}

func (a *App) handleCloseModal(w http.ResponseWriter, r *http.Request) {
	m, err := shell.ParseModal(chi.URLParam(r, "modal"))
	if err != nil {
		httpx.Error(w, http.StatusNotFound, err.Error())
		return
	}
	a.shell.CloseModal(m)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"open": a.shell.Modals()})
}

func (a *App) handleAlerts(w http.ResponseWriter, r *http.Request) {
	var alerts []shell.Alert
	if r.URL.Query().Get("peek") == "1" {
		alerts = a.inbox.Peek()
	} else {
		alerts = a.inbox.Drain()
	}
	if alerts == nil {
		alerts = []shell.Alert{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

func (a *App) handleCalendarWeek(w http.ResponseWriter, r *http.Request) {
	day := time.Now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := timeutil.ParseEventDate(raw)
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = parsed
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"days": a.shell.Week(day)})
}

func (a *App) handleCalendarExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=chizu_starred.ics")

	n, err := a.shell.WriteCalendar(w)
	if err != nil {
		a.logger.Error("export: failed to write calendar", "error", err)
		return
	}
	a.logger.Debug("exported calendar", "events", n)
}

// writeError maps shell, selection and API failures to status codes.
func (a *App) writeError(w http.ResponseWriter, op string, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, shell.ErrNotMounted):
		status = http.StatusServiceUnavailable
	case errors.Is(err, shell.ErrUnknownLocation), errors.Is(err, shell.ErrUnknownCourse):
		status = http.StatusNotFound
	case errors.Is(err, shell.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, shell.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, markers.ErrNoCoordinates), errors.Is(err, selection.ErrLocationUnavailable):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, selection.ErrSuperseded):
		status = http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case api.StatusOf(err) == http.StatusUnauthorized:
		status = http.StatusUnauthorized
	case api.StatusOf(err) == http.StatusNotFound:
		status = http.StatusNotFound
	}

	if status >= http.StatusInternalServerError {
		a.logger.Error("failed to "+op, "error", err)
	}
	httpx.Error(w, status, err.Error())
}

func idParam(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	if err != nil || id <= 0 {
		httpx.Error(w, http.StatusBadRequest, "invalid "+key)
		return 0, false
	}
	return id, true
}
