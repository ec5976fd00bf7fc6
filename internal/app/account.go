package app

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"chizu/campus-client/internal/httpx"
	"chizu/campus-client/internal/model"
	"chizu/campus-client/internal/shell"
)

func (a *App) handleSession(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, a.shell.User())
}

func (a *App) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid payload")
		return
	}

	user, err := a.shell.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		a.writeError(w, "login", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, user)
}

func (a *App) handleLogout(w http.ResponseWriter, r *http.Request) {
	a.shell.Logout()
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) handleStarred(w http.ResponseWriter, r *http.Request) {
	items := a.shell.Starred()
	if items == nil {
		items = []model.StarredItem{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"starred": items})
}

func (a *App) handleStar(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemType model.ItemType `json:"item_type"`
		ItemID   int64          `json:"item_id"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if !validItemType(req.ItemType) || req.ItemID <= 0 {
		httpx.Error(w, http.StatusBadRequest, "item_type must be event or location and item_id positive")
		return
	}

	item, err := a.shell.Star(r.Context(), req.ItemType, req.ItemID)
	if err != nil {
		a.writeError(w, "star item", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, item)
}

func (a *App) handleUnstar(w http.ResponseWriter, r *http.Request) {
	itemType := model.ItemType(chi.URLParam(r, "itemType"))
	if !validItemType(itemType) {
		httpx.Error(w, http.StatusBadRequest, "item_type must be event or location")
		return
	}
	id, ok := idParam(w, r, "itemID")
	if !ok {
		return
	}

	if err := a.shell.Unstar(r.Context(), itemType, id); err != nil {
		a.writeError(w, "unstar item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func validItemType(t model.ItemType) bool {
	return t == model.ItemEvent || t == model.ItemLocation
}

func (a *App) handleEvents(w http.ResponseWriter, r *http.Request) {
	events := a.shell.Cache().Approved()
	if events == nil {
		events = []model.Event{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (a *App) handleSubmitEvent(w http.ResponseWriter, r *http.Request) {
	var in shell.EventInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid payload")
		return
	}

	ev, err := a.shell.SubmitEvent(r.Context(), in)
	if err != nil {
		a.writeError(w, "submit event", err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, ev)
}

func (a *App) handlePendingEvents(w http.ResponseWriter, r *http.Request) {
	if !a.shell.User().Role.Can(model.ActionApprove) {
		httpx.Error(w, http.StatusForbidden, shell.ErrForbidden.Error())
		return
	}
	events := a.shell.PendingEvents()
	if events == nil {
		events = []model.Event{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (a *App) handleApproveEvent(w http.ResponseWriter, r *http.Request) {
	a.moderate(w, r, "eventID", "approve event", a.shell.ApproveEvent)
}

func (a *App) handleRejectEvent(w http.ResponseWriter, r *http.Request) {
	a.moderate(w, r, "eventID", "reject event", a.shell.RejectEvent)
}

func (a *App) handlePendingPosts(w http.ResponseWriter, r *http.Request) {
	if !a.shell.User().Role.Can(model.ActionApprove) {
		httpx.Error(w, http.StatusForbidden, shell.ErrForbidden.Error())
		return
	}
	posts := a.shell.PendingPosts()
	if posts == nil {
		posts = []model.Post{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"posts": posts})
}

func (a *App) handleApprovePost(w http.ResponseWriter, r *http.Request) {
	a.moderate(w, r, "postID", "approve post", a.shell.ApprovePost)
}

func (a *App) handleRejectPost(w http.ResponseWriter, r *http.Request) {
	a.moderate(w, r, "postID", "reject post", a.shell.RejectPost)
}

func (a *App) moderate(w http.ResponseWriter, r *http.Request, key, op string, call func(context.Context, int64) error) {
	id, ok := idParam(w, r, key)
	if !ok {
		return
	}
	if err := call(r.Context(), id); err != nil {
		a.writeError(w, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) handleSubmitPost(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "locationID")
	if !ok {
		return
	}

	req, ok := decodePostRequest(w, r)
	if !ok {
		return
	}

	post, err := a.shell.SubmitPost(r.Context(), id, req.Content, req.PostType)
	if err != nil {
		a.writeError(w, "submit post", err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, post)
}

type postRequest struct {
	Content  string         `json:"content"`
	PostType model.PostType `json:"post_type"`
}

// decodePostRequest reads a post body, defaulting the type to temporary.
func decodePostRequest(w http.ResponseWriter, r *http.Request) (postRequest, bool) {
	var req postRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid payload")
		return req, false
	}
	if req.PostType == "" {
		req.PostType = model.PostTemporary
	}
	if req.PostType != model.PostTemporary && req.PostType != model.PostPermanent {
		httpx.Error(w, http.StatusBadRequest, "post_type must be temporary or permanent")
		return req, false
	}
	return req, true
}

func (a *App) handleSchedule(w http.ResponseWriter, r *http.Request) {
	entries, err := a.shell.Schedule(r.Context())
	if err != nil {
		a.logger.Error("failed to load schedule", "error", err)
		httpx.Error(w, http.StatusInternalServerError, "failed to load schedule")
		return
	}
	if entries == nil {
		entries = []model.ScheduleEntry{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"courses": entries})
}

func (a *App) handleAddCourse(w http.ResponseWriter, r *http.Request) {
	var entry model.ScheduleEntry
	if err := httpx.DecodeJSON(r, &entry); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid payload")
		return
	}
	entry.CourseName = strings.TrimSpace(entry.CourseName)

	added, err := a.shell.AddCourse(r.Context(), entry)
	if err != nil {
		a.writeError(w, "add course", err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, added)
}

func (a *App) handleRemoveCourse(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "courseID"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid courseID")
		return
	}
	if err := a.shell.RemoveCourse(r.Context(), id); err != nil {
		a.writeError(w, "remove course", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
