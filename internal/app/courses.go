package app

import (
	"net/http"
	"time"

	"chizu/campus-client/internal/httpx"
	"chizu/campus-client/internal/model"
	"chizu/campus-client/internal/shell"
)

func (a *App) handleCourses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.CourseFilter{
		College:    q.Get("college"),
		Department: q.Get("department"),
		Search:     q.Get("search"),
	}
	cat, err := a.shell.BrowseCourses(r.Context(), filter)
	if err != nil {
		a.writeError(w, "list courses", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, cat)
}

func (a *App) handleCourseDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "courseID")
	if !ok {
		return
	}
	detail, err := a.shell.OpenCourseDetail(r.Context(), id)
	if err != nil {
		a.writeError(w, "load course detail", err)
		return
	}

	now := time.Now()
	posts := make([]postView, 0, len(detail.Posts))
	for _, p := range detail.Posts {
		posts = append(posts, postView{Post: p, Age: shell.TimeAgo(p.CreatedAt.Time, now)})
	}

	httpx.WriteJSON(w, http.StatusOK, struct {
		Course model.Course `json:"course"`
		Posts  []postView   `json:"posts"`
	}{Course: detail.Course, Posts: posts})
}

func (a *App) handleSubmitCoursePost(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "courseID")
	if !ok {
		return
	}
	req, ok := decodePostRequest(w, r)
	if !ok {
		return
	}

	post, err := a.shell.SubmitCoursePost(r.Context(), id, req.Content, req.PostType)
	if err != nil {
		a.writeError(w, "submit course post", err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, post)
}

func (a *App) handleCourseOnMap(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "courseID")
	if !ok {
		return
	}
	if err := a.shell.ShowCourseOnMap(id); err != nil {
		a.writeError(w, "show course on map", err)
		return
	}
	a.writeSelection(w)
}

func (a *App) handleEnrollCourse(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "courseID")
	if !ok {
		return
	}
	entries, err := a.shell.EnrollCourse(r.Context(), id)
	if err != nil {
		a.writeError(w, "enroll course", err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"schedule": entries})
}
