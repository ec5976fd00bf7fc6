package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"chizu/campus-client/internal/model"
)

// Courses queries the course catalog. The backend caps the result at 100
// sections.
func (c *Client) Courses(ctx context.Context, filter model.CourseFilter) ([]model.Course, error) {
	params := url.Values{}
	if v := strings.TrimSpace(filter.College); v != "" {
		params.Set("college", v)
	}
	if v := strings.TrimSpace(filter.Department); v != "" {
		params.Set("department", v)
	}
	if v := strings.TrimSpace(filter.Search); v != "" {
		params.Set("search", v)
	}

	path := "/courses"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var raw json.RawMessage
	if err := c.do(ctx, "list_courses", http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	var courses []model.Course
	if err := decodeList(raw, "courses", &courses); err != nil {
		return nil, &Error{Op: "list_courses", Message: err.Error(), Err: err}
	}
	return courses, nil
}

// Departments lists academic departments across the colleges.
func (c *Client) Departments(ctx context.Context) ([]model.Department, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "list_departments", http.MethodGet, "/departments", nil, &raw); err != nil {
		return nil, err
	}
	var depts []model.Department
	if err := decodeList(raw, "departments", &depts); err != nil {
		return nil, &Error{Op: "list_departments", Message: err.Error(), Err: err}
	}
	return depts, nil
}

// CourseDetail fetches a course with its review posts.
func (c *Client) CourseDetail(ctx context.Context, id int64) (model.CourseDetail, error) {
	var detail model.CourseDetail
	err := c.do(ctx, "get_course", http.MethodGet, "/courses/"+itoa(id), nil, &detail)
	return detail, err
}

// CreateCoursePost attaches a review to a course.
func (c *Client) CreateCoursePost(ctx context.Context, courseID int64, content string, postType model.PostType) (model.Post, error) {
	body := map[string]any{
		"course_id": courseID,
		"content":   content,
		"post_type": postType,
	}
	var post model.Post
	err := c.do(ctx, "create_course_post", http.MethodPost, "/courses/"+itoa(courseID)+"/posts", body, &post)
	return post, err
}
