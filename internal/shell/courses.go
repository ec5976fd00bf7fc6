package shell

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chizu/campus-client/internal/model"
)

// ErrUnknownCourse is returned for course ids the loaded catalog does not hold.
var ErrUnknownCourse = errors.New("unknown course")

// Catalog is the course browser's last query and its results.
type Catalog struct {
	Filter      model.CourseFilter `json:"filter"`
	Courses     []model.Course     `json:"courses"`
	Departments []model.Department `json:"departments"`
}

// BrowseCourses opens the course browser and loads the catalog for filter.
// Departments are loaded alongside; a department failure is logged and the
// list left empty. A catalog failure is logged and returned without an
// alert.
func (s *Shell) BrowseCourses(ctx context.Context, filter model.CourseFilter) (Catalog, error) {
	courses, err := s.api.Courses(ctx, filter)
	if err != nil {
		s.logger.Warn("failed to load courses", "filter", filter, "error", err)
		return Catalog{}, fmt.Errorf("courses: %w", err)
	}
	depts, err := s.api.Departments(ctx)
	if err != nil {
		s.logger.Warn("failed to load departments", "error", err)
	}

	cat := Catalog{Filter: filter, Courses: courses, Departments: depts}
	if cat.Courses == nil {
		cat.Courses = []model.Course{}
	}
	if cat.Departments == nil {
		cat.Departments = []model.Department{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = &cat
	s.modals[ModalCourses] = true
	return cat, nil
}

// Catalog returns the loaded course catalog, if the browser is open.
func (s *Shell) Catalog() (Catalog, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.catalog == nil {
		return Catalog{}, false
	}
	return *s.catalog, true
}

func (s *Shell) catalogCourse(id int64) (model.Course, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.catalog == nil {
		return model.Course{}, false
	}
	for _, c := range s.catalog.Courses {
		if c.ID == id {
			return c, true
		}
	}
	return model.Course{}, false
}

// OpenCourseDetail loads a course with its review posts and shows the
// course view. Expired temporary posts are dropped.
func (s *Shell) OpenCourseDetail(ctx context.Context, id int64) (model.CourseDetail, error) {
	detail, err := s.api.CourseDetail(ctx, id)
	if err != nil {
		s.logger.Warn("failed to load course detail", "course_id", id, "error", err)
		return model.CourseDetail{}, fmt.Errorf("course detail %d: %w", id, err)
	}
	detail.Posts = model.VisiblePosts(detail.Posts, s.now())
	sortPostsNewestFirst(detail.Posts)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.course = &detail
	s.modals[ModalCourseDetail] = true
	return detail, nil
}

// CourseDetail returns the course shown in the course view, if any.
func (s *Shell) CourseDetail() (model.CourseDetail, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.course == nil {
		return model.CourseDetail{}, false
	}
	d := *s.course
	d.Posts = append([]model.Post(nil), d.Posts...)
	return d, true
}

// SubmitCoursePost adds a review to a course. Temporary reviews show
// immediately and refresh an open course view; permanent ones wait for
// approval.
func (s *Shell) SubmitCoursePost(ctx context.Context, courseID int64, content string, postType model.PostType) (model.Post, error) {
	if !s.User().Role.Can(model.ActionPost) {
		return model.Post{}, s.deny("course_post", "Guests cannot post. Please create an account!")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		s.raise("course_post", LevelError, "Review content cannot be empty.")
		return model.Post{}, fmt.Errorf("course_post: %w", ErrInvalidInput)
	}
	if postType != model.PostPermanent {
		postType = model.PostTemporary
	}

	post, err := s.api.CreateCoursePost(ctx, courseID, content, postType)
	if err != nil {
		payload := map[string]any{"course_id": courseID, "post_type": postType, "content": content}
		return model.Post{}, s.fail(ctx, "course_post", "Failed to submit post. Please try again.", payload, err)
	}

	if postType == model.PostTemporary {
		s.raise("course_post", LevelInfo, "Review posted! It will disappear in 3 hours.")
		if d, ok := s.CourseDetail(); ok && d.ID == courseID {
			if _, err := s.OpenCourseDetail(ctx, courseID); err != nil {
				s.logger.Warn("failed to refresh course detail", "course_id", courseID, "error", err)
			}
		}
	} else {
		s.raise("course_post", LevelInfo, "Review submitted for admin approval!")
	}
	return post, nil
}

// ShowCourseOnMap closes the course browser and selects the building a
// course meets in. Courses without a placeable building raise an alert.
func (s *Shell) ShowCourseOnMap(courseID int64) error {
	course, ok := s.catalogCourse(courseID)
	if !ok {
		return fmt.Errorf("course %d: %w", courseID, ErrUnknownCourse)
	}
	v, err := s.mountedView()
	if err != nil {
		return err
	}

	if course.Location == nil {
		s.raise("course_map", LevelError, "Location not available for this course")
		return fmt.Errorf("course %d: %w", courseID, ErrUnknownLocation)
	}
	loc := *course.Location
	if cached, ok := s.cache.LocationByID(loc.ID); ok {
		loc = cached
	}

	defer s.reportMarkers(v.markers.Counts())
	if err := v.selection.SelectLocation(loc); err != nil {
		return err
	}
	s.focusOn(loc)
	s.CloseModal(ModalCourses)
	return nil
}

// EnrollCourse adds a catalog course to the personal schedule, one entry per
// meeting day.
func (s *Shell) EnrollCourse(ctx context.Context, courseID int64) ([]model.ScheduleEntry, error) {
	course, ok := s.catalogCourse(courseID)
	if !ok {
		return nil, fmt.Errorf("course %d: %w", courseID, ErrUnknownCourse)
	}

	var building string
	if course.Location != nil {
		building = course.Location.Name
	}
	days := meetingDays(course.Days)
	if len(days) == 0 {
		days = []string{"TBA"}
	}

	added := make([]model.ScheduleEntry, 0, len(days))
	for _, day := range days {
		entry, err := s.AddCourse(ctx, model.ScheduleEntry{
			CourseName: strings.TrimSpace(course.Code() + " " + course.Title),
			Building:   building,
			Day:        day,
			Time:       course.Time,
		})
		if err != nil {
			return added, err
		}
		added = append(added, entry)
	}
	return added, nil
}

// meetingDays expands catalog day codes such as "MWF" or "TR" into weekday
// names. Unknown letters are skipped and "TBA" has no days.
func meetingDays(codes string) []string {
	if strings.EqualFold(strings.TrimSpace(codes), "TBA") {
		return nil
	}
	names := map[rune]string{
		'M': "Monday",
		'T': "Tuesday",
		'W': "Wednesday",
		'R': "Thursday",
		'F': "Friday",
		'S': "Saturday",
		'U': "Sunday",
	}
	var out []string
	for _, r := range strings.ToUpper(codes) {
		if name, ok := names[r]; ok {
			out = append(out, name)
		}
	}
	return out
}
