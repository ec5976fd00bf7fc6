package shell

import (
	"context"
	"fmt"
	"sort"
	"time"

	"chizu/campus-client/internal/model"
)

// Modal names an overlay sub-view.
type Modal string

const (
	ModalCalendar       Modal = "calendar"
	ModalCourses        Modal = "courses"
	ModalCourseDetail   Modal = "course_detail"
	ModalSchedule       Modal = "schedule"
	ModalLocationDetail Modal = "location_detail"
	ModalPostEvent      Modal = "post_event"
	ModalModeration     Modal = "moderation"
)

// ParseModal validates a modal name.
func ParseModal(s string) (Modal, error) {
	switch m := Modal(s); m {
	case ModalCalendar, ModalCourses, ModalCourseDetail, ModalSchedule, ModalLocationDetail, ModalPostEvent, ModalModeration:
		return m, nil
	default:
		return "", fmt.Errorf("unknown modal %q", s)
	}
}

// OpenModal shows a sub-view. Views backed by loaded data open through
// their loaders and moderation is reserved for admins.
func (s *Shell) OpenModal(m Modal) error {
	switch m {
	case ModalLocationDetail:
		return fmt.Errorf("open %s: use OpenLocationDetail", m)
	case ModalCourses:
		return fmt.Errorf("open %s: use BrowseCourses", m)
	case ModalCourseDetail:
		return fmt.Errorf("open %s: use OpenCourseDetail", m)
	case ModalModeration:
		if !s.User().Role.Can(model.ActionApprove) {
			return s.deny("moderation", "Only admins can review submissions.")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.modals[m] = true
	return nil
}

// CloseModal hides a sub-view. Closing a hidden view does nothing.
func (s *Shell) CloseModal(m Modal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.modals, m)
	switch m {
	case ModalLocationDetail:
		s.detail = nil
	case ModalCourses:
		s.catalog = nil
	case ModalCourseDetail:
		s.course = nil
	}
}

// Modals lists the open sub-views in name order.
func (s *Shell) Modals() []Modal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Modal, 0, len(s.modals))
	for m := range s.modals {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// OpenLocationDetail loads a location with its posts and shows the detail
// view. Expired temporary posts are dropped. A load failure is logged and
// returned without an alert.
func (s *Shell) OpenLocationDetail(ctx context.Context, id int64) (model.LocationDetail, error) {
	detail, err := s.api.LocationDetail(ctx, id)
	if err != nil {
		s.logger.Warn("failed to load location detail", "location_id", id, "error", err)
		return model.LocationDetail{}, fmt.Errorf("location detail %d: %w", id, err)
	}
	detail.Posts = model.VisiblePosts(detail.Posts, s.now())
	sortPostsNewestFirst(detail.Posts)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.detail = &detail
	s.modals[ModalLocationDetail] = true
	return detail, nil
}

// Detail returns the location shown in the detail view, if any.
func (s *Shell) Detail() (model.LocationDetail, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detail == nil {
		return model.LocationDetail{}, false
	}
	d := *s.detail
	d.Posts = append([]model.Post(nil), d.Posts...)
	return d, true
}

func sortPostsNewestFirst(posts []model.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt.Time)
	})
}

// TimeAgo renders the age of a post the way the detail view labels it.
func TimeAgo(then, now time.Time) string {
	diff := now.Sub(then)
	if diff < 0 {
		diff = 0
	}
	switch {
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}
