package shell

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"chizu/campus-client/internal/api"
	"chizu/campus-client/internal/model"
	"chizu/campus-client/internal/store"
	"chizu/campus-client/internal/timeutil"
)

// raise sends an alert and counts it.
func (s *Shell) raise(action string, level Level, message string) {
	s.recorder.Alert(action)
	s.alerter.Alert(Alert{Action: action, Level: level, Message: message, At: s.now().UTC()})
}

// deny rejects an action before any network call.
func (s *Shell) deny(action, message string) error {
	s.raise(action, LevelError, message)
	return fmt.Errorf("%s: %w", action, ErrForbidden)
}

// fail alerts on an abandoned mutating action and records it. No retry is
// attempted.
func (s *Shell) fail(ctx context.Context, action, message string, payload any, err error) error {
	s.logger.Warn("action failed", "action", action, "error", err)
	s.raise(action, LevelError, message)

	if s.actions != nil {
		entry := store.ActionError{Action: action, Username: s.User().Username, Error: err.Error()}
		if payload != nil {
			if b, merr := json.Marshal(payload); merr == nil {
				entry.Payload = string(b)
			}
		}
		if lerr := s.actions.InsertActionError(context.WithoutCancel(ctx), entry); lerr != nil {
			s.logger.Warn("failed to record action error", "action", action, "error", lerr)
		}
	}
	return fmt.Errorf("%s: %w", action, err)
}

// User returns the current user.
func (s *Shell) User() model.CurrentUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Login authenticates and loads the user's bookmarks and, for admins, the
// moderation queue.
func (s *Shell) Login(ctx context.Context, username, password string) (model.CurrentUser, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		s.raise("login", LevelError, "Username and password are required.")
		return model.CurrentUser{}, fmt.Errorf("login: %w", ErrInvalidInput)
	}

	user, err := s.api.Login(ctx, username, password)
	if err != nil {
		message := "Network error. Please try again."
		if status := api.StatusOf(err); status == http.StatusUnauthorized || status == http.StatusBadRequest {
			message = "Invalid username or password"
		}
		return model.CurrentUser{}, s.fail(ctx, "login", message, map[string]string{"username": username}, err)
	}

	s.SetUser(ctx, user)
	s.logger.Info("signed in", "username", user.Username, "role", user.Role.String())
	return user, nil
}

// SetUser replaces the current user and reloads user-scoped data.
func (s *Shell) SetUser(ctx context.Context, user model.CurrentUser) {
	s.mu.Lock()
	s.user = user
	s.starred = nil
	s.pendingPosts = nil
	s.mu.Unlock()

	s.refreshUserData(ctx)
}

// Logout returns to the guest identity.
func (s *Shell) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = model.Guest()
	s.starred = nil
	s.pendingPosts = nil
}

// refreshUserData fetches bookmarks for identified users and pending posts
// for admins. Failures are logged only.
func (s *Shell) refreshUserData(ctx context.Context) {
	user := s.User()

	var (
		starred []model.StarredItem
		pending []model.Post
		err     error
	)
	if user.Identified() {
		starred, err = s.api.Starred(ctx, user.ID)
		if err != nil {
			s.logger.Warn("failed to load starred items", "user_id", user.ID, "error", err)
		}
	}
	if user.Role.Can(model.ActionApprove) {
		pending, err = s.api.PendingPosts(ctx)
		if err != nil {
			s.logger.Warn("failed to load pending posts", "error", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user.ID != user.ID {
		return
	}
	s.starred = starred
	s.pendingPosts = pending
}

// Starred returns the user's bookmarks.
func (s *Shell) Starred() []model.StarredItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.StarredItem(nil), s.starred...)
}

func (s *Shell) findStar(itemType model.ItemType, itemID int64) (model.StarredItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.starred {
		if it.ItemType == itemType && it.ItemID == itemID {
			return it, true
		}
	}
	return model.StarredItem{}, false
}

// IsStarred reports whether the user has bookmarked the item.
func (s *Shell) IsStarred(itemType model.ItemType, itemID int64) bool {
	_, ok := s.findStar(itemType, itemID)
	return ok
}

// Star bookmarks an event or location. Starring an already starred item
// returns the existing bookmark.
func (s *Shell) Star(ctx context.Context, itemType model.ItemType, itemID int64) (model.StarredItem, error) {
	user := s.User()
	if !user.Role.Can(model.ActionStar) {
		return model.StarredItem{}, s.deny("star", "Guests cannot star items. Please create an account!")
	}
	if existing, ok := s.findStar(itemType, itemID); ok {
		return existing, nil
	}

	item, err := s.api.Star(ctx, user.ID, itemType, itemID)
	if err != nil {
		payload := map[string]any{"item_type": itemType, "item_id": itemID}
		return model.StarredItem{}, s.fail(ctx, "star", "Failed to star item. Please try again.", payload, err)
	}

	s.mu.Lock()
	s.starred = append(s.starred, item)
	s.mu.Unlock()
	return item, nil
}

// Unstar removes a bookmark. Removing an absent bookmark does nothing.
func (s *Shell) Unstar(ctx context.Context, itemType model.ItemType, itemID int64) error {
	user := s.User()
	if !user.Role.Can(model.ActionStar) {
		return s.deny("unstar", "Guests cannot star items. Please create an account!")
	}
	existing, ok := s.findStar(itemType, itemID)
	if !ok {
		return nil
	}

	if err := s.api.Unstar(ctx, existing.ID); err != nil {
		payload := map[string]any{"item_type": itemType, "item_id": itemID}
		return s.fail(ctx, "unstar", "Failed to remove star. Please try again.", payload, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, it := range s.starred {
		if it.ID == existing.ID {
			s.starred = append(s.starred[:i:i], s.starred[i+1:]...)
			break
		}
	}
	return nil
}

// SubmitPost adds a post to a location. Temporary posts show immediately and
// refresh an open detail view; permanent posts wait for approval.
func (s *Shell) SubmitPost(ctx context.Context, locationID int64, content string, postType model.PostType) (model.Post, error) {
	if !s.User().Role.Can(model.ActionPost) {
		return model.Post{}, s.deny("post", "Guests cannot post. Please create an account!")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		s.raise("post", LevelError, "Post content cannot be empty.")
		return model.Post{}, fmt.Errorf("post: %w", ErrInvalidInput)
	}
	if postType != model.PostPermanent {
		postType = model.PostTemporary
	}

	post, err := s.api.CreatePost(ctx, locationID, content, postType)
	if err != nil {
		payload := map[string]any{"location_id": locationID, "post_type": postType, "content": content}
		return model.Post{}, s.fail(ctx, "post", "Failed to submit post. Please try again.", payload, err)
	}

	if postType == model.PostTemporary {
		s.raise("post", LevelInfo, "Post submitted! It will disappear in 3 hours.")
		if d, ok := s.Detail(); ok && d.ID == locationID {
			if _, err := s.OpenLocationDetail(ctx, locationID); err != nil {
				s.logger.Warn("failed to refresh location detail", "location_id", locationID, "error", err)
			}
		}
	} else {
		s.raise("post", LevelInfo, "Post submitted for admin approval!")
	}
	return post, nil
}

// EventInput is an event submission before the shell fills in the author
// and initial status.
type EventInput struct {
	Title       string          `json:"title"`
	EventType   model.EventType `json:"event_type"`
	EventDate   string          `json:"event_date"`
	EventTime   string          `json:"event_time"`
	LocationID  *int64          `json:"location_id"`
	Description string          `json:"description"`
}

// SubmitEvent creates an event. Student submissions start pending and admin
// submissions start approved. Events are reloaded afterwards.
func (s *Shell) SubmitEvent(ctx context.Context, in EventInput) (model.Event, error) {
	user := s.User()
	if !user.Role.Can(model.ActionPost) {
		return model.Event{}, s.deny("post_event", "Guests cannot post events. Please create an account!")
	}
	if msg := validateEvent(in); msg != "" {
		s.raise("post_event", LevelError, msg)
		return model.Event{}, fmt.Errorf("post_event: %w", ErrInvalidInput)
	}

	draft := model.EventDraft{
		Title:       strings.TrimSpace(in.Title),
		EventType:   in.EventType,
		EventDate:   strings.TrimSpace(in.EventDate),
		EventTime:   strings.TrimSpace(in.EventTime),
		LocationID:  in.LocationID,
		Description: in.Description,
		CreatedBy:   user.ID,
		Status:      user.Role.SubmissionStatus(),
	}
	ev, err := s.api.CreateEvent(ctx, draft)
	if err != nil {
		return model.Event{}, s.fail(ctx, "post_event", "Failed to submit event. Please try again.", draft, err)
	}

	if draft.Status == model.StatusPending {
		s.raise("post_event", LevelInfo, "Event submitted for admin approval!")
	} else {
		s.raise("post_event", LevelInfo, "Event posted!")
	}
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("refresh after event submission failed", "error", err)
	}
	return ev, nil
}

// validateEvent returns a user-facing message describing the first problem,
// or "" when the input is acceptable.
func validateEvent(in EventInput) string {
	if strings.TrimSpace(in.Title) == "" {
		return "Event title is required."
	}
	switch in.EventType {
	case model.EventCareer, model.EventClubs, model.EventFun:
	default:
		return fmt.Sprintf("Unknown event type %q.", in.EventType)
	}
	if _, err := timeutil.ParseEventDate(in.EventDate); err != nil {
		return "Event date must look like 2025-03-14."
	}
	if strings.TrimSpace(in.EventTime) != "" {
		if _, err := timeutil.ParseEventTime(in.EventTime); err != nil {
			return "Event time must look like 7:00 PM."
		}
	}
	return ""
}

// PendingEvents returns events awaiting approval. Only admins see them.
func (s *Shell) PendingEvents() []model.Event {
	if !s.User().Role.Can(model.ActionApprove) {
		return nil
	}
	return s.cache.Pending()
}

// ApproveEvent publishes a pending event.
func (s *Shell) ApproveEvent(ctx context.Context, id int64) error {
	return s.moderateEvent(ctx, "approve_event", id, func() error {
		return s.api.SetEventStatus(ctx, id, model.StatusApproved)
	})
}

// RejectEvent deletes a pending event.
func (s *Shell) RejectEvent(ctx context.Context, id int64) error {
	return s.moderateEvent(ctx, "reject_event", id, func() error {
		return s.api.DeleteEvent(ctx, id)
	})
}

func (s *Shell) moderateEvent(ctx context.Context, action string, id int64, call func() error) error {
	if !s.User().Role.Can(model.ActionApprove) {
		return s.deny(action, "Only admins can moderate events.")
	}
	if err := call(); err != nil {
		return s.fail(ctx, action, "Failed to update event. Please try again.", map[string]int64{"event_id": id}, err)
	}
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("refresh after moderation failed", "error", err)
	}
	return nil
}

// PendingPosts returns the moderation queue loaded at sign-in.
func (s *Shell) PendingPosts() []model.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Post(nil), s.pendingPosts...)
}

// ApprovePost publishes a pending post.
func (s *Shell) ApprovePost(ctx context.Context, id int64) error {
	return s.moderatePost(ctx, "approve_post", id, s.api.ApprovePost)
}

// RejectPost deletes a pending post.
func (s *Shell) RejectPost(ctx context.Context, id int64) error {
	return s.moderatePost(ctx, "reject_post", id, s.api.RejectPost)
}

func (s *Shell) moderatePost(ctx context.Context, action string, id int64, call func(context.Context, int64) error) error {
	if !s.User().Role.Can(model.ActionApprove) {
		return s.deny(action, "Only admins can moderate posts.")
	}
	if err := call(ctx, id); err != nil {
		return s.fail(ctx, action, "Failed to update post. Please try again.", map[string]int64{"post_id": id}, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.pendingPosts {
		if p.ID == id {
			s.pendingPosts = append(s.pendingPosts[:i:i], s.pendingPosts[i+1:]...)
			break
		}
	}
	return nil
}
