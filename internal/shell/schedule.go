package shell

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chizu/campus-client/internal/model"
)

var errNoScheduleStore = errors.New("schedule storage not configured")

// Schedule returns the signed-in user's classes. Guests have none.
func (s *Shell) Schedule(ctx context.Context) ([]model.ScheduleEntry, error) {
	user := s.User()
	if !user.Identified() {
		return nil, nil
	}
	if s.schedules == nil {
		return nil, errNoScheduleStore
	}
	entries, err := s.schedules.Schedule(ctx, user.Username)
	if err != nil {
		s.logger.Warn("failed to load schedule", "username", user.Username, "error", err)
		return nil, err
	}
	return entries, nil
}

// AddCourse appends a class to the schedule. Adding the same course on the
// same day and time again returns the existing entry.
func (s *Shell) AddCourse(ctx context.Context, entry model.ScheduleEntry) (model.ScheduleEntry, error) {
	user := s.User()
	if !user.Identified() {
		return model.ScheduleEntry{}, s.deny("schedule", "Guests cannot add courses. Please create an account!")
	}
	if strings.TrimSpace(entry.CourseName) == "" {
		s.raise("schedule", LevelError, "Course name is required.")
		return model.ScheduleEntry{}, fmt.Errorf("schedule: %w", ErrInvalidInput)
	}

	entries, err := s.Schedule(ctx)
	if err != nil {
		return model.ScheduleEntry{}, s.fail(ctx, "schedule", "Failed to add course", entry, err)
	}

	var maxID int64
	for _, e := range entries {
		if e.CourseName == entry.CourseName && e.Day == entry.Day && e.Time == entry.Time {
			return e, nil
		}
		maxID = max(maxID, e.ID)
	}
	entry.ID = maxID + 1
	entries = append(entries, entry)

	if err := s.schedules.SaveSchedule(ctx, user.Username, entries); err != nil {
		return model.ScheduleEntry{}, s.fail(ctx, "schedule", "Failed to add course", entry, err)
	}
	s.raise("schedule", LevelInfo, "Course added to your schedule!")
	return entry, nil
}

// RemoveCourse drops a class from the schedule. Unknown ids do nothing.
func (s *Shell) RemoveCourse(ctx context.Context, id int64) error {
	user := s.User()
	if !user.Identified() {
		return s.deny("schedule", "Guests cannot add courses. Please create an account!")
	}

	entries, err := s.Schedule(ctx)
	if err != nil {
		return s.fail(ctx, "schedule", "Failed to remove course", map[string]int64{"id": id}, err)
	}

	kept := entries[:0:0]
	for _, e := range entries {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(entries) {
		return nil
	}

	if err := s.schedules.SaveSchedule(ctx, user.Username, kept); err != nil {
		return s.fail(ctx, "schedule", "Failed to remove course", map[string]int64{"id": id}, err)
	}
	s.raise("schedule", LevelInfo, "Course removed from schedule")
	return nil
}
