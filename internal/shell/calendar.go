package shell

import (
	"fmt"
	"io"
	"sort"
	"time"

	"chizu/campus-client/internal/export"
	"chizu/campus-client/internal/model"
	"chizu/campus-client/internal/timeutil"
)

// Day is one column of the calendar week.
type Day struct {
	Date    string          `json:"date"`
	Weekday string          `json:"weekday"`
	Events  []CalendarEvent `json:"events"`
}

// CalendarEvent is a starred event placed on the calendar.
type CalendarEvent struct {
	model.Event
	Clock string `json:"clock,omitempty"`
}

// StarredEvents returns approved events the user has starred, earliest first.
// Undated events sort last.
func (s *Shell) StarredEvents() []model.Event {
	ids := make(map[int64]struct{})
	for _, it := range s.Starred() {
		if it.ItemType == model.ItemEvent {
			ids[it.ItemID] = struct{}{}
		}
	}
	if len(ids) == 0 {
		return nil
	}

	var out []model.Event
	for _, ev := range s.cache.Approved() {
		if _, ok := ids[ev.ID]; ok {
			out = append(out, ev)
		}
	}
	sortByStart(out)
	return out
}

// Week lays out starred events over the Sunday-started week containing day.
func (s *Shell) Week(day time.Time) []Day {
	byDate := make(map[string][]CalendarEvent)
	for _, ev := range s.StarredEvents() {
		ce := CalendarEvent{Event: ev}
		if offset, err := timeutil.ParseEventTime(ev.EventTime); err == nil {
			ce.Clock = timeutil.FormatClock(offset)
		}
		byDate[ev.EventDate] = append(byDate[ev.EventDate], ce)
	}

	dates := timeutil.WeekDates(day)
	week := make([]Day, len(dates))
	for i, d := range dates {
		key := timeutil.DateKey(d)
		week[i] = Day{Date: key, Weekday: d.Weekday().String(), Events: byDate[key]}
	}
	return week
}

// WriteCalendar exports the user's starred events as iCalendar.
func (s *Shell) WriteCalendar(w io.Writer) (int, error) {
	user := s.User()
	name := "Starred events"
	if user.Identified() && user.Name != "" {
		name = fmt.Sprintf("%s's starred events", user.Name)
	}

	return export.WriteICS(w, s.StarredEvents(), export.Options{
		Name: name,
		LocationName: func(id int64) (string, bool) {
			loc, ok := s.cache.LocationByID(id)
			return loc.Name, ok
		},
		Now: s.now,
	})
}

func sortByStart(events []model.Event) {
	type keyed struct {
		start time.Time
		ok    bool
	}
	keys := make(map[int64]keyed, len(events))
	for _, ev := range events {
		start, _, err := timeutil.EventStart(ev.EventDate, ev.EventTime)
		keys[ev.ID] = keyed{start: start, ok: err == nil}
	}

	sort.SliceStable(events, func(i, j int) bool {
		a, b := keys[events[i].ID], keys[events[j].ID]
		if a.ok != b.ok {
			return a.ok
		}
		return a.start.Before(b.start)
	})
}
