package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (p LatLng) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lng)
}

// Category groups locations for styling and search buckets.
type Category string

const (
	CategoryDining     Category = "dining"
	CategoryAcademic   Category = "academic"
	CategoryRecreation Category = "recreation"
	CategoryOther      Category = "other"
)

// Categories lists the fixed buckets in display order.
var Categories = []Category{CategoryDining, CategoryAcademic, CategoryRecreation, CategoryOther}

// Normalize maps unknown or differently cased categories onto the fixed set.
func (c Category) Normalize() Category {
	switch Category(strings.ToLower(strings.TrimSpace(string(c)))) {
	case CategoryDining:
		return CategoryDining
	case CategoryAcademic:
		return CategoryAcademic
	case CategoryRecreation:
		return CategoryRecreation
	default:
		return CategoryOther
	}
}

// Location is a point of interest as served by the campus API.
type Location struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Category    Category `json:"category"`
	College     string   `json:"college"`
	Lat         *float64 `json:"latitude"`
	Lng         *float64 `json:"longitude"`
	Description string   `json:"description,omitempty"`
	FunFacts    FunFacts `json:"fun_facts,omitempty"`
}

// Coordinates reports the location's position; ok is false when either
// coordinate is absent, in which case the location cannot be placed on the map.
func (l Location) Coordinates() (LatLng, bool) {
	if l.Lat == nil || l.Lng == nil {
		return LatLng{}, false
	}
	return LatLng{Lat: *l.Lat, Lng: *l.Lng}, true
}

// FunFacts is an ordered list of trivia strings. The API sometimes serves it
// as a string containing a serialized JSON array.
type FunFacts []string

func (f *FunFacts) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = nil
		return nil
	}

	if data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("decode fun_facts string: %w", err)
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			*f = nil
			return nil
		}
		data = []byte(raw)
	}

	var facts []string
	if err := json.Unmarshal(data, &facts); err != nil {
		return fmt.Errorf("decode fun_facts: %w", err)
	}
	*f = facts
	return nil
}

// EventType classifies campus events.
type EventType string

const (
	EventCareer EventType = "career"
	EventClubs  EventType = "clubs"
	EventFun    EventType = "fun"
)

// Status tracks the approval workflow owned by the backend.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
)

// Event is a campus event, optionally tied to a Location.
type Event struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	EventType   EventType `json:"event_type"`
	DateTime    string    `json:"date_time,omitempty"`
	EventDate   string    `json:"event_date,omitempty"`
	EventTime   string    `json:"event_time,omitempty"`
	LocationID  *int64    `json:"location,omitempty"`
	Description string    `json:"description,omitempty"`
	Status      Status    `json:"status"`
	CreatedBy   int64     `json:"created_by,omitempty"`
}

// Pending reports whether the event still awaits approval.
func (e Event) Pending() bool {
	return e.Status == StatusPending
}

// UnmarshalJSON accepts the location relation as a bare id, an object with
// an id, or null.
func (e *Event) UnmarshalJSON(data []byte) error {
	type alias Event
	var raw struct {
		alias
		Location json.RawMessage `json:"location"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = Event(raw.alias)
	e.LocationID = nil

	loc := bytes.TrimSpace(raw.Location)
	if len(loc) == 0 || bytes.Equal(loc, []byte("null")) {
		return nil
	}

	var id int64
	if err := json.Unmarshal(loc, &id); err == nil {
		e.LocationID = &id
		return nil
	}

	var obj struct {
		ID *int64 `json:"id"`
	}
	if err := json.Unmarshal(loc, &obj); err == nil {
		e.LocationID = obj.ID
		return nil
	}

	// A free-text location name carries no relation.
	return nil
}

// EventDraft is the payload for submitting a new event.
type EventDraft struct {
	Title       string    `json:"title"`
	EventType   EventType `json:"event_type"`
	EventDate   string    `json:"event_date"`
	EventTime   string    `json:"event_time"`
	LocationID  *int64    `json:"location_id"`
	Description string    `json:"description"`
	CreatedBy   int64     `json:"created_by"`
	Status      Status    `json:"status"`
}

// ItemType identifies what a StarredItem points at.
type ItemType string

const (
	ItemEvent    ItemType = "event"
	ItemLocation ItemType = "location"
)

// StarredItem is a user's bookmark of an event or location.
type StarredItem struct {
	ID       int64    `json:"id"`
	UserID   int64    `json:"user_id"`
	ItemType ItemType `json:"item_type"`
	ItemID   int64    `json:"item_id"`
}

// CurrentUser is the session-scoped identity held in memory.
type CurrentUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     Role   `json:"role"`
	College  string `json:"college,omitempty"`
}

// Guest is the identity used before login.
func Guest() CurrentUser {
	return CurrentUser{Name: "Guest", Role: RoleGuest}
}

// Identified reports whether the user has a backend identity.
func (u CurrentUser) Identified() bool {
	return u.ID != 0 && u.Role != RoleGuest
}

// RouteInfo is derived from a single routing response and discarded when the
// route is cleared or superseded.
type RouteInfo struct {
	DistanceMiles   float64 `json:"distance_miles"`
	DistanceKm      float64 `json:"distance_km"`
	WalkMinutes     int     `json:"walk_minutes"`
	BikeMinutes     int     `json:"bike_minutes"`
	ScooterMinutes  int     `json:"scooter_minutes"`
	DestinationName string  `json:"destination_name"`
}

// PostType distinguishes short-lived posts from moderated ones.
type PostType string

const (
	PostTemporary PostType = "temporary"
	PostPermanent PostType = "permanent"
)

// TemporaryPostTTL is how long a temporary post stays visible.
const TemporaryPostTTL = 3 * time.Hour

// Post is a student comment attached to a location or course.
type Post struct {
	ID         int64     `json:"id"`
	LocationID int64     `json:"location_id,omitempty"`
	CourseID   int64     `json:"course_id,omitempty"`
	Content    string    `json:"content"`
	PostType   PostType  `json:"post_type"`
	Status     Status    `json:"status,omitempty"`
	CreatedAt  Timestamp `json:"created_at"`
}

// Expired reports whether a temporary post has outlived its window.
func (p Post) Expired(now time.Time) bool {
	if p.PostType != PostTemporary || p.CreatedAt.IsZero() {
		return false
	}
	return !now.Before(p.CreatedAt.Add(TemporaryPostTTL))
}

// VisiblePosts drops expired temporary posts, preserving order.
func VisiblePosts(posts []Post, now time.Time) []Post {
	out := make([]Post, 0, len(posts))
	for _, p := range posts {
		if p.Expired(now) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// LocationDetail is a location together with its discussion posts.
type LocationDetail struct {
	Location
	Posts []Post `json:"posts"`
}

// College is an institution of the consortium.
type College struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// Department is an academic department of one college.
type Department struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Code    string `json:"code"`
	College string `json:"college,omitempty"`
}

// Course is one section in the course catalog.
type Course struct {
	ID             int64     `json:"id"`
	CourseCode     string    `json:"course_code"`
	Section        string    `json:"section,omitempty"`
	Title          string    `json:"title"`
	DepartmentCode string    `json:"department_code,omitempty"`
	College        string    `json:"college,omitempty"`
	Instructors    string    `json:"instructors,omitempty"`
	Days           string    `json:"days,omitempty"`
	Time           string    `json:"time,omitempty"`
	Credit         float64   `json:"credit,omitempty"`
	SeatsAvailable string    `json:"seats_available,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	Location       *Location `json:"location,omitempty"`
}

// Code renders the catalog code with its section, e.g. "CSCI051-PO-01".
func (c Course) Code() string {
	if c.Section == "" {
		return c.CourseCode
	}
	return c.CourseCode + "-" + c.Section
}

// CourseFilter narrows a catalog query. Empty fields do not filter.
type CourseFilter struct {
	College    string `json:"college,omitempty"`
	Department string `json:"department,omitempty"`
	Search     string `json:"search,omitempty"`
}

// CourseDetail is a course together with its review posts.
type CourseDetail struct {
	Course
	Posts []Post `json:"posts"`
}

// ScheduleEntry is one class in the personal schedule kept on the device.
type ScheduleEntry struct {
	ID         int64  `json:"id"`
	CourseName string `json:"courseName"`
	Building   string `json:"building"`
	Day        string `json:"day"`
	Time       string `json:"time"`
}

// Timestamp decodes the backend's naive UTC ISO-8601 timestamps as well as
// RFC 3339.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode timestamp: %w", err)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("decode timestamp: unrecognized format %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339))
}
