package shell

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Level separates confirmations from failures.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Alert is a blocking, user-visible message raised by a user action.
type Alert struct {
	Action  string    `json:"action"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Alerter surfaces alerts to the user.
type Alerter interface {
	Alert(a Alert)
}

// AlertFunc adapts a function to Alerter.
type AlertFunc func(a Alert)

func (f AlertFunc) Alert(a Alert) { f(a) }

// LogAlerter writes alerts to a logger.
type LogAlerter struct {
	Logger *slog.Logger
}

func (l LogAlerter) Alert(a Alert) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	if a.Level == LevelError {
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, a.Message, "action", a.Action)
}

// Inbox keeps the most recent alerts for clients that poll for them.
type Inbox struct {
	mu     sync.Mutex
	limit  int
	alerts []Alert
}

// NewInbox keeps up to limit alerts, dropping the oldest first.
func NewInbox(limit int) *Inbox {
	if limit <= 0 {
		limit = 50
	}
	return &Inbox{limit: limit}
}

func (i *Inbox) Alert(a Alert) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.alerts = append(i.alerts, a)
	if over := len(i.alerts) - i.limit; over > 0 {
		i.alerts = append([]Alert(nil), i.alerts[over:]...)
	}
}

// Drain returns pending alerts oldest first and empties the inbox.
func (i *Inbox) Drain() []Alert {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := i.alerts
	i.alerts = nil
	return out
}

// Peek returns pending alerts without removing them.
func (i *Inbox) Peek() []Alert {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]Alert(nil), i.alerts...)
}
