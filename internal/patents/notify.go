package patents

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotificationNotFound is returned by MarkRead for an unknown ID.
var ErrNotificationNotFound = errors.New("notification not found")

// Level classifies a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// maxNotifications bounds the feed; the oldest entries fall off.
const maxNotifications = 200

// Notification is a user-facing message about a submission outcome.
type Notification struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Level     Level     `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}

// Feed is an in-memory notification list, newest first.
type Feed struct {
	mu    sync.Mutex
	items []Notification
	now   func() time.Time
}

// NewFeed returns an empty Feed.
func NewFeed() *Feed {
	return &Feed{now: time.Now}
}

// Add prepends a notification and returns it.
func (f *Feed) Add(level Level, message string) Notification {
	n := Notification{
		ID:        uuid.New().String()[:8],
		Message:   message,
		Level:     level,
		Timestamp: f.now().UTC(),
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append([]Notification{n}, f.items...)
	if len(f.items) > maxNotifications {
		f.items = f.items[:maxNotifications]
	}
	return n
}

// List returns up to limit notifications, newest first. A limit of zero or
// less returns all of them.
func (f *Feed) List(limit int) []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit <= 0 || limit > len(f.items) {
		limit = len(f.items)
	}
	out := make([]Notification, limit)
	copy(out, f.items[:limit])
	return out
}

// Unread counts notifications not yet marked read.
func (f *Feed) Unread() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, it := range f.items {
		if !it.Read {
			n++
		}
	}
	return n
}

// MarkRead flags the notification with the given ID as read.
func (f *Feed) MarkRead(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == id {
			f.items[i].Read = true
			return nil
		}
	}
	return ErrNotificationNotFound
}

// Clear drops every notification.
func (f *Feed) Clear() {
	f.mu.Lock()
	f.items = nil
	f.mu.Unlock()
}
