// Package toast keeps the single on-screen reminder banner.
package toast

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultDuration is how long a toast stays visible unless dismissed.
const DefaultDuration = 30 * time.Second

// Toast is the banner content shown to the user.
type Toast struct {
	ID        string    `json:"id"`
	MealType  string    `json:"meal_type"`
	Icon      string    `json:"icon"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Link      string    `json:"link,omitempty"`
	ShownAt   time.Time `json:"shown_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Board holds at most one toast. Showing a new toast replaces the current one.
type Board struct {
	mu       sync.Mutex
	current  *Toast
	timer    *time.Timer
	duration time.Duration
	link     string
	now      func() time.Time
}

// NewBoard creates a board whose toasts expire after duration and link to
// the calendar view.
func NewBoard(duration time.Duration, link string) *Board {
	if duration <= 0 {
		duration = DefaultDuration
	}
	return &Board{duration: duration, link: link, now: time.Now}
}

// Show replaces the current toast and schedules its removal.
func (b *Board) Show(mealType, icon, title, message string) Toast {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.timer != nil {
		b.timer.Stop()
	}

	now := b.now()
	t := &Toast{
		ID:        uuid.NewString(),
		MealType:  mealType,
		Icon:      icon,
		Title:     title,
		Message:   message,
		Link:      b.link,
		ShownAt:   now,
		ExpiresAt: now.Add(b.duration),
	}
	b.current = t

	id := t.ID
	b.timer = time.AfterFunc(b.duration, func() {
		b.Dismiss(id)
	})
	return *t
}

// Current returns the visible toast, if any.
func (b *Board) Current() (Toast, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return Toast{}, false
	}
	return *b.current, true
}

// Dismiss removes the toast with the given id. A stale id is a no-op.
func (b *Board) Dismiss(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil || b.current.ID != id {
		return false
	}
	b.current = nil
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	return true
}
