package toast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoard_ShowReplaces(t *testing.T) {
	b := NewBoard(time.Minute, "/calendar")

	first := b.Show("breakfast", "🌅", "🌅 Breakfast Reminder", "msg")
	second := b.Show("lunch", "☀️", "☀️ Lunch Reminder", "msg")
	assert.NotEqual(t, first.ID, second.ID)

	cur, ok := b.Current()
	require.True(t, ok)
	assert.Equal(t, second.ID, cur.ID)
	assert.Equal(t, "lunch", cur.MealType)
	assert.Equal(t, time.Minute, cur.ExpiresAt.Sub(cur.ShownAt))
	assert.Equal(t, "/calendar", cur.Link)

	assert.False(t, b.Dismiss(first.ID), "replaced toast is gone")
	assert.True(t, b.Dismiss(second.ID))

	_, ok = b.Current()
	assert.False(t, ok)
}

func TestBoard_AutoDismiss(t *testing.T) {
	b := NewBoard(20*time.Millisecond, "")
	b.Show("snack", "🍎", "🍎 Snack Reminder", "msg")

	assert.Eventually(t, func() bool {
		_, ok := b.Current()
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestBoard_OldTimerDoesNotRemoveNewToast(t *testing.T) {
	b := NewBoard(30*time.Millisecond, "")
	b.Show("dinner", "🌙", "t", "m")
	time.Sleep(20 * time.Millisecond)
	next := b.Show("snack", "🍎", "t", "m")
	time.Sleep(15 * time.Millisecond)

	cur, ok := b.Current()
	require.True(t, ok)
	assert.Equal(t, next.ID, cur.ID)
}

func TestNewBoard_DefaultDuration(t *testing.T) {
	assert.Equal(t, DefaultDuration, NewBoard(0, "").duration)
}
