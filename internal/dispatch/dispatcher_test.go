package dispatch

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"forkcast/internal/meals"
	"forkcast/internal/metrics"
	"forkcast/internal/toast"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPlayer struct{ mock.Mock }

func (m *MockPlayer) Play(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type MockNotifier struct{ mock.Mock }

func (m *MockNotifier) Notify(ctx context.Context, ev meals.ReminderEvent) error {
	return m.Called(ctx, ev).Error(0)
}

type MockSubmitter struct{ mock.Mock }

func (m *MockSubmitter) Submit(mealType, mealTime string) error {
	return m.Called(mealType, mealTime).Error(0)
}

type panicSink struct{}

func (panicSink) Name() string { return "broken" }
func (panicSink) Deliver(context.Context, meals.ReminderEvent) error {
	panic("sink exploded")
}

func newEvent(soundEnabled bool) meals.ReminderEvent {
	return meals.ReminderEvent{
		ID:            "ev-1",
		MealType:      meals.Breakfast,
		ScheduledTime: "08:00",
		MinutesBefore: 10,
		SoundEnabled:  soundEnabled,
		FiredAt:       time.Date(2025, 1, 1, 7, 50, 0, 0, time.UTC),
	}
}

func TestDispatch_AllChannels(t *testing.T) {
	logger := zerolog.New(io.Discard)
	player := new(MockPlayer)
	notifier := new(MockNotifier)
	submitter := new(MockSubmitter)
	board := toast.NewBoard(time.Minute, "")
	ev := newEvent(true)

	player.On("Play", mock.Anything).Return(nil).Once()
	notifier.On("Notify", mock.Anything, ev).Return(nil).Once()
	submitter.On("Submit", "breakfast", "08:00").Return(nil).Once()

	d := New(metrics.NewNop(), &logger,
		SoundSink{Player: player},
		NotificationSink{Notifier: notifier},
		ToastSink{Board: board},
		SyncSink{Client: submitter},
	)
	d.Dispatch(context.Background(), ev)

	player.AssertExpectations(t)
	notifier.AssertExpectations(t)
	submitter.AssertExpectations(t)

	cur, ok := board.Current()
	require.True(t, ok)
	assert.Equal(t, "🌅 Breakfast Reminder", cur.Title)
	assert.Equal(t, "It's almost time for breakfast! Your meal is scheduled for 08:00.", cur.Message)
	assert.Equal(t, "🌅", cur.Icon)
}

func TestDispatch_SoundDisabledSkipsPlayer(t *testing.T) {
	logger := zerolog.New(io.Discard)
	player := new(MockPlayer)

	d := New(metrics.NewNop(), &logger, SoundSink{Player: player})
	d.Dispatch(context.Background(), newEvent(false))

	player.AssertNotCalled(t, "Play", mock.Anything)
}

func TestDispatch_FailuresAreIsolated(t *testing.T) {
	logger := zerolog.New(io.Discard)
	m := metrics.New("", prometheus.NewRegistry())
	player := new(MockPlayer)
	submitter := new(MockSubmitter)
	board := toast.NewBoard(time.Minute, "")

	player.On("Play", mock.Anything).Return(errors.New("no audio device"))
	submitter.On("Submit", "breakfast", "08:00").Return(nil).Once()

	d := New(m, &logger,
		SoundSink{Player: player},
		panicSink{},
		ToastSink{Board: board},
		SyncSink{Client: submitter},
	)

	assert.NotPanics(t, func() {
		d.Dispatch(context.Background(), newEvent(true))
	})

	_, ok := board.Current()
	assert.True(t, ok, "toast still shown after earlier failures")
	submitter.AssertExpectations(t)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DispatchFailures.WithLabelValues("sound")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DispatchFailures.WithLabelValues("broken")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.DispatchFailures.WithLabelValues("toast")))
}
