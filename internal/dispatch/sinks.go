package dispatch

import (
	"context"

	"forkcast/internal/meals"
	"forkcast/internal/toast"
)

// Player plays the reminder chime.
type Player interface {
	Play(ctx context.Context) error
}

// Notifier shows a system notification.
type Notifier interface {
	Notify(ctx context.Context, ev meals.ReminderEvent) error
}

// Submitter records a reminder remotely without blocking.
type Submitter interface {
	Submit(mealType, mealTime string) error
}

// SoundSink plays the chime unless the reminder has sound disabled.
type SoundSink struct {
	Player Player
}

func (SoundSink) Name() string { return "sound" }

func (s SoundSink) Deliver(ctx context.Context, ev meals.ReminderEvent) error {
	if !ev.SoundEnabled {
		return nil
	}
	return s.Player.Play(ctx)
}

// NotificationSink forwards to the system notifier.
type NotificationSink struct {
	Notifier Notifier
}

func (NotificationSink) Name() string { return "notification" }

func (s NotificationSink) Deliver(ctx context.Context, ev meals.ReminderEvent) error {
	return s.Notifier.Notify(ctx, ev)
}

// ToastSink shows the in-app banner, replacing any visible one.
type ToastSink struct {
	Board *toast.Board
}

func (ToastSink) Name() string { return "toast" }

func (s ToastSink) Deliver(_ context.Context, ev meals.ReminderEvent) error {
	s.Board.Show(string(ev.MealType), ev.MealType.Icon(), ev.Title(), ev.Message())
	return nil
}

// SyncSink records the reminder in the remote log.
type SyncSink struct {
	Client Submitter
}

func (SyncSink) Name() string { return "sync" }

func (s SyncSink) Deliver(_ context.Context, ev meals.ReminderEvent) error {
	return s.Client.Submit(string(ev.MealType), ev.ScheduledTime)
}
