package notify

import (
	"context"
	"errors"
	"io"
	"testing"

	"forkcast/internal/meals"
	"forkcast/internal/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

func (m *MockSender) GetChat(config tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error) {
	args := m.Called(config)
	return args.Get(0).(tgbotapi.Chat), args.Error(1)
}

func newNotifier(t *testing.T, sender Sender) (*TelegramNotifier, *PermissionStore) {
	t.Helper()
	logger := zerolog.New(io.Discard)
	perms := NewPermissionStore(storage.NewMemoryStore(), storage.NewKeys("test"))
	return NewTelegramNotifier(sender, 42, "https://example.com/calendar", perms, &logger), perms
}

func lunchEvent() meals.ReminderEvent {
	return meals.ReminderEvent{MealType: meals.Lunch, ScheduledTime: "12:00"}
}

func TestRequestPermission(t *testing.T) {
	tests := []struct {
		name     string
		chatErr  error
		expected Permission
		stored   Permission
	}{
		{"chat resolves", nil, PermissionGranted, PermissionGranted},
		{"forbidden", &tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"}, PermissionDenied, PermissionDenied},
		{"bad request", &tgbotapi.Error{Code: 400, Message: "Bad Request: chat not found"}, PermissionDenied, PermissionDenied},
		{"network error", errors.New("dial tcp: timeout"), PermissionDefault, PermissionDefault},
		{"server error", &tgbotapi.Error{Code: 502, Message: "Bad Gateway"}, PermissionDefault, PermissionDefault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := new(MockSender)
			sender.On("GetChat", mock.Anything).Return(tgbotapi.Chat{ID: 42}, tt.chatErr).Once()
			n, perms := newNotifier(t, sender)

			got, err := n.RequestPermission(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)

			stored, err := perms.Get(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.stored, stored)
			sender.AssertExpectations(t)
		})
	}
}

func TestRequestPermission_AsksOnlyOnce(t *testing.T) {
	sender := new(MockSender)
	sender.On("GetChat", mock.Anything).Return(tgbotapi.Chat{ID: 42}, nil).Once()
	n, _ := newNotifier(t, sender)

	_, err := n.RequestPermission(context.Background())
	require.NoError(t, err)
	got, err := n.RequestPermission(context.Background())
	require.NoError(t, err)

	assert.Equal(t, PermissionGranted, got)
	sender.AssertNumberOfCalls(t, "GetChat", 1)
}

func TestNotify_SkipsWithoutPermission(t *testing.T) {
	sender := new(MockSender)
	n, perms := newNotifier(t, sender)

	require.NoError(t, n.Notify(context.Background(), lunchEvent()))
	require.NoError(t, perms.Set(context.Background(), PermissionDenied))
	require.NoError(t, n.Notify(context.Background(), lunchEvent()))

	sender.AssertNotCalled(t, "Send", mock.Anything)
}

func TestNotify_SendsMessageWithCalendarButton(t *testing.T) {
	sender := new(MockSender)
	n, perms := newNotifier(t, sender)
	require.NoError(t, perms.Set(context.Background(), PermissionGranted))

	sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		if !ok || msg.ChatID != 42 {
			return false
		}
		markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
		if !ok || len(markup.InlineKeyboard) != 1 {
			return false
		}
		btn := markup.InlineKeyboard[0][0]
		return msg.Text == "☀️ Lunch Reminder\nIt's almost time for lunch! Your meal is scheduled for 12:00." &&
			btn.Text == "View Meal Plan" && btn.URL != nil && *btn.URL == "https://example.com/calendar"
	})).Return(tgbotapi.Message{}, nil).Once()

	require.NoError(t, n.Notify(context.Background(), lunchEvent()))
	sender.AssertExpectations(t)
}

func TestNotify_ReturnsSendError(t *testing.T) {
	sender := new(MockSender)
	n, perms := newNotifier(t, sender)
	require.NoError(t, perms.Set(context.Background(), PermissionGranted))
	sender.On("Send", mock.Anything).Return(tgbotapi.Message{}, errors.New("boom"))

	assert.Error(t, n.Notify(context.Background(), lunchEvent()))
}

func TestPermissionStore_UnknownValueReadsDefault(t *testing.T) {
	kv := storage.NewMemoryStore()
	keys := storage.NewKeys("test")
	require.NoError(t, kv.Set(context.Background(), keys.Permission(), "maybe"))

	got, err := NewPermissionStore(kv, keys).Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PermissionDefault, got)
}
